package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"github.com/vietddude/lifeline/internal/core/config"
	redisclient "github.com/vietddude/lifeline/internal/infra/redis"
	"github.com/vietddude/lifeline/internal/infra/storage"
	filestore "github.com/vietddude/lifeline/internal/infra/storage/file"
)

// Operator tool: clears the persisted recovery budget so a process stuck
// in the exhausted state is allowed to restart again. Optionally prunes
// the error record archive.
func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	pruneArchive := flag.Bool("prune-archive", false, "Also delete archived error records")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	var store storage.Store
	switch {
	case cfg.Redis.URL != "":
		store, err = redisclient.NewStore(cfg.Redis)
	case cfg.Storage.FilePath != "":
		store, err = filestore.NewStore(cfg.Storage.FilePath)
	default:
		fmt.Fprintln(os.Stderr, "no durable storage configured, nothing to reset")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	for _, key := range []string{storage.KeyAttemptCount, storage.KeyLastAttemptAt} {
		if err := store.Delete(ctx, key); err != nil {
			fmt.Fprintf(os.Stderr, "delete %s: %v\n", key, err)
			os.Exit(1)
		}
	}
	fmt.Println("Recovery budget reset")

	if *pruneArchive && cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		res, err := db.ExecContext(ctx, "DELETE FROM error_records")
		if err != nil {
			fmt.Fprintf(os.Stderr, "prune archive: %v\n", err)
			os.Exit(1)
		}
		n, _ := res.RowsAffected()
		fmt.Printf("Pruned %d archived error records\n", n)
	}
}
