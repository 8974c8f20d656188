// Package control is the composition root. It wires the session store,
// request pipeline, error recorder and recovery controller together as
// explicitly constructed services with process-scoped lifetime; nothing
// in this module is an ambient global.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/lifeline/internal/core/config"
	"github.com/vietddude/lifeline/internal/health"
	"github.com/vietddude/lifeline/internal/infra/api"
	redisclient "github.com/vietddude/lifeline/internal/infra/redis"
	"github.com/vietddude/lifeline/internal/infra/storage"
	filestore "github.com/vietddude/lifeline/internal/infra/storage/file"
	"github.com/vietddude/lifeline/internal/infra/storage/memory"
	"github.com/vietddude/lifeline/internal/infra/storage/postgres"
	"github.com/vietddude/lifeline/internal/pipeline"
	"github.com/vietddude/lifeline/internal/recorder"
	"github.com/vietddude/lifeline/internal/recovery"
	"github.com/vietddude/lifeline/internal/session"
)

// Config holds the application configuration.
type Config struct {
	Port     int
	GRPCPort int

	Backend  config.BackendConfig
	Session  config.SessionConfig
	Recorder config.RecorderConfig
	Recovery recovery.Config
	Storage  config.StorageConfig
	Redis    redisclient.Config
	Database postgres.Config

	// Restarter defaults to ExecRestarter.
	Restarter recovery.Restarter
	// MigrationsDir defaults to "migrations".
	MigrationsDir string
}

// Core owns the resilience services and their lifecycle.
type Core struct {
	cfg Config
	log *slog.Logger

	durable storage.Store
	db      *postgres.DB

	Backend  *api.Client
	Session  *session.Store
	Recorder *recorder.Recorder
	Recovery *recovery.Controller
	// HTTP is the authenticated client every outbound API call goes
	// through.
	HTTP *http.Client

	healthServer *health.Server
}

// NewCore creates a Core with all dependencies initialized.
func NewCore(cfg Config) (*Core, error) {
	if cfg.Backend.URL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}

	c := &Core{cfg: cfg, log: slog.Default()}

	// 1. Durable key-value storage: redis, file, or in-memory.
	switch {
	case cfg.Redis.URL != "":
		store, err := redisclient.NewStore(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis storage: %w", err)
		}
		c.durable = store
		slog.Info("Using redis storage")
	case cfg.Storage.FilePath != "":
		store, err := filestore.NewStore(cfg.Storage.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to init file storage: %w", err)
		}
		c.durable = store
		slog.Info("Using file storage", "path", cfg.Storage.FilePath)
	default:
		c.durable = memory.NewStore()
		slog.Info("Using memory storage, state will not survive a restart")
	}

	// 2. Error record sinks.
	var sinks recorder.MultiSink
	if cfg.Recorder.SinkURL != "" {
		sinks = append(sinks, recorder.NewHTTPSink(cfg.Recorder.SinkURL, 0))
	}
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		dir := cfg.MigrationsDir
		if dir == "" {
			dir = "migrations"
		}
		if err := db.Migrate(dir); err != nil {
			return nil, err
		}
		c.db = db
		sinks = append(sinks, postgres.NewRecordRepo(db))
		slog.Info("Archiving error records to PostgreSQL")
	}
	var sink recorder.Sink = recorder.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = sinks
	}

	classifier := recorder.NewClassifier(cfg.Recorder.CriticalPatterns, cfg.Recorder.IgnorablePatterns)
	c.Recorder = recorder.New(sink,
		recorder.WithCapacity(cfg.Recorder.Capacity),
		recorder.WithClassifier(classifier),
	)

	// 3. Session and pipeline.
	c.Backend = api.NewClient(cfg.Backend.URL, time.Duration(cfg.Backend.Timeout))

	var sessionOpts []session.Option
	if cfg.Session.Skew > 0 {
		sessionOpts = append(sessionOpts, session.WithSkew(time.Duration(cfg.Session.Skew)))
	}
	c.Session = session.NewStore(c.Backend, c.durable, sessionOpts...)
	c.HTTP = pipeline.NewHTTPClient(c.Session, c.Backend.HTTPClient())

	// 4. Recovery controller fed by the recorder.
	restarter := cfg.Restarter
	if restarter == nil {
		restarter = ExecRestarter{}
	}
	ctrl, err := recovery.NewController(c.durable, restarter, cfg.Recovery)
	if err != nil {
		return nil, fmt.Errorf("failed to init recovery controller: %w", err)
	}
	c.Recovery = ctrl
	c.Recorder.SetCriticalFunc(ctrl.OnCritical)

	c.healthServer = health.NewServer(c.Session, c.Recovery, c.Recorder, cfg.Port, cfg.GRPCPort)

	return c, nil
}

// CaptureLogs routes error-level slog output through the recorder while
// leaving the visible log stream untouched. Call once after the process
// logger is configured.
func (c *Core) CaptureLogs() {
	slog.SetDefault(slog.New(recorder.NewHandler(slog.Default().Handler(), c.Recorder)))
	c.log = slog.Default()
}

// Start brings up the health surface.
func (c *Core) Start(ctx context.Context) error {
	return c.healthServer.Start(ctx)
}

// Stop flushes and releases everything in reverse dependency order.
func (c *Core) Stop(ctx context.Context) error {
	var firstErr error

	if err := c.healthServer.Stop(ctx); err != nil {
		firstErr = err
	}
	if err := c.Recorder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.durable.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
