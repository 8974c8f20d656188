package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vietddude/lifeline/internal/infra/api"
	"github.com/vietddude/lifeline/internal/infra/storage/memory"
	"github.com/vietddude/lifeline/internal/pipeline"
	"github.com/vietddude/lifeline/internal/session"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}

	BACKEND_URL := os.Getenv("BACKEND_URL")
	EMAIL := os.Getenv("DEMO_EMAIL")
	PASSWORD := os.Getenv("DEMO_PASSWORD")
	if BACKEND_URL == "" {
		log.Fatalf("BACKEND_URL is not set")
	}

	ctx := context.Background()

	// 1. Backend client and session store
	backend := api.NewClient(BACKEND_URL, 30*time.Second)
	store := session.NewStore(backend, memory.NewStore())

	// 2. Authenticate
	if err := store.Login(ctx, EMAIL, PASSWORD); err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	fmt.Printf("Authenticated: %v\n", store.IsAuthenticated())

	// 3. Authenticated client: token attach + refresh-and-retry are
	// transparent from here on
	client := pipeline.NewHTTPClient(store, backend.HTTPClient())

	for i := 0; i < 3; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, BACKEND_URL+"/users/me", nil)
		if err != nil {
			log.Fatalf("Build request: %v", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("Call %d failed: %v", i+1, err)
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		fmt.Printf("Call %d: %d %s\n", i+1, resp.StatusCode, body)

		time.Sleep(100 * time.Millisecond)
	}

	// 4. Revoke and clear
	if err := store.Logout(ctx); err != nil {
		log.Printf("Logout failed: %v", err)
	}
	fmt.Printf("Authenticated after logout: %v\n", store.IsAuthenticated())
}
