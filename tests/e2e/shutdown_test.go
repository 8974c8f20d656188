package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/lifeline/internal/control"
	"github.com/vietddude/lifeline/internal/core/config"
	"github.com/vietddude/lifeline/internal/recovery"
)

type nopRestarter struct{}

func (nopRestarter) Restart(ctx context.Context) error { return nil }

func stubBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "bearer",
			"expires_in":    1800,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGracefulShutdown(t *testing.T) {
	backend := stubBackend(t)

	cfg := control.Config{
		Port:      0,
		Backend:   config.BackendConfig{URL: backend.URL},
		Restarter: nopRestarter{},
	}

	app, err := control.NewCore(cfg)
	if err != nil {
		t.Fatalf("Failed to create core: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Let it run for a bit, with some activity going through.
	if err := app.Session.Login(ctx, "user@example.com", "password"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	app.Recorder.RecordMessage("connection refused", "probe")
	time.Sleep(100 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestRecoveryEndToEnd(t *testing.T) {
	backend := stubBackend(t)

	restarted := make(chan struct{}, 4)
	cfg := control.Config{
		Port:    0,
		Backend: config.BackendConfig{URL: backend.URL},
		Recovery: recovery.Config{
			Window:      10 * time.Second,
			Threshold:   3,
			Cooldown:    time.Millisecond,
			MaxAttempts: 3,
		},
		Restarter: recovery.RestarterFunc(func(ctx context.Context) error {
			restarted <- struct{}{}
			return nil
		}),
	}

	app, err := control.NewCore(cfg)
	if err != nil {
		t.Fatalf("Failed to create core: %v", err)
	}
	defer app.Stop(context.Background())

	// A burst of critical errors crosses the threshold and triggers a
	// restart through the injected restarter.
	for i := 0; i < 3; i++ {
		app.Recorder.RecordMessage("panic: runtime error: index out of range", "worker")
	}

	select {
	case <-restarted:
	case <-time.After(time.Second):
		t.Fatal("Restarter was not invoked")
	}

	// Ignorable noise afterwards never re-triggers.
	for i := 0; i < 10; i++ {
		app.Recorder.RecordMessage("context canceled", "worker")
	}
	select {
	case <-restarted:
		t.Fatal("Ignorable errors triggered a restart")
	case <-time.After(100 * time.Millisecond):
	}
}
