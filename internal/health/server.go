// Package health exposes the process's liveness surface: an HTTP
// endpoint for humans and scrapers, and a gRPC health service for
// supervisors that decide whether to keep the process alive.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	healthsvc "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vietddude/lifeline/internal/core/domain"
	"github.com/vietddude/lifeline/internal/recovery"
)

// Status is the aggregate health verdict.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// Session is the session view the server reports on.
type Session interface {
	IsAuthenticated() bool
}

// Recovery is the controller view the server reports on.
type Recovery interface {
	State() recovery.State
	Budget() domain.RecoveryBudget
	WindowCount() int
}

// Diagnostics is the error log view the server reports on.
type Diagnostics interface {
	Recent(n int) []domain.ErrorRecord
	Len() int
}

// Server provides HTTP and gRPC endpoints for health monitoring.
type Server struct {
	session  Session
	recovery Recovery
	diag     Diagnostics
	log      *slog.Logger

	httpServer *http.Server
	grpcPort   int
	grpcServer *grpc.Server
	healthSvc  *healthsvc.Server
}

// NewServer creates a health server. grpcPort 0 disables the gRPC
// surface.
func NewServer(session Session, rec Recovery, diag Diagnostics, port, grpcPort int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		session:  session,
		recovery: rec,
		diag:     diag,
		log:      slog.Default(),
		grpcPort: grpcPort,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	if grpcPort > 0 {
		s.grpcServer = grpc.NewServer()
		s.healthSvc = healthsvc.NewServer()
		healthpb.RegisterHealthServer(s.grpcServer, s.healthSvc)
	}

	return s
}

// Start serves until the listeners fail or Stop is called. The gRPC
// serving status tracks the recovery state so a supervisor sees
// NOT_SERVING once the restart budget is exhausted.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("Health HTTP server failed", "error", err)
		}
	}()

	if s.grpcServer != nil {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.grpcPort))
		if err != nil {
			return fmt.Errorf("listen grpc health: %w", err)
		}
		go func() {
			if err := s.grpcServer.Serve(lis); err != nil {
				s.log.Error("Health gRPC server failed", "error", err)
			}
		}()
		go s.trackServingStatus(ctx)
	}

	return nil
}

// Stop shuts both servers down.
func (s *Server) Stop(ctx context.Context) error {
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) trackServingStatus(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := healthpb.HealthCheckResponse_SERVING
			if s.status() == StatusCritical {
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
			s.healthSvc.SetServingStatus("", status)
		}
	}
}

func (s *Server) status() Status {
	switch s.recovery.State() {
	case recovery.StateExhausted:
		return StatusCritical
	case recovery.StateIdle:
		return StatusHealthy
	default:
		return StatusDegraded
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.status()

	w.Header().Set("Content-Type", "application/json")
	if status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(map[string]string{"status": string(status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	budget := s.recovery.Budget()

	response := map[string]any{
		"status":         string(s.status()),
		"recovery_state": string(s.recovery.State()),
		"window_count":   s.recovery.WindowCount(),
		"attempt_count":  budget.AttemptCount,
		"authenticated":  s.session.IsAuthenticated(),
		"errors_stored":  s.diag.Len(),
		"recent_errors":  s.diag.Recent(10),
	}
	if !budget.LastAttemptAt.IsZero() {
		response["last_attempt_at"] = budget.LastAttemptAt
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
