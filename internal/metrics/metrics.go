package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrorsRecorded tracks captured failures by severity and source
	ErrorsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifeline_errors_recorded_total",
			Help: "Total number of runtime failures captured",
		},
		[]string{"severity", "source"},
	)

	// RefreshTotal tracks credential refresh attempts against the backend
	RefreshTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lifeline_refresh_total",
			Help: "Total number of backend refresh calls issued",
		},
	)

	// RefreshFailures tracks refresh calls rejected by the backend
	RefreshFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lifeline_refresh_failures_total",
			Help: "Total number of refresh calls that failed",
		},
	)

	// RequestRetries tracks pipeline requests resent after a refresh
	RequestRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lifeline_request_retries_total",
			Help: "Total number of requests retried after an authorization failure",
		},
	)

	// RestartAttempts tracks restarts performed by the recovery controller
	RestartAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lifeline_restart_attempts_total",
			Help: "Total number of process restarts attempted",
		},
	)

	// RecoveryState exposes the controller state as a numeric gauge
	// (0=idle 1=monitoring 2=recovery_pending 3=cooldown 4=exhausted)
	RecoveryState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lifeline_recovery_state",
			Help: "Current recovery controller state",
		},
	)

	// SinkDropped tracks error records dropped by the async sink dispatcher
	SinkDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lifeline_sink_dropped_total",
			Help: "Total number of error records dropped before forwarding",
		},
	)
)
