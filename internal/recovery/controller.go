// Package recovery watches the frequency of critical failures and, when
// a threshold is crossed inside a sliding window, restarts the process
// through an injected Restarter. Restarts are throttled by a cooldown
// and capped by a persisted attempt budget so a defect that survives
// restarting cannot cause a restart storm.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/vietddude/lifeline/internal/core/domain"
	"github.com/vietddude/lifeline/internal/infra/storage"
	"github.com/vietddude/lifeline/internal/metrics"
)

// logPrefix marks every log line this package emits. The error
// classifier treats the prefix as ignorable, so recovery's own logging
// can never feed the window it evaluates.
const logPrefix = "recovery:"

// Restarter performs a full process restart. Browser targets reload the
// page; service targets re-exec or hand off to a supervisor. A
// successful Restart typically never returns.
type Restarter interface {
	Restart(ctx context.Context) error
}

// RestarterFunc adapts a function to the Restarter interface.
type RestarterFunc func(ctx context.Context) error

func (f RestarterFunc) Restart(ctx context.Context) error { return f(ctx) }

// Config holds the controller thresholds.
type Config struct {
	// Window is the sliding window over critical error timestamps.
	Window time.Duration
	// Threshold is the critical error count inside Window that triggers
	// a restart attempt.
	Threshold int
	// Cooldown is the minimum spacing between restart attempts.
	Cooldown time.Duration
	// MaxAttempts caps automatic restarts until a reset.
	MaxAttempts int
	// ConfirmAfter is the startup age of the last attempt under which a
	// restart counts as confirmed successful.
	ConfirmAfter time.Duration
}

func (c *Config) withDefaults() {
	if c.Window == 0 {
		c.Window = 10 * time.Second
	}
	if c.Threshold == 0 {
		c.Threshold = 5
	}
	if c.Cooldown == 0 {
		c.Cooldown = 5 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.ConfirmAfter == 0 {
		c.ConfirmAfter = 5 * time.Second
	}
}

// Controller is the recovery state machine. It is the single writer of
// the window and budget; readers get copies.
type Controller struct {
	cfg       Config
	durable   storage.Store
	restarter Restarter
	log       *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	state  State
	window []time.Time
	budget domain.RecoveryBudget
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger overrides the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// NewController loads the persisted budget and applies the post-restart
// rule: when durable storage shows a restart within ConfirmAfter of now,
// the new process itself is the proof that the restart worked, and the
// attempt count resets to zero.
func NewController(durable storage.Store, restarter Restarter, cfg Config, opts ...Option) (*Controller, error) {
	cfg.withDefaults()

	c := &Controller{
		cfg:       cfg,
		durable:   durable,
		restarter: restarter,
		log:       slog.Default(),
		now:       time.Now,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}

	budget, err := c.loadBudget()
	if err != nil {
		return nil, err
	}
	c.budget = budget

	if budget.AttemptCount > 0 && !budget.LastAttemptAt.IsZero() &&
		c.now().Sub(budget.LastAttemptAt) <= cfg.ConfirmAfter {
		c.budget.AttemptCount = 0
		if err := c.persistBudget(); err != nil {
			c.log.Warn(logPrefix+" failed to persist confirmed recovery", "error", err)
		}
		c.log.Info(logPrefix+" previous restart confirmed successful, budget reset",
			"last_attempt_at", budget.LastAttemptAt)
	}

	metrics.RecoveryState.Set(gaugeValue(c.state))
	return c, nil
}

// OnCritical feeds one critical error into the window and drives the
// state machine. It is the CriticalFunc registered with the recorder.
// Window evaluation is synchronous and never suspends.
func (c *Controller) OnCritical(rec domain.ErrorRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.window = append(c.window, rec.Timestamp)
	c.pruneLocked(now)

	if c.state == StateExhausted {
		return
	}
	if c.state == StateIdle {
		c.transitionLocked(StateMonitoring, "first critical error")
	}

	if len(c.window) < c.cfg.Threshold {
		if c.state == StateCooldown {
			c.transitionLocked(StateMonitoring, "below threshold after cooldown")
		}
		return
	}

	c.transitionLocked(StateRecoveryPending, fmt.Sprintf("%d critical errors in window", len(c.window)))

	if c.budget.Exhausted(c.cfg.MaxAttempts) {
		c.transitionLocked(StateExhausted, "restart budget exhausted")
		c.log.Error(logPrefix+" restart budget exhausted, manual reset required",
			"attempts", c.budget.AttemptCount, "max_attempts", c.cfg.MaxAttempts)
		return
	}

	if !c.budget.LastAttemptAt.IsZero() && now.Sub(c.budget.LastAttemptAt) < c.cfg.Cooldown {
		// Dropped, not queued. The next critical error re-evaluates.
		c.transitionLocked(StateCooldown, "restart attempted too recently")
		return
	}

	c.budget.AttemptCount++
	c.budget.LastAttemptAt = now
	if err := c.persistBudget(); err != nil {
		c.log.Warn(logPrefix+" failed to persist budget before restart", "error", err)
	}
	metrics.RestartAttempts.Inc()
	c.log.Warn(logPrefix+" restarting process",
		"attempt", c.budget.AttemptCount, "max_attempts", c.cfg.MaxAttempts)

	// A real restarter does not return. When a fake one does (tests,
	// dry-run), the window is spent and the machine re-arms.
	c.window = nil
	c.transitionLocked(StateIdle, "restart invoked")

	if err := c.restarter.Restart(context.Background()); err != nil {
		c.log.Error(logPrefix+" restart failed", "error", err)
	}
}

// State prunes the window and returns the current state. Aging out the
// last windowed error returns the controller to Idle.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(c.now())
	if len(c.window) == 0 && (c.state == StateMonitoring || c.state == StateCooldown) {
		c.transitionLocked(StateIdle, "window drained")
	}
	return c.state
}

// Budget returns a copy of the current restart budget.
func (c *Controller) Budget() domain.RecoveryBudget {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.budget
}

// WindowCount returns the number of critical errors currently in the
// window.
func (c *Controller) WindowCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(c.now())
	return len(c.window)
}

// Reset zeroes the budget and window and returns to Idle. This is the
// manual operator action required after Exhausted.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.budget = domain.RecoveryBudget{}
	c.window = nil
	if c.state != StateIdle {
		c.transitionLocked(StateIdle, "manual reset")
	}
	if err := c.persistBudget(); err != nil {
		return fmt.Errorf("persist reset budget: %w", err)
	}
	c.log.Info(logPrefix + " budget manually reset")
	return nil
}

func (c *Controller) pruneLocked(now time.Time) {
	cutoff := now.Add(-c.cfg.Window)
	kept := c.window[:0]
	for _, ts := range c.window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	c.window = kept
}

func (c *Controller) transitionLocked(to State, reason string) {
	if c.state == to {
		return
	}
	if !CanTransition(c.state, to) {
		c.log.Warn(logPrefix+" rejected state transition",
			"from", string(c.state), "to", string(to), "reason", reason)
		return
	}
	c.log.Debug(logPrefix+" state transition",
		"from", string(c.state), "to", string(to), "reason", reason)
	c.state = to
	metrics.RecoveryState.Set(gaugeValue(to))
}

func (c *Controller) loadBudget() (domain.RecoveryBudget, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var budget domain.RecoveryBudget

	raw, ok, err := c.durable.Get(ctx, storage.KeyAttemptCount)
	if err != nil {
		return budget, fmt.Errorf("load attempt count: %w", err)
	}
	if ok {
		n, err := strconv.Atoi(string(raw))
		if err != nil {
			return budget, fmt.Errorf("parse attempt count: %w", err)
		}
		budget.AttemptCount = n
	}

	raw, ok, err = c.durable.Get(ctx, storage.KeyLastAttemptAt)
	if err != nil {
		return budget, fmt.Errorf("load last attempt: %w", err)
	}
	if ok {
		ms, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return budget, fmt.Errorf("parse last attempt: %w", err)
		}
		budget.LastAttemptAt = time.UnixMilli(ms)
	}

	return budget, nil
}

func (c *Controller) persistBudget() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count := []byte(strconv.Itoa(c.budget.AttemptCount))
	if err := c.durable.Set(ctx, storage.KeyAttemptCount, count); err != nil {
		return fmt.Errorf("persist attempt count: %w", err)
	}

	if c.budget.LastAttemptAt.IsZero() {
		if err := c.durable.Delete(ctx, storage.KeyLastAttemptAt); err != nil {
			return fmt.Errorf("clear last attempt: %w", err)
		}
		return nil
	}

	at := []byte(strconv.FormatInt(c.budget.LastAttemptAt.UnixMilli(), 10))
	if err := c.durable.Set(ctx, storage.KeyLastAttemptAt, at); err != nil {
		return fmt.Errorf("persist last attempt: %w", err)
	}
	return nil
}
