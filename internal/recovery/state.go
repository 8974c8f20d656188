package recovery

import (
	"errors"
	"time"
)

// State is the recovery controller's lifecycle state.
type State string

const (
	// StateIdle means no critical errors are in the window.
	StateIdle State = "idle"
	// StateMonitoring means critical errors were seen but the threshold
	// has not been reached.
	StateMonitoring State = "monitoring"
	// StateRecoveryPending means the threshold was crossed and a restart
	// decision is being made.
	StateRecoveryPending State = "recovery_pending"
	// StateCooldown means a restart was wanted but dropped because the
	// previous attempt was too recent.
	StateCooldown State = "cooldown"
	// StateExhausted means the restart budget is spent; only a manual
	// reset re-arms the controller.
	StateExhausted State = "exhausted"
)

// ErrInvalidTransition is returned when an invalid state transition is
// attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[State][]State{
	StateIdle:       {StateMonitoring},
	StateMonitoring: {StateRecoveryPending, StateIdle},
	// RecoveryPending resolves immediately: a restart returns the
	// controller to Idle, otherwise it parks in Cooldown or Exhausted.
	StateRecoveryPending: {StateCooldown, StateExhausted, StateIdle},
	StateCooldown:        {StateRecoveryPending, StateMonitoring, StateIdle},
	StateExhausted:       {StateIdle},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	validTargets, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State
	To        State
	Reason    string
	Timestamp time.Time
}

// IsValid returns true if this transition is allowed by the state machine.
func (t Transition) IsValid() bool {
	return CanTransition(t.From, t.To)
}

// gaugeValue maps a state onto the metrics gauge.
func gaugeValue(s State) float64 {
	switch s {
	case StateIdle:
		return 0
	case StateMonitoring:
		return 1
	case StateRecoveryPending:
		return 2
	case StateCooldown:
		return 3
	case StateExhausted:
		return 4
	default:
		return -1
	}
}
