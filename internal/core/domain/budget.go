package domain

import "time"

// RecoveryBudget tracks how many automatic restarts have been performed.
// It is persisted so the next process instance knows how many attempts
// already happened.
type RecoveryBudget struct {
	AttemptCount  int       `json:"attempt_count"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
}

// Exhausted reports whether the budget allows no further restarts.
func (b RecoveryBudget) Exhausted(maxAttempts int) bool {
	return b.AttemptCount >= maxAttempts
}
