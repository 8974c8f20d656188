package recorder

import (
	"strings"

	"github.com/vietddude/lifeline/internal/core/domain"
)

// RecoveryLogPrefix marks log lines emitted by the recovery machinery
// itself. It is always classified ignorable so the recovery mechanism's
// own logging can never retrigger it.
const RecoveryLogPrefix = "recovery:"

// DefaultCriticalPatterns match failures significant enough to count
// toward the restart threshold: panics, runtime errors and hard
// network/load failures.
var DefaultCriticalPatterns = []string{
	"panic:",
	"runtime error",
	"nil pointer dereference",
	"invalid memory address",
	"index out of range",
	"connection refused",
	"connection reset",
	"no such host",
	"broken pipe",
	"module load failed",
}

// DefaultIgnorablePatterns match known benign noise.
var DefaultIgnorablePatterns = []string{
	RecoveryLogPrefix,
	"context canceled",
	"use of closed network connection",
}

// Classifier assigns a severity to an error message by substring match.
// The pattern lists are heuristic and therefore configuration, not
// hard-coded logic.
type Classifier struct {
	critical  []string
	ignorable []string
}

// NewClassifier builds a classifier. Nil pattern lists fall back to the
// defaults; the recovery log prefix is always ignorable regardless of
// configuration.
func NewClassifier(critical, ignorable []string) *Classifier {
	if critical == nil {
		critical = DefaultCriticalPatterns
	}
	if ignorable == nil {
		ignorable = DefaultIgnorablePatterns
	}
	if !containsPattern(ignorable, RecoveryLogPrefix) {
		ignorable = append([]string{RecoveryLogPrefix}, ignorable...)
	}
	return &Classifier{critical: critical, ignorable: ignorable}
}

// Classify returns the severity for a message. Ignorable patterns win
// over critical ones, so benign noise that happens to mention a critical
// substring stays excluded from the restart window.
func (c *Classifier) Classify(message string) domain.Severity {
	m := strings.ToLower(message)

	for _, p := range c.ignorable {
		if strings.Contains(m, strings.ToLower(p)) {
			return domain.SeverityIgnorable
		}
	}
	for _, p := range c.critical {
		if strings.Contains(m, strings.ToLower(p)) {
			return domain.SeverityCritical
		}
	}
	return domain.SeverityNormal
}

func containsPattern(patterns []string, want string) bool {
	for _, p := range patterns {
		if strings.EqualFold(p, want) {
			return true
		}
	}
	return false
}
