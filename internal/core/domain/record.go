package domain

import "time"

// ErrorRecord is one captured runtime failure. Records are immutable after
// creation and evicted from the log oldest-first.
type ErrorRecord struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

type Severity string

const (
	// SeverityCritical failures count toward the restart threshold.
	SeverityCritical Severity = "critical"
	// SeverityNormal failures are stored and forwarded but never feed the
	// restart window.
	SeverityNormal Severity = "normal"
	// SeverityIgnorable failures are known benign noise, including the
	// recovery machinery's own log lines.
	SeverityIgnorable Severity = "ignorable"
)
