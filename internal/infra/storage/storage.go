// Package storage defines the durable key-value contract shared by the
// session store and the recovery controller. State written here must
// survive a process restart.
package storage

import "context"

// Well-known keys. All components persist through the same store so a
// single backend (file, redis) carries the whole process state.
const (
	KeyCredential    = "session.credential"
	KeyAttemptCount  = "recovery.attempt_count"
	KeyLastAttemptAt = "recovery.last_attempt_at"
)

// Store is a durable key-value store. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the value for key. The second return is false when the
	// key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes the value for key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases underlying resources.
	Close() error
}
