// Package session owns the credential lifecycle: it is the single source
// of truth for the current access/refresh pair and the one active refresh
// operation against the backend.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vietddude/lifeline/internal/core/domain"
	"github.com/vietddude/lifeline/internal/infra/api"
	"github.com/vietddude/lifeline/internal/infra/storage"
	"github.com/vietddude/lifeline/internal/metrics"
)

// DefaultSkew is the safety margin subtracted from a token's real expiry,
// so a token is treated as expired slightly before the server would
// reject it.
const DefaultSkew = 5 * time.Minute

// Backend is the slice of the auth API the store needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (domain.Token, error)
	Register(ctx context.Context, email, password string) (domain.Token, error)
	Refresh(ctx context.Context, refreshToken string) (domain.Token, error)
	Logout(ctx context.Context, refreshToken string) error
}

// Store holds the current credential and guarantees at most one
// outstanding refresh operation at any instant.
type Store struct {
	backend Backend
	durable storage.Store
	log     *slog.Logger
	skew    time.Duration
	now     func() time.Time

	group singleflight.Group

	mu   sync.RWMutex
	cred *domain.Credential
}

// Option configures a Store.
type Option func(*Store)

// WithSkew overrides the expiry safety margin.
func WithSkew(skew time.Duration) Option {
	return func(s *Store) { s.skew = skew }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger overrides the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore creates a session store and loads any credential persisted by
// a previous process instance.
func NewStore(backend Backend, durable storage.Store, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		durable: durable,
		log:     slog.Default(),
		skew:    DefaultSkew,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.loadPersisted()
	return s
}

func (s *Store) loadPersisted() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw, ok, err := s.durable.Get(ctx, storage.KeyCredential)
	if err != nil {
		s.log.Warn("Failed to load persisted credential", "error", err)
		return
	}
	if !ok {
		return
	}

	var cred domain.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		s.log.Warn("Discarding unreadable persisted credential", "error", err)
		return
	}

	s.mu.Lock()
	s.cred = &cred
	s.mu.Unlock()
	s.log.Info("Restored persisted session", "expires_at", cred.ExpiresAt)
}

// SetCredential replaces the held credential with one built from the
// backend token, anchoring expiry at now + expires_in, and persists it.
// Persist failures are logged, not fatal: the in-memory session stays
// usable.
func (s *Store) SetCredential(tok domain.Token) {
	cred := domain.NewCredential(tok, s.now())

	s.mu.Lock()
	s.cred = &cred
	s.mu.Unlock()

	raw, err := json.Marshal(cred)
	if err != nil {
		s.log.Warn("Failed to marshal credential", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.durable.Set(ctx, storage.KeyCredential, raw); err != nil {
		s.log.Warn("Failed to persist credential", "error", err)
	}
}

// ClearCredential drops the held credential and its persisted copy.
// Idempotent.
func (s *Store) ClearCredential() {
	s.mu.Lock()
	s.cred = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.durable.Delete(ctx, storage.KeyCredential); err != nil {
		s.log.Warn("Failed to clear persisted credential", "error", err)
	}
}

// Credential returns a copy of the held credential, if any.
func (s *Store) Credential() (domain.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return domain.Credential{}, false
	}
	return *s.cred, true
}

// AccessToken returns the current access token, or "" when no credential
// is held.
func (s *Store) AccessToken() string {
	cred, ok := s.Credential()
	if !ok {
		return ""
	}
	return cred.AccessToken
}

// IsAuthenticated reports whether a non-expired credential is held.
func (s *Store) IsAuthenticated() bool {
	cred, ok := s.Credential()
	return ok && !cred.ExpiredAt(s.now(), s.skew)
}

// IsExpired reports whether the held credential is past its skewed
// expiry. A missing credential counts as expired.
func (s *Store) IsExpired() bool {
	cred, ok := s.Credential()
	if !ok {
		return true
	}
	return cred.ExpiredAt(s.now(), s.skew)
}

// Login authenticates with the backend and installs the returned pair.
func (s *Store) Login(ctx context.Context, email, password string) error {
	tok, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	s.SetCredential(tok)
	s.log.Info("Logged in", "expires_in", tok.ExpiresIn)
	return nil
}

// Register creates an account and installs its first pair.
func (s *Store) Register(ctx context.Context, email, password string) error {
	tok, err := s.backend.Register(ctx, email, password)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	s.SetCredential(tok)
	s.log.Info("Registered", "expires_in", tok.ExpiresIn)
	return nil
}

// Refresh exchanges the held refresh token for a new pair. It is
// single-flight: callers arriving while a refresh is in flight join it
// and observe the same resolved credential or the same failure, and
// exactly one backend call is made per burst.
//
// A backend rejection of the refresh token is fatal to the session: the
// credential is cleared and every waiter gets ErrSessionExpired. Other
// failures (network, 5xx) leave the credential in place and are not
// retried here.
func (s *Store) Refresh(ctx context.Context) (domain.Credential, error) {
	v, err, _ := s.group.Do("refresh", func() (any, error) {
		cred, ok := s.Credential()
		if !ok {
			return nil, domain.ErrNotAuthenticated
		}

		metrics.RefreshTotal.Inc()
		tok, err := s.backend.Refresh(ctx, cred.RefreshToken)
		if err != nil {
			metrics.RefreshFailures.Inc()
			if errors.Is(err, api.ErrUnauthorized) {
				s.ClearCredential()
				s.log.Warn("Refresh token rejected, session ended", "error", err)
				return nil, fmt.Errorf("%w: %v", domain.ErrSessionExpired, err)
			}
			return nil, fmt.Errorf("refresh: %w", err)
		}

		s.SetCredential(tok)
		s.log.Debug("Session refreshed", "expires_in", tok.ExpiresIn)
		next, _ := s.Credential()
		return next, nil
	})
	if err != nil {
		return domain.Credential{}, err
	}
	return v.(domain.Credential), nil
}

// Logout best-effort revokes the refresh token at the backend, then
// unconditionally clears local state. Local state must never stay
// authenticated because a network call failed. Idempotent when already
// logged out.
func (s *Store) Logout(ctx context.Context) error {
	cred, ok := s.Credential()
	if ok {
		if err := s.backend.Logout(ctx, cred.RefreshToken); err != nil {
			s.log.Warn("Logout notification failed, clearing local session anyway", "error", err)
		}
	}
	s.ClearCredential()
	return nil
}
