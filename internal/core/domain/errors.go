package domain

import "errors"

var (
	// ErrSessionExpired is returned when the refresh token itself is
	// rejected. The session is unrecoverable and the caller must
	// re-authenticate.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotAuthenticated is returned when an operation requires a
	// credential and none is held.
	ErrNotAuthenticated = errors.New("not authenticated")
)
