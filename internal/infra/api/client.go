// Package api is the HTTP client for the auth backend. The backend is an
// external collaborator: this package only consumes its contract (login,
// register, refresh, logout, 401 on an invalid credential).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/lifeline/internal/core/domain"
)

// ErrUnauthorized is returned when the backend rejects the presented
// credential with a 401.
var ErrUnauthorized = errors.New("unauthorized")

// Client talks to the auth backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. The timeout covers the whole
// round-trip; callers do not add their own cancellation layer on top.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient exposes the underlying client so the request pipeline can
// share its transport and timeout.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login exchanges email/password for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (domain.Token, error) {
	var tok domain.Token
	err := c.postJSON(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &tok)
	return tok, err
}

// Register creates an account and returns its first token pair.
func (c *Client) Register(ctx context.Context, email, password string) (domain.Token, error) {
	var tok domain.Token
	err := c.postJSON(ctx, "/auth/register", loginRequest{Email: email, Password: password}, &tok)
	return tok, err
}

// Refresh exchanges a refresh token for a new pair. The backend revokes
// the old refresh token on success, so the caller must replace both
// tokens. Fails with ErrUnauthorized when the refresh token itself is
// invalid or revoked.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.Token, error) {
	var tok domain.Token
	err := c.postJSON(ctx, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &tok)
	return tok, err
}

// Logout asks the backend to revoke the refresh token. The backend
// acknowledges regardless of token validity; a transport failure is
// surfaced but callers treat it as non-fatal.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.postJSON(ctx, "/auth/logout", logoutRequest{RefreshToken: refreshToken}, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w: %s", path, ErrUnauthorized, readDetail(resp.Body))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: http %d: %s", path, resp.StatusCode, readDetail(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// readDetail extracts the backend's error detail field, falling back to
// the raw body.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return string(raw)
}
