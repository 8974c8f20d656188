// Package pipeline wraps outbound API calls: it attaches the current
// access token and recovers from exactly one authorization failure per
// request by refreshing the session and resending once.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vietddude/lifeline/internal/core/domain"
	"github.com/vietddude/lifeline/internal/metrics"
)

// Session is the slice of the session store the pipeline needs.
type Session interface {
	AccessToken() string
	Refresh(ctx context.Context) (domain.Credential, error)
}

// Transport is an http.RoundTripper that authenticates requests against
// the session store. A request is retried at most once, which bounds the
// refresh/retry loop even against a misconfigured backend that keeps
// answering 401.
type Transport struct {
	session Session
	base    http.RoundTripper
	log     *slog.Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(session Session, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{session: session, base: base, log: slog.Default()}
}

// NewHTTPClient returns an http.Client whose transport authenticates
// through the session store. Timeout handling stays with the caller's
// client configuration; the pipeline adds no cancellation layer of its
// own.
func NewHTTPClient(session Session, base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	return &http.Client{
		Transport:     NewTransport(session, base.Transport),
		Timeout:       base.Timeout,
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
	}
}

// RoundTrip sends the request with the current access token attached.
// On a 401 it joins (or starts) a session refresh and resends the
// request exactly once with the new token. A refresh failure surfaces
// the session error instead of the response; any other failure mode
// passes through unchanged.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(t.withToken(req, t.session.AccessToken()))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Requests with a one-shot body cannot be replayed.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	drain(resp)

	cred, err := t.session.Refresh(req.Context())
	if err != nil {
		t.log.Debug("Refresh failed, not retrying request", "url", req.URL.Path, "error", err)
		return nil, err
	}

	retry := t.withToken(req, cred.AccessToken)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay request body: %w", err)
		}
		retry.Body = body
	}

	metrics.RequestRetries.Inc()
	t.log.Debug("Retrying request with refreshed token", "url", req.URL.Path)
	return t.base.RoundTrip(retry)
}

// withToken clones the request and sets the bearer header. RoundTrip
// must not mutate the caller's request.
func (t *Transport) withToken(req *http.Request, token string) *http.Request {
	clone := req.Clone(req.Context())
	if token != "" {
		clone.Header.Set("Authorization", "Bearer "+token)
	}
	return clone
}

// drain discards and closes a response body so the underlying connection
// can be reused before the retry.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
