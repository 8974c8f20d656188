package recorder

import (
	"context"
	"fmt"
	"log/slog"
)

// Handler is a slog.Handler middleware that tees error-level log records
// into the recorder while passing every record through to the wrapped
// handler unchanged. This is the platform adapter for intercepting the
// process's diagnostic stream: messages still reach their normal
// destination.
type Handler struct {
	next slog.Handler
	rec  *Recorder
}

// NewHandler wraps next so that error-level records are also captured by
// rec.
func NewHandler(next slog.Handler, rec *Recorder) *Handler {
	return &Handler{next: next, rec: rec}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		msg := r.Message
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "error" {
				msg = fmt.Sprintf("%s: %v", msg, a.Value.Any())
				return false
			}
			return true
		})
		h.rec.RecordMessage(msg, "log")
	}
	return h.next.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{next: h.next.WithAttrs(attrs), rec: h.rec}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), rec: h.rec}
}

// Recover captures a panic in the calling goroutine, records it and
// swallows it. Use as:
//
//	defer rec.Recover("scheduler")
//
// The process keeps running; if panics arrive in bursts the recovery
// controller reacts through the normal critical path.
func (r *Recorder) Recover(source string) {
	if v := recover(); v != nil {
		r.RecordMessage(fmt.Sprintf("panic: %v", v), source)
	}
}

// Go runs fn in a new goroutine with panic capture installed. This is
// the hook for background work whose failures would otherwise crash the
// process unobserved.
func (r *Recorder) Go(source string, fn func()) {
	go func() {
		defer r.Recover(source)
		fn()
	}()
}
