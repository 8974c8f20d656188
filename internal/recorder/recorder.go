// Package recorder captures, classifies and bound-stores runtime
// failures from all sources: explicit calls, recovered panics and
// intercepted log output. Critical records are handed to the recovery
// controller; the rest are kept for diagnostics and forwarded to a
// remote sink.
package recorder

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/lifeline/internal/core/domain"
	"github.com/vietddude/lifeline/internal/metrics"
)

// DefaultCapacity bounds the in-memory error log.
const DefaultCapacity = 100

// CriticalFunc receives every record classified critical.
type CriticalFunc func(rec domain.ErrorRecord)

// Recorder is an append-only, bounded log of runtime failures. Oldest
// records are evicted first once capacity is reached.
type Recorder struct {
	capacity   int
	classifier *Classifier
	dispatcher *dispatcher
	log        *slog.Logger
	now        func() time.Time

	mu         sync.RWMutex
	records    []domain.ErrorRecord
	onCritical CriticalFunc
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithCapacity overrides the ring capacity.
func WithCapacity(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithClassifier overrides the pattern classifier.
func WithClassifier(c *Classifier) Option {
	return func(r *Recorder) { r.classifier = c }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithLogger overrides the logger used for internal diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(r *Recorder) { r.log = log }
}

// New creates a recorder forwarding to sink (NopSink when nil).
func New(sink Sink, opts ...Option) *Recorder {
	r := &Recorder{
		capacity:   DefaultCapacity,
		classifier: NewClassifier(nil, nil),
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if sink == nil {
		sink = NopSink{}
	}
	r.dispatcher = newDispatcher(sink, 2*r.capacity, r.log)
	return r
}

// SetCriticalFunc registers the consumer of critical records, normally
// the recovery controller.
func (r *Recorder) SetCriticalFunc(fn CriticalFunc) {
	r.mu.Lock()
	r.onCritical = fn
	r.mu.Unlock()
}

// Record captures an error from the given source.
func (r *Recorder) Record(err error, source string) domain.ErrorRecord {
	if err == nil {
		return domain.ErrorRecord{}
	}
	return r.RecordMessage(err.Error(), source)
}

// Recordf captures a formatted failure message.
func (r *Recorder) Recordf(source, format string, args ...any) domain.ErrorRecord {
	return r.RecordMessage(fmt.Sprintf(format, args...), source)
}

// RecordMessage classifies and stores a failure message, evicting the
// oldest record when the log is full. Non-ignorable records are
// forwarded to the sink fire-and-forget; critical ones additionally
// reach the registered CriticalFunc.
func (r *Recorder) RecordMessage(message, source string) domain.ErrorRecord {
	rec := domain.ErrorRecord{
		ID:        uuid.New().String(),
		Message:   message,
		Severity:  r.classifier.Classify(message),
		Source:    source,
		Timestamp: r.now(),
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	if len(r.records) > r.capacity {
		r.records = r.records[len(r.records)-r.capacity:]
	}
	onCritical := r.onCritical
	r.mu.Unlock()

	metrics.ErrorsRecorded.WithLabelValues(string(rec.Severity), source).Inc()

	if rec.Severity != domain.SeverityIgnorable {
		r.dispatcher.dispatch(rec)
	}
	if rec.Severity == domain.SeverityCritical && onCritical != nil {
		onCritical(rec)
	}
	return rec
}

// Recent returns up to n records, newest last.
func (r *Recorder) Recent(n int) []domain.ErrorRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > len(r.records) {
		n = len(r.records)
	}
	out := make([]domain.ErrorRecord, n)
	copy(out, r.records[len(r.records)-n:])
	return out
}

// Len returns the number of stored records.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Close flushes buffered records to the sink and closes it.
func (r *Recorder) Close() error {
	r.dispatcher.close()
	return r.dispatcher.sink.Close()
}
