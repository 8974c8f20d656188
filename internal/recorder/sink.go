package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vietddude/lifeline/internal/core/domain"
	"github.com/vietddude/lifeline/internal/metrics"
)

// Sink receives error records forwarded off-process. Emit failures are
// the sink's own problem to report locally; they are never fed back into
// the recorder.
type Sink interface {
	Emit(ctx context.Context, rec domain.ErrorRecord) error
	Close() error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Emit(ctx context.Context, rec domain.ErrorRecord) error { return nil }
func (NopSink) Close() error                                           { return nil }

// HTTPSink posts records as JSON to a collector endpoint.
type HTTPSink struct {
	url        string
	httpClient *http.Client
}

func NewHTTPSink(url string, timeout time.Duration) *HTTPSink {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSink{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSink) Emit(ctx context.Context, rec domain.ErrorRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post record: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("collector returned %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPSink) Close() error { return nil }

// MultiSink fans out to several sinks. Emit returns the first failure
// but still delivers to the remaining sinks.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, rec domain.ErrorRecord) error {
	var first error
	for _, s := range m {
		if err := s.Emit(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// dispatcher forwards records to a sink asynchronously. Forwarding is
// fire-and-forget: when the buffer is full the record is dropped and
// counted, and a sink failure is logged locally only.
type dispatcher struct {
	sink Sink
	ch   chan domain.ErrorRecord
	done chan struct{}
	wg   sync.WaitGroup
	log  *slog.Logger

	closeOnce sync.Once
}

func newDispatcher(sink Sink, bufferSize int, log *slog.Logger) *dispatcher {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	d := &dispatcher{
		sink: sink,
		ch:   make(chan domain.ErrorRecord, bufferSize),
		done: make(chan struct{}),
		log:  log,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case rec := <-d.ch:
			d.emit(rec)
		case <-d.done:
			// Drain whatever is already buffered, then stop.
			for {
				select {
				case rec := <-d.ch:
					d.emit(rec)
				default:
					return
				}
			}
		}
	}
}

func (d *dispatcher) emit(rec domain.ErrorRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.sink.Emit(ctx, rec); err != nil {
		// Local log only. Re-recording a forwarding failure would loop.
		d.log.Warn("Failed to forward error record", "record_id", rec.ID, "error", err)
	}
}

func (d *dispatcher) dispatch(rec domain.ErrorRecord) {
	select {
	case d.ch <- rec:
	case <-d.done:
	default:
		metrics.SinkDropped.Inc()
	}
}

func (d *dispatcher) close() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}
