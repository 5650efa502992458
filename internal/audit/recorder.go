// Package audit persists one entry per decision without ever delaying or
// failing the decision itself.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
	"github.com/albepe01/NetworkSecurity-Project/internal/metrics"
)

var (
	ErrQueueFull = errors.New("audit queue full")
	ErrClosed    = errors.New("audit recorder closed")
)

const (
	DefaultQueueSize    = 1024
	DefaultWriteTimeout = 5 * time.Second
)

// Recorder queues decision records and writes them to a sink from a single
// background goroutine, so entries reach the sink in decision order.
type Recorder struct {
	sink         core.AuditSink
	logger       *slog.Logger
	metrics      *metrics.Metrics
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan core.DecisionRecord
	done   chan struct{}
}

type Option func(*Recorder)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) { r.writeTimeout = d }
}

func NewRecorder(sink core.AuditSink, queueSize int, logger *slog.Logger, opts ...Option) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	r := &Recorder{
		sink:         sink,
		logger:       logger,
		writeTimeout: DefaultWriteTimeout,
		queue:        make(chan core.DecisionRecord, queueSize),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r
}

// Record enqueues rec. It never blocks: a full queue drops the entry and
// returns ErrQueueFull.
func (r *Recorder) Record(rec core.DecisionRecord) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}

	select {
	case r.queue <- rec:
		if r.metrics != nil {
			r.metrics.AuditQueueDepth.Set(float64(len(r.queue)))
		}
		return nil
	default:
		if r.metrics != nil {
			r.metrics.AuditDropped.Inc()
		}
		r.logger.Warn("audit entry dropped", "id", rec.ID, "error", ErrQueueFull)
		return ErrQueueFull
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		err := r.sink.Write(ctx, rec)
		cancel()
		if err != nil {
			if r.metrics != nil {
				r.metrics.AuditFailures.WithLabelValues(r.sink.Name()).Inc()
			}
			r.logger.Error("audit write failed", "sink", r.sink.Name(), "id", rec.ID, "error", err)
		}
		if r.metrics != nil {
			r.metrics.AuditQueueDepth.Set(float64(len(r.queue)))
		}
	}
}

// Close stops accepting entries, drains the queue and closes the sink.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	return r.sink.Close()
}
