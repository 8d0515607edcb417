// Package archive fans conversation events out to the publisher and the turn store
// without ever blocking the conversation.
package archive

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/observability/metrics"
)

const (
	// DefaultQueueSize bounds the number of events waiting to be written.
	DefaultQueueSize = 256
	// DefaultWriteTimeout bounds each sink write.
	DefaultWriteTimeout = 5 * time.Second
)

// Publisher receives every event.
type Publisher interface {
	PublishTurn(ctx context.Context, ev models.TurnEvent) error
	PublishState(ctx context.Context, ev models.StateEvent) error
}

// TurnStore receives every turn.
type TurnStore interface {
	Append(ctx context.Context, ev models.TurnEvent) error
}

// Recorder queues events and writes them in order on a single worker.
// When the queue is full events are dropped.
type Recorder struct {
	publisher Publisher
	store     TurnStore
	timeout   time.Duration
	queue     chan func(ctx context.Context)
	metrics   *metrics.Metrics

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// New starts a recorder. publisher and store may be nil.
func New(publisher Publisher, store TurnStore, queueSize int, timeout time.Duration) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	r := &Recorder{
		publisher: publisher,
		store:     store,
		timeout:   timeout,
		queue:     make(chan func(ctx context.Context), queueSize),
		metrics:   metrics.DefaultMetrics,
		done:      make(chan struct{}),
	}
	go r.run()
	return r
}

// RecordTurn archives a turn.
func (r *Recorder) RecordTurn(ev models.TurnEvent) {
	r.enqueue(func(ctx context.Context) {
		if r.publisher != nil {
			if err := r.publisher.PublishTurn(ctx, ev); err != nil {
				r.failed("kafka", ev.SessionID, err)
			}
		}
		if r.store != nil {
			if err := r.store.Append(ctx, ev); err != nil {
				r.failed("store", ev.SessionID, err)
			}
		}
	})
}

// RecordState archives a state transition.
func (r *Recorder) RecordState(ev models.StateEvent) {
	if r.publisher == nil {
		return
	}
	r.enqueue(func(ctx context.Context) {
		if err := r.publisher.PublishState(ctx, ev); err != nil {
			r.failed("kafka", ev.SessionID, err)
		}
	})
}

// Close stops accepting events and waits for queued ones to be written.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})
	<-r.done
}

func (r *Recorder) enqueue(write func(ctx context.Context)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- write:
	default:
		r.metrics.RecordArchiveError("queue")
		log.Warn().Msg("Archive queue full, dropping event")
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for write := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		write(ctx)
		cancel()
	}
}

func (r *Recorder) failed(sink, sessionID string, err error) {
	r.metrics.RecordArchiveError(sink)
	log.Error().Err(err).Str("sink", sink).Str("sessionId", sessionID).Msg("Failed to archive event")
}
