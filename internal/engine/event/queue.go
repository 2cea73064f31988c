// Package event delivers committed engine events to an observer outside of
// the transaction that produced them
package event

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/bpmnflow/pkg/api"
	"github.com/kode4food/bpmnflow/pkg/log"
)

type (
	// Queue hands committed events to a Handler in bounded batches, one
	// batch at a time and in publication order. Events published before
	// Flush returns are all delivered; events published afterward are
	// dropped
	Queue struct {
		handler   Handler
		batchSize int
		ready     chan struct{}
		stop      chan struct{}
		wg        sync.WaitGroup
		startOnce sync.Once
		stopOnce  sync.Once

		mu      sync.Mutex
		pending []Event
		closed  bool
	}

	// Handler observes a batch of events
	Handler func([]Event) error

	// Event is an engine event envelope
	Event struct {
		Type       api.EventType
		InstanceID api.ProcessInstanceID
		Data       any
	}
)

const (
	DefaultBatchSize = 64

	maxAttempts = 3
	retryDelay  = 100 * time.Millisecond
)

var ErrHandlerPanicked = errors.New("event handler panicked")

// NewQueue creates a stopped Queue. A batch size below one falls back to
// DefaultBatchSize
func NewQueue(handler Handler, batchSize int) *Queue {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Queue{
		handler:   handler,
		batchSize: batchSize,
		ready:     make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
}

// LogHandler writes every event to the default logger at debug level
func LogHandler(batch []Event) error {
	for _, ev := range batch {
		slog.Debug("Process event",
			slog.String("type", string(ev.Type)),
			log.InstanceID(ev.InstanceID))
	}
	return nil
}

// Start begins delivering queued events
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.wg.Go(func() {
			for {
				select {
				case <-q.stop:
					return
				case <-q.ready:
					for batch := q.take(); batch != nil; batch = q.take() {
						q.deliver(batch)
					}
				}
			}
		})
	})
}

// Publish appends events to the queue in order
func (q *Queue) Publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		slog.Warn("Events published after queue stopped",
			slog.Int("count", len(events)))
		return
	}
	q.pending = append(q.pending, events...)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Flush stops the queue after delivering whatever is still queued
func (q *Queue) Flush() {
	q.halt()
	for batch := q.take(); batch != nil; batch = q.take() {
		q.deliver(batch)
	}
}

// Cancel stops the queue and discards whatever is still queued
func (q *Queue) Cancel() {
	q.halt()
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) != 0 {
		slog.Debug("Queued events discarded",
			slog.Int("count", len(q.pending)))
	}
	q.pending = nil
}

// halt refuses further events and waits for the delivery loop to finish
// its current batch
func (q *Queue) halt() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.stop)
	})
	q.wg.Wait()
}

// take removes the next batch from the front of the queue, or returns nil
// when nothing is queued
func (q *Queue) take() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	n := min(len(q.pending), q.batchSize)
	batch := make([]Event, n)
	copy(batch, q.pending)
	q.pending = q.pending[n:]
	if len(q.pending) == 0 {
		q.pending = nil
	}
	return batch
}

func (q *Queue) deliver(batch []Event) {
	for attempt := range maxAttempts {
		err := q.tryDeliver(batch)
		if err == nil {
			return
		}
		slog.Warn("Event batch delivery failed",
			slog.Int("batch_size", len(batch)),
			slog.Int("attempt", attempt+1),
			log.Error(err))
		if attempt < maxAttempts-1 {
			time.Sleep(retryDelay)
		}
	}
	slog.Error("Event batch dropped",
		slog.Int("batch_size", len(batch)))
}

func (q *Queue) tryDeliver(batch []Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanicked, r)
		}
	}()
	return q.handler(batch)
}
