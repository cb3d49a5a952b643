// internal/events/queue.go
package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrQueueClosed is returned by Pop once the queue is closed and drained.
var ErrQueueClosed = errors.New("event queue closed")

// Queue is an unbounded FIFO of events with a single consumer.
// Push never blocks; Pop blocks until an event is available.
type Queue struct {
	mu     sync.Mutex
	items  []Event
	notify chan struct{}
	closed bool
	logger *zap.Logger

	pushed   uint64
	consumed uint64
}

// NewQueue creates an empty queue.
func NewQueue(logger *zap.Logger) *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
		logger: logger.Named("event_queue"),
	}
}

// Push appends an event. Events pushed after Close are dropped.
func (q *Queue) Push(event Event) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("Queue closed, dropping event",
			zap.String("event_type", string(event.Type())),
			zap.String("uid", event.TraderUID()))
		return false
	}
	q.items = append(q.items, event)
	q.pushed++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Pop removes the oldest event, waiting while the queue is empty.
func (q *Queue) Pop(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.consumed++
			q.mu.Unlock()
			return ev, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// Consume runs the single consumer loop until ctx is cancelled or the queue is
// closed and drained. Handler errors are logged and the event is dropped.
func (q *Queue) Consume(ctx context.Context, handler Handler) error {
	for {
		ev, err := q.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}
		if err := handler.Handle(ctx, ev); err != nil {
			q.logger.Error("Failed to handle event",
				zap.String("event_type", string(ev.Type())),
				zap.String("uid", ev.TraderUID()),
				zap.Error(err))
		}
	}
}

// Close stops accepting events. Events already queued are still delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// QueueStats is a point-in-time view of queue counters.
type QueueStats struct {
	Pending  int
	Pushed   uint64
	Consumed uint64
	Closed   bool
}

// Stats returns the queue counters.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueueStats{
		Pending:  len(q.items),
		Pushed:   q.pushed,
		Consumed: q.consumed,
		Closed:   q.closed,
	}
}
