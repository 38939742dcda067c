package event

import (
	"context"
	"sync"
)

// Sink accepts events from a producer.
type Sink interface {
	Push(e Event)
}

// Queue is an unbounded FIFO of events. Push is safe from any number of
// goroutines; Pop must only be called from a single consumer.
type Queue struct {
	mu    sync.Mutex
	items []Event
	ready chan struct{} // holds at most one wake-up for the consumer
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
	}
}

// Push appends e to the queue and wakes a waiting consumer. It never blocks.
func (q *Queue) Push(e Event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
		// A wake-up is already pending
	}
}

// Pop removes and returns the oldest event, waiting while the queue is
// empty. It returns ctx.Err() if ctx is done before an event arrives.
func (q *Queue) Pop(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := q.items[0]
			q.items[0] = Event{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return e, nil
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
