package queue

import (
	"time"

	"github.com/lookout-hq/lookout/internal/models"
)

// Queue is the bounded FIFO hand-off between the scanner and the worker
// pool. Capacity is the backpressure point: the producer side never blocks
// and the consumer side never waits longer than its timeout, so both loops
// stay responsive to shutdown.
type Queue struct {
	items chan models.WorkItem
}

// New creates a queue with the given capacity.
func New(capacity int) *Queue {
	return &Queue{items: make(chan models.WorkItem, capacity)}
}

// TryEnqueue pushes an item without blocking. Returns false when the queue
// is full; the caller decides whether to drop or reschedule.
func (q *Queue) TryEnqueue(item models.WorkItem) bool {
	select {
	case q.items <- item:
		return true
	default:
		return false
	}
}

// Dequeue pops the next item, waiting up to timeout. Returns false on
// timeout so workers can check their shutdown signal instead of blocking
// forever.
func (q *Queue) Dequeue(timeout time.Duration) (models.WorkItem, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item := <-q.items:
		return item, true
	case <-timer.C:
		return models.WorkItem{}, false
	}
}

// Depth returns the number of queued items.
func (q *Queue) Depth() int {
	return len(q.items)
}

// Capacity returns the queue's fixed capacity.
func (q *Queue) Capacity() int {
	return cap(q.items)
}
