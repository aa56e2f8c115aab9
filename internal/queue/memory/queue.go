// Package memory provides the in-process job queue used by the server.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/backlinkoo/blog-engine/internal/jobs"
)

// ErrClosed is returned once the queue has been closed and drained.
var ErrClosed = jobs.ErrQueueClosed

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch        chan jobs.QueueItem
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		ch:   make(chan jobs.QueueItem, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes an item into the queue, blocking while it is full.
func (q *Queue) Enqueue(ctx context.Context, item jobs.QueueItem) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return ErrClosed
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next item. Items buffered before Close are still
// delivered; after that Dequeue returns ErrClosed.
func (q *Queue) Dequeue(ctx context.Context) (jobs.QueueItem, error) {
	select {
	case item := <-q.ch:
		return item, nil
	default:
	}
	select {
	case <-ctx.Done():
		return jobs.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item := <-q.ch:
		return item, nil
	case <-q.done:
		select {
		case item := <-q.ch:
			return item, nil
		default:
			return jobs.QueueItem{}, ErrClosed
		}
	}
}

// Len reports the number of buffered items.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Drain removes and returns the items still buffered. It does not block.
func (q *Queue) Drain() []jobs.QueueItem {
	var items []jobs.QueueItem
	for {
		select {
		case item := <-q.ch:
			items = append(items, item)
		default:
			return items
		}
	}
}

// Close stops accepting new items. It is safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
