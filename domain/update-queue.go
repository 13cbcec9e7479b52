package domain

import (
	"context"
	"errors"
	"sync"

	"github.com/gammazero/deque"
)

var ErrQueueClosed = errors.New("update queue is closed")

// UpdateQueue is an unbounded FIFO between one feed reader and one
// reconciliation loop. It must not be consumed by more than one goroutine.
type UpdateQueue struct {
	mu     sync.Mutex
	items  deque.Deque[*OrderBookUpdate]
	closed bool
	ready  chan struct{}
}

func NewUpdateQueue() *UpdateQueue {
	return &UpdateQueue{
		items: deque.Deque[*OrderBookUpdate]{},
		ready: make(chan struct{}, 1),
	}
}

// Push appends the update. It reports false once the queue is closed.
func (q *UpdateQueue) Push(update *OrderBookUpdate) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items.PushBack(update)
	q.mu.Unlock()

	q.signal()
	return true
}

// Close stops accepting updates. Buffered updates can still be popped.
func (q *UpdateQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

func (q *UpdateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// WaitReady blocks until at least one update is buffered, without consuming it.
func (q *UpdateQueue) WaitReady(ctx context.Context) error {
	for {
		q.mu.Lock()
		n, closed := q.items.Len(), q.closed
		q.mu.Unlock()

		if n > 0 {
			return nil
		}
		if closed {
			return ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.ready:
		}
	}
}

// Pop removes the oldest update, blocking while the queue is empty.
// ErrQueueClosed is returned once the queue is closed and drained.
func (q *UpdateQueue) Pop(ctx context.Context) (*OrderBookUpdate, error) {
	for {
		q.mu.Lock()
		if q.items.Len() > 0 {
			update := q.items.PopFront()
			q.mu.Unlock()
			return update, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.ready:
		}
	}
}

func (q *UpdateQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
