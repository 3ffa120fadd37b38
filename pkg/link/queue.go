// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Pop once the queue is closed and drained.
var ErrQueueClosed = errors.New("link: queue closed")

// Queue is the inbound packet queue shared by the transport (producer) and
// the session (single consumer). Items are delivered in FIFO order, exactly once.
type Queue struct {
	mu     sync.Mutex
	items  [][]byte
	closed bool

	ready chan struct{} // capacity 1; a token means "items may be available"
	done  chan struct{}
}

// NewQueue creates an empty inbound queue
func NewQueue() *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends b to the tail and wakes one waiter.
// Returns false if the queue is closed.
func (q *Queue) Push(b []byte) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, b)
	q.mu.Unlock()

	q.signal()
	return true
}

// Pop removes and returns the oldest item, blocking until one is available,
// ctx is done or the queue is closed. Items pushed before Close are still returned.
func (q *Queue) Pop(ctx context.Context) ([]byte, error) {
	for {
		if b, ok, err := q.tryPop(); ok || err != nil {
			return b, err
		}

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryPop removes the oldest item without blocking
func (q *Queue) TryPop() ([]byte, bool) {
	b, ok, _ := q.tryPop()
	return b, ok
}

func (q *Queue) tryPop() ([]byte, bool, error) {
	q.mu.Lock()
	if len(q.items) == 0 {
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false, ErrQueueClosed
		}
		return nil, false, nil
	}

	b := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	more := len(q.items) > 0
	q.mu.Unlock()

	// pass the wakeup on so a burst of pushes is not collapsed into one token
	if more {
		q.signal()
	}
	return b, true, nil
}

// Len returns the number of queued items
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting items and releases blocked consumers once drained.
// Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
