// Package eventqueue buffers user events between the UI and a single
// consuming program.
package eventqueue

import (
	"context"
	"errors"
	"sync"

	"screenforge/internal/screen"
)

// ErrConsumerWaiting is returned by Get when another consumer is already
// blocked on the queue.
var ErrConsumerWaiting = errors.New("eventqueue: a consumer is already waiting")

// Queue is an unbounded FIFO with at most one blocked consumer. Each event is
// delivered to exactly one Get call.
type Queue struct {
	mu     sync.Mutex
	buf    []screen.UserEvent
	waiter chan []screen.UserEvent
	parked chan struct{}
}

func New() *Queue {
	return &Queue{parked: make(chan struct{})}
}

// Add appends events. A blocked consumer receives the whole buffer at once.
func (q *Queue) Add(events ...screen.UserEvent) {
	if len(events) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buf = append(q.buf, events...)
	if q.waiter == nil {
		return
	}
	batch := q.buf
	q.buf = nil
	q.waiter <- batch
	q.clearWaiterLocked()
}

// Get returns the buffered events, or blocks until the next Add when the
// buffer is empty. On cancellation nothing is lost: events handed over
// concurrently are put back at the front of the buffer.
func (q *Queue) Get(ctx context.Context) ([]screen.UserEvent, error) {
	q.mu.Lock()
	if len(q.buf) > 0 {
		batch := q.buf
		q.buf = nil
		q.mu.Unlock()
		return batch, nil
	}
	if q.waiter != nil {
		q.mu.Unlock()
		return nil, ErrConsumerWaiting
	}
	ch := make(chan []screen.UserEvent, 1)
	q.waiter = ch
	q.ensureParkedLocked()
	close(q.parked)
	q.mu.Unlock()

	select {
	case batch := <-ch:
		return batch, nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.waiter == ch {
		q.clearWaiterLocked()
		return nil, ctx.Err()
	}
	// Add won the race and already delivered.
	batch := <-ch
	q.buf = append(batch, q.buf...)
	return nil, ctx.Err()
}

// AwaitConsumer blocks until a consumer is parked on an empty buffer.
func (q *Queue) AwaitConsumer(ctx context.Context) error {
	q.mu.Lock()
	if q.waiter != nil {
		q.mu.Unlock()
		return nil
	}
	q.ensureParkedLocked()
	parked := q.parked
	q.mu.Unlock()

	select {
	case <-parked:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Waiting reports whether a consumer is currently blocked.
func (q *Queue) Waiting() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiter != nil
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

func (q *Queue) clearWaiterLocked() {
	q.waiter = nil
	q.parked = make(chan struct{})
}

func (q *Queue) ensureParkedLocked() {
	if q.parked == nil {
		q.parked = make(chan struct{})
	}
}
