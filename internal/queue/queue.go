// Package queue provides a fixed-capacity FIFO with blocking backpressure,
// shared by many producers and one consumer.
package queue

import (
	"context"
	"sync"
)

// DefaultCapacity is the number of items a queue holds when no capacity is given.
const DefaultCapacity = 256

// Queue is a ring buffer guarded by one mutex and two conditions: notFull
// for producers waiting on space and notEmpty for the consumer waiting on items.
//
// The queue is bound to a stop context. Once it is cancelled Push fails
// immediately, while Pop keeps returning queued items until the buffer is
// drained.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	buf  []T
	head int // next write
	tail int // next read
	size int

	stop     context.Context
	stopWake func() bool
}

// New creates a queue holding up to capacity items that stops when stop is done.
func New[T any](stop context.Context, capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	q := &Queue[T]{
		buf:  make([]T, capacity),
		stop: stop,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)

	// Wake every waiter as soon as the stop signal fires.
	q.stopWake = context.AfterFunc(stop, q.Wake)

	return q
}

func (q *Queue[T]) stopped() bool {
	return q.stop.Err() != nil
}

// Push appends item, blocking while the queue is full. It returns false
// without enqueuing once the queue has been stopped.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == len(q.buf) && !q.stopped() {
		q.notFull.Wait()
	}
	if q.stopped() {
		return false
	}

	q.buf[q.head] = item
	q.head = (q.head + 1) % len(q.buf)
	q.size++
	q.notEmpty.Signal()

	return true
}

// Pop removes the oldest item, blocking while the queue is empty. It returns
// false only when the queue is stopped and empty.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.stopped() {
		q.notEmpty.Wait()
	}

	var zero T
	if q.size == 0 {
		return zero, false
	}

	item := q.buf[q.tail]
	q.buf[q.tail] = zero
	q.tail = (q.tail + 1) % len(q.buf)
	q.size--
	q.notFull.Signal()

	return item, true
}

// Wake broadcasts both conditions so every blocked caller re-checks its state.
func (q *Queue[T]) Wake() {
	q.mu.Lock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.size
}

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}

// Close detaches the queue from its stop context. Queued items remain
// available to Pop.
func (q *Queue[T]) Close() {
	q.stopWake()
}
