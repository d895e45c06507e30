package platform

import (
	"sync"
)

// Queue is a thread-safe unbounded FIFO queue.
// Push never blocks, Pop never waits.
type Queue[T any] struct {
	mutex sync.Mutex
	items []T
}

// NewQueue creates a new empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends a value to the tail of the queue.
func (q *Queue[T]) Push(val T) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.items = append(q.items, val)
}

// Pop removes and returns the value at the head of the queue.
// If the queue is empty, it returns false.
func (q *Queue[T]) Pop() (T, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	val := q.items[0]
	q.items[0] = zero // release reference
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil // let the backing array go
	}

	return val, true
}

// Drain removes and returns all values in FIFO order.
func (q *Queue[T]) Drain() []T {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	items := q.items
	q.items = nil
	return items
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return len(q.items)
}
