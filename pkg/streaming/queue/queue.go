package queue

import (
	"errors"
	"fmt"

	"github.com/vnykmshr/sinkflow/pkg/common/validation"
)

// ErrInvalidSize is returned by Enqueue when an entry's size is negative, NaN or infinite.
var ErrInvalidSize = errors.New("size must be a finite, non-negative number")

type entry[T any] struct {
	value T
	size  float64
}

// SizedQueue is an ordered queue of (value, size) pairs with a running total size.
// Enqueue, Dequeue, Peek and TotalSize are all O(1) (amortized for Enqueue).
type SizedQueue[T any] struct {
	entries []entry[T]
	head    int
	total   float64
}

// New creates an empty SizedQueue.
func New[T any]() *SizedQueue[T] {
	return &SizedQueue[T]{}
}

// Enqueue appends value with the given size and adds size to the total.
func (q *SizedQueue[T]) Enqueue(value T, size float64) error {
	if err := validation.ValidateFiniteNonNegative("queue", "size", size); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSize, err)
	}
	q.entries = append(q.entries, entry[T]{value: value, size: size})
	q.total += size
	return nil
}

// Dequeue removes the head entry, subtracts its size from the total and returns its value.
// It panics if the queue is empty.
func (q *SizedQueue[T]) Dequeue() T {
	if q.Len() == 0 {
		panic("queue: Dequeue called on an empty queue")
	}
	e := q.entries[q.head]
	var zero entry[T]
	q.entries[q.head] = zero
	q.head++
	q.total -= e.size

	if q.head == len(q.entries) {
		// Drained: reuse the backing array and drop accumulated float error.
		q.entries = q.entries[:0]
		q.head = 0
		q.total = 0
	} else if q.head >= 64 && q.head*2 >= len(q.entries) {
		n := copy(q.entries, q.entries[q.head:])
		for i := n; i < len(q.entries); i++ {
			q.entries[i] = zero
		}
		q.entries = q.entries[:n]
		q.head = 0
	}
	return e.value
}

// Peek returns the head value without removing it. It panics if the queue is empty.
func (q *SizedQueue[T]) Peek() T {
	if q.Len() == 0 {
		panic("queue: Peek called on an empty queue")
	}
	return q.entries[q.head].value
}

// TotalSize returns the cached sum of the sizes of all queued entries.
func (q *SizedQueue[T]) TotalSize() float64 {
	return q.total
}

// Len returns the number of queued entries.
func (q *SizedQueue[T]) Len() int {
	return len(q.entries) - q.head
}

// Reset discards every entry and zeroes the total.
func (q *SizedQueue[T]) Reset() {
	q.entries = nil
	q.head = 0
	q.total = 0
}
