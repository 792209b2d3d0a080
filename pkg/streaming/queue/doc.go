/*
Package queue provides SizedQueue, a FIFO queue whose entries carry a size and
whose total size is cached.

A writable stream keeps its buffered chunks in a SizedQueue and derives
backpressure from TotalSize, so reading the total must not walk the queue:

	q := queue.New[[]byte]()
	_ = q.Enqueue([]byte("hello"), 5)
	_ = q.Enqueue([]byte("world"), 5)

	q.TotalSize() // 10
	q.Dequeue()   // "hello"
	q.TotalSize() // 5

Sizes must be finite and non-negative; anything else is rejected with an error
matching ErrInvalidSize and leaves the queue untouched.

SizedQueue is not safe for concurrent use; its owner serializes access.
*/
package queue
