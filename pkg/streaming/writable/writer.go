package writable

import (
	"sync"

	"gopkg.in/guregu/null.v3"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/streaming/future"
)

// Writer is the exclusive producer handle of a Stream, obtained from
// Stream.GetWriter. It is safe for concurrent use, though chunks written from
// several goroutines are ordered only by the order their Write calls return.
type Writer[T any] struct {
	// mu is the owning stream's mutex; it outlives Release.
	mu     *sync.Mutex
	stream *Stream[T]
	ready  *future.Future
	closed *future.Future
}

// Ready returns a future that is resolved while the stream has no backpressure.
// A new pending future replaces it each time backpressure engages, so call
// Ready again before every wait.
func (w *Writer[T]) Ready() *future.Future {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ready
}

// Closed returns a future resolved when the stream closes and rejected when
// it errors or this Writer is released.
func (w *Writer[T]) Closed() *future.Future {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// DesiredSize returns the stream's remaining budget before backpressure. The
// result is null when the stream is errored and 0 when it is closed.
func (w *Writer[T]) DesiredSize() (null.Float, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.stream
	if s == nil {
		return null.Float{}, releasedError("desiredSize", "used to get the desiredSize")
	}
	switch s.state {
	case Errored:
		return null.Float{}, nil
	case Closed:
		return null.FloatFrom(0), nil
	}
	return null.FloatFrom(s.controller.desiredSize()), nil
}

// Write queues chunk and returns a future settled once the sink has written
// it. It is rejected immediately if the writer is released, the stream is
// closing, closed or errored, or the size function fails.
func (w *Writer[T]) Write(chunk T) *future.Future {
	w.mu.Lock()
	s := w.stream
	if s == nil {
		w.mu.Unlock()
		return future.Rejected(releasedError("write", "written to"))
	}
	switch s.state {
	case Closing:
		w.mu.Unlock()
		return future.Rejected(gferrors.NewOperationError(module, "write", ErrClosing))
	case Closed, Errored:
		state := s.state
		w.mu.Unlock()
		return future.Rejected(stateError("write", state))
	}

	f := s.addWriteRequest()
	s.controller.write(chunk)
	s.unlockAndDispatch()
	return f
}

// Close requests a close after every queued chunk has been written. The
// returned future is settled by the sink's close. A second request fails with
// ErrCloseRequested, a closed stream resolves immediately and an errored one
// rejects with its stored error.
func (w *Writer[T]) Close() *future.Future {
	w.mu.Lock()
	s := w.stream
	if s == nil {
		w.mu.Unlock()
		return future.Rejected(releasedError("close", "closed"))
	}
	if s.state == Closing {
		w.mu.Unlock()
		return future.Rejected(gferrors.NewOperationError(module, "close", ErrCloseRequested))
	}
	f := w.close()
	s.unlockAndDispatch()
	return f
}

// CloseWithErrorPropagation is Close, except that a close already in
// progress resolves instead of failing.
func (w *Writer[T]) CloseWithErrorPropagation() *future.Future {
	w.mu.Lock()
	s := w.stream
	if s == nil {
		w.mu.Unlock()
		return future.Rejected(releasedError("close", "closed"))
	}
	var f *future.Future
	switch s.state {
	case Closing, Closed:
		f = future.Resolved()
	case Errored:
		f = future.Rejected(s.storedErr)
	default:
		f = w.close()
	}
	s.unlockAndDispatch()
	return f
}

func (w *Writer[T]) close() *future.Future {
	s := w.stream
	switch s.state {
	case Closed:
		return future.Resolved()
	case Errored:
		return future.Rejected(s.storedErr)
	}

	f := future.New()
	s.pendingClose = f
	// Closing never leaves the producer blocked on ready.
	if s.controller.hasBackpressure() {
		w.ready.Resolve()
	}
	s.setState(Closing)
	s.controller.close()
	return f
}

// Abort errors the stream and discards queued chunks. A chunk already handed
// to the sink still completes; the sink's Abort runs after it.
func (w *Writer[T]) Abort(reason error) *future.Future {
	w.mu.Lock()
	s := w.stream
	if s == nil {
		w.mu.Unlock()
		return future.Rejected(releasedError("abort", "aborted"))
	}
	f := s.abort(reason)
	s.unlockAndDispatch()
	return f
}

// Release detaches the Writer so another can be acquired. Ready and Closed
// are rejected with ErrReleased unless the stream already settled them. It
// is a no-op on a released Writer.
func (w *Writer[T]) Release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.stream
	if s == nil {
		return
	}

	err := releasedError("release", "used to monitor the stream's state")
	if s.state == Writable || s.state == Closing || s.pendingAbort != nil {
		w.closed.Reject(err)
	} else {
		w.closed = future.Rejected(err)
	}

	if s.state == Writable && s.controller.hasBackpressure() {
		w.ready.Reject(err)
	} else {
		w.ready = future.Rejected(err)
	}

	s.writer = nil
	w.stream = nil
}
