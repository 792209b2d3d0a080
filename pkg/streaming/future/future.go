// Package future provides Future, a one-shot signal that is settled exactly
// once by resolving or rejecting it.
//
// A Future carries no value, only an outcome: nil for resolved, an error for
// rejected. The first Resolve or Reject wins and later calls are no-ops, so a
// Future can be handed to any number of waiters and settled from any goroutine.
//
//	f := future.New()
//	go func() { f.Resolve() }()
//	if err := f.Wait(ctx); err != nil {
//		// rejected, or ctx ended first
//	}
package future

import (
	"context"
	"errors"
	"sync"
)

// ErrNilReason is the rejection error used when Reject is called with a nil error.
var ErrNilReason = errors.New("future rejected without a reason")

// Future is a one-shot, externally settled signal. The zero value is not usable; use New.
type Future struct {
	done    chan struct{}
	once    sync.Once
	err     error
	settled bool
	mu      sync.RWMutex
}

// New returns a pending Future.
func New() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a Future that is already resolved.
func Resolved() *Future {
	f := New()
	f.Resolve()
	return f
}

// Rejected returns a Future that is already rejected with err.
func Rejected(err error) *Future {
	f := New()
	f.Reject(err)
	return f
}

// Resolve settles the Future successfully. It reports whether this call settled it.
func (f *Future) Resolve() bool {
	return f.settle(nil)
}

// Reject settles the Future with err. It reports whether this call settled it.
func (f *Future) Reject(err error) bool {
	if err == nil {
		err = ErrNilReason
	}
	return f.settle(err)
}

func (f *Future) settle(err error) bool {
	won := false
	f.once.Do(func() {
		f.mu.Lock()
		f.err = err
		f.settled = true
		f.mu.Unlock()
		close(f.done)
		won = true
	})
	return won
}

// Done returns a channel that is closed once the Future is settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the Future has been resolved or rejected.
func (f *Future) Settled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.settled
}

// Pending reports whether the Future is still unsettled.
func (f *Future) Pending() bool {
	return !f.Settled()
}

// Err returns the rejection error, or nil if the Future is pending or resolved.
func (f *Future) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

// Wait blocks until the Future settles or ctx is done. It returns the rejection
// error, nil on resolution, or ctx.Err() if ctx ended first.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
