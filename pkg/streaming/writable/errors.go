package writable

import (
	"errors"
	"fmt"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
)

const module = "writable"

var (
	// ErrInvalidHighWaterMark is returned by NewWithConfig when HighWaterMark is NaN or negative.
	ErrInvalidHighWaterMark = errors.New("invalid high water mark")

	// ErrInvalidType is returned by NewWithConfig when the reserved Type field is set.
	ErrInvalidType = errors.New("invalid type: writable streams have no type")

	// ErrInvalidState is returned when an operation is not allowed in the stream's current state.
	ErrInvalidState = errors.New("invalid stream state")

	// ErrLocked is returned by Stream.Abort while a writer is attached.
	ErrLocked = errors.New("cannot abort a writable stream that is locked to a writer")

	// ErrAlreadyLocked is returned by GetWriter when a writer is already attached.
	ErrAlreadyLocked = errors.New("writable stream is already locked to a writer")

	// ErrClosing is returned by Write once a close has been requested.
	ErrClosing = errors.New("cannot write to a writable stream that is due to be closed")

	// ErrCloseRequested is returned by Close once a close has been requested.
	ErrCloseRequested = errors.New("cannot close a writable stream that has already been requested to be closed")

	// ErrReleased is returned by every operation on a released writer.
	ErrReleased = errors.New("writable stream writer has been released")

	// ErrAborted matches the error stored by an aborted stream.
	ErrAborted = errors.New("the stream has been aborted")

	// ErrSinkPanic wraps a value recovered from a panicking sink method or size function.
	ErrSinkPanic = errors.New("sink panicked")

	// ErrExecutorRejected wraps the error of an Executor that refused a sink operation.
	ErrExecutorRejected = errors.New("executor rejected sink operation")
)

// AbortError is stored as the stream error when a stream is aborted.
type AbortError struct {
	Reason error
}

// Error implements the error interface.
func (e *AbortError) Error() string {
	if e.Reason == nil {
		return ErrAborted.Error()
	}
	return ErrAborted.Error() + ": " + e.Reason.Error()
}

// Is reports whether target is ErrAborted.
func (e *AbortError) Is(target error) bool {
	return target == ErrAborted
}

// Unwrap returns the abort reason.
func (e *AbortError) Unwrap() error {
	return e.Reason
}

func releasedError(op, verb string) error {
	return gferrors.NewOperationError(module, op, ErrReleased).
		WithContext("writer cannot be " + verb)
}

func stateError(op string, state State) error {
	return gferrors.NewOperationError(module, op, ErrInvalidState).
		WithContext(fmt.Sprintf("stream is %s", state))
}
