package testutil

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ErrSimulated is returned by MockWriter when configured to fail on the nth write.
var ErrSimulated = errors.New("simulated error")

// MockWriter is a test writer that can simulate various write conditions
// including delays, errors, short writes and write counting. It also
// records Flush and Close calls.
type MockWriter struct {
	buf         *bytes.Buffer
	mu          sync.Mutex
	writeDelay  time.Duration
	errorOnNth  int
	failures    int
	writeCount  int
	shortWrites bool
	shouldError bool
	err         error
	flushes     int
	closed      bool
}

// NewMockWriter creates a new MockWriter.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		buf: &bytes.Buffer{},
	}
}

// Write implements io.Writer interface with configurable behavior.
func (mw *MockWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.writeCount++

	if mw.writeDelay > 0 {
		time.Sleep(mw.writeDelay)
	}

	if mw.shouldError {
		return 0, mw.err
	}

	if mw.errorOnNth > 0 && mw.writeCount == mw.errorOnNth {
		return 0, ErrSimulated
	}

	if mw.failures > 0 {
		mw.failures--
		return 0, ErrSimulated
	}

	if mw.shortWrites && len(p) > 1 {
		half := len(p) / 2
		mw.buf.Write(p[:half])
		return half, nil
	}

	return mw.buf.Write(p)
}

// Flush records a flush.
func (mw *MockWriter) Flush() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.flushes++
	return nil
}

// Close records that the writer was closed.
func (mw *MockWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.closed = true
	return nil
}

// String returns the current buffer contents.
func (mw *MockWriter) String() string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.String()
}

// Len returns the current buffer length.
func (mw *MockWriter) Len() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.Len()
}

// WriteCount returns the number of Write calls.
func (mw *MockWriter) WriteCount() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.writeCount
}

// Flushes returns the number of Flush calls.
func (mw *MockWriter) Flushes() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.flushes
}

// Closed reports whether Close was called.
func (mw *MockWriter) Closed() bool {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.closed
}

// SetWriteDelay configures a delay for each write operation.
func (mw *MockWriter) SetWriteDelay(delay time.Duration) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.writeDelay = delay
}

// SetErrorOnNth configures the writer to error on the nth write.
func (mw *MockWriter) SetErrorOnNth(n int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.errorOnNth = n
}

// SetFailures configures the next n writes to fail.
func (mw *MockWriter) SetFailures(n int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.failures = n
}

// SetShortWrites makes every write accept only half of its input.
func (mw *MockWriter) SetShortWrites(short bool) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.shortWrites = short
}

// SetAlwaysError configures the writer to always return the given error.
func (mw *MockWriter) SetAlwaysError(err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.shouldError = true
	mw.err = err
}

// Reset clears the buffer and resets counters.
func (mw *MockWriter) Reset() {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.buf.Reset()
	mw.writeCount = 0
	mw.shouldError = false
	mw.errorOnNth = 0
	mw.failures = 0
	mw.shortWrites = false
	mw.writeDelay = 0
	mw.err = nil
	mw.flushes = 0
	mw.closed = false
}
