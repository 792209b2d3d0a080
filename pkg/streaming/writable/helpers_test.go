package writable

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/sinkflow/internal/testutil"
	"github.com/vnykmshr/sinkflow/pkg/streaming/future"
)

// sinkCall is one blocked call into a manualSink, released through reply.
type sinkCall struct {
	op     string
	chunk  string
	reason error
	reply  chan error
}

// manualSink blocks every operation until the test replies, so tests decide
// exactly when each sink call settles.
type manualSink struct {
	calls chan sinkCall
	ctrl  *Controller[string]
}

func newManualSink() *manualSink {
	return &manualSink{calls: make(chan sinkCall, 16)}
}

func (m *manualSink) call(op, chunk string, reason error) error {
	reply := make(chan error, 1)
	m.calls <- sinkCall{op: op, chunk: chunk, reason: reason, reply: reply}
	return <-reply
}

func (m *manualSink) Start(_ context.Context, c *Controller[string]) error {
	m.ctrl = c
	return m.call(opStart, "", nil)
}

func (m *manualSink) Write(_ context.Context, chunk string, _ *Controller[string]) error {
	return m.call(opWrite, chunk, nil)
}

func (m *manualSink) Close(_ context.Context, _ *Controller[string]) error {
	return m.call(opClose, "", nil)
}

func (m *manualSink) Abort(_ context.Context, reason error) error {
	return m.call(opAbort, "", reason)
}

func (m *manualSink) expect(t *testing.T, op string) sinkCall {
	t.Helper()
	select {
	case c := <-m.calls:
		if c.op != op {
			t.Fatalf("sink got %s, want %s", c.op, op)
		}
		return c
	case <-time.After(testutil.TestTimeout):
		t.Fatalf("timed out waiting for sink %s", op)
	}
	return sinkCall{}
}

func (m *manualSink) expectNone(t *testing.T) {
	t.Helper()
	select {
	case c := <-m.calls:
		t.Fatalf("unexpected sink %s", c.op)
	case <-time.After(20 * time.Millisecond):
	}
}

// newManualStream returns a started stream over a manualSink with a writer attached.
func newManualStream(t *testing.T, hwm float64) (*Stream[string], *manualSink, *Writer[string]) {
	t.Helper()
	sink := newManualSink()
	cfg := DefaultConfig[string]()
	cfg.HighWaterMark = hwm
	s, err := NewWithConfig[string](sink, cfg)
	testutil.AssertNoError(t, err)
	sink.expect(t, opStart).reply <- nil

	w, err := s.GetWriter()
	testutil.AssertNoError(t, err)
	return s, sink, w
}

// recordingSink completes every call immediately and records the order.
type recordingSink struct {
	mu       sync.Mutex
	events   []string
	inFlight int32
	overlap  atomic.Bool
	writeErr map[string]error
	closeErr error
	abortErr error
}

func (r *recordingSink) enter(event string) func() {
	if atomic.AddInt32(&r.inFlight, 1) > 1 {
		r.overlap.Store(true)
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return func() { atomic.AddInt32(&r.inFlight, -1) }
}

func (r *recordingSink) Start(context.Context, *Controller[string]) error {
	defer r.enter("start")()
	return nil
}

func (r *recordingSink) Write(_ context.Context, chunk string, _ *Controller[string]) error {
	defer r.enter("write:" + chunk)()
	return r.writeErr[chunk]
}

func (r *recordingSink) Close(context.Context, *Controller[string]) error {
	defer r.enter("close")()
	return r.closeErr
}

func (r *recordingSink) Abort(context.Context, error) error {
	r.mu.Lock()
	r.events = append(r.events, "abort")
	r.mu.Unlock()
	return r.abortErr
}

func (r *recordingSink) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// await waits for f to settle and returns its rejection error.
func await(t *testing.T, f *future.Future) error {
	t.Helper()
	testutil.AssertSignaled(t, f.Done())
	return f.Err()
}

func assertPending(t *testing.T, f *future.Future) {
	t.Helper()
	if f.Settled() {
		t.Fatalf("future settled unexpectedly: %v", f.Err())
	}
}
