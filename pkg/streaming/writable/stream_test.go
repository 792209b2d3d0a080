package writable

import (
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/sinkflow/internal/testutil"
	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/metrics"
)

func TestNewWithConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config[string])
		wantErr error
	}{
		{"defaults", func(*Config[string]) {}, nil},
		{"zero high water mark", func(c *Config[string]) { c.HighWaterMark = 0 }, nil},
		{"infinite high water mark", func(c *Config[string]) { c.HighWaterMark = math.Inf(1) }, nil},
		{"negative high water mark", func(c *Config[string]) { c.HighWaterMark = -1 }, ErrInvalidHighWaterMark},
		{"NaN high water mark", func(c *Config[string]) { c.HighWaterMark = math.NaN() }, ErrInvalidHighWaterMark},
		{"reserved type", func(c *Config[string]) { c.Type = "bytes" }, ErrInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig[string]()
			tt.modify(&cfg)
			s, err := NewWithConfig[string](nil, cfg)
			if tt.wantErr == nil {
				testutil.AssertNoError(t, err)
				testutil.AssertEqual(t, s.State(), Writable)
				return
			}
			testutil.AssertErrorIs(t, err, tt.wantErr)
			if s != nil {
				t.Error("expected nil stream on error")
			}
		})
	}
}

func TestInvalidHighWaterMarkIsValidationError(t *testing.T) {
	cfg := DefaultConfig[string]()
	cfg.HighWaterMark = -3
	_, err := NewWithConfig[string](nil, cfg)
	if !gferrors.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestNewAppliesDefaultsToZeroConfig(t *testing.T) {
	sink := &recordingSink{}
	s, err := NewWithConfig[string](sink, Config[string]{HighWaterMark: 2})
	testutil.AssertNoError(t, err)

	w, err := s.GetWriter()
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, await(t, w.Write("a")))
	testutil.AssertNoError(t, await(t, w.Close()))
	testutil.AssertEqual(t, s.State(), Closed)
}

func TestGetWriterTwiceFails(t *testing.T) {
	s, err := New[string](nil)
	testutil.AssertNoError(t, err)

	_, err = s.GetWriter()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, s.Locked(), true)

	_, err = s.GetWriter()
	testutil.AssertErrorIs(t, err, ErrAlreadyLocked)
}

func TestStreamAbort(t *testing.T) {
	t.Run("locked stream", func(t *testing.T) {
		s, err := New[string](nil)
		testutil.AssertNoError(t, err)
		_, err = s.GetWriter()
		testutil.AssertNoError(t, err)

		testutil.AssertErrorIs(t, await(t, s.Abort(errors.New("stop"))), ErrLocked)
		testutil.AssertEqual(t, s.State(), Writable)
	})

	t.Run("unlocked writable stream", func(t *testing.T) {
		sink := &recordingSink{}
		s, err := New[string](sink)
		testutil.AssertNoError(t, err)
		reason := errors.New("stop")

		testutil.AssertNoError(t, await(t, s.Abort(reason)))
		testutil.AssertEqual(t, s.State(), Errored)
		testutil.AssertEventually(t, func() bool {
			for _, e := range sink.Events() {
				if e == "abort" {
					return true
				}
			}
			return false
		})

		err = await(t, s.Abort(errors.New("again")))
		testutil.AssertErrorIs(t, err, ErrAborted)
		testutil.AssertErrorIs(t, err, reason)
	})

	t.Run("sink abort failure is not surfaced", func(t *testing.T) {
		sink := &recordingSink{abortErr: errors.New("abort failed")}
		s, err := New[string](sink)
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, await(t, s.Abort(nil)))
	})

	t.Run("closed stream", func(t *testing.T) {
		s, err := New[string](&recordingSink{})
		testutil.AssertNoError(t, err)
		w, err := s.GetWriter()
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, await(t, w.Close()))
		w.Release()

		testutil.AssertNoError(t, await(t, s.Abort(errors.New("late"))))
		testutil.AssertEqual(t, s.State(), Closed)
	})
}

func TestAbortDuringStart(t *testing.T) {
	sink := newManualSink()
	s, err := New[string](sink)
	testutil.AssertNoError(t, err)
	start := sink.expect(t, opStart)

	abort := s.Abort(errors.New("stop"))
	// Abort does not wait for start; the sink sees both.
	sink.expect(t, opAbort).reply <- nil
	testutil.AssertNoError(t, await(t, abort))

	start.reply <- nil
	sink.expectNone(t)
	testutil.AssertEqual(t, s.State(), Errored)
}

func TestStartFailureErrorsStream(t *testing.T) {
	sink := newManualSink()
	s, err := New[string](sink)
	testutil.AssertNoError(t, err)
	w, err := s.GetWriter()
	testutil.AssertNoError(t, err)

	write := w.Write("queued")
	boom := errors.New("start failed")
	sink.expect(t, opStart).reply <- boom

	testutil.AssertErrorIs(t, await(t, write), boom)
	testutil.AssertErrorIs(t, await(t, w.Closed()), boom)
	testutil.AssertEqual(t, s.State(), Errored)
	sink.expectNone(t)
}

func TestExecutorRejection(t *testing.T) {
	refused := errors.New("pool closed")
	cfg := DefaultConfig[string]()
	cfg.Executor = ExecutorFunc(func(func()) error { return refused })

	s, err := NewWithConfig[string](&recordingSink{}, cfg)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, s.State(), Errored)

	w, err := s.GetWriter()
	testutil.AssertNoError(t, err)
	err = await(t, w.Closed())
	testutil.AssertErrorIs(t, err, ErrExecutorRejected)
	testutil.AssertErrorIs(t, err, refused)
}

func TestInlineExecutorSettlesSynchronously(t *testing.T) {
	sink := &recordingSink{}
	cfg := DefaultConfig[string]()
	cfg.Executor = InlineExecutor
	s, err := NewWithConfig[string](sink, cfg)
	testutil.AssertNoError(t, err)

	w, err := s.GetWriter()
	testutil.AssertNoError(t, err)
	f := w.Write("a")
	testutil.AssertEqual(t, f.Settled(), true)
	testutil.AssertNoError(t, f.Err())
	testutil.AssertEqual(t, w.Close().Settled(), true)
	testutil.AssertEqual(t, s.State(), Closed)
}

func TestStats(t *testing.T) {
	s, sink, w := newManualStream(t, 2)

	w.Write("a")
	w.Write("b")
	w.Write("c")

	st := s.Stats()
	testutil.AssertEqual(t, st.ChunksQueued, int64(3))
	testutil.AssertEqual(t, st.QueueSize, 3.0)
	testutil.AssertEqual(t, st.DesiredSize, -1.0)
	testutil.AssertEqual(t, st.BackpressureEvents, int64(1))
	testutil.AssertEqual(t, st.State, Writable)

	sink.expect(t, opWrite).reply <- nil
	sink.expect(t, opWrite).reply <- errors.New("disk full")
	testutil.AssertEventually(t, func() bool { return s.State() == Errored })

	st = s.Stats()
	testutil.AssertEqual(t, st.ChunksWritten, int64(1))
	testutil.AssertEqual(t, st.WriteFailures, int64(1))
	testutil.AssertEqual(t, st.QueueSize, 0.0)
}

func TestMetricsInstrumentation(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	cfg := DefaultConfig[string]()
	cfg.Name = "instrumented"
	cfg.Metrics = reg

	s, err := NewWithConfig[string](&recordingSink{writeErr: map[string]error{"bad": errors.New("bad chunk")}}, cfg)
	testutil.AssertNoError(t, err)
	w, err := s.GetWriter()
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, await(t, w.Write("a")))
	testutil.AssertNoError(t, await(t, w.Write("b")))
	testutil.AssertError(t, await(t, w.Write("bad")))

	testutil.AssertEqual(t, promtest.ToFloat64(reg.ChunksQueued.WithLabelValues("instrumented")), 3.0)
	testutil.AssertEqual(t, promtest.ToFloat64(reg.ChunksWritten.WithLabelValues("instrumented")), 2.0)
	testutil.AssertEqual(t, promtest.ToFloat64(reg.WriteFailures.WithLabelValues("instrumented")), 1.0)
	testutil.AssertEqual(t, promtest.ToFloat64(reg.StateTransitions.WithLabelValues("instrumented", "errored")), 1.0)
	testutil.AssertEqual(t, promtest.CollectAndCount(reg.SinkOperationDuration), 2)
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		want     string
		terminal bool
	}{
		{Writable, "writable", false},
		{Closing, "closing", false},
		{Closed, "closed", true},
		{Errored, "errored", true},
		{State(42), "unknown", false},
	}
	for _, tt := range tests {
		testutil.AssertEqual(t, tt.state.String(), tt.want)
		testutil.AssertEqual(t, tt.state.Terminal(), tt.terminal)
	}
}

func TestAbortErrorMatching(t *testing.T) {
	reason := errors.New("user cancelled")
	err := error(&AbortError{Reason: reason})

	testutil.AssertErrorIs(t, err, ErrAborted)
	testutil.AssertErrorIs(t, err, reason)
	testutil.AssertEqual(t, err.Error(), "the stream has been aborted: user cancelled")
	testutil.AssertEqual(t, (&AbortError{}).Error(), "the stream has been aborted")
}
