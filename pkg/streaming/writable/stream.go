package writable

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/metrics"
	"github.com/vnykmshr/sinkflow/pkg/streaming/future"
)

// Stream is a writable stream feeding an underlying sink.
//
// All state is guarded by one mutex. Sink operations requested while it is
// held are collected in tasks and handed to the executor once it is released.
type Stream[T any] struct {
	mu sync.Mutex

	state      State
	storedErr  error
	writer     *Writer[T]
	controller *Controller[T]

	writeRequests []*future.Future
	pendingWrite  *future.Future
	pendingClose  *future.Future
	pendingAbort  *abortRequest

	tasks   []sinkTask
	exec    Executor
	ctx     context.Context
	logger  *zap.Logger
	name    string
	metrics *metrics.Registry
	stats   Stats
}

// abortRequest is an abort that arrived while a write or close was in flight.
type abortRequest struct {
	result   *future.Future
	reason   error
	callSink bool
}

// sinkTask is one sink call. run executes without the lock; done is the
// continuation and always executes with it held.
type sinkTask struct {
	op   string
	run  func(ctx context.Context) error
	done func(err error)
}

// Stats holds counters and a snapshot of a stream's queue.
type Stats struct {
	// ChunksQueued is the number of chunks accepted into the queue.
	ChunksQueued int64

	// ChunksWritten is the number of chunks the sink wrote successfully.
	ChunksWritten int64

	// WriteFailures is the number of failed sink writes.
	WriteFailures int64

	// BackpressureEvents is the number of times backpressure engaged.
	BackpressureEvents int64

	// QueueSize is the total size of buffered chunks.
	QueueSize float64

	// DesiredSize is HighWaterMark minus QueueSize.
	DesiredSize float64

	// State is the stream state when the snapshot was taken.
	State State
}

// New creates a Stream over sink using DefaultConfig.
func New[T any](sink any) (*Stream[T], error) {
	return NewWithConfig[T](sink, DefaultConfig[T]())
}

// NewWithConfig creates a Stream over sink. The sink may implement any subset
// of Starter, ChunkWriter, Closer and Aborter, or be nil. Start is scheduled
// immediately; writes queue up until it succeeds.
func NewWithConfig[T any](sink any, cfg Config[T]) (*Stream[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	s := &Stream[T]{
		state:   Writable,
		exec:    cfg.Executor,
		ctx:     cfg.Context,
		logger:  cfg.Logger.With(zap.String("stream", cfg.Name)),
		name:    cfg.Name,
		metrics: cfg.Metrics,
	}
	s.controller = newController(s, resolveSink[T](sink), cfg.Size, cfg.HighWaterMark)

	s.mu.Lock()
	s.controller.setup()
	s.unlockAndDispatch()
	return s, nil
}

// Abort errors the stream with an *AbortError wrapping reason and discards
// queued chunks. It fails with ErrLocked while a writer is attached; use
// Writer.Abort instead.
func (s *Stream[T]) Abort(reason error) *future.Future {
	s.mu.Lock()
	if s.writer != nil {
		s.mu.Unlock()
		return future.Rejected(gferrors.NewOperationError(module, "abort", ErrLocked))
	}
	f := s.abort(reason)
	s.unlockAndDispatch()
	return f
}

// GetWriter attaches a new Writer. It fails with ErrAlreadyLocked if one is
// already attached.
func (s *Stream[T]) GetWriter() (*Writer[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		return nil, gferrors.NewOperationError(module, "getWriter", ErrAlreadyLocked)
	}
	return s.acquireWriter(), nil
}

// Locked reports whether a Writer is attached.
func (s *Stream[T]) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer != nil
}

// State returns the current lifecycle state.
func (s *Stream[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the stream's counters.
func (s *Stream[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.QueueSize = s.controller.queue.TotalSize()
	st.DesiredSize = s.controller.desiredSize()
	st.State = s.state
	return st
}

func (s *Stream[T]) acquireWriter() *Writer[T] {
	w := &Writer[T]{mu: &s.mu, stream: s}
	s.writer = w

	switch s.state {
	case Writable, Closing:
		w.closed = future.New()
	case Closed:
		w.closed = future.Resolved()
	default:
		w.closed = future.Rejected(s.storedErr)
	}

	if s.state == Writable && s.controller.hasBackpressure() {
		w.ready = future.New()
	} else {
		w.ready = future.Resolved()
	}
	return w
}

func (s *Stream[T]) abort(reason error) *future.Future {
	switch s.state {
	case Closed:
		return future.Resolved()
	case Errored:
		return future.Rejected(s.storedErr)
	}
	s.error(&AbortError{Reason: reason})

	c := s.controller
	result := future.New()
	if c.writing || c.inClose {
		// The sink is busy; the in-flight operation settles the abort.
		s.pendingAbort = &abortRequest{result: result, reason: reason, callSink: c.writing}
		return result
	}
	c.abort(reason, result)
	return result
}

func (s *Stream[T]) addWriteRequest() *future.Future {
	f := future.New()
	s.writeRequests = append(s.writeRequests, f)
	return f
}

func (s *Stream[T]) error(e error) {
	old := s.state
	s.setState(Errored)
	s.storedErr = e

	c := s.controller
	if !c.writing && !c.inClose {
		s.rejectPromisesInReactionToError()
	}

	if w := s.writer; w != nil {
		if old == Writable && c.hasBackpressure() {
			w.ready.Reject(e)
		} else {
			w.ready = future.Rejected(e)
		}
	}
}

func (s *Stream[T]) finishClose() {
	w := s.writer
	if s.state == Closing {
		if w != nil {
			w.closed.Resolve()
		}
		s.setState(Closed)
	} else if w != nil {
		w.closed.Reject(s.storedErr)
	}

	if s.pendingAbort != nil {
		s.pendingAbort.result.Resolve()
		s.pendingAbort = nil
	}
}

func (s *Stream[T]) rejectPromisesInReactionToError() {
	err := s.storedErr
	for _, f := range s.writeRequests {
		f.Reject(err)
	}
	s.writeRequests = nil

	if s.pendingClose != nil {
		s.pendingClose.Reject(err)
		s.pendingClose = nil
	}

	if w := s.writer; w != nil {
		w.closed.Reject(err)
	}
}

func (s *Stream[T]) updateBackpressure(backpressure bool) {
	if backpressure {
		s.stats.BackpressureEvents++
		if s.metrics != nil {
			s.metrics.BackpressureEvents.WithLabelValues(s.name).Inc()
		}
	}
	w := s.writer
	if w == nil {
		return
	}
	if backpressure {
		w.ready = future.New()
	} else {
		w.ready.Resolve()
	}
}

// settlePendingAbort finishes an abort deferred behind a write. On success the
// sink-level abort runs now and settles the result.
func (s *Stream[T]) settlePendingAbort(err error) {
	req := s.pendingAbort
	if req == nil {
		return
	}
	s.pendingAbort = nil
	if err != nil {
		req.result.Reject(err)
		return
	}
	if req.callSink {
		s.controller.abort(req.reason, req.result)
		return
	}
	req.result.Resolve()
}

func (s *Stream[T]) setState(state State) {
	s.state = state
	s.logger.Debug("stream state changed", zap.Stringer("state", state))
	if s.metrics != nil {
		s.metrics.StateTransitions.WithLabelValues(s.name, state.String()).Inc()
	}
}

func (s *Stream[T]) schedule(op string, run func(ctx context.Context) error, done func(err error)) {
	s.tasks = append(s.tasks, sinkTask{op: op, run: run, done: done})
}

// unlockAndDispatch releases the lock and hands any queued sink calls to the
// executor. Must be called with s.mu held.
func (s *Stream[T]) unlockAndDispatch() {
	tasks := s.takeTasks()
	s.mu.Unlock()
	for _, t := range tasks {
		s.dispatch(t)
	}
}

func (s *Stream[T]) takeTasks() []sinkTask {
	s.observeQueue()
	tasks := s.tasks
	s.tasks = nil
	return tasks
}

func (s *Stream[T]) dispatch(t sinkTask) {
	err := s.exec.Execute(func() { s.drain(t) })
	if err == nil {
		return
	}
	s.logger.Warn("executor rejected sink operation", zap.String("op", t.op), zap.Error(err))
	s.mu.Lock()
	t.done(fmt.Errorf("%w: %s: %w", ErrExecutorRejected, t.op, err))
	s.unlockAndDispatch()
}

// drain runs t and then any sink calls its continuation queued, on the same
// goroutine, until none remain.
func (s *Stream[T]) drain(t sinkTask) {
	for {
		err := s.invoke(t)

		s.mu.Lock()
		t.done(err)
		next := s.takeTasks()
		s.mu.Unlock()

		if len(next) == 0 {
			return
		}
		for _, other := range next[1:] {
			s.dispatch(other)
		}
		t = next[0]
	}
}

func (s *Stream[T]) invoke(t sinkTask) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrSinkPanic, t.op, r)
		}
		if s.metrics != nil {
			s.metrics.SinkOperationDuration.WithLabelValues(s.name, t.op).Observe(time.Since(start).Seconds())
		}
	}()
	return t.run(s.ctx)
}

func (s *Stream[T]) observeQueue() {
	if s.metrics == nil {
		return
	}
	s.metrics.QueueSize.WithLabelValues(s.name).Set(s.controller.queue.TotalSize())
	s.metrics.DesiredSize.WithLabelValues(s.name).Set(s.controller.desiredSize())
}
