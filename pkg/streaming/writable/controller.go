package writable

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vnykmshr/sinkflow/pkg/streaming/future"
	"github.com/vnykmshr/sinkflow/pkg/streaming/queue"
)

const (
	opStart = "start"
	opWrite = "write"
	opClose = "close"
	opAbort = "abort"
)

// record is a queue entry: a chunk, or the close request.
type record[T any] struct {
	chunk T
	close bool
}

// Controller drives the underlying sink on behalf of its Stream. Sinks receive
// it in Start, Write and Close and may use it to error the stream or inspect
// the desired size.
type Controller[T any] struct {
	stream *Stream[T]
	sink   sinkOps[T]
	queue  *queue.SizedQueue[record[T]]
	size   SizeFunc[T]
	hwm    float64

	started bool
	writing bool
	inClose bool
}

func newController[T any](s *Stream[T], sink sinkOps[T], size SizeFunc[T], hwm float64) *Controller[T] {
	return &Controller[T]{
		stream: s,
		sink:   sink,
		queue:  queue.New[record[T]](),
		size:   size,
		hwm:    hwm,
	}
}

// Error errors the stream with err, rejecting every pending write and close
// and discarding queued chunks. It fails with ErrInvalidState once the stream
// is closed or errored. A nil err is replaced by future.ErrNilReason.
func (c *Controller[T]) Error(err error) error {
	if err == nil {
		err = future.ErrNilReason
	}
	s := c.stream
	s.mu.Lock()
	if s.state.Terminal() {
		state := s.state
		s.mu.Unlock()
		return stateError("error", state)
	}
	c.error(err)
	s.unlockAndDispatch()
	return nil
}

// DesiredSize returns the high-water mark minus the buffered size. It may be negative.
func (c *Controller[T]) DesiredSize() float64 {
	c.stream.mu.Lock()
	defer c.stream.mu.Unlock()
	return c.desiredSize()
}

func (c *Controller[T]) desiredSize() float64 {
	return c.hwm - c.queue.TotalSize()
}

func (c *Controller[T]) hasBackpressure() bool {
	return c.desiredSize() <= 0
}

func (c *Controller[T]) setup() {
	s := c.stream
	if c.hasBackpressure() {
		s.updateBackpressure(true)
	}
	s.schedule(opStart, func(ctx context.Context) error {
		return c.sink.start(ctx, c)
	}, func(err error) {
		if err != nil {
			s.logger.Warn("sink start failed", zap.Error(err))
			c.errorIfNeeded(err)
			return
		}
		c.started = true
		c.advanceQueueIfNeeded()
	})
}

func (c *Controller[T]) abort(reason error, result *future.Future) {
	c.queue.Reset()
	s := c.stream
	s.schedule(opAbort, func(ctx context.Context) error {
		return c.sink.abort(ctx, reason)
	}, func(err error) {
		if err != nil {
			s.logger.Warn("sink abort failed", zap.Error(err))
		}
		result.Resolve()
	})
}

func (c *Controller[T]) close() {
	// A zero size is always accepted.
	_ = c.queue.Enqueue(record[T]{close: true}, 0)
	c.advanceQueueIfNeeded()
}

func (c *Controller[T]) write(chunk T) {
	s := c.stream
	size, err := c.chunkSize(chunk)
	if err != nil {
		c.errorIfNeeded(err)
		return
	}

	last := c.hasBackpressure()
	if err := c.queue.Enqueue(record[T]{chunk: chunk}, size); err != nil {
		c.errorIfNeeded(err)
		return
	}
	s.stats.ChunksQueued++
	if s.metrics != nil {
		s.metrics.ChunksQueued.WithLabelValues(s.name).Inc()
	}

	if s.state == Writable {
		if backpressure := c.hasBackpressure(); backpressure != last {
			s.updateBackpressure(backpressure)
		}
	}
	c.advanceQueueIfNeeded()
}

func (c *Controller[T]) chunkSize(chunk T) (size float64, err error) {
	if c.size == nil {
		return 1, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: size: %v", ErrSinkPanic, r)
		}
	}()
	return c.size(chunk)
}

func (c *Controller[T]) advanceQueueIfNeeded() {
	if c.stream.state.Terminal() {
		return
	}
	if !c.started || c.writing || c.inClose {
		return
	}
	if c.queue.Len() == 0 {
		return
	}
	if rec := c.queue.Peek(); rec.close {
		c.processClose()
	} else {
		c.processWrite(rec.chunk)
	}
}

func (c *Controller[T]) error(e error) {
	c.stream.error(e)
	c.queue.Reset()
}

func (c *Controller[T]) errorIfNeeded(e error) {
	if state := c.stream.state; state == Writable || state == Closing {
		c.error(e)
	}
}

func (c *Controller[T]) processClose() {
	s := c.stream
	c.queue.Dequeue()
	c.inClose = true

	s.schedule(opClose, func(ctx context.Context) error {
		return c.sink.close(ctx, c)
	}, func(err error) {
		c.inClose = false

		if err != nil {
			s.logger.Warn("sink close failed", zap.Error(err))
			if s.pendingClose != nil {
				s.pendingClose.Reject(err)
				s.pendingClose = nil
			}
			s.settlePendingAbort(err)
			if s.state == Errored && s.writer != nil {
				// Errored mid-close: nothing else will settle closed.
				s.writer.closed.Reject(s.storedErr)
			}
			c.errorIfNeeded(err)
			return
		}

		if s.state != Closing && s.state != Errored {
			return
		}
		if s.pendingClose != nil {
			s.pendingClose.Resolve()
			s.pendingClose = nil
		}
		s.finishClose()
	})
}

func (c *Controller[T]) processWrite(chunk T) {
	s := c.stream
	c.writing = true
	s.pendingWrite = s.writeRequests[0]
	s.writeRequests = s.writeRequests[1:]

	s.schedule(opWrite, func(ctx context.Context) error {
		return c.sink.write(ctx, chunk, c)
	}, func(err error) {
		c.writing = false

		if err != nil {
			s.logger.Warn("sink write failed", zap.Error(err))
			s.pendingWrite.Reject(err)
			s.pendingWrite = nil
			s.stats.WriteFailures++
			if s.metrics != nil {
				s.metrics.WriteFailures.WithLabelValues(s.name).Inc()
			}

			if s.state == Errored {
				s.storedErr = err
				s.rejectPromisesInReactionToError()
				c.queue.Reset()
			}
			s.settlePendingAbort(err)
			c.errorIfNeeded(err)
			return
		}

		s.pendingWrite.Resolve()
		s.pendingWrite = nil
		s.stats.ChunksWritten++
		if s.metrics != nil {
			s.metrics.ChunksWritten.WithLabelValues(s.name).Inc()
		}

		state := s.state
		if state == Errored {
			s.rejectPromisesInReactionToError()
			s.settlePendingAbort(nil)
			return
		}

		last := c.hasBackpressure()
		c.queue.Dequeue()
		if state != Closing {
			if backpressure := c.hasBackpressure(); backpressure != last {
				s.updateBackpressure(backpressure)
			}
		}
		c.advanceQueueIfNeeded()
	})
}
