// Package throttle limits how fast chunks reach a writable sink.
//
// A throttled sink waits on a token bucket before forwarding each write. The
// wait happens while the write is in flight, so the stream's queue fills and
// the producer observes backpressure instead of the limiter dropping chunks.
package throttle

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/metrics"
	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

// Config holds configuration for a throttled sink.
type Config[T any] struct {
	// Limiter paces writes. Nil disables throttling.
	Limiter *rate.Limiter

	// Cost returns the number of tokens a chunk consumes. Nil charges one
	// token per chunk. A cost above the limiter's burst fails the write.
	Cost func(T) int

	// Name labels metrics.
	// Default: "throttle"
	Name string

	// Metrics records time spent waiting on the limiter when non-nil.
	Metrics *metrics.Registry
}

// Sink forwards every capability of an inner sink, pacing writes with a rate limiter.
type Sink[T any] struct {
	config Config[T]

	start func(context.Context, *writable.Controller[T]) error
	write func(context.Context, T, *writable.Controller[T]) error
	close func(context.Context, *writable.Controller[T]) error
	abort func(context.Context, error) error
}

// Wrap throttles inner with limiter at one token per chunk.
func Wrap[T any](inner any, limiter *rate.Limiter) *Sink[T] {
	return WrapWithConfig[T](inner, Config[T]{Limiter: limiter})
}

// WrapWithConfig throttles inner according to config.
func WrapWithConfig[T any](inner any, config Config[T]) *Sink[T] {
	if config.Name == "" {
		config.Name = "throttle"
	}
	s := &Sink[T]{config: config}
	if v, ok := inner.(writable.Starter[T]); ok {
		s.start = v.Start
	}
	if v, ok := inner.(writable.ChunkWriter[T]); ok {
		s.write = v.Write
	}
	if v, ok := inner.(writable.Closer[T]); ok {
		s.close = v.Close
	}
	if v, ok := inner.(writable.Aborter); ok {
		s.abort = v.Abort
	}
	return s
}

// PerSecond builds a limiter allowing n events per second with a burst of
// burst. A non-positive n means no limit.
func PerSecond(n float64, burst int) *rate.Limiter {
	limit := rate.Limit(n)
	if n <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(limit, burst)
}

// Start forwards to the inner sink's Start, if any.
func (s *Sink[T]) Start(ctx context.Context, c *writable.Controller[T]) error {
	if s.start == nil {
		return nil
	}
	return s.start(ctx, c)
}

// Write waits for the chunk's tokens, then forwards it.
func (s *Sink[T]) Write(ctx context.Context, chunk T, c *writable.Controller[T]) error {
	if err := s.wait(ctx, chunk); err != nil {
		return err
	}
	if s.write == nil {
		return nil
	}
	return s.write(ctx, chunk, c)
}

// Close forwards to the inner sink's Close, if any.
func (s *Sink[T]) Close(ctx context.Context, c *writable.Controller[T]) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx, c)
}

// Abort forwards to the inner sink's Abort, if any.
func (s *Sink[T]) Abort(ctx context.Context, reason error) error {
	if s.abort == nil {
		return nil
	}
	return s.abort(ctx, reason)
}

func (s *Sink[T]) wait(ctx context.Context, chunk T) error {
	if s.config.Limiter == nil {
		return nil
	}
	n := 1
	if s.config.Cost != nil {
		n = s.config.Cost(chunk)
	}
	if n <= 0 {
		return nil
	}

	start := time.Now()
	if err := s.config.Limiter.WaitN(ctx, n); err != nil {
		return fmt.Errorf("rate limit wait: %w: %w", gferrors.ErrRateLimited, err)
	}
	if m := s.config.Metrics; m != nil {
		m.SinkThrottleWait.WithLabelValues(s.config.Name).Observe(time.Since(start).Seconds())
	}
	return nil
}
