package iosink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/common/validation"
	"github.com/vnykmshr/sinkflow/pkg/metrics"
	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

const module = "iosink"

// ErrSinkClosed is returned when a chunk arrives after Close or Abort.
var ErrSinkClosed = fmt.Errorf("io sink is closed: %w", gferrors.ErrClosed)

// Flusher is implemented by writers that buffer internally, such as *bufio.Writer.
type Flusher interface {
	Flush() error
}

// Stats holds statistics about sink activity.
type Stats struct {
	// BytesWritten is the total number of bytes accepted by the underlying writer.
	BytesWritten int64

	// WriteCount is the number of chunks fully written.
	WriteCount int64

	// RetryCount is the number of write attempts beyond the first.
	RetryCount int64

	// ErrorCount is the number of chunks that failed after all retries.
	ErrorCount int64

	// TotalWriteTime is the total time spent in Write, including retry delays.
	TotalWriteTime time.Duration

	// LastWriteTime is the timestamp of the last successful write.
	LastWriteTime time.Time
}

// Config holds configuration options for a Sink.
type Config struct {
	// MaxRetries is the number of times to retry a failed or short write.
	// Default: 3
	MaxRetries int

	// RetryDelay is the delay between retries. It is cut short when the
	// stream context is canceled.
	// Default: 100ms
	RetryDelay time.Duration

	// CloseUnderlying closes the writer on Close and Abort when it is an io.Closer.
	CloseUnderlying bool

	// OnError is called when a chunk fails after all retries.
	OnError func(error)

	// OnWrite is called after each chunk is written.
	OnWrite func(bytesWritten int, duration time.Duration)

	// Logger receives retry and failure events.
	// Default: zap.NewNop()
	Logger *zap.Logger

	// Name labels log entries and metrics.
	// Default: "io"
	Name string

	// Metrics enables Prometheus instrumentation when non-nil.
	Metrics *metrics.Registry
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
		Logger:     zap.NewNop(),
		Name:       "io",
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if err := validation.ValidateNonNegativeInt(module, "maxRetries", c.MaxRetries); err != nil {
		return err
	}
	if c.RetryDelay < 0 {
		return gferrors.NewValidationError(module, "retryDelay", c.RetryDelay, "must be non-negative")
	}
	return nil
}

// Sink writes []byte chunks from a writable stream to an io.Writer.
// It implements writable.ChunkWriter, writable.Closer and writable.Aborter.
type Sink struct {
	w      io.Writer
	config Config

	mu     sync.Mutex
	closed bool
	stats  Stats
}

// New creates a Sink for w with default configuration.
func New(w io.Writer) *Sink {
	s, err := NewWithConfig(w, DefaultConfig())
	if err != nil {
		panic(err)
	}
	return s
}

// NewWithConfig creates a Sink for w with the given configuration.
func NewWithConfig(w io.Writer, config Config) (*Sink, error) {
	if err := validation.ValidateNotNil(module, "writer", w); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Name == "" {
		config.Name = "io"
	}
	return &Sink{w: w, config: config}, nil
}

// Write writes chunk to the underlying writer, retrying failed and short
// writes from the first unwritten byte.
func (s *Sink) Write(ctx context.Context, chunk []byte, _ *writable.Controller[[]byte]) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSinkClosed
	}

	start := time.Now()
	written, retries, err := s.writeWithRetries(ctx, chunk)
	duration := time.Since(start)

	s.mu.Lock()
	s.stats.BytesWritten += int64(written)
	s.stats.RetryCount += int64(retries)
	s.stats.TotalWriteTime += duration
	if err != nil {
		s.stats.ErrorCount++
	} else {
		s.stats.WriteCount++
		s.stats.LastWriteTime = time.Now()
	}
	s.mu.Unlock()

	if m := s.config.Metrics; m != nil {
		m.SinkBytesWritten.WithLabelValues(s.config.Name).Add(float64(written))
		if retries > 0 {
			m.SinkRetries.WithLabelValues(s.config.Name).Add(float64(retries))
		}
	}

	if err != nil {
		s.recordError("write", err)
		return gferrors.NewOperationError(module, "write", err).
			WithContext(fmt.Sprintf("%d of %d bytes written", written, len(chunk)))
	}
	if s.config.OnWrite != nil {
		s.config.OnWrite(written, duration)
	}
	return nil
}

func (s *Sink) writeWithRetries(ctx context.Context, data []byte) (int, int, error) {
	var total, retries int
	var lastErr error

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			retries++
			s.config.Logger.Debug("retrying write",
				zap.String("sink", s.config.Name),
				zap.Int("attempt", attempt),
				zap.Int("remaining", len(data)-total),
				zap.Error(lastErr))
			if err := sleep(ctx, s.config.RetryDelay); err != nil {
				return total, retries, errors.Join(lastErr, err)
			}
		}

		n, err := s.w.Write(data[total:])
		total += n
		if total >= len(data) {
			return total, retries, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = io.ErrShortWrite
		}
	}

	return total, retries, lastErr
}

// Close flushes the underlying writer when it buffers, then closes it when
// CloseUnderlying is set.
func (s *Sink) Close(ctx context.Context, _ *writable.Controller[[]byte]) error {
	if !s.markClosed() {
		return nil
	}
	var errs []error
	if f, ok := s.w.(Flusher); ok {
		if err := f.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush: %w", err))
		}
	}
	if err := s.closeUnderlying(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		s.recordError("close", err)
		return gferrors.NewOperationError(module, "close", err)
	}
	return nil
}

// Abort closes the underlying writer without flushing when CloseUnderlying is set.
func (s *Sink) Abort(_ context.Context, reason error) error {
	if !s.markClosed() {
		return nil
	}
	s.config.Logger.Info("sink aborted",
		zap.String("sink", s.config.Name),
		zap.Error(reason))
	if err := s.closeUnderlying(); err != nil {
		s.recordError("abort", err)
		return gferrors.NewOperationError(module, "abort", err)
	}
	return nil
}

// Stats returns a snapshot of the sink statistics.
func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Sink) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

func (s *Sink) closeUnderlying() error {
	if !s.config.CloseUnderlying {
		return nil
	}
	c, ok := s.w.(io.Closer)
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("close underlying writer: %w", err)
	}
	return nil
}

func (s *Sink) recordError(op string, err error) {
	s.config.Logger.Warn("sink operation failed",
		zap.String("sink", s.config.Name),
		zap.String("operation", op),
		zap.Error(err))
	if m := s.config.Metrics; m != nil {
		m.SinkErrors.WithLabelValues(s.config.Name, op).Inc()
	}
	if s.config.OnError != nil {
		s.config.OnError(err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
