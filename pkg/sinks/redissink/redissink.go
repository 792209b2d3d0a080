package redissink

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/common/validation"
	"github.com/vnykmshr/sinkflow/pkg/metrics"
	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

const module = "redissink"

// Chunk is the set of chunk types a Sink can append.
type Chunk interface {
	~[]byte | ~string
}

// Config holds configuration for a Redis stream sink.
type Config struct {
	// Stream is the Redis stream key entries are appended to.
	Stream string

	// Field is the entry field that carries the chunk.
	// Default: "data"
	Field string

	// MaxLen caps the stream length with approximate trimming. Zero disables trimming.
	MaxLen int64

	// Timeout bounds each Redis command.
	// Default: 500ms
	Timeout time.Duration

	// EndMarker, when set, is appended as a final entry on Close.
	EndMarker string

	// DeleteOnAbort deletes the stream key when the stream is aborted.
	DeleteOnAbort bool

	// Logger receives abort and failure events.
	// Default: zap.NewNop()
	Logger *zap.Logger

	// Metrics enables Prometheus instrumentation when non-nil. The sink name
	// label is the stream key.
	Metrics *metrics.Registry
}

// DefaultConfig returns a default configuration for the given stream key.
func DefaultConfig(stream string) Config {
	return Config{
		Stream:  stream,
		Field:   "data",
		Timeout: 500 * time.Millisecond,
		Logger:  zap.NewNop(),
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if err := validation.ValidateNotEmpty(module, "stream", c.Stream); err != nil {
		return err
	}
	if c.MaxLen < 0 {
		return gferrors.NewValidationError(module, "maxLen", c.MaxLen, "must be non-negative").
			WithHint("use 0 to disable trimming")
	}
	if c.Timeout < 0 {
		return gferrors.NewValidationError(module, "timeout", c.Timeout, "must be non-negative")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Field == "" {
		c.Field = "data"
	}
	if c.Timeout == 0 {
		c.Timeout = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// RedisError represents a failed Redis command.
type RedisError struct {
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *RedisError) Error() string {
	return "redis error in " + e.Operation + ": " + e.Err.Error()
}

// Unwrap returns the underlying Redis error.
func (e *RedisError) Unwrap() error {
	return e.Err
}

// Stats holds statistics about entries appended by a Sink.
type Stats struct {
	Entries      int64
	BytesWritten int64
	LastID       string
}

// Sink appends each chunk of a writable stream to a Redis stream with XADD.
// It implements every writable sink interface.
type Sink[T Chunk] struct {
	client redis.UniversalClient
	config Config

	mu    sync.Mutex
	stats Stats
}

// New creates a Sink that appends to config.Stream through client.
func New[T Chunk](client redis.UniversalClient, config Config) (*Sink[T], error) {
	if err := validation.ValidateNotNil(module, "client", client); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Sink[T]{client: client, config: config.withDefaults()}, nil
}

// Start checks that Redis is reachable before the first chunk is written.
func (s *Sink[T]) Start(ctx context.Context, _ *writable.Controller[T]) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return s.fail("start", err)
	}
	return nil
}

// Write appends chunk as a single stream entry.
func (s *Sink[T]) Write(ctx context.Context, chunk T, _ *writable.Controller[T]) error {
	id, err := s.add(ctx, string(chunk))
	if err != nil {
		return s.fail("write", err)
	}

	s.mu.Lock()
	s.stats.Entries++
	s.stats.BytesWritten += int64(len(chunk))
	s.stats.LastID = id
	s.mu.Unlock()

	if m := s.config.Metrics; m != nil {
		m.SinkBytesWritten.WithLabelValues(s.config.Stream).Add(float64(len(chunk)))
	}
	return nil
}

// Close appends the end marker when one is configured.
func (s *Sink[T]) Close(ctx context.Context, _ *writable.Controller[T]) error {
	if s.config.EndMarker == "" {
		return nil
	}
	if _, err := s.add(ctx, s.config.EndMarker); err != nil {
		return s.fail("close", err)
	}
	return nil
}

// Abort deletes the stream key when DeleteOnAbort is set.
func (s *Sink[T]) Abort(ctx context.Context, reason error) error {
	s.config.Logger.Info("redis sink aborted",
		zap.String("stream", s.config.Stream),
		zap.Error(reason))
	if !s.config.DeleteOnAbort {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.client.Del(ctx, s.config.Stream).Err(); err != nil {
		return s.fail("abort", err)
	}
	return nil
}

// Stats returns a snapshot of the sink statistics.
func (s *Sink[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Sink[T]) add(ctx context.Context, value string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: s.config.Stream,
		Values: map[string]interface{}{s.config.Field: value},
	}
	if s.config.MaxLen > 0 {
		args.MaxLen = s.config.MaxLen
		args.Approx = true
	}
	return s.client.XAdd(ctx, args).Result()
}

func (s *Sink[T]) fail(op string, err error) error {
	s.config.Logger.Warn("redis command failed",
		zap.String("stream", s.config.Stream),
		zap.String("operation", op),
		zap.Error(err))
	if m := s.config.Metrics; m != nil {
		m.SinkErrors.WithLabelValues(s.config.Stream, op).Inc()
	}
	return &RedisError{Operation: op, Err: err}
}
