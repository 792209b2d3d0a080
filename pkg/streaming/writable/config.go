package writable

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vnykmshr/sinkflow/pkg/common/validation"
	"github.com/vnykmshr/sinkflow/pkg/metrics"
)

// Config holds configuration options for a Stream.
type Config[T any] struct {
	// HighWaterMark is the buffered size at which backpressure engages.
	// Must be a non-negative number; +Inf disables backpressure.
	// Default: 1
	HighWaterMark float64

	// Size measures each chunk. Nil counts every chunk as 1.
	Size SizeFunc[T]

	// Type is reserved and must be empty.
	Type string

	// Executor runs sink operations.
	// Default: GoExecutor
	Executor Executor

	// Context is passed to every sink call.
	// Default: context.Background()
	Context context.Context

	// Logger receives state transitions at debug level and sink failures at warn.
	// Default: zap.NewNop()
	Logger *zap.Logger

	// Name labels log entries and metrics.
	// Default: "writable"
	Name string

	// Metrics enables Prometheus instrumentation when non-nil.
	Metrics *metrics.Registry
}

// DefaultConfig returns a default configuration.
func DefaultConfig[T any]() Config[T] {
	return Config[T]{
		HighWaterMark: 1,
		Executor:      GoExecutor,
		Context:       context.Background(),
		Logger:        zap.NewNop(),
		Name:          "writable",
	}
}

// WithStrategy returns a copy of c using the strategy's high-water mark and size function.
func (c Config[T]) WithStrategy(qs QueuingStrategy[T]) Config[T] {
	c.HighWaterMark = qs.HighWaterMark
	c.Size = qs.Size
	return c
}

// Validate checks the configuration for errors.
func (c Config[T]) Validate() error {
	if err := validation.ValidateNonNegative(module, "highWaterMark", c.HighWaterMark); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHighWaterMark, err)
	}
	if c.Type != "" {
		return fmt.Errorf("%w: got %q", ErrInvalidType, c.Type)
	}
	return nil
}

func (c Config[T]) withDefaults() Config[T] {
	if c.Executor == nil {
		c.Executor = GoExecutor
	}
	if c.Context == nil {
		c.Context = context.Background()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Name == "" {
		c.Name = "writable"
	}
	return c
}
