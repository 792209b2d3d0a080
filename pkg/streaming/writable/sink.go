package writable

import "context"

// Starter is implemented by sinks that need setup before the first write.
// Writes are held back until Start returns; an error errors the stream.
type Starter[T any] interface {
	Start(ctx context.Context, c *Controller[T]) error
}

// ChunkWriter is implemented by sinks that consume chunks. Calls are strictly
// serialized and happen in the order the chunks were written.
type ChunkWriter[T any] interface {
	Write(ctx context.Context, chunk T, c *Controller[T]) error
}

// Closer is implemented by sinks that need to flush or release resources once
// every preceding write has settled. It is called at most once.
type Closer[T any] interface {
	Close(ctx context.Context, c *Controller[T]) error
}

// Aborter is implemented by sinks that can discard work when the stream is
// aborted. It is called at most once and its result is only logged.
type Aborter interface {
	Abort(ctx context.Context, reason error) error
}

// SinkFuncs adapts plain functions to the sink interfaces. Nil fields are no-ops.
type SinkFuncs[T any] struct {
	StartFunc func(ctx context.Context, c *Controller[T]) error
	WriteFunc func(ctx context.Context, chunk T, c *Controller[T]) error
	CloseFunc func(ctx context.Context, c *Controller[T]) error
	AbortFunc func(ctx context.Context, reason error) error
}

// Start implements Starter by calling StartFunc, if set.
func (f SinkFuncs[T]) Start(ctx context.Context, c *Controller[T]) error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc(ctx, c)
}

// Write implements ChunkWriter by calling WriteFunc, if set.
func (f SinkFuncs[T]) Write(ctx context.Context, chunk T, c *Controller[T]) error {
	if f.WriteFunc == nil {
		return nil
	}
	return f.WriteFunc(ctx, chunk, c)
}

// Close implements Closer by calling CloseFunc, if set.
func (f SinkFuncs[T]) Close(ctx context.Context, c *Controller[T]) error {
	if f.CloseFunc == nil {
		return nil
	}
	return f.CloseFunc(ctx, c)
}

// Abort implements Aborter by calling AbortFunc, if set.
func (f SinkFuncs[T]) Abort(ctx context.Context, reason error) error {
	if f.AbortFunc == nil {
		return nil
	}
	return f.AbortFunc(ctx, reason)
}

// sinkOps holds the capabilities resolved from a sink value, with no-ops
// substituted for the ones it lacks.
type sinkOps[T any] struct {
	start func(ctx context.Context, c *Controller[T]) error
	write func(ctx context.Context, chunk T, c *Controller[T]) error
	close func(ctx context.Context, c *Controller[T]) error
	abort func(ctx context.Context, reason error) error
}

func resolveSink[T any](sink any) sinkOps[T] {
	ops := sinkOps[T]{
		start: func(context.Context, *Controller[T]) error { return nil },
		write: func(context.Context, T, *Controller[T]) error { return nil },
		close: func(context.Context, *Controller[T]) error { return nil },
		abort: func(context.Context, error) error { return nil },
	}
	if v, ok := sink.(Starter[T]); ok {
		ops.start = v.Start
	}
	if v, ok := sink.(ChunkWriter[T]); ok {
		ops.write = v.Write
	}
	if v, ok := sink.(Closer[T]); ok {
		ops.close = v.Close
	}
	if v, ok := sink.(Aborter); ok {
		ops.abort = v.Abort
	}
	return ops
}
