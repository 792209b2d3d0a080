// Package writable provides a backpressure-aware sink for a single producer.
//
// A Stream wraps an underlying sink and serializes calls into it: chunks are
// queued in FIFO order, at most one sink operation (start, write or close) is
// in flight at a time, and a close request is only handed to the sink after
// every chunk written before it has settled.
//
// Producers talk to a Stream through its Writer. Only one Writer may be
// attached at a time. Each Writer exposes three kinds of asynchronous result,
// all modelled as *future.Future:
//
//   - the Future returned by Write, Close and Abort, settled when that
//     operation completes
//   - Ready, resolved while the buffered size is below the high-water mark
//   - Closed, resolved when the stream closes and rejected when it errors or
//     the Writer is released
//
// # Backpressure
//
// Buffered demand is measured by the configured queuing strategy. The desired
// size is HighWaterMark minus the total size of queued chunks; while it is
// zero or negative the Writer's Ready future stays pending. A well-behaved
// producer waits on Ready before every Write:
//
//	stream, err := writable.New[[]byte](sink)
//	if err != nil {
//		return err
//	}
//	w, err := stream.GetWriter()
//	if err != nil {
//		return err
//	}
//	for _, chunk := range chunks {
//		if err := w.Ready().Wait(ctx); err != nil {
//			return err
//		}
//		w.Write(chunk)
//	}
//	return w.Close().Wait(ctx)
//
// # Underlying Sinks
//
// A sink is any value implementing some subset of Starter, ChunkWriter,
// Closer and Aborter. Missing capabilities are treated as no-ops, and a nil
// sink discards everything. SinkFuncs adapts plain functions.
//
// Sink methods run on the configured Executor, never while the stream's
// internal lock is held, so they may call back into the Controller. A failure
// or panic in start, write or close errors the stream permanently; abort is
// best effort and its own outcome is only logged.
//
// # Errors
//
// Usage errors are reported through rejected futures and match the package
// sentinels with errors.Is: ErrReleased, ErrInvalidState, ErrClosing,
// ErrCloseRequested and ErrLocked. Sink failures are delivered unchanged. An
// aborted stream stores an *AbortError, which matches ErrAborted and unwraps
// to the abort reason.
package writable
