/*
Package sinkflow provides backpressure-aware writable streams for Go.

A writable stream sits between a producer and an underlying sink. The producer
writes chunks through an exclusive writer; the stream queues them, hands them
to the sink strictly one at a time, and tells the producer through a ready
signal when the queue has reached its high-water mark.

Streaming (pkg/streaming):
  - writable: Stream, Writer and Controller with the write/close/abort state machine
  - queue: Size-accounted FIFO queue backing the stream
  - future: One-shot settle-once signal used for ready, closed and per-write results

Sinks (pkg/sinks):
  - iosink: io.Writer sink with retries and partial-write resumption
  - redissink: Redis stream sink (XADD per chunk)
  - throttle: Token-bucket pacing for any sink

Scheduling (pkg/scheduling):
  - workerpool: Bounded worker pool usable as a stream executor

Example usage:

	import (
		"github.com/vnykmshr/sinkflow/pkg/sinks/iosink"
		"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
	)

	stream, _ := writable.New[[]byte](iosink.New(os.Stdout))
	w, _ := stream.GetWriter()

	for _, chunk := range chunks {
		if err := w.Ready().Wait(ctx); err != nil {
			return err
		}
		w.Write(chunk)
	}
	return w.Close().Wait(ctx)
*/
package sinkflow
