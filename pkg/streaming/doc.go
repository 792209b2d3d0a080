/*
Package streaming groups the building blocks of backpressured writes.

This package provides three components:

  - writable: Stream, Writer and Controller implementing write, close and abort
    with backpressure signalling
  - queue: FIFO queue that tracks the total size of its entries
  - future: Settle-once signal with a Done channel and context-aware Wait

Basic usage:

	stream, err := writable.New[string](sink)
	if err != nil {
		return err
	}
	w, _ := stream.GetWriter()

	// Wait for room before each write
	if err := w.Ready().Wait(ctx); err != nil {
		return err
	}
	w.Write("chunk")

	// Close once every queued chunk has been written
	err = w.Close().Wait(ctx)

A Stream serializes all sink calls, so sinks never need their own locking for
Write, Close and Abort.
*/
package streaming
