// Package iosink adapts an io.Writer into a sink for byte streams built with
// package writable.
//
// Each chunk is handed to the writer in full. Failed and short writes are
// retried from the first unwritten byte up to Config.MaxRetries times, with
// Config.RetryDelay between attempts. Because the stream never issues a second
// write before the first settles, a slow or retrying writer shows up to the
// producer as backpressure rather than as unbounded buffering.
//
// Basic usage:
//
//	f, _ := os.Create("out.log")
//	sink, _ := iosink.NewWithConfig(f, iosink.Config{MaxRetries: 3, CloseUnderlying: true})
//	stream, _ := writable.NewWithConfig[[]byte](sink,
//		writable.DefaultConfig[[]byte]().WithStrategy(writable.ByteLengthQueuingStrategy[[]byte](64*1024)))
//
// On Close the sink flushes writers that implement Flusher and, when
// CloseUnderlying is set, closes writers that implement io.Closer. Abort skips
// the flush.
package iosink
