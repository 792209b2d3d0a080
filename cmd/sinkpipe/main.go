// Command sinkpipe copies standard input into a backpressured sink.
//
// Each input line becomes one chunk. The reader waits for the stream to be
// ready before every write, so a slow sink throttles the reader instead of
// growing an unbounded buffer. SIGINT or SIGTERM aborts the stream.
//
//	tail -f app.log | sinkpipe --sink redis --redis-stream logs --rate 500
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
