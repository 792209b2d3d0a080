/*
Package workerpool provides a bounded worker pool.

A worker pool manages a fixed number of worker goroutines that execute tasks
concurrently. In sinkflow it is the usual Executor for writable streams: many
streams can share one pool so that sink I/O is capped at a known number of
goroutines.

Basic usage:

	pool := workerpool.New(4, 100) // 4 workers, queue size 100
	defer pool.Shutdown()

	task := workerpool.TaskFunc(func(ctx context.Context) error {
		// Do work
		return nil
	})

	if err := pool.Submit(task); err != nil {
		log.Printf("Failed to submit: %v", err)
	}

As a stream executor:

	pool := workerpool.New(4, 64)
	cfg := writable.DefaultConfig[[]byte]()
	cfg.Executor = pool
	stream, err := writable.NewWithConfig[[]byte](sink, cfg)

Task results are reported through Config.OnTaskComplete rather than a results
channel, so an unread result never stalls a worker.

Configuration Options:

	config := workerpool.Config{
		WorkerCount: 8,
		QueueSize:   1000,
		TaskTimeout: 30 * time.Second,
		Logger:      logger,
		PanicHandler: func(task Task, recovered interface{}) {
			log.Printf("Task panicked: %v", recovered)
		},
		OnTaskComplete: func(workerID int, result Result) {
			log.Printf("Worker %d completed task in %v", workerID, result.Duration)
		},
	}
	pool := workerpool.NewWithConfig(config)

Shutdown:

Shutdown stops accepting new tasks; tasks already queued still run. The
returned channel closes once every worker has exited. Submitting afterwards
fails with ErrShutdown.

Metrics:

NewWithMetrics wraps a pool and reports submissions, completions, panics,
task duration, active workers and queue depth to a metrics.Registry.
*/
package workerpool
