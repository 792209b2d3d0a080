/*
Package scheduling provides task execution primitives for sinkflow.

  - workerpool: Fixed worker pool for concurrent task execution

Worker Pool:

The worker pool provides controlled concurrent execution:

	pool := workerpool.New(4, 100) // 4 workers, queue size 100
	defer func() { <-pool.Shutdown() }()

	task := workerpool.TaskFunc(func(ctx context.Context) error {
		// Do work
		return nil
	})

	pool.Submit(task)

A pool also satisfies writable.Executor, which lets many streams share a
bounded set of goroutines for their sink calls:

	cfg := writable.DefaultConfig[[]byte]()
	cfg.Executor = pool
	stream, _ := writable.NewWithConfig[[]byte](sink, cfg)

Shut the pool down only after every stream using it has closed or aborted.
*/
package scheduling
