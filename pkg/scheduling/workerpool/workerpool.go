package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// Submit adds a task to the pool for execution.
// The task will be executed with context.Background().
// Use SubmitWithContext to provide a custom context.
func (p *workerPool) Submit(task Task) error {
	return p.SubmitWithContext(context.Background(), task)
}

// SubmitWithTimeout submits a task, giving up if it cannot be queued within timeout.
func (p *workerPool) SubmitWithTimeout(task Task, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.submit(ctx, context.Background(), task)
}

// SubmitWithContext adds a task to the pool for execution with the given context.
// The context is passed to the task's Execute method, enabling timeout and
// cancellation propagation. If the pool has a TaskTimeout configured, the
// effective timeout will be the minimum of the context deadline and TaskTimeout.
func (p *workerPool) SubmitWithContext(ctx context.Context, task Task) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return p.submit(ctx, ctx, task)
}

// Execute queues fn as a task run with context.Background().
func (p *workerPool) Execute(fn func()) error {
	if fn == nil {
		return fmt.Errorf("task cannot be nil")
	}
	return p.Submit(TaskFunc(func(context.Context) error {
		fn()
		return nil
	}))
}

func (p *workerPool) submit(queueCtx, taskCtx context.Context, task Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.isShutdown {
		return fmt.Errorf("cannot submit task: %w", ErrShutdown)
	}

	// Check if context is already canceled before attempting to queue
	// This ensures deterministic behavior for pre-canceled contexts
	select {
	case <-queueCtx.Done():
		return fmt.Errorf("cannot submit task: %w", queueCtx.Err())
	default:
	}

	select {
	case p.taskQueue <- taskWithContext{task: task, ctx: taskCtx}:
		p.totalSubmitted.Add(1)
		return nil
	case <-queueCtx.Done():
		return fmt.Errorf("cannot submit task: %w", queueCtx.Err())
	}
}

// Shutdown initiates a graceful shutdown of the pool.
func (p *workerPool) Shutdown() <-chan struct{} {
	p.mu.Lock()
	if !p.isShutdown {
		p.isShutdown = true
		close(p.shutdownCh)
	}
	p.mu.Unlock()
	return p.done
}

// Size returns the number of workers in the pool.
func (p *workerPool) Size() int {
	return p.config.WorkerCount
}

// QueueSize returns the current number of queued tasks waiting for execution.
func (p *workerPool) QueueSize() int {
	return len(p.taskQueue)
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (p *workerPool) ActiveWorkers() int {
	return int(p.activeWorkers.Load())
}

// TotalSubmitted returns the total number of tasks accepted by the pool.
func (p *workerPool) TotalSubmitted() int64 {
	return p.totalSubmitted.Load()
}

// TotalCompleted returns the total number of tasks that finished executing.
func (p *workerPool) TotalCompleted() int64 {
	return p.totalCompleted.Load()
}

// run is the main loop for a worker.
func (w worker) run() {
	defer w.pool.workerWg.Done()
	if w.pool.config.OnWorkerStart != nil {
		w.pool.config.OnWorkerStart(w.id)
	}
	if w.pool.config.OnWorkerStop != nil {
		defer w.pool.config.OnWorkerStop(w.id)
	}

	for {
		select {
		case twc := <-w.pool.taskQueue:
			w.executeTask(twc)
		case <-w.pool.shutdownCh:
			// Drain what was queued before shutdown.
			for {
				select {
				case twc := <-w.pool.taskQueue:
					w.executeTask(twc)
				default:
					return
				}
			}
		}
	}
}

// executeTask executes a single task with the provided context.
func (w worker) executeTask(twc taskWithContext) {
	p := w.pool
	start := time.Now()
	var err error

	p.activeWorkers.Add(1)
	if p.config.OnTaskStart != nil {
		p.config.OnTaskStart(w.id, twc.task)
	}

	// Handle panics during task execution
	defer func() {
		if r := recover(); r != nil {
			if p.config.PanicHandler != nil {
				p.config.PanicHandler(twc.task, r)
			} else {
				p.logger.Error("task panicked",
					zap.Int("worker", w.id),
					zap.Any("recovered", r),
					zap.ByteString("stack", debug.Stack()))
				err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
			}
		}

		p.activeWorkers.Add(-1)
		p.totalCompleted.Add(1)
		if p.config.OnTaskComplete != nil {
			p.config.OnTaskComplete(w.id, Result{
				Task:     twc.task,
				Error:    err,
				Duration: time.Since(start),
				WorkerID: w.id,
			})
		}
	}()

	ctx := twc.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	// Apply TaskTimeout if configured
	// The effective timeout is the minimum of the context deadline and TaskTimeout
	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}

	err = twc.task.Execute(ctx)
}
