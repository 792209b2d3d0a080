package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/common/validation"
)

// ErrShutdown is returned when submitting to a pool that has been shut down.
// It matches errors.ErrClosed.
var ErrShutdown = fmt.Errorf("worker pool has been shut down: %w", gferrors.ErrClosed)

// ErrTaskPanicked wraps the value recovered from a panicking task when no
// PanicHandler is configured.
var ErrTaskPanicked = errors.New("task panicked")

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result represents the result of a task execution.
type Result struct {
	// Task is the original task that was executed
	Task Task

	// Error is any error that occurred during task execution
	Error error

	// Duration is how long the task took to execute
	Duration time.Duration

	// WorkerID identifies which worker executed the task
	WorkerID int
}

// Pool represents a worker pool that can execute tasks concurrently.
//
// Pool also satisfies writable.Executor through Execute, so a single pool can
// run the sink operations of many streams.
type Pool interface {
	// Submit adds a task to the pool for execution.
	// Returns an error if the pool is shut down or if the task cannot be queued.
	Submit(task Task) error

	// SubmitWithTimeout submits a task with a timeout for queuing.
	// If the task cannot be queued within the timeout, it returns an error.
	SubmitWithTimeout(task Task, timeout time.Duration) error

	// SubmitWithContext submits a task with a context for cancellation.
	// The context bounds the queuing and is passed to the task's Execute.
	SubmitWithContext(ctx context.Context, task Task) error

	// Execute queues fn as a task. It blocks while the queue is full.
	Execute(fn func()) error

	// Shutdown stops accepting tasks and lets queued tasks finish.
	// Returns a channel that closes when every worker has exited.
	Shutdown() <-chan struct{}

	// Size returns the number of workers in the pool.
	Size() int

	// QueueSize returns the current number of queued tasks waiting for execution.
	QueueSize() int

	// ActiveWorkers returns the number of workers currently executing tasks.
	ActiveWorkers() int

	// TotalSubmitted returns the total number of tasks submitted to the pool.
	TotalSubmitted() int64

	// TotalCompleted returns the total number of tasks completed by the pool.
	TotalCompleted() int64
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// QueueSize is the maximum number of tasks that can be queued.
	// If 0, submissions hand off directly to an idle worker.
	QueueSize int

	// TaskTimeout is the default timeout for individual task execution.
	// Zero means no timeout.
	TaskTimeout time.Duration

	// Logger receives recovered panics.
	// Default: zap.NewNop()
	Logger *zap.Logger

	// PanicHandler is called when a task panics.
	// If nil, panics are recovered, logged and reported as the task's error.
	PanicHandler func(task Task, recovered interface{})

	// OnWorkerStart is called when a worker starts.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called when a worker stops.
	OnWorkerStop func(workerID int)

	// OnTaskStart is called before a task begins execution.
	OnTaskStart func(workerID int, task Task)

	// OnTaskComplete is called after a task completes (success or failure).
	OnTaskComplete func(workerID int, result Result)
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if err := validation.ValidatePositive("workerpool", "workers", c.WorkerCount); err != nil {
		return err
	}
	return validation.ValidateNonNegativeInt("workerpool", "queueSize", c.QueueSize)
}

// workerPool implements the Pool interface.
type workerPool struct {
	config Config
	logger *zap.Logger

	taskQueue  chan taskWithContext
	shutdownCh chan struct{}
	done       chan struct{}

	// mu orders submissions before shutdown: Shutdown takes the write lock,
	// so every task accepted under the read lock is queued before workers drain.
	mu         sync.RWMutex
	isShutdown bool

	activeWorkers  atomic.Int32
	totalSubmitted atomic.Int64
	totalCompleted atomic.Int64

	workerWg sync.WaitGroup
}

type taskWithContext struct {
	task Task
	ctx  context.Context
}

// worker represents a single worker in the pool.
type worker struct {
	id   int
	pool *workerPool
}

// New creates a new worker pool with the specified number of workers and queue size.
// It panics if workerCount is not positive or queueSize is negative.
func New(workerCount, queueSize int) Pool {
	return NewWithConfig(Config{
		WorkerCount: workerCount,
		QueueSize:   queueSize,
	})
}

// NewWithConfig creates a new worker pool with the specified configuration.
// It panics with a *errors.ValidationError on invalid configuration.
func NewWithConfig(config Config) Pool {
	if err := config.Validate(); err != nil {
		panic(err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pool := &workerPool{
		config:     config,
		logger:     logger,
		taskQueue:  make(chan taskWithContext, config.QueueSize),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}

	for i := 0; i < config.WorkerCount; i++ {
		w := worker{id: i, pool: pool}
		pool.workerWg.Add(1)
		go w.run()
	}

	go func() {
		pool.workerWg.Wait()
		close(pool.done)
	}()

	return pool
}
