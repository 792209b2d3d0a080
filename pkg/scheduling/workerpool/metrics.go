package workerpool

import (
	"context"
	"errors"
	"time"

	"github.com/vnykmshr/sinkflow/pkg/metrics"
)

// MetricsPool wraps a worker Pool with Prometheus metrics collection.
type MetricsPool struct {
	pool     Pool
	name     string
	registry *metrics.Registry
}

// NewWithMetrics creates a new worker pool with metrics enabled. A nil
// registry uses metrics.DefaultRegistry.
func NewWithMetrics(workerCount int, name string, registry *metrics.Registry) *MetricsPool {
	return NewWithConfigAndMetrics(Config{
		WorkerCount: workerCount,
	}, name, registry)
}

// NewWithConfigAndMetrics creates a new worker pool with custom config and metrics.
func NewWithConfigAndMetrics(config Config, name string, registry *metrics.Registry) *MetricsPool {
	if registry == nil {
		registry = metrics.DefaultRegistry
	}

	mp := &MetricsPool{
		name:     name,
		registry: registry,
	}

	onComplete := config.OnTaskComplete
	config.OnTaskComplete = func(workerID int, result Result) {
		mp.registry.TaskExecutionDuration.WithLabelValues(mp.name).Observe(result.Duration.Seconds())
		mp.registry.TasksCompleted.WithLabelValues(mp.name).Inc()
		if errors.Is(result.Error, ErrTaskPanicked) {
			mp.registry.TasksPanicked.WithLabelValues(mp.name).Inc()
		}
		mp.updateMetrics()
		if onComplete != nil {
			onComplete(workerID, result)
		}
	}
	onPanic := config.PanicHandler
	if onPanic != nil {
		config.PanicHandler = func(task Task, recovered interface{}) {
			mp.registry.TasksPanicked.WithLabelValues(mp.name).Inc()
			onPanic(task, recovered)
		}
	}

	mp.pool = NewWithConfig(config)
	mp.updateMetrics()
	return mp
}

// updateMetrics updates the current state metrics.
func (mp *MetricsPool) updateMetrics() {
	mp.registry.WorkerPoolSize.WithLabelValues(mp.name).Set(float64(mp.pool.Size()))
	mp.registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(mp.pool.ActiveWorkers()))
	mp.registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(mp.pool.QueueSize()))
}

// Submit adds a task to the pool for execution.
func (mp *MetricsPool) Submit(task Task) error {
	return mp.record(mp.pool.Submit(task))
}

// SubmitWithTimeout submits a task with a timeout for queuing.
func (mp *MetricsPool) SubmitWithTimeout(task Task, timeout time.Duration) error {
	return mp.record(mp.pool.SubmitWithTimeout(task, timeout))
}

// SubmitWithContext submits a task with a context for cancellation.
func (mp *MetricsPool) SubmitWithContext(ctx context.Context, task Task) error {
	return mp.record(mp.pool.SubmitWithContext(ctx, task))
}

// Execute queues fn as a task.
func (mp *MetricsPool) Execute(fn func()) error {
	return mp.record(mp.pool.Execute(fn))
}

func (mp *MetricsPool) record(err error) error {
	if err == nil {
		mp.registry.TasksSubmitted.WithLabelValues(mp.name).Inc()
	}
	mp.updateMetrics()
	return err
}

// Shutdown initiates graceful shutdown of the pool.
func (mp *MetricsPool) Shutdown() <-chan struct{} {
	return mp.pool.Shutdown()
}

// Size returns the current number of workers.
func (mp *MetricsPool) Size() int {
	return mp.pool.Size()
}

// QueueSize returns the current number of queued tasks.
func (mp *MetricsPool) QueueSize() int {
	return mp.pool.QueueSize()
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (mp *MetricsPool) ActiveWorkers() int {
	return mp.pool.ActiveWorkers()
}

// TotalSubmitted returns the total number of tasks submitted.
func (mp *MetricsPool) TotalSubmitted() int64 {
	return mp.pool.TotalSubmitted()
}

// TotalCompleted returns the total number of tasks completed.
func (mp *MetricsPool) TotalCompleted() int64 {
	return mp.pool.TotalCompleted()
}
