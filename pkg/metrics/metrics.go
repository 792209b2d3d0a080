// Package metrics provides Prometheus instrumentation for sinkflow components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for sinkflow components.
type Registry struct {
	// Writable Stream Metrics
	ChunksQueued          *prometheus.CounterVec
	ChunksWritten         *prometheus.CounterVec
	WriteFailures         *prometheus.CounterVec
	QueueSize             *prometheus.GaugeVec
	DesiredSize           *prometheus.GaugeVec
	StateTransitions      *prometheus.CounterVec
	BackpressureEvents    *prometheus.CounterVec
	SinkOperationDuration *prometheus.HistogramVec

	// Worker Pool Metrics
	TasksSubmitted        *prometheus.CounterVec
	TasksCompleted        *prometheus.CounterVec
	TasksPanicked         *prometheus.CounterVec
	TaskExecutionDuration *prometheus.HistogramVec
	WorkerPoolSize        *prometheus.GaugeVec
	WorkerPoolActive      *prometheus.GaugeVec
	WorkerPoolQueued      *prometheus.GaugeVec

	// Sink Metrics
	SinkBytesWritten  *prometheus.CounterVec
	SinkRetries       *prometheus.CounterVec
	SinkErrors        *prometheus.CounterVec
	SinkThrottleWait  *prometheus.HistogramVec
}

// DefaultRegistry is the default metrics registry used by sinkflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{
		Enabled:   true,
		Registry:  reg,
		Namespace: DefaultNamespace,
	})
}

// NewRegistryWithConfig creates a registry honouring the namespace and constant
// labels in cfg. A nil cfg.Registry falls back to prometheus.DefaultRegisterer.
func NewRegistryWithConfig(cfg Config) *Registry {
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	factory := promauto.With(reg)

	counter := func(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.Labels,
		}, labels)
	}
	gauge := func(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.Labels,
		}, labels)
	}
	histogram := func(subsystem, name, help string, labels ...string) *prometheus.HistogramVec {
		return factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			Buckets:     prometheus.DefBuckets,
			ConstLabels: cfg.Labels,
		}, labels)
	}

	return &Registry{
		// Writable Stream Metrics
		ChunksQueued:          counter("stream", "chunks_queued_total", "Total number of chunks accepted into a stream queue", "stream_name"),
		ChunksWritten:         counter("stream", "chunks_written_total", "Total number of chunks the underlying sink wrote successfully", "stream_name"),
		WriteFailures:         counter("stream", "write_failures_total", "Total number of failed sink writes", "stream_name"),
		QueueSize:             gauge("stream", "queue_size", "Total size of chunks buffered in the stream queue", "stream_name"),
		DesiredSize:           gauge("stream", "desired_size", "High-water mark minus buffered size", "stream_name"),
		StateTransitions:      counter("stream", "state_transitions_total", "Total number of stream state transitions by target state", "stream_name", "state"),
		BackpressureEvents:    counter("backpressure", "events_total", "Total number of times backpressure engaged", "stream_name"),
		SinkOperationDuration: histogram("stream", "sink_operation_duration_seconds", "Time spent in underlying sink operations", "stream_name", "operation"),

		// Worker Pool Metrics
		TasksSubmitted:        counter("workerpool", "tasks_submitted_total", "Total number of tasks submitted", "pool_name"),
		TasksCompleted:        counter("workerpool", "tasks_completed_total", "Total number of tasks completed", "pool_name"),
		TasksPanicked:         counter("workerpool", "tasks_panicked_total", "Total number of tasks that panicked", "pool_name"),
		TaskExecutionDuration: histogram("workerpool", "task_duration_seconds", "Time spent executing tasks", "pool_name"),
		WorkerPoolSize:        gauge("workerpool", "size", "Current worker pool size", "pool_name"),
		WorkerPoolActive:      gauge("workerpool", "active_workers", "Number of active workers", "pool_name"),
		WorkerPoolQueued:      gauge("workerpool", "queued_tasks", "Number of queued tasks", "pool_name"),

		// Sink Metrics
		SinkBytesWritten: counter("sink", "bytes_written_total", "Total bytes written by sinks", "sink_name"),
		SinkRetries:      counter("sink", "retries_total", "Total number of sink write retries", "sink_name"),
		SinkErrors:       counter("sink", "errors_total", "Total number of sink errors", "sink_name", "operation"),
		SinkThrottleWait: histogram("sink", "throttle_wait_seconds", "Time spent waiting on a sink rate limiter", "sink_name"),
	}
}
