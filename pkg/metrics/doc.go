// Package metrics provides Prometheus instrumentation for sinkflow components.
//
// Writable streams, worker pools and the bundled sinks all accept an optional
// *Registry. A nil Registry disables collection for that component, so the
// hot paths only pay for metrics when a caller asks for them.
//
// # Quick Start
//
//	reg := metrics.NewRegistry(prometheus.NewRegistry())
//
//	cfg := writable.DefaultConfig[[]byte]()
//	cfg.Name = "ingest"
//	cfg.Metrics = reg
//	stream, err := writable.NewWithConfig[[]byte](sink, cfg)
//
//	pool := workerpool.NewWithMetrics(4, "sink_ops", reg)
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":9090", nil))
//
// # Available Metrics
//
// ## Writable Stream Metrics
//
//   - sinkflow_stream_chunks_queued_total: chunks accepted into the queue
//   - sinkflow_stream_chunks_written_total: chunks the sink wrote successfully
//   - sinkflow_stream_write_failures_total: failed sink writes
//   - sinkflow_stream_queue_size: buffered size according to the queuing strategy
//   - sinkflow_stream_desired_size: high-water mark minus buffered size
//   - sinkflow_stream_state_transitions_total: transitions by target state
//   - sinkflow_backpressure_events_total: times backpressure engaged
//   - sinkflow_stream_sink_operation_duration_seconds: start/write/close/abort latency
//
// ## Worker Pool Metrics
//
//   - sinkflow_workerpool_tasks_submitted_total
//   - sinkflow_workerpool_tasks_completed_total
//   - sinkflow_workerpool_tasks_panicked_total
//   - sinkflow_workerpool_task_duration_seconds
//   - sinkflow_workerpool_size
//   - sinkflow_workerpool_active_workers
//   - sinkflow_workerpool_queued_tasks
//
// ## Sink Metrics
//
//   - sinkflow_sink_bytes_written_total
//   - sinkflow_sink_retries_total
//   - sinkflow_sink_errors_total
//   - sinkflow_sink_throttle_wait_seconds
//
// # Labels
//
//   - stream_name: Config.Name of the writable stream
//   - operation: "start", "write", "close" or "abort"
//   - state: target state of a transition
//   - pool_name: name given to the worker pool
//   - sink_name: name given to the sink
//
// # Configuration
//
//	config := metrics.Config{
//		Enabled:   true,
//		Registry:  prometheus.NewRegistry(),
//		Namespace: "myapp",                          // Override default "sinkflow"
//		Labels:    prometheus.Labels{"version": "1"}, // Constant labels on every metric
//	}
//	reg := config.Build() // nil when Enabled is false
package metrics
