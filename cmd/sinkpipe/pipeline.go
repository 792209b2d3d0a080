package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vnykmshr/sinkflow/internal/config"
	"github.com/vnykmshr/sinkflow/pkg/metrics"
	"github.com/vnykmshr/sinkflow/pkg/scheduling/workerpool"
	"github.com/vnykmshr/sinkflow/pkg/sinks/iosink"
	"github.com/vnykmshr/sinkflow/pkg/sinks/redissink"
	"github.com/vnykmshr/sinkflow/pkg/sinks/throttle"
	"github.com/vnykmshr/sinkflow/pkg/streaming/future"
	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

// abortTimeout bounds how long an interrupted run waits for the sink to abort.
const abortTimeout = 5 * time.Second

// pipeline copies lines from an input into a backpressured byte stream.
type pipeline struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Registry

	stream *writable.Stream[[]byte]
	pool   workerpool.Pool
	cron   *cron.Cron
	server *http.Server

	// cleanup runs in reverse order once the stream has settled.
	cleanup []func() error
}

func newPipeline(cfg config.Config, out io.Writer, logger *zap.Logger) (_ *pipeline, err error) {
	p := &pipeline{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			p.close()
		}
	}()

	if cfg.Metrics.Addr != "" {
		p.registry = prometheus.NewRegistry()
		p.metrics = metrics.NewRegistry(p.registry)
	}

	sink, err := p.buildSink(out)
	if err != nil {
		return nil, err
	}

	streamCfg := writable.DefaultConfig[[]byte]()
	streamCfg.HighWaterMark = cfg.Stream.HighWaterMark
	if cfg.Stream.Strategy == config.StrategyBytes {
		streamCfg = streamCfg.WithStrategy(writable.ByteLengthQueuingStrategy[[]byte](cfg.Stream.HighWaterMark))
	}
	streamCfg.Name = cfg.Stream.Name
	streamCfg.Logger = logger.Named("stream")
	streamCfg.Metrics = p.metrics

	if cfg.Pool.Workers > 0 {
		p.pool = p.buildPool()
		streamCfg.Executor = p.pool
	}

	p.stream, err = writable.NewWithConfig[[]byte](sink, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	if cfg.Report.Schedule != "" {
		if err := p.startReporter(cfg.Report.Schedule); err != nil {
			return nil, err
		}
	}
	if cfg.Metrics.Addr != "" {
		p.startMetricsServer(cfg.Metrics.Addr)
	}
	return p, nil
}

func (p *pipeline) buildSink(out io.Writer) (any, error) {
	var sink any
	switch p.cfg.Sink.Kind {
	case config.SinkStdout:
		bw := bufio.NewWriter(out)
		s, err := iosink.NewWithConfig(bw, p.ioConfig("stdout"))
		if err != nil {
			return nil, err
		}
		sink = s
	case config.SinkFile:
		f, err := os.OpenFile(p.cfg.Sink.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open sink file: %w", err)
		}
		ioCfg := p.ioConfig(p.cfg.Sink.Path)
		ioCfg.CloseUnderlying = true
		s, err := iosink.NewWithConfig(f, ioCfg)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		sink = s
	case config.SinkRedis:
		rdb := redis.NewClient(&redis.Options{Addr: p.cfg.Redis.Addr})
		p.cleanup = append(p.cleanup, rdb.Close)
		s, err := redissink.New[[]byte](rdb, redissink.Config{
			Stream:        p.cfg.Redis.Stream,
			MaxLen:        p.cfg.Redis.MaxLen,
			Timeout:       p.cfg.Redis.Timeout,
			EndMarker:     p.cfg.Redis.EndMarker,
			DeleteOnAbort: p.cfg.Redis.DeleteOnAbort,
			Logger:        p.logger.Named("redis"),
			Metrics:       p.metrics,
		})
		if err != nil {
			return nil, err
		}
		sink = s
	default:
		return nil, fmt.Errorf("unknown sink kind %q", p.cfg.Sink.Kind)
	}

	if p.cfg.Throttle.Rate > 0 {
		sink = throttle.WrapWithConfig[[]byte](sink, throttle.Config[[]byte]{
			Limiter: throttle.PerSecond(p.cfg.Throttle.Rate, p.cfg.Throttle.Burst),
			Name:    p.cfg.Stream.Name,
			Metrics: p.metrics,
		})
	}
	return sink, nil
}

func (p *pipeline) ioConfig(name string) iosink.Config {
	cfg := iosink.DefaultConfig()
	cfg.MaxRetries = p.cfg.Sink.MaxRetries
	cfg.RetryDelay = p.cfg.Sink.RetryDelay
	cfg.Logger = p.logger.Named("iosink")
	cfg.Name = name
	cfg.Metrics = p.metrics
	return cfg
}

func (p *pipeline) buildPool() workerpool.Pool {
	poolCfg := workerpool.Config{
		WorkerCount: p.cfg.Pool.Workers,
		QueueSize:   p.cfg.Pool.Workers * 16,
		Logger:      p.logger.Named("pool"),
	}
	if p.metrics != nil {
		return workerpool.NewWithConfigAndMetrics(poolCfg, p.cfg.Stream.Name, p.metrics)
	}
	return workerpool.NewWithConfig(poolCfg)
}

func (p *pipeline) startReporter(schedule string) error {
	p.cron = cron.New(cron.WithParser(cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	if _, err := p.cron.AddFunc(schedule, p.report); err != nil {
		return fmt.Errorf("invalid report schedule %q: %w", schedule, err)
	}
	p.cron.Start()
	return nil
}

func (p *pipeline) report() {
	stats := p.stream.Stats()
	p.logger.Info("stream stats",
		zap.String("state", stats.State.String()),
		zap.Int64("chunks_queued", stats.ChunksQueued),
		zap.Int64("chunks_written", stats.ChunksWritten),
		zap.Int64("write_failures", stats.WriteFailures),
		zap.Int64("backpressure_events", stats.BackpressureEvents),
		zap.Float64("queue_size", stats.QueueSize),
		zap.Float64("desired_size", stats.DesiredSize))
}

func (p *pipeline) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	p.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	p.logger.Info("serving metrics", zap.String("addr", addr))
}

// run writes every line of in to the stream, waiting for room in the stream
// before each write. EOF closes the stream; ctx cancellation aborts it.
func (p *pipeline) run(ctx context.Context, in io.Reader) error {
	w, err := p.stream.GetWriter()
	if err != nil {
		return err
	}
	defer w.Release()

	lines, scanErr := scanLines(ctx, in)

	var pending []pendingWrite
	defer func() { p.reap(pending) }()

	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return p.abort(ctx, w)
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					w.Abort(err)
					return fmt.Errorf("read input: %w", err)
				}
				return p.finish(ctx, w)
			}
			if err := p.waitForRoom(ctx, w, pending); err != nil {
				if ctx.Err() != nil {
					return p.abort(ctx, w)
				}
				return fmt.Errorf("stream failed: %w", err)
			}
			pending = append(p.reap(pending), pendingWrite{line: n, done: w.Write(line)})
		}
	}
}

// pendingWrite is a chunk write that has not been observed settling yet.
type pendingWrite struct {
	line int
	done *future.Future
}

// waitForRoom blocks until the stream can take another chunk. Ready never
// resolves at a zero high-water mark, so there the previous write settling is
// the signal instead.
func (p *pipeline) waitForRoom(ctx context.Context, w *writable.Writer[[]byte], pending []pendingWrite) error {
	if p.cfg.Stream.HighWaterMark > 0 {
		return w.Ready().Wait(ctx)
	}
	if len(pending) == 0 {
		return nil
	}
	return pending[len(pending)-1].done.Wait(ctx)
}

// reap logs failed writes among the settled prefix of pending and returns the
// rest. Writes settle in order.
func (p *pipeline) reap(pending []pendingWrite) []pendingWrite {
	i := 0
	for ; i < len(pending) && pending[i].done.Settled(); i++ {
		if err := pending[i].done.Err(); err != nil {
			p.logger.Debug("chunk write failed", zap.Int("line", pending[i].line), zap.Error(err))
		}
	}
	return pending[i:]
}

func (p *pipeline) finish(ctx context.Context, w *writable.Writer[[]byte]) error {
	if err := w.Close().Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return p.abort(ctx, w)
		}
		return fmt.Errorf("close stream: %w", err)
	}
	p.logger.Debug("stream closed", zap.Int64("chunks_written", p.stream.Stats().ChunksWritten))
	return nil
}

func (p *pipeline) abort(ctx context.Context, w *writable.Writer[[]byte]) error {
	reason := context.Cause(ctx)
	p.logger.Warn("aborting stream", zap.Error(reason))

	waitCtx, cancel := context.WithTimeout(context.Background(), abortTimeout)
	defer cancel()
	if err := w.Abort(reason).Wait(waitCtx); err != nil {
		p.logger.Warn("abort did not complete cleanly", zap.Error(err))
	}
	return fmt.Errorf("stream aborted: %w", reason)
}

// close stops background services and releases sink resources.
func (p *pipeline) close() {
	if p.cron != nil {
		<-p.cron.Stop().Done()
	}
	if p.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.server.Shutdown(ctx); err != nil {
			p.logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
		cancel()
	}
	if p.pool != nil {
		<-p.pool.Shutdown()
	}
	for i := len(p.cleanup) - 1; i >= 0; i-- {
		if err := p.cleanup[i](); err != nil {
			p.logger.Warn("cleanup failed", zap.Error(err))
		}
	}
}

// scanLines feeds newline-terminated copies of each input line to the
// returned channel until EOF or ctx is done. The error channel receives the
// scanner error once lines is closed.
func scanLines(ctx context.Context, in io.Reader) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			line := make([]byte, len(sc.Bytes())+1)
			copy(line, sc.Bytes())
			line[len(line)-1] = '\n'
			select {
			case lines <- line:
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		errc <- sc.Err()
	}()
	return lines, errc
}
