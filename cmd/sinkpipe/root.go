package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vnykmshr/sinkflow/internal/config"
	"github.com/vnykmshr/sinkflow/internal/logging"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"sink":            "sink.kind",
	"path":            "sink.path",
	"retries":         "sink.max_retries",
	"redis-addr":      "redis.addr",
	"redis-stream":    "redis.stream",
	"high-water-mark": "stream.high_water_mark",
	"strategy":        "stream.strategy",
	"rate":            "throttle.rate",
	"burst":           "throttle.burst",
	"workers":         "pool.workers",
	"metrics-addr":    "metrics.addr",
	"report":          "report.schedule",
	"dev":             "logging.development",
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "sinkpipe",
		Short: "Copy standard input into a backpressured sink.",
		Long: `sinkpipe reads standard input line by line and writes each line to a
stdout, file or Redis stream sink through a writable stream. The reader waits
for the stream to signal readiness before each write, so a slow or throttled
sink slows the reader down instead of buffering without bound.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("sink", config.SinkStdout, "sink kind: stdout, file or redis")
	flags.String("path", "", "output file for the file sink")
	flags.Int("retries", 3, "write retries for stdout and file sinks")
	flags.String("redis-addr", "localhost:6379", "redis address for the redis sink")
	flags.String("redis-stream", "sinkflow", "redis stream key for the redis sink")
	flags.Float64("high-water-mark", 16, "buffered size at which backpressure engages")
	flags.String("strategy", config.StrategyCount, "queuing strategy: count or bytes")
	flags.Float64("rate", 0, "maximum chunks per second, 0 for unlimited")
	flags.Int("burst", 1, "rate limiter burst")
	flags.Int("workers", 0, "worker pool size for sink operations, 0 for plain goroutines")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.String("report", "", "cron schedule for logging stream stats, e.g. \"@every 5s\"")
	flags.Bool("dev", false, "development logging")

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}

	return cmd
}

func run(ctx context.Context, cfg config.Config, in io.Reader, out io.Writer) error {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(cfg, out, logger)
	if err != nil {
		logger.Error("failed to build pipeline", zap.Error(err))
		return err
	}
	defer p.close()

	if err := p.run(ctx, in); err != nil {
		logger.Error("pipeline failed", zap.Error(err))
		return err
	}
	return nil
}
