package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnykmshr/sinkflow/internal/config"
	"github.com/vnykmshr/sinkflow/internal/testutil"
	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

const input = "first line\nsecond line\nthird line\n"

func defaultConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load(nil, "")
	testutil.AssertNoError(t, err)
	return cfg
}

func runPipeline(t *testing.T, cfg config.Config, in io.Reader, out io.Writer) (*pipeline, error) {
	t.Helper()
	p, err := newPipeline(cfg, out, zap.NewNop())
	testutil.AssertNoError(t, err)
	t.Cleanup(p.close)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	return p, p.run(ctx, in)
}

func TestPipelineStdout(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"defaults", func(*config.Config) {}},
		{"no buffering", func(c *config.Config) { c.Stream.HighWaterMark = 0 }},
		{"no buffering byte strategy", func(c *config.Config) {
			c.Stream.Strategy = config.StrategyBytes
			c.Stream.HighWaterMark = 0
		}},
		{"no buffering worker pool", func(c *config.Config) {
			c.Stream.HighWaterMark = 0
			c.Pool.Workers = 2
		}},
		{"byte strategy", func(c *config.Config) {
			c.Stream.Strategy = config.StrategyBytes
			c.Stream.HighWaterMark = 8
		}},
		{"worker pool", func(c *config.Config) { c.Pool.Workers = 2 }},
		{"throttled", func(c *config.Config) {
			c.Throttle.Rate = 1000
			c.Throttle.Burst = 1
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(&cfg)

			var out bytes.Buffer
			p, err := runPipeline(t, cfg, strings.NewReader(input), &out)
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, out.String(), input)
			testutil.AssertEqual(t, p.stream.State(), writable.Closed)
			testutil.AssertEqual(t, p.stream.Stats().ChunksWritten, int64(3))
		})
	}
}

func TestPipelineZeroHighWaterMark(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Stream.HighWaterMark = 0
	cfg.Sink.Kind = config.SinkFile
	cfg.Sink.Path = filepath.Join(t.TempDir(), "out.log")

	p, err := newPipeline(cfg, io.Discard, zap.NewNop())
	testutil.AssertNoError(t, err)
	t.Cleanup(p.close)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, p.run(ctx, strings.NewReader(input)))

	stats := p.stream.Stats()
	testutil.AssertEqual(t, stats.ChunksWritten, int64(3))
	testutil.AssertEqual(t, stats.ChunksQueued, int64(3))
	testutil.AssertEqual(t, stats.WriteFailures, int64(0))

	data, err := os.ReadFile(cfg.Sink.Path)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, string(data), input)
}

func TestPipelineLogsFailedChunk(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Sink.MaxRetries = 0

	mw := testutil.NewMockWriter()
	mw.SetAlwaysError(testutil.ErrSimulated)

	core, logs := observer.New(zap.DebugLevel)
	p, err := newPipeline(cfg, mw, zap.New(core))
	testutil.AssertNoError(t, err)
	t.Cleanup(p.close)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	// Longer than the stdout buffer, so the chunk goes straight to the writer.
	long := strings.Repeat("x", 8192) + "\n"
	err = p.run(ctx, strings.NewReader(long))
	testutil.AssertErrorIs(t, err, testutil.ErrSimulated)

	failed := logs.FilterMessage("chunk write failed").All()
	testutil.AssertEqual(t, len(failed), 1)
	testutil.AssertEqual(t, failed[0].Level, zap.DebugLevel)
	testutil.AssertEqual(t, failed[0].ContextMap()["line"], any(int64(1)))
}

func TestPipelineFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	cfg := defaultConfig(t)
	cfg.Sink.Kind = config.SinkFile
	cfg.Sink.Path = path

	_, err := runPipeline(t, cfg, strings.NewReader(input), io.Discard)
	testutil.AssertNoError(t, err)

	data, err := os.ReadFile(path)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, string(data), input)
}

func TestPipelineFileOpenError(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Sink.Kind = config.SinkFile
	cfg.Sink.Path = filepath.Join(t.TempDir(), "missing", "out.log")

	_, err := newPipeline(cfg, io.Discard, zap.NewNop())
	testutil.AssertError(t, err)
}

func TestPipelineWriteFailure(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Sink.MaxRetries = 0

	mw := testutil.NewMockWriter()
	mw.SetAlwaysError(testutil.ErrSimulated)

	// The stdout sink buffers, so the failure surfaces when the buffer is
	// flushed on close.
	_, err := runPipeline(t, cfg, strings.NewReader(input), mw)
	testutil.AssertErrorIs(t, err, testutil.ErrSimulated)
}

func TestPipelineAbortOnCancel(t *testing.T) {
	cfg := defaultConfig(t)
	p, err := newPipeline(cfg, io.Discard, zap.NewNop())
	testutil.AssertNoError(t, err)
	defer p.close()

	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_, _ = pw.Write([]byte("partial\n"))
		cancel()
	}()

	err = p.run(ctx, pr)
	testutil.AssertErrorIs(t, err, context.Canceled)
	testutil.AssertEqual(t, p.stream.State(), writable.Errored)
}

func TestPipelineMetrics(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Metrics.Addr = "127.0.0.1:0"
	cfg.Pool.Workers = 1

	p, err := runPipeline(t, cfg, strings.NewReader(input), io.Discard)
	testutil.AssertNoError(t, err)

	written := promtestutil.ToFloat64(p.metrics.ChunksWritten.WithLabelValues(cfg.Stream.Name))
	testutil.AssertEqual(t, written, 3.0)
	bytesWritten := promtestutil.ToFloat64(p.metrics.SinkBytesWritten.WithLabelValues("stdout"))
	testutil.AssertEqual(t, bytesWritten, float64(len(input)))
	if n := promtestutil.CollectAndCount(p.metrics.TasksCompleted); n != 1 {
		t.Fatalf("expected pool task metrics, got %d series", n)
	}
}

func TestPipelineReport(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Report.Schedule = "@every 1s"

	_, err := runPipeline(t, cfg, strings.NewReader(input), io.Discard)
	testutil.AssertNoError(t, err)

	cfg.Report.Schedule = "not a schedule"
	_, err = newPipeline(cfg, io.Discard, zap.NewNop())
	testutil.AssertError(t, err)
}

func TestRootCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--high-water-mark", "2", "--strategy", "bytes"})

	testutil.AssertNoError(t, cmd.Execute())
	testutil.AssertEqual(t, out.String(), input)
}

func TestRootCommandInvalidFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--sink", "kafka"})

	err := cmd.Execute()
	if !errors.Is(err, gferrors.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}
