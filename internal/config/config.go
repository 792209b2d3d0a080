// Package config loads and validates sinkpipe configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/common/validation"
)

const (
	module = "config"

	// EnvPrefix prefixes every environment override, e.g. SINKFLOW_SINK_KIND.
	EnvPrefix = "SINKFLOW"
)

// Sink kinds.
const (
	SinkStdout = "stdout"
	SinkFile   = "file"
	SinkRedis  = "redis"
)

// Queuing strategies.
const (
	StrategyCount = "count"
	StrategyBytes = "bytes"
)

// Config captures all sinkpipe knobs.
type Config struct {
	Sink     SinkConfig     `mapstructure:"sink"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Report   ReportConfig   `mapstructure:"report"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SinkConfig selects where chunks go.
type SinkConfig struct {
	Kind       string        `mapstructure:"kind"`
	Path       string        `mapstructure:"path"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// RedisConfig configures the Redis stream sink.
type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Stream        string        `mapstructure:"stream"`
	MaxLen        int64         `mapstructure:"max_len"`
	Timeout       time.Duration `mapstructure:"timeout"`
	EndMarker     string        `mapstructure:"end_marker"`
	DeleteOnAbort bool          `mapstructure:"delete_on_abort"`
}

// StreamConfig controls buffering and backpressure.
type StreamConfig struct {
	Name          string  `mapstructure:"name"`
	HighWaterMark float64 `mapstructure:"high_water_mark"`
	Strategy      string  `mapstructure:"strategy"`
}

// ThrottleConfig paces writes. A zero rate disables throttling.
type ThrottleConfig struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

// PoolConfig sizes the worker pool running sink operations. Zero workers runs
// them on plain goroutines.
type PoolConfig struct {
	Workers int `mapstructure:"workers"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ReportConfig logs stream statistics on a cron schedule when Schedule is set.
type ReportConfig struct {
	Schedule string `mapstructure:"schedule"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// New returns a Viper instance with sinkpipe defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load builds a Config from v, reading path first when it is non-empty.
// A nil v uses New().
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = New()
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Every key gets a default so AutomaticEnv overrides reach Unmarshal.
	v.SetDefault("sink.kind", SinkStdout)
	v.SetDefault("sink.path", "")
	v.SetDefault("sink.max_retries", 3)
	v.SetDefault("sink.retry_delay", 100*time.Millisecond)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.stream", "sinkflow")
	v.SetDefault("redis.max_len", 0)
	v.SetDefault("redis.timeout", 500*time.Millisecond)
	v.SetDefault("redis.end_marker", "")
	v.SetDefault("redis.delete_on_abort", false)
	v.SetDefault("stream.name", "sinkpipe")
	v.SetDefault("stream.high_water_mark", 16)
	v.SetDefault("stream.strategy", StrategyCount)
	v.SetDefault("throttle.rate", 0.0)
	v.SetDefault("throttle.burst", 1)
	v.SetDefault("pool.workers", 0)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("report.schedule", "")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := validation.ValidateOneOf(module, "sink.kind", c.Sink.Kind, SinkStdout, SinkFile, SinkRedis); err != nil {
		return err
	}
	if c.Sink.Kind == SinkFile {
		if err := validation.ValidateNotEmpty(module, "sink.path", c.Sink.Path); err != nil {
			return err
		}
	}
	if c.Sink.Kind == SinkRedis {
		if err := validation.ValidateNotEmpty(module, "redis.addr", c.Redis.Addr); err != nil {
			return err
		}
		if err := validation.ValidateNotEmpty(module, "redis.stream", c.Redis.Stream); err != nil {
			return err
		}
	}
	if err := validation.ValidateNonNegativeInt(module, "sink.max_retries", c.Sink.MaxRetries); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative(module, "stream.high_water_mark", c.Stream.HighWaterMark); err != nil {
		return err
	}
	if err := validation.ValidateOneOf(module, "stream.strategy", c.Stream.Strategy, StrategyCount, StrategyBytes); err != nil {
		return err
	}
	if err := validation.ValidateFiniteNonNegative(module, "throttle.rate", c.Throttle.Rate); err != nil {
		return err
	}
	if c.Throttle.Rate > 0 && c.Throttle.Burst <= 0 {
		return gferrors.NewValidationError(module, "throttle.burst", c.Throttle.Burst, "must be positive when throttle.rate is set")
	}
	if err := validation.ValidateNonNegativeInt(module, "pool.workers", c.Pool.Workers); err != nil {
		return err
	}
	return nil
}
