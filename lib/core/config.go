// Package core provides shared configuration for the connpool resource
// pool toolkit and its simulation command. It ties together the pool,
// the simulated workload, reporting, and resilience settings.
package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values
const (
	DefaultCapacity         = 5
	DefaultWorkers          = 12
	DefaultOpsPerWorker     = 5
	DefaultDialLatency      = 30 * time.Millisecond
	DefaultHoldTime         = 20 * time.Millisecond
	DefaultThinkTime        = 50 * time.Millisecond
	DefaultReportInterval   = 100 * time.Millisecond
	DefaultMetricsListen    = "127.0.0.1:9090"
	DefaultMaxAttempts      = 3
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 2 * time.Second
)

// Config holds all configuration for the pool simulator.
type Config struct {
	Pool       PoolConfig       `toml:"pool"`
	Factory    FactoryConfig    `toml:"factory"`
	Workload   WorkloadConfig   `toml:"workload"`
	Report     ReportConfig     `toml:"report"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Resilience ResilienceConfig `toml:"resilience"`
}

// PoolConfig contains resource pool settings.
type PoolConfig struct {
	// Capacity is the maximum number of resources the pool may create
	Capacity int `toml:"capacity"`
	// AcquireTimeout bounds waiting in acquire; zero blocks indefinitely
	AcquireTimeout time.Duration `toml:"acquire_timeout"`
}

// FactoryConfig contains simulated resource creation settings.
type FactoryConfig struct {
	// DialLatency is the simulated cost of creating one resource
	DialLatency time.Duration `toml:"dial_latency"`
	// FailEvery makes every Nth creation attempt fail; zero disables
	// fault injection
	FailEvery int `toml:"fail_every"`
}

// WorkloadConfig contains settings for the simulated producers.
type WorkloadConfig struct {
	// Workers is the number of concurrent producers
	Workers int `toml:"workers"`
	// OpsPerWorker is the number of operations each producer performs
	OpsPerWorker int `toml:"ops_per_worker"`
	// HoldTime is how long a producer holds a resource per operation
	HoldTime time.Duration `toml:"hold_time"`
	// ThinkTime is the pause between operations after release
	ThinkTime time.Duration `toml:"think_time"`
	// Rate caps operations per second across all producers; zero
	// disables pacing
	Rate float64 `toml:"rate"`
}

// ReportConfig contains periodic stats reporter settings.
type ReportConfig struct {
	// Enabled controls whether the periodic stats reporter runs
	Enabled bool `toml:"enabled"`
	// Interval is how often pool stats are sampled and logged
	Interval time.Duration `toml:"interval"`
}

// MetricsConfig contains metrics endpoint settings.
type MetricsConfig struct {
	// Enabled controls whether the metrics HTTP endpoint is served
	Enabled bool `toml:"enabled"`
	// Listen is the address to bind the metrics server to
	Listen string `toml:"listen"`
}

// ResilienceConfig contains factory resilience settings.
type ResilienceConfig struct {
	// Retry enables retrying failed resource creation with backoff
	Retry bool `toml:"retry"`
	// MaxAttempts bounds creation attempts per acquire when retrying
	MaxAttempts int `toml:"max_attempts"`
	// BreakerEnabled guards the factory with a circuit breaker
	BreakerEnabled bool `toml:"breaker_enabled"`
	// BreakerThreshold is the consecutive failure count that opens the breaker
	BreakerThreshold int `toml:"breaker_threshold"`
	// BreakerCooldown is how long the breaker stays open before probing
	BreakerCooldown time.Duration `toml:"breaker_cooldown"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			Capacity:       DefaultCapacity,
			AcquireTimeout: 0,
		},
		Factory: FactoryConfig{
			DialLatency: DefaultDialLatency,
			FailEvery:   0,
		},
		Workload: WorkloadConfig{
			Workers:      DefaultWorkers,
			OpsPerWorker: DefaultOpsPerWorker,
			HoldTime:     DefaultHoldTime,
			ThinkTime:    DefaultThinkTime,
			Rate:         0,
		},
		Report: ReportConfig{
			Enabled:  true,
			Interval: DefaultReportInterval,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  DefaultMetricsListen,
		},
		Resilience: ResilienceConfig{
			Retry:            false,
			MaxAttempts:      DefaultMaxAttempts,
			BreakerEnabled:   false,
			BreakerThreshold: DefaultBreakerThreshold,
			BreakerCooldown:  DefaultBreakerCooldown,
		},
	}
}

// LoadConfig reads configuration from a TOML file, then applies any
// CONNPOOL_* environment overrides. If the file doesn't exist, the
// defaults plus overrides are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies CONNPOOL_* environment variables on top of
// the loaded configuration. Values that fail to parse are ignored and
// the prior value is kept.
func applyEnvOverrides(cfg *Config) {
	envInt("CONNPOOL_CAPACITY", &cfg.Pool.Capacity)
	envDuration("CONNPOOL_ACQUIRE_TIMEOUT", &cfg.Pool.AcquireTimeout)

	envDuration("CONNPOOL_DIAL_LATENCY", &cfg.Factory.DialLatency)
	envInt("CONNPOOL_FAIL_EVERY", &cfg.Factory.FailEvery)

	envInt("CONNPOOL_WORKERS", &cfg.Workload.Workers)
	envInt("CONNPOOL_OPS_PER_WORKER", &cfg.Workload.OpsPerWorker)
	envDuration("CONNPOOL_HOLD_TIME", &cfg.Workload.HoldTime)
	envDuration("CONNPOOL_THINK_TIME", &cfg.Workload.ThinkTime)
	envFloat("CONNPOOL_RATE", &cfg.Workload.Rate)

	envBool("CONNPOOL_REPORT_ENABLED", &cfg.Report.Enabled)
	envDuration("CONNPOOL_REPORT_INTERVAL", &cfg.Report.Interval)

	envBool("CONNPOOL_METRICS_ENABLED", &cfg.Metrics.Enabled)
	envString("CONNPOOL_METRICS_LISTEN", &cfg.Metrics.Listen)

	envBool("CONNPOOL_RETRY", &cfg.Resilience.Retry)
	envInt("CONNPOOL_MAX_ATTEMPTS", &cfg.Resilience.MaxAttempts)
	envBool("CONNPOOL_BREAKER_ENABLED", &cfg.Resilience.BreakerEnabled)
	envInt("CONNPOOL_BREAKER_THRESHOLD", &cfg.Resilience.BreakerThreshold)
	envDuration("CONNPOOL_BREAKER_COOLDOWN", &cfg.Resilience.BreakerCooldown)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// SaveConfig writes the configuration to a TOML file.
// It creates the parent directory if it doesn't exist.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Pool.Capacity < 1 {
		return errors.New("pool.capacity must be at least 1")
	}
	if c.Pool.AcquireTimeout < 0 {
		return errors.New("pool.acquire_timeout must not be negative")
	}
	if c.Factory.DialLatency < 0 {
		return errors.New("factory.dial_latency must not be negative")
	}
	if c.Factory.FailEvery < 0 {
		return errors.New("factory.fail_every must not be negative")
	}
	if c.Workload.Workers < 1 {
		return errors.New("workload.workers must be at least 1")
	}
	if c.Workload.OpsPerWorker < 1 {
		return errors.New("workload.ops_per_worker must be at least 1")
	}
	if c.Workload.HoldTime < 0 {
		return errors.New("workload.hold_time must not be negative")
	}
	if c.Workload.ThinkTime < 0 {
		return errors.New("workload.think_time must not be negative")
	}
	if c.Workload.Rate < 0 {
		return errors.New("workload.rate must not be negative")
	}
	if c.Report.Enabled && c.Report.Interval <= 0 {
		return errors.New("report.interval must be positive")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.New("metrics.listen is required")
	}
	if c.Resilience.Retry && c.Resilience.MaxAttempts < 1 {
		return errors.New("resilience.max_attempts must be at least 1")
	}
	if c.Resilience.BreakerEnabled && c.Resilience.BreakerThreshold < 1 {
		return errors.New("resilience.breaker_threshold must be at least 1")
	}
	if c.Resilience.BreakerEnabled && c.Resilience.BreakerCooldown <= 0 {
		return errors.New("resilience.breaker_cooldown must be positive")
	}
	return nil
}
