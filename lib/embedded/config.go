// Package embedded provides an embeddable connpool simulation API for third-party applications.
package embedded

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/go-i2p/connpool/lib/core"
)

// Default configuration values for embedded simulations.
const (
	DefaultMetricsListen   = "127.0.0.1:9090"
	DefaultEventBufferSize = 100
)

// Config configures an embedded simulation instance.
// Fields with zero values use sensible defaults.
type Config struct {
	// Capacity is the maximum number of connections the pool may create.
	// Default: 5
	Capacity int

	// AcquireTimeout bounds how long a producer waits for a connection.
	// Zero means producers block until one becomes available.
	AcquireTimeout time.Duration

	// Workers is the number of concurrent producers driving the pool.
	// Default: 12
	Workers int

	// OpsPerWorker is how many operations each producer performs.
	// Default: 5
	OpsPerWorker int

	// DialLatency is the simulated cost of opening one connection.
	// Default: 30ms
	DialLatency time.Duration

	// FailEvery makes every Nth connection attempt fail.
	// Zero disables fault injection.
	FailEvery int

	// HoldTime is how long a producer holds a connection per operation.
	// Default: 20ms
	HoldTime time.Duration

	// ThinkTime is the pause between operations after release.
	// Default: 50ms
	ThinkTime time.Duration

	// Rate caps operations per second across all producers.
	// Zero disables pacing.
	Rate float64

	// ReportInterval is how often pool statistics are sampled.
	// Each sample is delivered to consumers as an EventSample.
	// Default: 100ms
	ReportInterval time.Duration

	// Logger for simulation operations.
	// Default: slog.Default()
	Logger *slog.Logger

	// Output receives one line per connection operation.
	// Default: nil (activity lines are discarded)
	Output io.Writer

	// EnableMetrics serves the Prometheus text endpoint while running.
	// Default: false (embedded apps typically read Status directly)
	EnableMetrics bool

	// MetricsListen is the address for the metrics server if enabled.
	// Default: "127.0.0.1:9090"
	MetricsListen string

	// EnableRetry retries failed connection attempts with backoff.
	// Default: false
	EnableRetry bool

	// MaxAttempts bounds creation attempts per acquire when retrying.
	// Default: 3
	MaxAttempts int

	// EnableBreaker guards the connection factory with a circuit breaker.
	// Default: false
	EnableBreaker bool

	// BreakerThreshold is the consecutive failure count that opens the breaker.
	// Default: 5
	BreakerThreshold int

	// BreakerCooldown is how long the breaker stays open before probing.
	// Default: 2s
	BreakerCooldown time.Duration

	// EventBufferSize is the size of the event channel buffer.
	// Default: 100
	EventBufferSize int
}

// Option is a functional option for configuring a Simulation.
type Option func(*Config)

// WithCapacity sets the pool capacity.
func WithCapacity(capacity int) Option {
	return func(c *Config) {
		c.Capacity = capacity
	}
}

// WithAcquireTimeout bounds how long producers wait for a connection.
func WithAcquireTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.AcquireTimeout = timeout
	}
}

// WithWorkers sets the number of concurrent producers.
func WithWorkers(workers int) Option {
	return func(c *Config) {
		c.Workers = workers
	}
}

// WithOpsPerWorker sets how many operations each producer performs.
func WithOpsPerWorker(ops int) Option {
	return func(c *Config) {
		c.OpsPerWorker = ops
	}
}

// WithDialLatency sets the simulated connection creation cost.
func WithDialLatency(latency time.Duration) Option {
	return func(c *Config) {
		c.DialLatency = latency
	}
}

// WithFailEvery makes every Nth connection attempt fail.
func WithFailEvery(n int) Option {
	return func(c *Config) {
		c.FailEvery = n
	}
}

// WithHoldTime sets how long producers hold a connection per operation.
func WithHoldTime(hold time.Duration) Option {
	return func(c *Config) {
		c.HoldTime = hold
	}
}

// WithThinkTime sets the pause between operations.
func WithThinkTime(think time.Duration) Option {
	return func(c *Config) {
		c.ThinkTime = think
	}
}

// WithRate caps operations per second across all producers.
// A rate of zero disables pacing.
func WithRate(rate float64) Option {
	return func(c *Config) {
		c.Rate = rate
	}
}

// WithReportInterval sets the statistics sampling interval.
func WithReportInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.ReportInterval = interval
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithOutput directs per-connection activity lines to w.
func WithOutput(w io.Writer) Option {
	return func(c *Config) {
		c.Output = w
	}
}

// WithMetrics enables the metrics endpoint.
func WithMetrics(enabled bool, listenAddr string) Option {
	return func(c *Config) {
		c.EnableMetrics = enabled
		if listenAddr != "" {
			c.MetricsListen = listenAddr
		}
	}
}

// WithRetry enables retrying failed connection attempts.
func WithRetry(enabled bool, maxAttempts int) Option {
	return func(c *Config) {
		c.EnableRetry = enabled
		if maxAttempts > 0 {
			c.MaxAttempts = maxAttempts
		}
	}
}

// WithBreaker enables the circuit breaker around the connection factory.
func WithBreaker(enabled bool, threshold int, cooldown time.Duration) Option {
	return func(c *Config) {
		c.EnableBreaker = enabled
		if threshold > 0 {
			c.BreakerThreshold = threshold
		}
		if cooldown > 0 {
			c.BreakerCooldown = cooldown
		}
	}
}

// WithEventBufferSize sets the event channel buffer size.
func WithEventBufferSize(size int) Option {
	return func(c *Config) {
		c.EventBufferSize = size
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:         core.DefaultCapacity,
		AcquireTimeout:   0,
		Workers:          core.DefaultWorkers,
		OpsPerWorker:     core.DefaultOpsPerWorker,
		DialLatency:      core.DefaultDialLatency,
		FailEvery:        0,
		HoldTime:         core.DefaultHoldTime,
		ThinkTime:        core.DefaultThinkTime,
		Rate:             0,
		ReportInterval:   core.DefaultReportInterval,
		Logger:           nil, // Will use slog.Default() if nil
		Output:           nil, // Activity lines are discarded if nil
		EnableMetrics:    false,
		MetricsListen:    DefaultMetricsListen,
		EnableRetry:      false,
		MaxAttempts:      core.DefaultMaxAttempts,
		EnableBreaker:    false,
		BreakerThreshold: core.DefaultBreakerThreshold,
		BreakerCooldown:  core.DefaultBreakerCooldown,
		EventBufferSize:  DefaultEventBufferSize,
	}
}

// applyDefaults fills in zero values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Capacity == 0 {
		c.Capacity = defaults.Capacity
	}
	if c.Workers == 0 {
		c.Workers = defaults.Workers
	}
	if c.OpsPerWorker == 0 {
		c.OpsPerWorker = defaults.OpsPerWorker
	}
	if c.DialLatency == 0 {
		c.DialLatency = defaults.DialLatency
	}
	if c.HoldTime == 0 {
		c.HoldTime = defaults.HoldTime
	}
	if c.ThinkTime == 0 {
		c.ThinkTime = defaults.ThinkTime
	}
	if c.ReportInterval == 0 {
		c.ReportInterval = defaults.ReportInterval
	}
	if c.MetricsListen == "" {
		c.MetricsListen = defaults.MetricsListen
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.BreakerThreshold == 0 {
		c.BreakerThreshold = defaults.BreakerThreshold
	}
	if c.BreakerCooldown == 0 {
		c.BreakerCooldown = defaults.BreakerCooldown
	}
	if c.EventBufferSize == 0 {
		c.EventBufferSize = defaults.EventBufferSize
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Capacity < 1 {
		return errors.New("capacity must be at least 1")
	}
	if c.AcquireTimeout < 0 {
		return errors.New("acquire timeout must not be negative")
	}
	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if c.OpsPerWorker < 1 {
		return errors.New("ops per worker must be at least 1")
	}
	if c.DialLatency < 0 {
		return errors.New("dial latency must not be negative")
	}
	if c.FailEvery < 0 {
		return errors.New("fail every must not be negative")
	}
	if c.HoldTime < 0 {
		return errors.New("hold time must not be negative")
	}
	if c.ThinkTime < 0 {
		return errors.New("think time must not be negative")
	}
	if c.Rate < 0 {
		return errors.New("rate must not be negative")
	}
	if c.ReportInterval <= 0 {
		return errors.New("report interval must be positive")
	}
	if c.EnableMetrics && c.MetricsListen == "" {
		return errors.New("metrics listen address is required")
	}
	if c.EnableRetry && c.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if c.EnableBreaker && c.BreakerThreshold < 1 {
		return errors.New("breaker threshold must be at least 1")
	}
	if c.EnableBreaker && c.BreakerCooldown <= 0 {
		return errors.New("breaker cooldown must be positive")
	}
	if c.EventBufferSize < 1 {
		return errors.New("event buffer size must be at least 1")
	}
	return nil
}

// toCoreConfig converts embedded.Config to core.Config.
// The reporter is always on in embedded mode; it drives the EventSample
// stream.
func (c *Config) toCoreConfig() *core.Config {
	return &core.Config{
		Pool: core.PoolConfig{
			Capacity:       c.Capacity,
			AcquireTimeout: c.AcquireTimeout,
		},
		Factory: core.FactoryConfig{
			DialLatency: c.DialLatency,
			FailEvery:   c.FailEvery,
		},
		Workload: core.WorkloadConfig{
			Workers:      c.Workers,
			OpsPerWorker: c.OpsPerWorker,
			HoldTime:     c.HoldTime,
			ThinkTime:    c.ThinkTime,
			Rate:         c.Rate,
		},
		Report: core.ReportConfig{
			Enabled:  true,
			Interval: c.ReportInterval,
		},
		Metrics: core.MetricsConfig{
			Enabled: c.EnableMetrics,
			Listen:  c.MetricsListen,
		},
		Resilience: core.ResilienceConfig{
			Retry:            c.EnableRetry,
			MaxAttempts:      c.MaxAttempts,
			BreakerEnabled:   c.EnableBreaker,
			BreakerThreshold: c.BreakerThreshold,
			BreakerCooldown:  c.BreakerCooldown,
		},
	}
}
