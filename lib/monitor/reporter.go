// Package monitor periodically samples pool statistics, refreshes the
// exported metrics, and checks the pool's slot accounting.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-i2p/connpool/lib/pool"
)

// Config configures the reporter.
type Config struct {
	// Interval is how often to sample pool statistics.
	Interval time.Duration
	// Logger receives one line per sample. Nil uses slog.Default.
	Logger *slog.Logger
	// OnSample is called with each sample after it is recorded.
	OnSample func(pool.Stats)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: time.Second,
	}
}

// Reporter samples a pool on a fixed interval. Each sample updates the
// exported gauges, logs the pool's occupancy, and verifies that the
// counts reported by the pool are consistent with each other.
type Reporter struct {
	mu     sync.RWMutex
	config Config
	pool   *pool.Pool
	logger *slog.Logger

	lastStats  pool.Stats
	samples    int
	violations int

	// Control
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewReporter creates a reporter for the given pool.
func NewReporter(p *pool.Pool, cfg Config) (*Reporter, error) {
	if p == nil {
		return nil, errors.New("monitor: pool is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reporter{
		config: cfg,
		pool:   p,
		logger: logger.With("component", "monitor"),
	}, nil
}

// Start begins periodic sampling.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	r.logger.Debug("starting pool monitor", "interval", r.config.Interval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.sampleLoop(ctx)
	}()

	return nil
}

// Stop halts sampling and records one final sample.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
	r.sample()
	r.logger.Debug("pool monitor stopped")
}

// LastStats returns the most recent sample.
func (r *Reporter) LastStats() pool.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastStats
}

// Samples returns how many samples have been taken.
func (r *Reporter) Samples() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.samples
}

// Violations returns how many samples showed inconsistent accounting.
func (r *Reporter) Violations() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.violations
}

// sampleLoop runs until ctx is done.
func (r *Reporter) sampleLoop(ctx context.Context) {
	// Initial sample
	r.sample()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sample()
		}
	}
}

// sample takes one statistics snapshot, refreshes the gauges, and
// checks the accounting. Stats is a single atomic snapshot, so in a
// correct pool InUse+Idle always equals Alive and Alive never exceeds
// Capacity.
func (r *Reporter) sample() {
	stats := r.pool.Stats()
	pool.UpdateMetrics(stats)
	SamplesTotal.Inc()

	r.logger.Info("pool sample",
		"in_use", stats.InUse,
		"idle", stats.Idle,
		"alive", stats.Alive,
		"capacity", stats.Capacity)

	if stats.InUse+stats.Idle != stats.Alive || stats.Alive > stats.Capacity || stats.InUse < 0 {
		InvariantViolations.Inc()
		r.logger.Error("pool accounting inconsistent",
			"in_use", stats.InUse,
			"idle", stats.Idle,
			"alive", stats.Alive,
			"capacity", stats.Capacity)
		r.mu.Lock()
		r.violations++
		r.mu.Unlock()
	}

	r.mu.Lock()
	r.lastStats = stats
	r.samples++
	r.mu.Unlock()

	if r.config.OnSample != nil {
		r.config.OnSample(stats)
	}
}
