package workload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/go-i2p/connpool/lib/metrics"
	"github.com/go-i2p/connpool/lib/pool"
)

// Config controls the simulated workload.
type Config struct {
	// Workers is the number of concurrent clients.
	Workers int
	// OpsPerWorker is how many acquire/use/release cycles each client runs.
	OpsPerWorker int
	// HoldTime is how long a client keeps a connection per operation.
	HoldTime time.Duration
	// ThinkTime is the pause between a client's operations.
	ThinkTime time.Duration
	// Rate caps operations per second across all workers. Zero disables.
	Rate float64
}

// Validate checks the workload configuration.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return errors.New("workload: workers must be positive")
	}
	if c.OpsPerWorker <= 0 {
		return errors.New("workload: ops per worker must be positive")
	}
	if c.HoldTime < 0 {
		return errors.New("workload: hold time must not be negative")
	}
	if c.ThinkTime < 0 {
		return errors.New("workload: think time must not be negative")
	}
	if c.Rate < 0 {
		return errors.New("workload: rate must not be negative")
	}
	return nil
}

// Result summarizes a completed workload run.
type Result struct {
	// Completed is the number of operations that finished.
	Completed uint64
	// Failed is the number of operations that could not get a connection.
	Failed uint64
	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// Runner drives a fixed number of workers through acquire/use/release
// cycles against a pool. Each operation acquires a connection, executes
// a simulated statement on it for HoldTime, releases it, and pauses for
// ThinkTime before the next one.
type Runner struct {
	pool    *pool.Pool
	config  Config
	logger  *slog.Logger
	limiter *rate.Limiter

	completed uint64
	failed    uint64
}

// NewRunner creates a workload runner for the given pool.
func NewRunner(p *pool.Pool, cfg Config, logger *slog.Logger) (*Runner, error) {
	if p == nil {
		return nil, errors.New("workload: pool is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		pool:   p,
		config: cfg,
		logger: logger.With("component", "workload"),
	}
	if cfg.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	return r, nil
}

// Run executes the configured workload and blocks until every worker
// has finished or ctx is cancelled. Run may be called once per Runner.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	r.logger.Info("workload starting",
		"workers", r.config.Workers,
		"ops_per_worker", r.config.OpsPerWorker)

	g, ctx := errgroup.WithContext(ctx)
	for w := 1; w <= r.config.Workers; w++ {
		worker := w
		g.Go(func() error {
			return r.work(ctx, worker)
		})
	}
	err := g.Wait()

	res := Result{
		Completed: atomic.LoadUint64(&r.completed),
		Failed:    atomic.LoadUint64(&r.failed),
		Elapsed:   time.Since(start),
	}
	r.logger.Info("workload finished",
		"completed", res.Completed,
		"failed", res.Failed,
		"elapsed", res.Elapsed)
	return res, err
}

// work runs one worker's share of the workload.
func (r *Runner) work(ctx context.Context, worker int) error {
	for op := 1; op <= r.config.OpsPerWorker; op++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		if err := r.do(ctx, worker, op); err != nil {
			// Cancellation and pool shutdown stop the worker; anything
			// else is counted and the worker moves on.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pool.ErrPoolClosed) {
				return err
			}
			atomic.AddUint64(&r.failed, 1)
			OpsFailed.Inc()
			r.logger.Warn("operation failed", "worker", worker, "op", op, "error", err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		atomic.AddUint64(&r.completed, 1)
		OpsCompleted.Inc()

		if err := sleep(ctx, r.config.ThinkTime); err != nil {
			return err
		}
	}
	return nil
}

// do performs a single acquire/use/release cycle. The lease is
// released even when the simulated statement is cut short, so a
// cancelled run still drains to zero connections in use.
func (r *Runner) do(ctx context.Context, worker, op int) error {
	timer := metrics.NewTimer(pool.PoolAcquireLatency)
	lease, err := r.pool.Acquire(ctx)
	timer.ObserveDuration()

	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}

	conn := lease.Resource().(*Conn)
	execErr := conn.Exec(ctx, fmt.Sprintf("worker %d op %d", worker, op), r.config.HoldTime)

	if err := r.pool.Release(lease); err != nil {
		return fmt.Errorf("release connection: %w", err)
	}
	return execErr
}
