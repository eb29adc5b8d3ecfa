package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-i2p/connpool/lib/metrics"
	"github.com/go-i2p/connpool/lib/monitor"
	"github.com/go-i2p/connpool/lib/pool"
	"github.com/go-i2p/connpool/lib/resilience"
	"github.com/go-i2p/connpool/lib/web"
	"github.com/go-i2p/connpool/lib/workload"
)

// SimState represents the current state of the simulator.
type SimState int

const (
	// StateInitial is the initial state before Start is called.
	StateInitial SimState = iota
	// StateStarting means the simulator is in the process of starting.
	StateStarting
	// StateRunning means the simulator is fully operational.
	StateRunning
	// StateStopping means the simulator is shutting down.
	StateStopping
	// StateStopped means the simulator has been stopped.
	StateStopped
)

func (s SimState) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Simulator is the main orchestrator for a pool simulation run. It
// builds the connection factory with the configured resilience
// wrappers, creates the pool, drives the workload against it, and
// runs the stats reporter and diagnostics server alongside.
type Simulator struct {
	mu     sync.RWMutex
	config *Config
	logger *slog.Logger
	state  SimState

	pool     *pool.Pool
	runner   *workload.Runner
	reporter *monitor.Reporter
	web      *web.Server

	// out receives per-connection activity lines
	out io.Writer

	// cancel is used to signal shutdown to all goroutines
	cancel context.CancelFunc
	// done signals that the simulator has fully stopped
	done chan struct{}
	// workloadDone signals that the workload has finished
	workloadDone chan struct{}

	// startedAt tracks when the simulator started
	startedAt time.Time

	// outcome of the workload, valid once workloadDone is closed
	result workload.Result
	runErr error

	// Event callbacks for embedding integration
	onStateChange func(oldState, newState SimState)
	onError       func(err error, message string)
	onSample      func(stats pool.Stats)
}

// NewSimulator creates a new Simulator with the given configuration.
// The simulator is not started until Start() is called.
func NewSimulator(cfg *Config, logger *slog.Logger) (*Simulator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Simulator{
		config:       cfg,
		logger:       logger.With("component", "simulator"),
		state:        StateInitial,
		out:          io.Discard,
		done:         make(chan struct{}),
		workloadDone: make(chan struct{}),
	}, nil
}

// SetOutput directs per-connection activity lines to w. Must be called
// before Start; the default discards them.
func (s *Simulator) SetOutput(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w == nil {
		w = io.Discard
	}
	s.out = w
}

// Start builds all components and launches the workload.
// This includes:
//   - Assembling the factory with retry and circuit breaker wrappers
//   - Creating the pool
//   - Starting the stats reporter if enabled
//   - Starting the diagnostics server if enabled
//
// Start returns once the workload is launched; use WorkloadDone to
// wait for it and Stop to shut everything down.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateInitial && s.state != StateStopped {
		s.mu.Unlock()
		return fmt.Errorf("cannot start simulator in state %s", s.state)
	}
	oldState := s.state
	s.state = StateStarting
	s.done = make(chan struct{})
	s.workloadDone = make(chan struct{})
	s.mu.Unlock()

	s.emitStateChange(oldState, StateStarting)

	// Create a cancellable context for the simulator's lifetime
	simCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.logger.Info("starting simulator",
		"capacity", s.config.Pool.Capacity,
		"workers", s.config.Workload.Workers,
	)

	if err := s.buildComponents(simCtx); err != nil {
		cancel()
		s.transitionToStopped()
		s.emitError(err, "failed to build components")
		return err
	}

	s.mu.Lock()
	s.state = StateRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	metrics.RecordStartTime()
	s.emitStateChange(StateStarting, StateRunning)
	s.logger.Info("simulator started")

	// Start the main run loop in a goroutine
	go s.run(simCtx)

	return nil
}

// buildComponents assembles the factory chain, pool, reporter, and
// diagnostics server according to the configuration.
func (s *Simulator) buildComponents(ctx context.Context) error {
	sink := workload.NewSyncWriter(s.out)

	factory := workload.ConnFactory(workload.FactoryConfig{
		DialLatency: s.config.Factory.DialLatency,
		FailEvery:   s.config.Factory.FailEvery,
		Out:         sink,
	})

	if s.config.Resilience.Retry {
		retryCfg := resilience.DefaultRetryConfig()
		retryCfg.MaxAttempts = s.config.Resilience.MaxAttempts
		factory = resilience.RetryFactory(factory, retryCfg)
	}

	// The breaker wraps the retrying factory so transient failures
	// absorbed by retries never count against the threshold.
	if s.config.Resilience.BreakerEnabled {
		cb := resilience.NewMetricsCircuitBreaker("factory", resilience.CircuitBreakerConfig{
			FailureThreshold: s.config.Resilience.BreakerThreshold,
			Cooldown:         s.config.Resilience.BreakerCooldown,
		})
		factory = resilience.GuardFactory(cb.CircuitBreaker, factory)
	}

	p, err := pool.New(factory, pool.Config{
		Capacity:       s.config.Pool.Capacity,
		AcquireTimeout: s.config.Pool.AcquireTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating pool: %w", err)
	}
	s.pool = p

	runner, err := workload.NewRunner(p, workload.Config{
		Workers:      s.config.Workload.Workers,
		OpsPerWorker: s.config.Workload.OpsPerWorker,
		HoldTime:     s.config.Workload.HoldTime,
		ThinkTime:    s.config.Workload.ThinkTime,
		Rate:         s.config.Workload.Rate,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("creating workload: %w", err)
	}
	s.runner = runner

	if s.config.Report.Enabled {
		s.mu.RLock()
		onSample := s.onSample
		s.mu.RUnlock()

		reporter, err := monitor.NewReporter(p, monitor.Config{
			Interval: s.config.Report.Interval,
			Logger:   s.logger,
			OnSample: onSample,
		})
		if err != nil {
			return fmt.Errorf("creating reporter: %w", err)
		}
		if err := reporter.Start(ctx); err != nil {
			return fmt.Errorf("starting reporter: %w", err)
		}
		s.reporter = reporter
	}

	if s.config.Metrics.Enabled {
		server, err := web.New(web.Config{
			ListenAddr: s.config.Metrics.Listen,
			Pool:       p,
			Reporter:   s.reporter,
			Logger:     s.logger,
		})
		if err != nil {
			s.stopReporter()
			return fmt.Errorf("creating diagnostics server: %w", err)
		}
		if err := server.Start(); err != nil {
			s.stopReporter()
			return fmt.Errorf("starting diagnostics server: %w", err)
		}
		s.web = server
	}

	return nil
}

// run drives the workload, then waits for shutdown.
func (s *Simulator) run(ctx context.Context) {
	defer close(s.done)

	res, err := s.runner.Run(ctx)

	s.mu.Lock()
	s.result = res
	s.runErr = err
	s.mu.Unlock()
	close(s.workloadDone)

	if err != nil && !errors.Is(err, context.Canceled) {
		s.emitError(err, "workload ended early")
	}

	// Keep the reporter and diagnostics server up until shutdown so
	// the final pool state can be inspected.
	<-ctx.Done()

	s.logger.Info("simulator shutting down")

	s.teardown()

	s.mu.Lock()
	oldState := s.state
	s.state = StateStopped
	s.mu.Unlock()

	s.emitStateChange(oldState, StateStopped)
}

// teardown stops the diagnostics server and reporter, then closes the
// pool. The reporter stops before the pool closes so its final sample
// sees the drained pool.
func (s *Simulator) teardown() {
	if s.web != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.web.Stop(shutdownCtx); err != nil {
			s.logger.Error("failed to stop diagnostics server", "error", err)
		}
		cancel()
	}

	s.stopReporter()

	if err := s.pool.Close(); err != nil {
		s.logger.Error("failed to close pool", "error", err)
	}
}

func (s *Simulator) stopReporter() {
	if s.reporter != nil {
		s.reporter.Stop()
	}
}

// Stop gracefully shuts down the simulator.
// It blocks until all components have stopped or the context is cancelled.
func (s *Simulator) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return fmt.Errorf("cannot stop simulator in state %s", s.state)
	}
	s.state = StateStopping
	cancel := s.cancel
	s.mu.Unlock()

	s.emitStateChange(StateRunning, StateStopping)
	s.logger.Info("stopping simulator")

	// Signal all goroutines to stop
	if cancel != nil {
		cancel()
	}

	// Wait for the run loop to finish or timeout
	select {
	case <-s.done:
		s.logger.Info("simulator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transitionToStopped updates the state to stopped.
func (s *Simulator) transitionToStopped() {
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
}

// State returns the current state of the simulator.
func (s *Simulator) State() SimState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Config returns the simulator's configuration.
func (s *Simulator) Config() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Done returns a channel that is closed when the simulator has stopped.
func (s *Simulator) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// WorkloadDone returns a channel that is closed when the workload has
// finished. The simulator keeps running until Stop is called.
func (s *Simulator) WorkloadDone() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workloadDone
}

// Result returns the workload outcome. It is valid once WorkloadDone
// is closed; the error reports why the workload ended early, if it did.
func (s *Simulator) Result() (workload.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.runErr
}

// Stats returns a snapshot of the pool statistics. Before Start it
// returns the zero value.
func (s *Simulator) Stats() pool.Stats {
	s.mu.RLock()
	p := s.pool
	s.mu.RUnlock()

	if p == nil {
		return pool.Stats{}
	}
	return p.Stats()
}

// DiagnosticsAddr returns the bound address of the diagnostics server,
// or "" when it is not running.
func (s *Simulator) DiagnosticsAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.web == nil {
		return ""
	}
	return s.web.Addr()
}

// StartedAt returns when the simulator was started.
// Returns zero time if not started.
func (s *Simulator) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// Uptime returns how long the simulator has been running.
// Returns zero if not running.
func (s *Simulator) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startedAt.IsZero() || s.state != StateRunning {
		return 0
	}
	return time.Since(s.startedAt)
}

// SetOnStateChange sets a callback for state changes.
// The callback is invoked synchronously during state transitions.
func (s *Simulator) SetOnStateChange(callback func(oldState, newState SimState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = callback
}

// SetOnError sets a callback for error events.
// The callback is invoked when recoverable errors occur.
func (s *Simulator) SetOnError(callback func(err error, message string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = callback
}

// SetOnSample sets a callback for reporter samples. The callback is
// invoked from the reporter goroutine with each pool snapshot; it only
// fires when reporting is enabled in the configuration. Set it before
// calling Start.
func (s *Simulator) SetOnSample(callback func(stats pool.Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSample = callback
}

// emitStateChange notifies the state change callback if set.
func (s *Simulator) emitStateChange(oldState, newState SimState) {
	s.mu.RLock()
	callback := s.onStateChange
	s.mu.RUnlock()

	if callback != nil {
		callback(oldState, newState)
	}
}

// emitError notifies the error callback if set.
func (s *Simulator) emitError(err error, message string) {
	s.mu.RLock()
	callback := s.onError
	s.mu.RUnlock()

	if callback != nil {
		callback(err, message)
	}
}
