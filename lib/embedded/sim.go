package embedded

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-i2p/connpool/lib/core"
	"github.com/go-i2p/connpool/lib/pool"
	"github.com/go-i2p/connpool/lib/workload"
	"github.com/go-i2p/connpool/version"
)

// State represents the simulation lifecycle state.
type State string

const (
	// StateInitial is the state before Start is called.
	StateInitial State = "initial"
	// StateStarting means the simulation is initializing.
	StateStarting State = "starting"
	// StateRunning means the simulation is fully operational.
	StateRunning State = "running"
	// StateStopping means the simulation is shutting down.
	StateStopping State = "stopping"
	// StateStopped means the simulation has been stopped.
	StateStopped State = "stopped"
)

// Status contains current simulation status information.
type Status struct {
	// State is the current simulation lifecycle state.
	State State
	// Capacity is the configured pool capacity.
	Capacity int
	// Workers is the configured number of producers.
	Workers int
	// Alive is the number of connections created so far.
	Alive int
	// Idle is the number of connections parked in the pool.
	Idle int
	// InUse is the number of connections currently held by producers.
	InUse int
	// WorkloadFinished reports whether all producers have completed.
	WorkloadFinished bool
	// Completed is the number of operations that finished successfully.
	Completed uint64
	// Failed is the number of operations that failed.
	Failed uint64
	// Uptime is how long the simulation has been running.
	Uptime time.Duration
	// StartedAt is when the simulation was started.
	StartedAt time.Time
	// Version is the software version.
	Version string
}

// Simulation is the main embedded simulation controller.
// It provides a high-level API for lifecycle control and observation.
type Simulation struct {
	mu sync.RWMutex

	config    Config
	sim       *core.Simulator
	state     State
	emitter   *eventEmitter
	done      chan struct{}
	startedAt time.Time

	// Context for the simulation's lifetime
	ctx    context.Context
	cancel context.CancelFunc

	// monitorWG tracks the monitor goroutine across start/stop cycles
	monitorWG sync.WaitGroup
}

// New creates a new embedded simulation instance with the given configuration.
// The simulation is not started until Start() is called.
func New(cfg Config) (*Simulation, error) {
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Debug("simulation configuration validation failed")
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log.WithField("capacity", cfg.Capacity).WithField("workers", cfg.Workers).Debug("simulation instance created")
	return &Simulation{
		config:  cfg,
		state:   StateInitial,
		emitter: newEventEmitter(cfg.EventBufferSize),
		done:    make(chan struct{}),
	}, nil
}

// NewWithOptions creates a simulation with functional options.
// This is an alternative to New(Config{...}) for more ergonomic usage.
func NewWithOptions(opts ...Option) (*Simulation, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg)
}

// Start builds and launches the simulation.
// This includes:
//   - Creating the connection pool and its factory
//   - Launching the producer workload
//   - Starting the stats reporter, which feeds EventSample events
//   - Starting the metrics endpoint if enabled
//
// The context is adopted for the simulation's lifetime: cancelling it
// shuts the simulation down as if Stop had been called, and Done is
// closed once teardown completes.
func (s *Simulation) Start(ctx context.Context) error {
	log.WithField("capacity", s.config.Capacity).Info("starting simulation")
	s.mu.Lock()
	if s.state != StateInitial && s.state != StateStopped {
		s.mu.Unlock()
		log.WithField("state", s.state).Warn("cannot start simulation in current state")
		return fmt.Errorf("cannot start simulation in state %s", s.state)
	}
	oldState := s.state
	s.state = StateStarting
	s.done = make(chan struct{})
	s.mu.Unlock()

	log.WithField("oldState", oldState).WithField("newState", StateStarting).Debug("simulation state transition")
	s.emitter.emitStateChange(oldState, StateStarting, "simulation starting")

	// Derive the simulation's lifetime context from the caller's
	simCtx, cancel := context.WithCancel(ctx)

	// Convert embedded config to core config
	coreConfig := s.config.toCoreConfig()

	log.Debug("creating core simulator")
	sim, err := core.NewSimulator(coreConfig, s.config.Logger)
	if err != nil {
		cancel()
		log.WithError(err).Error("failed to create core simulator")
		s.transitionTo(StateStopped)
		s.emitter.emitError(err, "Failed to create simulator")
		return fmt.Errorf("failed to create simulator: %w", err)
	}

	if s.config.Output != nil {
		sim.SetOutput(s.config.Output)
	}
	sim.SetOnError(func(err error, message string) {
		s.emitter.emitError(err, message)
	})
	sim.SetOnSample(func(stats pool.Stats) {
		s.emitter.emitSample(stats, "pool sample")
	})
	sim.SetOnStateChange(func(oldState, newState core.SimState) {
		log.WithField("oldState", oldState).WithField("newState", newState).Debug("core simulator state transition")
	})

	log.Debug("starting core simulator")
	if err := sim.Start(simCtx); err != nil {
		cancel()
		log.WithError(err).Error("failed to start core simulator")
		s.transitionTo(StateStopped)
		s.emitter.emitError(err, "Failed to start simulator")
		return fmt.Errorf("failed to start simulator: %w", err)
	}

	s.mu.Lock()
	s.sim = sim
	s.ctx = simCtx
	s.cancel = cancel
	s.state = StateRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	log.WithField("oldState", StateStarting).WithField("newState", StateRunning).Debug("simulation state transition")
	s.emitter.emitStateChange(StateStarting, StateRunning, "simulation started")
	s.emitter.emitSimple(EventStarted, "simulation is now running")

	// Watch the workload and core simulator in the background
	s.monitorWG.Add(1)
	go s.monitor(sim)

	log.WithField("capacity", s.config.Capacity).Info("simulation started successfully")
	return nil
}

// Stop gracefully shuts down the simulation.
// It drains the pool, stops the reporter and metrics endpoint, and
// emits the final lifecycle events. The context controls the shutdown
// timeout.
func (s *Simulation) Stop(ctx context.Context) error {
	log.Info("stopping simulation")
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		log.WithField("state", s.state).Warn("cannot stop simulation in current state")
		return fmt.Errorf("cannot stop simulation in state %s", s.state)
	}
	s.state = StateStopping
	sim := s.sim
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	log.WithField("oldState", StateRunning).WithField("newState", StateStopping).Debug("simulation state transition")
	s.emitter.emitStateChange(StateRunning, StateStopping, "simulation stopping")

	// Stop the core simulator
	var err error
	if sim != nil {
		log.Debug("stopping core simulator")
		err = sim.Stop(ctx)
		if err != nil {
			log.WithError(err).Warn("error stopping core simulator")
		}
	}

	// Release the lifetime context
	if cancel != nil {
		cancel()
	}

	// Let the monitor finish its bookkeeping so the workload outcome
	// event precedes the stopped event.
	if err == nil {
		s.monitorWG.Wait()
	}

	s.transitionTo(StateStopped)
	log.WithField("oldState", StateStopping).WithField("newState", StateStopped).Debug("simulation state transition")
	s.emitter.emitStateChange(StateStopping, StateStopped, "simulation stopped")
	s.emitter.emitSimple(EventStopped, "simulation has stopped")

	// Close the done channel
	close(done)

	log.Info("simulation stopped")
	return err
}

// Close is an alias for Stop with a default 30-second timeout.
// Suitable for use with defer. The event channel is closed once the
// simulation is down.
func (s *Simulation) Close() error {
	log.Debug("closing simulation")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// If not running, just clean up
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	var err error
	if state != StateInitial && state != StateStopped {
		err = s.Stop(ctx)
	}

	s.monitorWG.Wait()
	s.emitter.close()
	log.Debug("simulation closed")
	return err
}

// Status returns current simulation status.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		State:    s.state,
		Capacity: s.config.Capacity,
		Workers:  s.config.Workers,
		Version:  version.Version,
	}

	if !s.startedAt.IsZero() {
		status.StartedAt = s.startedAt
		status.Uptime = time.Since(s.startedAt)
	}

	// Get info from the core simulator if available
	if s.sim != nil {
		stats := s.sim.Stats()
		status.Alive = stats.Alive
		status.Idle = stats.Idle
		status.InUse = stats.InUse

		select {
		case <-s.sim.WorkloadDone():
			status.WorkloadFinished = true
			res, _ := s.sim.Result()
			status.Completed = res.Completed
			status.Failed = res.Failed
		default:
		}
	}

	return status
}

// State returns the current simulation state.
func (s *Simulation) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Events returns a channel that receives simulation events.
// The channel is buffered and may drop events if not consumed.
// Use DroppedEventCount() to check if events have been dropped.
// Close the simulation to close this channel.
func (s *Simulation) Events() <-chan Event {
	return s.emitter.channel()
}

// DroppedEventCount returns the total number of events dropped due to a full buffer.
// If this value is non-zero, the event consumer is not keeping up with event emission.
func (s *Simulation) DroppedEventCount() uint64 {
	return s.emitter.droppedEvents()
}

// Done returns a channel that is closed when the simulation stops.
func (s *Simulation) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// WorkloadDone returns a channel that is closed when all producers have
// completed. The simulation keeps running after that so the final pool
// state can be inspected; call Stop to shut it down. Returns nil before
// Start; a nil channel never becomes ready.
func (s *Simulation) WorkloadDone() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sim == nil {
		return nil
	}
	return s.sim.WorkloadDone()
}

// Result returns the workload outcome. The counts are zero until the
// workload has finished; the error reports why it ended early, if it did.
func (s *Simulation) Result() (workload.Result, error) {
	s.mu.RLock()
	sim := s.sim
	s.mu.RUnlock()

	if sim == nil {
		return workload.Result{}, nil
	}
	return sim.Result()
}

// Stats returns a snapshot of the pool statistics.
// Returns the zero value if the simulation has not started.
func (s *Simulation) Stats() pool.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.sim == nil {
		return pool.Stats{}
	}
	return s.sim.Stats()
}

// Config returns the simulation configuration (read-only copy).
func (s *Simulation) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Simulator returns the underlying core.Simulator for advanced operations.
// Returns nil if the simulation is not started.
// Use with caution - direct manipulation may cause unexpected behavior.
func (s *Simulation) Simulator() *core.Simulator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sim
}

// transitionTo changes the simulation state.
func (s *Simulation) transitionTo(newState State) {
	s.mu.Lock()
	oldState := s.state
	s.state = newState
	s.mu.Unlock()
	log.WithField("oldState", oldState).WithField("newState", newState).Debug("simulation state transition")
}

// monitor watches the core simulator and emits events.
func (s *Simulation) monitor(sim *core.Simulator) {
	defer s.monitorWG.Done()
	log.Debug("simulation monitor started")

	// The workload always finishes before the simulator stops, whether
	// it ran to completion or was interrupted by shutdown.
	<-sim.WorkloadDone()
	res, err := sim.Result()
	if err != nil {
		log.WithError(err).Debug("workload ended early")
		s.emitter.emit(Event{
			Type:    EventWorkloadFinished,
			Error:   err,
			Message: fmt.Sprintf("workload interrupted: %d operations completed, %d failed", res.Completed, res.Failed),
			Data:    res,
		})
	} else {
		s.emitter.emit(Event{
			Type:    EventWorkloadFinished,
			Message: fmt.Sprintf("workload finished: %d operations completed, %d failed", res.Completed, res.Failed),
			Data:    res,
		})
	}

	<-sim.Done()

	// If the lifetime context ended the run, Stop was never called and
	// the lifecycle bookkeeping happens here.
	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateStopped
		done := s.done
		s.mu.Unlock()
		log.WithField("oldState", StateRunning).WithField("newState", StateStopped).Debug("simulation state transition")
		s.emitter.emitStateChange(StateRunning, StateStopped, "simulation stopped")
		s.emitter.emitSimple(EventStopped, "simulation stopped before Stop was called")
		close(done)
	} else {
		s.mu.Unlock()
	}
	log.Debug("simulation monitor stopped")
}
