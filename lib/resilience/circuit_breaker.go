// Package resilience hardens resource creation for the pool. It provides
// bounded retries with exponential backoff for transient dial failures,
// and a circuit breaker that fast-fails creation while the dialed backend
// (a database, a broker, a remote service) stays down.
//
// Both wrappers compose over pool.Factory, so the pool sees a single
// factory regardless of how many layers guard it.
package resilience

import (
	"sync"
	"time"
)

// CircuitState is the circuit breaker state.
type CircuitState int

const (
	// CircuitClosed lets creation attempts through; consecutive failures
	// count toward the threshold.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects creation attempts until the cooldown elapses.
	CircuitOpen
	// CircuitHalfOpen admits a limited number of probe attempts to test
	// whether the backend recovered.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes when the breaker opens and how it recovers.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	FailureThreshold int
	// SuccessThreshold is the number of successful probes that closes a
	// half-open circuit.
	SuccessThreshold int
	// Cooldown is how long an open circuit rejects attempts before
	// probing the backend again.
	Cooldown time.Duration
	// HalfOpenProbes caps the attempts admitted while half-open.
	HalfOpenProbes int
}

// DefaultCircuitBreakerConfig returns defaults suited to guarding a
// connection factory.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
		HalfOpenProbes:   3,
	}
}

// CircuitBreaker tracks factory health and rejects creation attempts
// while the backend is considered down. State moves from closed to open
// after a failure streak, from open to half-open once the cooldown
// elapses, and from half-open back to closed after enough successful
// probes. A probe failure reopens the circuit immediately.
//
// The zero value is not usable; construct with NewCircuitBreaker.
type CircuitBreaker struct {
	mu     sync.Mutex
	name   string
	config CircuitBreakerConfig

	state     CircuitState
	failures  int
	successes int
	probes    int
	openedAt  time.Time

	onStateChange func(from, to CircuitState)
}

// NewCircuitBreaker creates a breaker in the closed state. The name
// distinguishes breakers in logs when several are active. Non-positive
// config values fall back to the defaults.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = def.HalfOpenProbes
	}

	return &CircuitBreaker{
		name:   name,
		config: cfg,
		state:  CircuitClosed,
	}
}

// SetStateChangeCallback registers a callback invoked on every state
// transition. The callback runs with the breaker's lock held and must
// not call back into the breaker.
func (cb *CircuitBreaker) SetStateChangeCallback(fn func(from, to CircuitState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Allow reports whether a creation attempt may proceed, admitting it if
// so. An open circuit whose cooldown has elapsed flips to half-open and
// admits the attempt as a probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advance()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitHalfOpen:
		if cb.probes < cb.config.HalfOpenProbes {
			cb.probes++
			return true
		}
		return false
	default:
		return false
	}
}

// releaseProbe hands back a probe slot admitted by Allow when the
// attempt ended without a verdict on the backend, such as a cancelled
// caller. Otherwise cancelled probes could pin the circuit half-open
// with no admissions left.
func (cb *CircuitBreaker) releaseProbe() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitHalfOpen && cb.probes > 0 {
		cb.probes--
	}
}

// RecordSuccess notes a successful creation. In the closed state it
// resets the failure streak; enough successes close a half-open circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transition(CircuitClosed)
		}
	case CircuitOpen:
		log.WithField("circuit", cb.name).Warn("success recorded while circuit open")
	}
}

// RecordFailure notes a failed creation. In the closed state the streak
// counts toward the threshold; a probe failure reopens the circuit.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.transition(CircuitOpen)
	case CircuitOpen:
		// Already open, nothing to count.
	}
}

// State returns the current state, applying the timed open to half-open
// transition first.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.advance()
	return cb.state
}

// advance performs the timed open to half-open transition. Must be
// called with the lock held.
func (cb *CircuitBreaker) advance() {
	if cb.state == CircuitOpen && time.Since(cb.openedAt) >= cb.config.Cooldown {
		cb.transition(CircuitHalfOpen)
	}
}

// transition switches states and resets the counters the new state
// relies on. Must be called with the lock held.
func (cb *CircuitBreaker) transition(to CircuitState) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to

	switch to {
	case CircuitClosed:
		cb.failures = 0
		cb.successes = 0
	case CircuitOpen:
		cb.openedAt = time.Now()
		cb.successes = 0
	case CircuitHalfOpen:
		cb.successes = 0
		cb.probes = 0
	}

	log.WithField("circuit", cb.name).
		WithField("from", from.String()).
		WithField("to", to.String()).
		Info("circuit breaker state transition")

	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}
