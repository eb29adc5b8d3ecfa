package resilience

import (
	"github.com/go-i2p/connpool/lib/metrics"
)

// Circuit breaker metrics, exposed on the diagnostics endpoint.
var (
	// CircuitBreakerState reports the breaker state as a number.
	// 0 = closed, 1 = open, 2 = half-open
	CircuitBreakerState = metrics.NewGauge(
		"connpool_circuit_breaker_state",
		"Circuit breaker state (0=closed, 1=open, 2=half-open)",
	)

	// CircuitBreakerTrips counts closed-to-open transitions.
	CircuitBreakerTrips = metrics.NewCounter(
		"connpool_circuit_breaker_trips_total",
		"Times the circuit breaker has opened",
	)

	// CircuitBreakerSuccesses counts creations that succeeded while admitted.
	CircuitBreakerSuccesses = metrics.NewCounter(
		"connpool_circuit_breaker_successes_total",
		"Resource creations that succeeded through the breaker",
	)

	// CircuitBreakerFailures counts creations that failed while admitted.
	CircuitBreakerFailures = metrics.NewCounter(
		"connpool_circuit_breaker_failures_total",
		"Resource creations that failed through the breaker",
	)

	// CircuitBreakerRejections counts creations refused without an attempt.
	CircuitBreakerRejections = metrics.NewCounter(
		"connpool_circuit_breaker_rejections_total",
		"Resource creations rejected by an open breaker",
	)
)

// Retry metrics for Prometheus exposition.
var (
	// RetryAttempts counts individual failed creation attempts that were retried.
	RetryAttempts = metrics.NewCounter(
		"connpool_factory_retries_total",
		"Total resource creation attempts that failed and were retried",
	)

	// RetryRecoveries counts creations that succeeded after at least one retry.
	RetryRecoveries = metrics.NewCounter(
		"connpool_factory_retry_recoveries_total",
		"Total resource creations that succeeded after retrying",
	)
)

// MetricsCallback mirrors breaker state transitions into the exported
// metrics. Use it with SetStateChangeCallback; it never touches the
// breaker itself.
func MetricsCallback(from, to CircuitState) {
	CircuitBreakerState.Set(int64(to))
	if to == CircuitOpen {
		CircuitBreakerTrips.Inc()
	}
}

// MetricsCircuitBreaker is a CircuitBreaker with MetricsCallback
// pre-wired, so every state transition shows up on the metrics endpoint.
type MetricsCircuitBreaker struct {
	*CircuitBreaker
}

// NewMetricsCircuitBreaker creates a breaker whose state transitions are
// recorded as metrics. The per-attempt counters are maintained by
// GuardFactory.
func NewMetricsCircuitBreaker(name string, cfg CircuitBreakerConfig) *MetricsCircuitBreaker {
	cb := NewCircuitBreaker(name, cfg)
	cb.SetStateChangeCallback(MetricsCallback)
	return &MetricsCircuitBreaker{CircuitBreaker: cb}
}
