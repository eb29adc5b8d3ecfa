package resilience

import (
	"sync"
	"testing"
	"time"
)

// testBreakerConfig returns a config with a short cooldown so the timed
// transitions can be exercised without long sleeps.
func testBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Cooldown:         20 * time.Millisecond,
		HalfOpenProbes:   2,
	}
}

// trip drives a closed breaker to the open state.
func trip(t *testing.T, cb *CircuitBreaker, threshold int) {
	t.Helper()
	for i := 0; i < threshold; i++ {
		cb.RecordFailure()
	}
	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("expected open after %d failures, got %v", threshold, got)
	}
}

func TestCircuitStateString(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{CircuitClosed, "closed"},
		{CircuitOpen, "open"},
		{CircuitHalfOpen, "half-open"},
		{CircuitState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("CircuitState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestNewCircuitBreakerStartsClosed(t *testing.T) {
	cb := NewCircuitBreaker("test", testBreakerConfig())
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("expected closed, got %v", got)
	}
	if !cb.Allow() {
		t.Error("closed circuit should allow attempts")
	}
}

func TestNewCircuitBreakerAppliesDefaults(t *testing.T) {
	// A zero config falls back to the defaults, so the breaker should
	// tolerate one failure short of the default threshold.
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{})

	def := DefaultCircuitBreakerConfig()
	for i := 0; i < def.FailureThreshold-1; i++ {
		cb.RecordFailure()
	}
	if got := cb.State(); got != CircuitClosed {
		t.Fatalf("expected closed below the default threshold, got %v", got)
	}

	cb.RecordFailure()
	if got := cb.State(); got != CircuitOpen {
		t.Errorf("expected open at the default threshold, got %v", got)
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", testBreakerConfig())

	cb.RecordFailure()
	cb.RecordFailure()
	if got := cb.State(); got != CircuitClosed {
		t.Fatalf("expected closed below threshold, got %v", got)
	}

	cb.RecordFailure()
	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("expected open at threshold, got %v", got)
	}
	if cb.Allow() {
		t.Error("open circuit should reject attempts")
	}
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	cb := NewCircuitBreaker("test", testBreakerConfig())

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	// The streak never reached three uninterrupted failures.
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("expected closed after interleaved success, got %v", got)
	}
}

func TestBreakerCooldownAdmitsProbe(t *testing.T) {
	cb := NewCircuitBreaker("test", testBreakerConfig())
	trip(t, cb, 3)

	if cb.Allow() {
		t.Fatal("open circuit should reject before cooldown")
	}

	time.Sleep(30 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("expected a probe to be admitted after cooldown")
	}
	if got := cb.State(); got != CircuitHalfOpen {
		t.Errorf("expected half-open after cooldown, got %v", got)
	}
}

func TestBreakerCapsHalfOpenProbes(t *testing.T) {
	cb := NewCircuitBreaker("test", testBreakerConfig())
	trip(t, cb, 3)

	time.Sleep(30 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("first probe should be admitted")
	}
	if !cb.Allow() {
		t.Fatal("second probe should be admitted")
	}
	if cb.Allow() {
		t.Error("third probe should be rejected")
	}
}

func TestBreakerClosesAfterSuccessfulProbes(t *testing.T) {
	cb := NewCircuitBreaker("test", testBreakerConfig())
	trip(t, cb, 3)

	time.Sleep(30 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("probe should be admitted")
	}
	cb.RecordSuccess()
	if got := cb.State(); got != CircuitHalfOpen {
		t.Fatalf("one success should not close the circuit, got %v", got)
	}

	if !cb.Allow() {
		t.Fatal("second probe should be admitted")
	}
	cb.RecordSuccess()
	if got := cb.State(); got != CircuitClosed {
		t.Fatalf("expected closed after enough successful probes, got %v", got)
	}

	// The failure streak starts fresh after recovery.
	cb.RecordFailure()
	cb.RecordFailure()
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("expected closed below threshold after recovery, got %v", got)
	}
}

func TestBreakerReopensOnProbeFailure(t *testing.T) {
	cb := NewCircuitBreaker("test", testBreakerConfig())
	trip(t, cb, 3)

	time.Sleep(30 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("probe should be admitted")
	}
	cb.RecordFailure()
	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("probe failure should reopen the circuit, got %v", got)
	}
	if cb.Allow() {
		t.Error("reopened circuit should reject attempts")
	}
}

func TestBreakerStateChangeCallback(t *testing.T) {
	cb := NewCircuitBreaker("test", testBreakerConfig())

	var mu sync.Mutex
	var transitions []string
	cb.SetStateChangeCallback(func(from, to CircuitState) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, from.String()+">"+to.String())
	})

	trip(t, cb, 3)
	time.Sleep(30 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("probe should be admitted")
	}
	cb.RecordSuccess()
	cb.RecordSuccess()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %d transitions, got %v", len(want), transitions)
	}
	for i, w := range want {
		if transitions[i] != w {
			t.Errorf("transition %d = %q, want %q", i, transitions[i], w)
		}
	}
}

func TestBreakerConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         time.Millisecond,
		HalfOpenProbes:   2,
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if cb.Allow() {
					if (n+j)%3 == 0 {
						cb.RecordFailure()
					} else {
						cb.RecordSuccess()
					}
				}
				cb.State()
			}
		}(i)
	}
	wg.Wait()

	switch cb.State() {
	case CircuitClosed, CircuitOpen, CircuitHalfOpen:
	default:
		t.Errorf("breaker ended in invalid state %v", cb.State())
	}
}

func TestMetricsCircuitBreakerRecordsTrips(t *testing.T) {
	before := CircuitBreakerTrips.Value()

	cb := NewMetricsCircuitBreaker("test-metrics", CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Cooldown:         time.Minute,
		HalfOpenProbes:   1,
	})
	cb.RecordFailure()

	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("expected open, got %v", got)
	}
	if CircuitBreakerTrips.Value() != before+1 {
		t.Errorf("expected trip counter to advance from %d, got %d", before, CircuitBreakerTrips.Value())
	}
	if CircuitBreakerState.Value() != int64(CircuitOpen) {
		t.Errorf("expected state gauge %d, got %d", int64(CircuitOpen), CircuitBreakerState.Value())
	}
}
