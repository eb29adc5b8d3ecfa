package embedded

import (
	"context"
	"testing"
	"time"
)

// testConfig returns a configuration sized for fast test runs. The
// latencies are set explicitly because zero values would be replaced
// with the much larger defaults.
func testConfig(t *testing.T) Config {
	t.Helper()

	return Config{
		Capacity:       2,
		Workers:        3,
		OpsPerWorker:   2,
		DialLatency:    time.Millisecond,
		HoldTime:       time.Millisecond,
		ThinkTime:      time.Millisecond,
		ReportInterval: 10 * time.Millisecond,
	}
}

// cleanupSimulation stops a simulation a test left running.
func cleanupSimulation(t *testing.T, sim *Simulation) {
	t.Helper()

	if sim == nil {
		return
	}
	if sim.State() != StateRunning {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sim.Stop(ctx); err != nil {
		t.Logf("Warning: Stop failed during cleanup: %v", err)
	}
}
