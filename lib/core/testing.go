package core

import (
	"context"
	"testing"
	"time"
)

// testConfig creates a configuration whose workload finishes in a few
// milliseconds. Reporting and the diagnostics server are off so tests
// opt into them explicitly.
func testConfig(t *testing.T) *Config {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Pool.Capacity = 2
	cfg.Factory.DialLatency = 0
	cfg.Workload.Workers = 3
	cfg.Workload.OpsPerWorker = 2
	cfg.Workload.HoldTime = time.Millisecond
	cfg.Workload.ThinkTime = 0
	cfg.Report.Enabled = false
	cfg.Metrics.Enabled = false

	return cfg
}

// cleanupSimulator stops a running simulator and waits for its run loop
// to exit, so a failing test never leaks the reporter or server goroutines
// into the next one.
func cleanupSimulator(t *testing.T, sim *Simulator) {
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
