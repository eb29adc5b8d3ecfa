package embedded

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

// TestSimulation_Integration_FullLifecycle runs a complete simulation
// through the embedded API and exercises every accessor along the way.
func TestSimulation_Integration_FullLifecycle(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers = 5
	cfg.OpsPerWorker = 4
	cfg.EventBufferSize = 100

	sim, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if sim.State() != StateInitial {
		t.Errorf("Initial state = %s, want %s", sim.State(), StateInitial)
	}

	// Start the simulation
	ctx := context.Background()
	if err := sim.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if sim.State() != StateRunning {
		t.Errorf("State after Start = %s, want %s", sim.State(), StateRunning)
	}

	// Test Simulator accessor
	if sim.Simulator() == nil {
		t.Error("Simulator() returned nil after Start")
	}

	// Test Events channel
	if sim.Events() == nil {
		t.Error("Events() returned nil channel")
	}

	// Wait for the producers to finish
	select {
	case <-sim.WorkloadDone():
	case <-time.After(10 * time.Second):
		t.Fatal("workload did not finish in time")
	}

	// Test Result accessor
	res, rerr := sim.Result()
	if rerr != nil {
		t.Errorf("Result error: %v", rerr)
	}
	if want := uint64(5 * 4); res.Completed != want {
		t.Errorf("Result Completed = %d, want %d", res.Completed, want)
	}
	t.Logf("Result: %+v", res)

	// Test Stats accessor: everything is back in the pool
	stats := sim.Stats()
	if stats.InUse != 0 {
		t.Errorf("Stats InUse = %d, want 0 after workload", stats.InUse)
	}
	if stats.Alive > stats.Capacity {
		t.Errorf("Stats Alive = %d exceeds capacity %d", stats.Alive, stats.Capacity)
	}

	// Test Status
	status := sim.Status()
	if status.State != StateRunning {
		t.Errorf("Status State = %s, want %s", status.State, StateRunning)
	}
	if !status.WorkloadFinished {
		t.Error("Status WorkloadFinished = false after workload")
	}
	t.Logf("Status: %+v", status)

	// Test DroppedEventCount: buffer of 100 holds everything this run emits
	t.Logf("Dropped events: %d", sim.DroppedEventCount())

	// Stop and verify the terminal state
	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sim.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if sim.State() != StateStopped {
		t.Errorf("State after Stop = %s, want %s", sim.State(), StateStopped)
	}

	select {
	case <-sim.Done():
	case <-time.After(time.Second):
		t.Error("Done channel not closed after Stop")
	}

	// Close shuts the event channel
	if err := sim.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sim.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel not closed after Close")
		}
	}
}

// TestSimulation_Integration_MetricsEndpoint verifies that the embedded
// API can expose the Prometheus text endpoint while running.
func TestSimulation_Integration_MetricsEndpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableMetrics = true
	cfg.MetricsListen = "127.0.0.1:0"

	sim, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer sim.Close()

	if err := sim.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	addr := sim.Simulator().DiagnosticsAddr()
	if addr == "" {
		t.Fatal("no diagnostics address with metrics enabled")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading metrics body: %v", err)
	}

	text := string(body)
	if !strings.Contains(text, "connpool_resources_max") {
		t.Error("metrics output missing connpool_resources_max")
	}
	if !strings.Contains(text, "connpool_acquire_total") {
		t.Error("metrics output missing connpool_acquire_total")
	}

	cleanupSimulation(t, sim)
}
