// Example demonstrates basic usage of the embedded simulation API.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-i2p/connpool/lib/embedded"
)

func main() {
	sim := createSimulation()
	defer sim.Close()

	go handleEvents(sim)

	startSimulation(sim)
	printStatus(sim)
	waitForCompletion(sim)
	printResult(sim)
}

// createSimulation creates and returns a new simulation instance.
func createSimulation() *embedded.Simulation {
	sim, err := embedded.New(embedded.Config{
		Capacity:  3,
		Workers:   8,
		FailEvery: 7,
	})
	if err != nil {
		log.Fatalf("Failed to create simulation: %v", err)
	}
	return sim
}

// handleEvents processes simulation events in the background.
func handleEvents(sim *embedded.Simulation) {
	for event := range sim.Events() {
		handleEvent(event)
	}
}

// handleEvent processes a single simulation event.
func handleEvent(event embedded.Event) {
	switch event.Type {
	case embedded.EventStarted:
		fmt.Println("🟢 Simulation started")
	case embedded.EventStopped:
		fmt.Println("🔴 Simulation stopped")
	case embedded.EventSample:
		if event.Stats != nil {
			fmt.Printf("📊 Pool: %d in use, %d idle, %d/%d alive\n",
				event.Stats.InUse, event.Stats.Idle, event.Stats.Alive, event.Stats.Capacity)
		}
	case embedded.EventWorkloadFinished:
		fmt.Printf("🏁 %s\n", event.Message)
	case embedded.EventError:
		fmt.Printf("⚠️  Error: %v\n", event.Error)
	default:
		fmt.Printf("📢 Event: %s - %s\n", event.Type, event.Message)
	}
}

// startSimulation starts the simulation.
func startSimulation(sim *embedded.Simulation) {
	ctx := context.Background()
	if err := sim.Start(ctx); err != nil {
		log.Fatalf("Failed to start simulation: %v", err)
	}
}

// printStatus prints the current simulation status.
func printStatus(sim *embedded.Simulation) {
	status := sim.Status()
	fmt.Printf("\n=== Simulation Status ===\n")
	fmt.Printf("State:    %s\n", status.State)
	fmt.Printf("Capacity: %d\n", status.Capacity)
	fmt.Printf("Workers:  %d\n", status.Workers)
	fmt.Printf("Version:  %s\n", status.Version)
}

// waitForCompletion waits for the workload to finish or Ctrl+C.
func waitForCompletion(sim *embedded.Simulation) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("\nRunning... press Ctrl+C to stop early")
	select {
	case <-sim.WorkloadDone():
	case <-sigCh:
		fmt.Println("\nInterrupted")
	}
}

// printResult prints the workload outcome and final pool state.
func printResult(sim *embedded.Simulation) {
	res, err := sim.Result()
	stats := sim.Stats()

	fmt.Printf("\n=== Result ===\n")
	fmt.Printf("Completed: %d\n", res.Completed)
	fmt.Printf("Failed:    %d\n", res.Failed)
	fmt.Printf("Elapsed:   %s\n", res.Elapsed)
	fmt.Printf("Pool size: %d of %d\n", stats.Alive, stats.Capacity)
	if err != nil {
		fmt.Printf("Ended early: %v\n", err)
	}
}
