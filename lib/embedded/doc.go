// Package embedded provides an embeddable connpool simulation API for third-party applications.
//
// This package wraps the core connpool simulation in a simple,
// developer-friendly API suitable for embedding in test harnesses,
// demos, load rigs, or any Go program that wants to observe how a
// bounded connection pool behaves under a configurable workload.
//
// # Quick Start
//
// Basic usage requires just a few lines of code:
//
//	sim, err := embedded.New(embedded.Config{
//	    Capacity: 3,
//	    Workers:  8,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sim.Close()
//
//	if err := sim.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Simulation is now running
//	<-sim.WorkloadDone()
//	res, _ := sim.Result()
//	fmt.Printf("completed %d operations\n", res.Completed)
//
// # Configuration
//
// The [Config] struct provides all configuration options with sensible defaults.
// Zero values are replaced with defaults, so minimal configuration is needed:
//
//	// Minimal config - uses all defaults
//	sim, _ := embedded.New(embedded.Config{})
//
//	// Custom config
//	sim, _ := embedded.New(embedded.Config{
//	    Capacity:       3,
//	    Workers:        20,
//	    OpsPerWorker:   10,
//	    AcquireTimeout: 2 * time.Second,
//	    FailEvery:      25,
//	    Logger:         slog.Default(),
//	})
//
// Alternatively, use functional options for a fluent API:
//
//	sim, _ := embedded.NewWithOptions(
//	    embedded.WithCapacity(3),
//	    embedded.WithWorkers(20),
//	    embedded.WithLogger(logger),
//	)
//
// # Lifecycle Management
//
// The simulation follows a simple lifecycle: Initial → Starting → Running → Stopping → Stopped.
//
//   - Call [Simulation.Start] to build the pool and launch the workload
//   - Call [Simulation.Stop] or [Simulation.Close] for graceful shutdown
//   - Use [Simulation.State] or [Simulation.Status] to check current state
//   - Use [Simulation.Done] channel to wait for shutdown
//
// Workload completion does not stop the simulation: the pool, reporter,
// and metrics endpoint stay up for inspection until Stop is called. Use
// [Simulation.WorkloadDone] to wait for the producers and
// [Simulation.Result] for the outcome. Cancelling the context passed to
// Start tears the whole simulation down without a Stop call.
//
// # Events
//
// Subscribe to simulation events for real-time status updates:
//
//	go func() {
//	    for event := range sim.Events() {
//	        switch event.Type {
//	        case embedded.EventSample:
//	            fmt.Printf("in use: %d idle: %d\n", event.Stats.InUse, event.Stats.Idle)
//	        case embedded.EventError:
//	            fmt.Printf("Error: %v\n", event.Error)
//	        }
//	    }
//	}()
//
// Events are delivered on a buffered channel. If the channel fills up
// (consumer is slow), newer events are dropped. Use [Simulation.DroppedEventCount]
// to check if any events have been dropped.
//
// # Thread Safety
//
// All methods on [Simulation] are safe for concurrent use.
//
// # Integration with CLI
//
// The poolsim CLI tool uses this package internally. If you're building
// a custom interface, you can use [Simulation.Simulator] to access
// lower-level functionality when needed.
package embedded
