// poolsim exercises a bounded connection pool under a simulated workload.
//
// A fleet of producer goroutines acquires connections from a fixed-capacity
// pool, holds them for simulated requests, and releases them for reuse. The
// pool dials lazily, never exceeds its capacity, and blocks producers when
// every connection is checked out. A periodic reporter and an optional
// diagnostics endpoint expose how the pool behaves under contention.
//
// Usage:
//
//	poolsim [flags]
//
// Flags:
//
//	-config string
//	    Path to configuration file (default "~/.connpool/config.toml")
//	-capacity int
//	    Pool capacity (overrides config)
//	-workers int
//	    Number of producers (overrides config)
//	-ops int
//	    Operations per producer (overrides config)
//	-v
//	    Enable verbose logging
//	-version
//	    Print version and exit
//
// See https://github.com/go-i2p/connpool for more information.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-i2p/connpool/lib/core"
	"github.com/go-i2p/connpool/lib/embedded"
	"github.com/go-i2p/connpool/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Determine default config path
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	defaultConfigPath := filepath.Join(homeDir, ".connpool", "config.toml")

	// Parse command-line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	capacity := flag.Int("capacity", 0, "Pool capacity (overrides config)")
	workers := flag.Int("workers", 0, "Number of producers (overrides config)")
	ops := flag.Int("ops", 0, "Operations per producer (overrides config)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "poolsim - Bounded Connection Pool Simulator\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  poolsim [flags]           Run the simulation\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Printf("poolsim version %s\n", version.Full())
		return 0
	}

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// Build embedded simulation configuration
	// Start with defaults, then apply config file, then CLI overrides
	simConfig := embedded.DefaultConfig()
	simConfig.Logger = logger
	simConfig.Output = os.Stdout

	// Load configuration file for additional settings
	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	// Apply config file values
	simConfig.Capacity = cfg.Pool.Capacity
	simConfig.AcquireTimeout = cfg.Pool.AcquireTimeout
	simConfig.DialLatency = cfg.Factory.DialLatency
	simConfig.FailEvery = cfg.Factory.FailEvery
	simConfig.Workers = cfg.Workload.Workers
	simConfig.OpsPerWorker = cfg.Workload.OpsPerWorker
	simConfig.HoldTime = cfg.Workload.HoldTime
	simConfig.ThinkTime = cfg.Workload.ThinkTime
	simConfig.Rate = cfg.Workload.Rate
	simConfig.ReportInterval = cfg.Report.Interval
	simConfig.EnableMetrics = cfg.Metrics.Enabled
	simConfig.MetricsListen = cfg.Metrics.Listen
	simConfig.EnableRetry = cfg.Resilience.Retry
	simConfig.MaxAttempts = cfg.Resilience.MaxAttempts
	simConfig.EnableBreaker = cfg.Resilience.BreakerEnabled
	simConfig.BreakerThreshold = cfg.Resilience.BreakerThreshold
	simConfig.BreakerCooldown = cfg.Resilience.BreakerCooldown

	// Apply command-line overrides
	if *capacity > 0 {
		simConfig.Capacity = *capacity
	}
	if *workers > 0 {
		simConfig.Workers = *workers
	}
	if *ops > 0 {
		simConfig.OpsPerWorker = *ops
	}

	// Create the embedded simulation
	sim, err := embedded.New(simConfig)
	if err != nil {
		logger.Error("failed to create simulation", "error", err)
		return 1
	}
	defer sim.Close()

	// Create a context that is cancelled on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start the simulation
	if err := sim.Start(ctx); err != nil {
		logger.Error("failed to start simulation", "error", err)
		return 1
	}

	logger.Info("poolsim started",
		"capacity", simConfig.Capacity,
		"workers", simConfig.Workers,
		"version", version.Version)

	// Wait for the workload to finish or a shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig)
	case <-sim.WorkloadDone():
		logger.Info("workload complete")
	case <-sim.Done():
		logger.Info("simulation stopped unexpectedly")
	}

	// Graceful shutdown. The lifetime context stays live until Stop returns
	// so teardown is driven by Stop rather than by cancellation.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sim.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return 1
	}

	printSummary(sim)

	logger.Info("poolsim stopped")
	return 0
}

// printSummary writes the workload outcome and final pool counters to stdout.
func printSummary(sim *embedded.Simulation) {
	res, err := sim.Result()
	stats := sim.Stats()

	fmt.Printf("\nWorkload:\n")
	fmt.Printf("  Completed:  %d\n", res.Completed)
	fmt.Printf("  Failed:     %d\n", res.Failed)
	fmt.Printf("  Elapsed:    %s\n", res.Elapsed.Round(time.Millisecond))
	if err != nil {
		fmt.Printf("  Ended by:   %v\n", err)
	}

	fmt.Printf("Pool:\n")
	fmt.Printf("  Size:       %d of %d\n", stats.Alive, stats.Capacity)
	fmt.Printf("  Acquires:   %d (%d ok, %d failed)\n", stats.AcquireCount, stats.AcquireSuccess, stats.AcquireFailed)
	fmt.Printf("  Releases:   %d\n", stats.ReleaseCount)
	if stats.MisuseCount > 0 {
		fmt.Printf("  Misuse:     %d\n", stats.MisuseCount)
	}
}
