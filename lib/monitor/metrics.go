package monitor

import "github.com/go-i2p/connpool/lib/metrics"

// Monitor metrics for Prometheus exposition.
var (
	// SamplesTotal counts statistics samples taken.
	SamplesTotal = metrics.NewCounter(
		"connpool_monitor_samples_total",
		"Total pool statistics samples taken",
	)
	// InvariantViolations counts samples with inconsistent accounting.
	InvariantViolations = metrics.NewCounter(
		"connpool_monitor_invariant_violations_total",
		"Total samples where pool accounting was inconsistent",
	)
)
