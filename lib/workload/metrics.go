package workload

import "github.com/go-i2p/connpool/lib/metrics"

// Workload metrics for Prometheus exposition.
var (
	// OpsCompleted counts workload operations that finished.
	OpsCompleted = metrics.NewCounter(
		"connpool_workload_ops_completed_total",
		"Total workload operations that completed",
	)
	// OpsFailed counts workload operations that could not get a connection.
	OpsFailed = metrics.NewCounter(
		"connpool_workload_ops_failed_total",
		"Total workload operations that failed",
	)
	// DialsTotal counts simulated dial attempts.
	DialsTotal = metrics.NewCounter(
		"connpool_workload_dials_total",
		"Total simulated dial attempts",
	)
	// DialFailures counts injected dial failures.
	DialFailures = metrics.NewCounter(
		"connpool_workload_dial_failures_total",
		"Total injected dial failures",
	)
)
