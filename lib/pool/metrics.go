package pool

import "github.com/go-i2p/connpool/lib/metrics"

// Pool utilization metrics
var (
	// PoolResourcesMax is the pool capacity.
	PoolResourcesMax = metrics.NewGauge(
		"connpool_resources_max",
		"Maximum number of resources in the pool",
	)
	// PoolResourcesAlive is the number of resources created so far.
	PoolResourcesAlive = metrics.NewGauge(
		"connpool_resources_alive",
		"Number of resources created so far",
	)
	// PoolResourcesIdle is the current number of idle resources.
	PoolResourcesIdle = metrics.NewGauge(
		"connpool_resources_idle",
		"Current number of idle resources in the pool",
	)
	// PoolResourcesInUse is the number of resources currently checked out.
	PoolResourcesInUse = metrics.NewGauge(
		"connpool_resources_in_use",
		"Number of resources currently checked out",
	)
	// PoolAcquireTotal is the total number of acquire attempts.
	PoolAcquireTotal = metrics.NewCounter(
		"connpool_acquire_total",
		"Total number of resource acquire attempts",
	)
	// PoolAcquireSuccessTotal is the number of successful acquires.
	PoolAcquireSuccessTotal = metrics.NewCounter(
		"connpool_acquire_success_total",
		"Total number of successful resource acquires",
	)
	// PoolAcquireFailedTotal is the number of failed acquires.
	PoolAcquireFailedTotal = metrics.NewCounter(
		"connpool_acquire_failed_total",
		"Total number of failed resource acquires",
	)
	// PoolReleaseTotal is the number of releases.
	PoolReleaseTotal = metrics.NewCounter(
		"connpool_release_total",
		"Total number of resource releases",
	)
	// PoolMisuseTotal is the number of rejected double or foreign releases.
	PoolMisuseTotal = metrics.NewCounter(
		"connpool_misuse_total",
		"Total number of rejected double or foreign releases",
	)
	// PoolAcquireLatency tracks time spent acquiring resources.
	PoolAcquireLatency = metrics.NewHistogram(
		"connpool_acquire_duration_seconds",
		"Time spent acquiring a resource from the pool",
		metrics.DefaultLatencyBuckets,
	)
)

// UpdateMetrics updates the pool metrics from Stats.
func UpdateMetrics(stats Stats) {
	PoolResourcesMax.Set(int64(stats.Capacity))
	PoolResourcesAlive.Set(int64(stats.Alive))
	PoolResourcesIdle.Set(int64(stats.Idle))
	PoolResourcesInUse.Set(int64(stats.InUse))
}
