// Package pool provides a bounded, thread-safe resource pool for
// handing out expensive, reusable handles to concurrent callers.
//
// The pool supports:
//   - Fixed capacity set at construction
//   - Lazy resource creation through a caller-supplied factory
//   - LIFO reuse of released resources
//   - Blocking acquisition with context cancellation and optional timeout
//   - Detection of double and foreign releases
//   - Metrics for pool utilization
//
// # Basic Usage
//
//	factory := func(ctx context.Context, id uint64) (pool.Resource, error) {
//	    return net.Dial("tcp", "localhost:8080")
//	}
//
//	cfg := pool.DefaultConfig()
//	cfg.Capacity = 5
//
//	p, err := pool.New(factory, cfg)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	lease, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer p.Release(lease)
//
//	conn := lease.Resource().(net.Conn)
//	// Use connection...
//
// The pool never inspects or destroys resources. Once created, a
// resource alternates between checked out and idle for the life of
// the pool; teardown belongs to the caller.
//
// # Metrics
//
// Pool utilization metrics are registered with the metrics package:
//   - connpool_resources_max: Pool capacity
//   - connpool_resources_alive: Resources created so far
//   - connpool_resources_idle: Current idle resources
//   - connpool_resources_in_use: Resources currently checked out
//   - connpool_acquire_total: Total acquire attempts
//   - connpool_acquire_success_total: Successful acquires
//   - connpool_acquire_failed_total: Failed acquires
//   - connpool_release_total: Total releases
//   - connpool_misuse_total: Rejected double and foreign releases
package pool
