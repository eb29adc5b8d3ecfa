package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrPoolClosed is returned when operating on a closed pool.
	ErrPoolClosed = errors.New("pool: pool is closed")
	// ErrAcquireTimeout is returned when acquiring a resource times out.
	ErrAcquireTimeout = errors.New("pool: resource acquisition timeout")
	// ErrInvalidCapacity is returned by New for a capacity of zero or less.
	ErrInvalidCapacity = errors.New("pool: capacity must be positive")
	// ErrNilFactory is returned by New when no factory is supplied.
	ErrNilFactory = errors.New("pool: factory must not be nil")
	// ErrDoubleRelease is returned when a lease is released twice.
	ErrDoubleRelease = errors.New("pool: lease already released")
	// ErrForeignLease is returned when releasing a lease this pool did not issue.
	ErrForeignLease = errors.New("pool: lease was not issued by this pool")
)

// Resource is an opaque handle managed by the pool. The pool never
// inspects, validates, or destroys it; callers decide what it is and
// what operations it supports.
type Resource any

// Factory creates new resources. The id is a pool-generated sequence
// number, unique per invocation, starting at 1. The factory is called
// without the pool lock held and may block; it should honor ctx.
type Factory func(ctx context.Context, id uint64) (Resource, error)

// Config configures the resource pool.
type Config struct {
	// Capacity is the maximum number of resources that may ever exist
	// simultaneously. Must be positive.
	Capacity int
	// AcquireTimeout bounds how long Acquire waits when the caller's
	// context carries no deadline of its own. Zero means block
	// indefinitely.
	// Default: 0
	AcquireTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:       10,
		AcquireTimeout: 0,
	}
}

// Lease is the handle issued by Acquire. It carries the acquired
// resource and marks its ownership; every Acquire issues a fresh
// lease, and each lease is valid for exactly one Release.
type Lease struct {
	pool     *Pool
	res      Resource
	released bool
}

// Resource returns the resource held by the lease.
func (l *Lease) Resource() Resource { return l.res }

// Pool is a bounded, thread-safe resource pool. Resources are created
// lazily up to Capacity and reused after release; callers block in
// Acquire while all slots are checked out.
type Pool struct {
	factory Factory
	config  Config
	mu      sync.Mutex
	cond    *sync.Cond
	idle    []Resource
	free    int
	created int
	seq     uint64
	closed  bool

	// Metrics
	acquireCount   uint64
	acquireSuccess uint64
	acquireFailed  uint64
	releaseCount   uint64
	misuseCount    uint64
}

// New creates a new resource pool with the given factory and
// configuration. The pool holds no resources until the first Acquire.
func New(factory Factory, cfg Config) (*Pool, error) {
	if cfg.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if factory == nil {
		return nil, ErrNilFactory
	}

	p := &Pool{
		factory: factory,
		config:  cfg,
		idle:    make([]Resource, 0, cfg.Capacity),
		free:    cfg.Capacity,
	}
	p.cond = sync.NewCond(&p.mu)

	log.WithField("capacity", cfg.Capacity).WithField("acquireTimeout", cfg.AcquireTimeout).Debug("pool created")
	return p, nil
}

// Acquire takes a resource from the pool, blocking until a slot is
// free or ctx is done. It reuses the most recently released resource
// when one is idle and otherwise creates a new one through the
// factory. The returned lease must be passed to Release exactly once.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	atomic.AddUint64(&p.acquireCount, 1)
	PoolAcquireTotal.Inc()

	// Use configured timeout if context has no deadline
	acquireCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && p.config.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, p.config.AcquireTimeout)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.closed {
			atomic.AddUint64(&p.acquireFailed, 1)
			PoolAcquireFailedTotal.Inc()
			return nil, ErrPoolClosed
		}

		// Check context cancellation
		select {
		case <-acquireCtx.Done():
			atomic.AddUint64(&p.acquireFailed, 1)
			PoolAcquireFailedTotal.Inc()
			if acquireCtx.Err() == context.DeadlineExceeded {
				return nil, ErrAcquireTimeout
			}
			return nil, acquireCtx.Err()
		default:
		}

		if p.free > 0 {
			p.free--

			// Reuse the most recently released resource (LIFO). Stack
			// order is a policy choice, not a correctness requirement.
			if n := len(p.idle); n > 0 {
				res := p.idle[n-1]
				p.idle = p.idle[:n-1]
				atomic.AddUint64(&p.acquireSuccess, 1)
				PoolAcquireSuccessTotal.Inc()
				log.Debug("acquired idle resource from pool")
				return &Lease{pool: p, res: res}, nil
			}

			// A free slot with an empty idle cache means there is room
			// to create. Count the creation before dropping the lock so
			// readers never observe more leases than live resources.
			p.created++
			p.seq++
			id := p.seq
			p.mu.Unlock()

			res, err := p.factory(acquireCtx, id)
			if err != nil {
				p.mu.Lock()
				// Return the slot consumed by the failed attempt so a
				// failed creation never costs capacity.
				p.created--
				p.free++
				p.cond.Signal()
				atomic.AddUint64(&p.acquireFailed, 1)
				PoolAcquireFailedTotal.Inc()
				log.WithError(err).WithField("id", id).Debug("failed to create resource")
				return nil, fmt.Errorf("pool: create resource: %w", err)
			}

			p.mu.Lock()
			atomic.AddUint64(&p.acquireSuccess, 1)
			PoolAcquireSuccessTotal.Inc()
			log.WithField("id", id).Debug("created new resource")
			return &Lease{pool: p, res: res}, nil
		}

		// Wait for a resource to be released
		log.Debug("waiting for available slot")
		p.waitWithContext(acquireCtx)
	}
}

// waitWithContext waits for a condition signal or context cancellation.
func (p *Pool) waitWithContext(ctx context.Context) {
	// Start a goroutine to signal on context cancellation
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-done:
		}
	}()
	p.cond.Wait()
	close(done)
}

// Release returns a leased resource to the pool and wakes one waiter.
// Releasing a lease twice or a lease this pool did not issue is
// reported as a distinct error and leaves the slot accounting intact.
func (p *Pool) Release(l *Lease) error {
	if l == nil || l.pool != p {
		atomic.AddUint64(&p.misuseCount, 1)
		PoolMisuseTotal.Inc()
		log.Warn("release of foreign lease rejected")
		return ErrForeignLease
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if l.released {
		atomic.AddUint64(&p.misuseCount, 1)
		PoolMisuseTotal.Inc()
		log.Warn("double release rejected")
		return ErrDoubleRelease
	}
	l.released = true

	atomic.AddUint64(&p.releaseCount, 1)
	PoolReleaseTotal.Inc()

	// Returns are booked even after Close so that outstanding leases
	// drain to zero in the final stats. The resource itself is never
	// destroyed by the pool.
	p.idle = append(p.idle, l.res)
	p.free++
	p.cond.Signal()
	log.Debug("resource released to pool")
	return nil
}

// PoolSize returns the fixed capacity of the pool.
func (p *Pool) PoolSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config.Capacity
}

// ConnectionsAlive returns the number of resources created so far.
// It never exceeds PoolSize and, absent factory failures, never
// decreases.
func (p *Pool) ConnectionsAlive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// ConnectionsInUse returns the number of resources currently checked
// out. It never exceeds ConnectionsAlive.
func (p *Pool) ConnectionsInUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config.Capacity - p.free
}

// Closed reports whether the pool has been closed.
func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close marks the pool closed and wakes all blocked waiters, which
// fail with ErrPoolClosed. Outstanding leases may still be released
// afterwards. The pool never destroys resources; teardown of the
// resources themselves is the caller's responsibility.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.closed = true
	p.cond.Broadcast()
	log.Debug("pool closed")
	return nil
}

// Stats is a point-in-time snapshot of pool occupancy and lifetime
// counters.
type Stats struct {
	// Capacity is the maximum pool size.
	Capacity int
	// Alive is the number of resources created so far.
	Alive int
	// Idle is the current number of idle resources.
	Idle int
	// InUse is the number of resources currently checked out.
	InUse int
	// AcquireCount is the total number of acquire attempts.
	AcquireCount uint64
	// AcquireSuccess is the number of successful acquires.
	AcquireSuccess uint64
	// AcquireFailed is the number of failed acquires.
	AcquireFailed uint64
	// ReleaseCount is the number of releases.
	ReleaseCount uint64
	// MisuseCount is the number of rejected double or foreign releases.
	MisuseCount uint64
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Capacity:       p.config.Capacity,
		Alive:          p.created,
		Idle:           len(p.idle),
		InUse:          p.config.Capacity - p.free,
		AcquireCount:   atomic.LoadUint64(&p.acquireCount),
		AcquireSuccess: atomic.LoadUint64(&p.acquireSuccess),
		AcquireFailed:  atomic.LoadUint64(&p.acquireFailed),
		ReleaseCount:   atomic.LoadUint64(&p.releaseCount),
		MisuseCount:    atomic.LoadUint64(&p.misuseCount),
	}
}
