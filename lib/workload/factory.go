package workload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/go-i2p/connpool/lib/pool"
)

// ErrInjectedFailure marks dial failures produced by fault injection.
var ErrInjectedFailure = errors.New("workload: injected dial failure")

// FactoryConfig controls the simulated dialer.
type FactoryConfig struct {
	// DialLatency is how long each simulated dial takes.
	DialLatency time.Duration
	// FailEvery injects a failure on every Nth dial. Zero disables.
	FailEvery int
	// Out receives per-connection activity lines. Nil discards.
	Out io.Writer
}

// ConnFactory returns a pool factory producing fake connections. Dials
// sleep for DialLatency, honor ctx, and fail on every FailEvery-th
// attempt when fault injection is enabled.
func ConnFactory(cfg FactoryConfig) pool.Factory {
	var dials uint64
	return func(ctx context.Context, id uint64) (pool.Resource, error) {
		n := atomic.AddUint64(&dials, 1)
		DialsTotal.Inc()

		if cfg.FailEvery > 0 && n%uint64(cfg.FailEvery) == 0 {
			DialFailures.Inc()
			return nil, fmt.Errorf("workload: dial %d: %w", n, ErrInjectedFailure)
		}

		if err := sleep(ctx, cfg.DialLatency); err != nil {
			return nil, err
		}
		return NewConn(id, cfg.Out), nil
	}
}
