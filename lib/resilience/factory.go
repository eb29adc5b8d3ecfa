package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"

	"github.com/go-i2p/connpool/lib/pool"
)

// RetryConfig configures retry behavior for resource creation.
type RetryConfig struct {
	// MaxAttempts is the total number of creation attempts per call.
	MaxAttempts int
	// MinDelay is the delay before the first retry.
	MinDelay time.Duration
	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration
	// Factor is the multiplier applied to the delay after each retry.
	Factor float64
	// Jitter randomizes delays to avoid synchronized retry bursts.
	Jitter bool
}

// DefaultRetryConfig returns sensible defaults for factory retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		MinDelay:    100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Factor:      2,
		Jitter:      true,
	}
}

// RetryFactory wraps a pool factory with bounded retries and exponential
// backoff. Delays honor context cancellation, and the final error wraps the
// last attempt's error so callers can still match it with errors.Is.
func RetryFactory(f pool.Factory, cfg RetryConfig) pool.Factory {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = DefaultRetryConfig().MinDelay
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	if cfg.Factor <= 1 {
		cfg.Factor = DefaultRetryConfig().Factor
	}

	return func(ctx context.Context, id uint64) (pool.Resource, error) {
		b := &backoff.Backoff{
			Factor: cfg.Factor,
			Jitter: cfg.Jitter,
			Min:    cfg.MinDelay,
			Max:    cfg.MaxDelay,
		}

		var lastErr error
		for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
			res, err := f(ctx, id)
			if err == nil {
				if attempt > 1 {
					RetryRecoveries.Inc()
				}
				return res, nil
			}
			lastErr = err

			// A cancelled context means the caller gave up, not that
			// the backend failed again.
			if ctx.Err() != nil {
				return nil, err
			}
			if attempt == cfg.MaxAttempts {
				break
			}

			RetryAttempts.Inc()
			delay := b.Duration()
			log.WithError(err).
				WithField("id", id).
				WithField("attempt", attempt).
				WithField("delay", delay).
				Debug("Resource creation failed, retrying")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		return nil, fmt.Errorf("resilience: create failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
	}
}

// GuardFactory wraps a pool factory with a circuit breaker so creation
// fast-fails while the backend is down instead of queueing every waiter
// behind a dying dial. Rejections return ErrCircuitOpen.
func GuardFactory(cb *CircuitBreaker, f pool.Factory) pool.Factory {
	return func(ctx context.Context, id uint64) (pool.Resource, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !cb.Allow() {
			CircuitBreakerRejections.Inc()
			return nil, ErrCircuitOpen
		}

		res, err := f(ctx, id)
		if err != nil {
			// A cancelled caller says nothing about the backend: don't
			// count it, and hand back the admitted probe slot.
			if ctx.Err() != nil {
				cb.releaseProbe()
				return nil, err
			}
			CircuitBreakerFailures.Inc()
			cb.RecordFailure()
			return nil, err
		}

		CircuitBreakerSuccesses.Inc()
		cb.RecordSuccess()
		return res, nil
	}
}
