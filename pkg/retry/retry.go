// Package retry waits out dependencies that start alongside the service
// (database, Redis) with capped exponential backoff. Booking operations
// never retry implicitly.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Config describes one backoff schedule.
type Config struct {
	// Attempts is the total number of calls, the first one included.
	Attempts int

	// BaseDelay is the wait after the first failure. It doubles after each
	// further failure up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Jitter spreads each wait by up to ±Jitter of its length (0 disables).
	Jitter float64

	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retrier calls an operation until it succeeds, attempts run out or the
// context ends.
type Retrier struct {
	cfg Config
}

// New creates a Retrier. Attempts below one are raised to one.
func New(cfg Config) *Retrier {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return &Retrier{cfg: cfg}
}

// ConnectRetrier is the schedule used while connecting to backing services:
// five attempts, 500ms doubling to at most 5s.
func ConnectRetrier(onRetry func(attempt int, err error, delay time.Duration)) *Retrier {
	return New(Config{
		Attempts:  5,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  5 * time.Second,
		Jitter:    0.1,
		OnRetry:   onRetry,
	})
}

// Do runs op until it returns nil. It returns the last error once attempts
// are exhausted. A context that ends while waiting aborts with an error
// matching both ctx.Err() and the last failure.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= r.cfg.Attempts {
			return err
		}

		delay := r.backoff(attempt)
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted after %d attempts: %w: %w", attempt, ctx.Err(), err)
		case <-timer.C:
		}
	}
}

// backoff returns the wait after the given failed attempt.
func (r *Retrier) backoff(attempt int) time.Duration {
	delay := r.cfg.BaseDelay
	for i := 1; i < attempt && delay < r.cfg.MaxDelay; i++ {
		delay *= 2
	}
	if delay > r.cfg.MaxDelay {
		delay = r.cfg.MaxDelay
	}
	if r.cfg.Jitter > 0 {
		delay += time.Duration(float64(delay) * r.cfg.Jitter * (rand.Float64()*2 - 1))
	}
	return max(delay, 0)
}
