// Package retry wraps calls to the vector index service in an exponential
// backoff loop. Only transient failures (see [IsTransient]) are retried;
// every other error is returned to the caller on the first attempt.
//
// The default schedule makes up to five attempts, sleeping 1s, 2s, 4s and 8s
// between them. Each delay is scaled by a random factor in [0.7, 1.3].
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxAttempts is the total number of calls made before giving up.
	DefaultMaxAttempts = 5
	// DefaultBaseDelay is the sleep before the second attempt.
	DefaultBaseDelay = time.Second
	// DefaultMaxDelay caps any single sleep.
	DefaultMaxDelay = 16 * time.Second
	// DefaultJitter is the +/- fraction applied to every sleep.
	DefaultJitter = 0.3
)

// Policy describes how an operation is retried. The zero value makes a single
// attempt; use [Default] for the production schedule.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// BaseDelay is the sleep before the second attempt. It doubles after
	// every further failure.
	BaseDelay time.Duration

	// MaxDelay caps a single sleep. Zero means no cap.
	MaxDelay time.Duration

	// Jitter is the randomisation fraction applied to each sleep. 0.3 yields
	// a multiplier in [0.7, 1.3]; 0 makes the schedule deterministic.
	Jitter float64

	// Retryable decides whether err deserves another attempt.
	// If nil, [IsTransient] is used.
	Retryable func(err error) bool

	// Sleep waits for d or until ctx is done. If nil, a timer-based sleep is
	// used. Tests replace it to observe the schedule without waiting.
	Sleep func(ctx context.Context, d time.Duration) error

	// Logger receives one warning per retried failure. If nil, slog.Default is used.
	Logger *slog.Logger

	// Metrics counts retries and exhausted operations. May be nil.
	Metrics *Metrics
}

// Default returns the production retry policy: 5 attempts, 1s base delay
// doubling to a 16s cap, 30% jitter.
func Default() *Policy {
	return &Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Jitter:      DefaultJitter,
	}
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// attempts are exhausted, or ctx is done. op names the operation in logs,
// metrics and the returned error. A nil Policy calls fn exactly once.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if p == nil {
		return fn(ctx)
	}

	attempts := max(p.MaxAttempts, 1)
	schedule := p.schedule()

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry: %s: %w (last error: %v)", op, err, lastErr)
			}
			return fmt.Errorf("retry: %s: %w", op, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				p.logger().Debug("retry: operation succeeded after retry",
					slog.String("op", op),
					slog.Int("attempt", attempt),
				)
			}
			return nil
		}

		if !p.retryable(lastErr) {
			return lastErr
		}

		if attempt >= attempts {
			p.Metrics.exhausted(op)
			return fmt.Errorf("retry: %s: giving up after %d attempts: %w", op, attempt, lastErr)
		}

		delay := schedule.NextBackOff()
		p.Metrics.retried(op)
		p.logger().Warn("retry: transient failure",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", delay),
			slog.Any("error", lastErr),
		)

		if err := p.sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry: %s: %w (last error: %v)", op, err, lastErr)
		}
	}
}

// Value is [Policy.Do] for operations that produce a result.
func Value[T any](ctx context.Context, p *Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// schedule builds a fresh backoff sequence for one Do call.
func (p *Policy) schedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.RandomizationFactor = p.Jitter
	b.Multiplier = 2
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval <= 0 {
		b.MaxInterval = time.Duration(1<<63 - 1)
	}
	// Attempts bound the loop, not wall time.
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (p *Policy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return IsTransient(err)
}

func (p *Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Policy) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
