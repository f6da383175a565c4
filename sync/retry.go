// ABOUTME: Bounded exponential backoff for calendar calls
// ABOUTME: Retries rate-limit and transient failures with jitter, honoring context cancellation
package sync

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/harperreed/studypilot/config"
)

// RetryPolicy bounds how calendar calls are retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the fraction of each delay randomized in both directions.
	Jitter float64
}

// DefaultRetryPolicy returns 4 attempts backing off from 500ms up to 8s with 20% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Jitter:      0.2,
	}
}

// RetryPolicyFromConfig applies configured limits over the defaults.
func RetryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg == nil {
		return p
	}
	p.MaxAttempts = cfg.RetryMaxAttempts
	p.BaseDelay = cfg.RetryBaseDelay
	p.MaxDelay = cfg.RetryMaxDelay
	return p
}

// Delay returns the wait before retry number attempt (1-based), before jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p RetryPolicy) jittered(d time.Duration) time.Duration {
	if p.Jitter <= 0 {
		return d
	}
	spread := float64(d) * p.Jitter
	return time.Duration(float64(d) - spread + rand.Float64()*2*spread)
}

// Do runs fn until it succeeds, returns a non-retryable error, or attempts run out.
// The last error is returned as is.
func (p RetryPolicy) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			calendarRetriesTotal.WithLabelValues(operation).Inc()

			timer := time.NewTimer(p.jittered(p.Delay(attempt - 1)))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		err = fn(ctx)
		if err == nil || !Retryable(err) {
			return err
		}
	}

	return err
}
