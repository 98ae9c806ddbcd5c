package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hoanghai1803/dokhae/internal/models"
)

// RetryPolicy bounds the attempts made for one provider call.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// CallTimeout bounds each attempt.
	CallTimeout time.Duration
}

// DefaultRetryPolicy is used for zero fields of a configured policy.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    5 * time.Second,
	CallTimeout: 45 * time.Second,
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = DefaultRetryPolicy.CallTimeout
	}
	return p
}

// isFinal reports whether retrying a call that failed with err is pointless.
func isFinal(err error) bool {
	return errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrUnavailable)
}

// retry runs fn until it succeeds, fails with a final error, or runs out of
// attempts. Each attempt gets its own timeout; the delay doubles between
// attempts up to MaxDelay. The last error is returned.
func retry(ctx context.Context, p RetryPolicy, op string, fn func(context.Context) error) error {
	delay := p.BaseDelay
	var err error
	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.CallTimeout)
		err = fn(callCtx)
		cancel()

		if err == nil || isFinal(err) || attempt >= p.MaxAttempts || ctx.Err() != nil {
			return err
		}

		slog.Warn("provider call failed, retrying",
			"op", op,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return err
		}
		delay = min(delay*2, p.MaxDelay)
	}
}
