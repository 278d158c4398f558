// Package retry wraps provider calls with bounded retries and exponential
// backoff. Errors are classified through internal/common: transient failures
// are retried, terminal ones abort immediately without consuming the
// remaining attempts.
package retry

import (
	"context"
	"time"

	"github.com/nxreporting/stockex/internal/common"
	"github.com/nxreporting/stockex/internal/model"
)

// Observer receives one ExtractionAttempt per invocation, success or
// failure, including each retry.
type Observer func(model.ExtractionAttempt)

// Policy holds the retry bounds. The zero value is not usable; call
// NewPolicy.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewPolicy(maxAttempts int, baseDelay time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return Policy{MaxAttempts: maxAttempts, BaseDelay: baseDelay, sleep: sleepCtx}
}

// Do runs op under the policy, reporting every attempt to observe (which may
// be nil). The delay before attempt n+1 is BaseDelay * 2^(n-1).
func Do[T any](ctx context.Context, p Policy, name string, op func(context.Context) (T, error), observe Observer) (T, error) {
	if p.sleep == nil {
		p.sleep = sleepCtx
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		start := time.Now()
		res, err := op(ctx)
		rec := model.ExtractionAttempt{
			Provider:   name,
			Attempt:    attempt,
			StartedAt:  start,
			DurationMs: time.Since(start).Milliseconds(),
			Succeeded:  err == nil,
		}
		if err != nil {
			rec.ErrorKind = string(common.KindOf(err))
			rec.Error = err.Error()
		}
		if observe != nil {
			observe(rec)
		}
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !common.Retryable(err) || attempt == p.MaxAttempts {
			break
		}
		delay := p.BaseDelay << (attempt - 1)
		if serr := p.sleep(ctx, delay); serr != nil {
			return zero, common.NewError(common.KindTransient, name, "retry interrupted", serr)
		}
	}
	return zero, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
