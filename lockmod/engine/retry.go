package engine

import (
	"context"
	"time"
)

// Linear backoff retry policy, applied uniformly to every corrective call.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Increment   time.Duration
}

// 3 attempts, waiting 250ms, 400ms and 550ms after each failure
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   250 * time.Millisecond,
	Increment:   150 * time.Millisecond,
}

// Delay after the failed attempt with the given (zero-based) index.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay + p.Increment*time.Duration(attempt)
}

// Calls fn until it succeeds or attempts are exhausted, sleeping Delay(i) after each failure. Returns the number of attempts made and the last error (nil on success).
//
// Only a cancelled context cuts the schedule short.
func (p RetryPolicy) Do(ctx context.Context, sleep func(context.Context, time.Duration) error, fn func(ctx context.Context, attempt int) error) (int, error) {
	max := p.MaxAttempts
	if max < 1 {
		max = 1
	}
	var err error
	for i := 0; i < max; i++ {
		err = fn(ctx, i)
		if err == nil {
			return i + 1, nil
		}
		if serr := sleep(ctx, p.Delay(i)); serr != nil {
			return i + 1, err
		}
	}
	return max, err
}
