package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyDelay(t *testing.T) {
	assert := assert.New(t)

	p := DefaultRetryPolicy
	assert.Equal(250*time.Millisecond, p.Delay(0))
	assert.Equal(400*time.Millisecond, p.Delay(1))
	assert.Equal(550*time.Millisecond, p.Delay(2))
}

func TestRetryPolicyDo(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var slept []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	fail := errors.New("nope")

	calls := 0
	attempts, err := DefaultRetryPolicy.Do(ctx, sleep, func(ctx context.Context, attempt int) error {
		assert.Equal(calls, attempt)
		calls++
		return fail
	})
	assert.ErrorIs(err, fail)
	assert.Equal(3, attempts)
	assert.Equal(3, calls)
	assert.Equal([]time.Duration{250 * time.Millisecond, 400 * time.Millisecond, 550 * time.Millisecond}, slept)

	slept = nil
	attempts, err = DefaultRetryPolicy.Do(ctx, sleep, func(ctx context.Context, attempt int) error {
		return nil
	})
	assert.NoError(err)
	assert.Equal(1, attempts)
	assert.Empty(slept)

	// zero-value policy still makes a single attempt
	attempts, err = RetryPolicy{}.Do(ctx, sleep, func(ctx context.Context, attempt int) error {
		return fail
	})
	assert.Error(err)
	assert.Equal(1, attempts)
}

func TestRetryPolicyCancelled(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	sleep := func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	}
	attempts, err := DefaultRetryPolicy.Do(ctx, sleep, func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("nope")
	})
	assert.Error(err)
	assert.Equal(1, attempts)
	assert.Equal(1, calls)
}
