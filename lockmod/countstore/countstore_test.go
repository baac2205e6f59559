package countstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.GetCount(ctx, "corrections", "t1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.Increment(ctx, "corrections", "t1"))
	assert.NoError(cs.Increment(ctx, "corrections", "t1"))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCount(ctx, "corrections", "t1", period)
		assert.NoError(err)
		assert.Equal(2, c)
	}

	c, err = cs.GetCount(ctx, "corrections", "t2", PeriodDay)
	assert.NoError(err)
	assert.Equal(0, c)
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	// run with `-race`
	var wg sync.WaitGroup
	fnInc := func(val string, times int) {
		defer wg.Done()
		for i := 0; i < times; i++ {
			assert.NoError(cs.Increment(ctx, "corrections", val))
			time.Sleep(time.Nanosecond)
		}
	}
	wg.Add(4)
	go fnInc("t1", 10)
	go fnInc("t1", 10)
	go fnInc("t2", 6)
	go fnInc("t2", 6)
	wg.Wait()

	c, err := cs.GetCount(ctx, "corrections", "t1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(20, c)
	c, err = cs.GetCount(ctx, "corrections", "t2", PeriodHour)
	assert.NoError(err)
	assert.Equal(12, c)
}

func TestPeriodBucket(t *testing.T) {
	assert := assert.New(t)

	now := time.Date(2024, 3, 9, 17, 45, 0, 0, time.UTC)
	assert.Equal("n/v", periodBucket("n", "v", PeriodTotal, now))
	assert.Equal("n/v/2024-03-09", periodBucket("n", "v", PeriodDay, now))
	assert.Equal("n/v/2024-03-09T17", periodBucket("n", "v", PeriodHour, now))
}

func TestRedisCountStoreBasics(t *testing.T) {
	t.Skip("live test, need redis running locally")
	assert := assert.New(t)
	ctx := context.Background()

	cs, err := NewRedisCountStore("redis://localhost:6379/0")
	if err != nil {
		t.Fail()
	}
	before, err := cs.GetCount(ctx, "test", "t1", PeriodTotal)
	assert.NoError(err)
	assert.NoError(cs.Increment(ctx, "test", "t1"))
	after, err := cs.GetCount(ctx, "test", "t1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(before+1, after)
}
