package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mutex sync.Mutex
	t     time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.t = c.t.Add(d)
}

func newTestRateLimiter(clock *fakeClock) *RateLimitService {
	return NewRateLimitService(RateLimitServiceConfig{
		SweepInterval: time.Minute,
		StaleAfter:    10 * time.Minute,
	}).WithClock(clock.Now)
}

func TestRateLimitAllow(t *testing.T) {
	const limit = 10
	clock := newFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	limiter := newTestRateLimiter(clock)

	t.Run("requests up to limit allowed", func(t *testing.T) {
		for i := range limit {
			result := limiter.Allow("sensitive:10.0.0.1", limit, time.Minute)
			require.True(t, result.Allowed, "request %d", i+1)
			assert.Equal(t, limit-i-1, result.Remaining)
		}
	})

	t.Run("request over limit rejected", func(t *testing.T) {
		result := limiter.Allow("sensitive:10.0.0.1", limit, time.Minute)
		assert.False(t, result.Allowed)
		assert.Equal(t, 0, result.Remaining)
		assert.Equal(t, clock.Now().Add(time.Minute), result.ResetAt)
	})

	t.Run("other keys unaffected", func(t *testing.T) {
		result := limiter.Allow("sensitive:10.0.0.2", limit, time.Minute)
		assert.True(t, result.Allowed)
	})

	t.Run("window elapses and counter resets", func(t *testing.T) {
		clock.Advance(time.Minute + time.Second)
		result := limiter.Allow("sensitive:10.0.0.1", limit, time.Minute)
		assert.True(t, result.Allowed)
		assert.Equal(t, limit-1, result.Remaining)
	})
}

func TestRateLimitRejectedRequestsDoNotExtendWindow(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	limiter := newTestRateLimiter(clock)

	require.True(t, limiter.Allow("k", 1, time.Minute).Allowed)

	clock.Advance(50 * time.Second)
	require.False(t, limiter.Allow("k", 1, time.Minute).Allowed)

	clock.Advance(11 * time.Second)
	assert.True(t, limiter.Allow("k", 1, time.Minute).Allowed)
}

func TestRateLimitConcurrentAllow(t *testing.T) {
	const limit = 100
	clock := newFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	limiter := newTestRateLimiter(clock)

	var allowed atomic.Int64
	var wg sync.WaitGroup

	for range 500 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("general:10.0.0.1", limit, time.Minute).Allowed {
				allowed.Add(1)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int64(limit), allowed.Load())
}

func TestRateLimitSweep(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	limiter := newTestRateLimiter(clock)

	limiter.Allow("old", 10, time.Minute)
	clock.Advance(8 * time.Minute)
	limiter.Allow("fresh", 10, time.Minute)
	clock.Advance(3 * time.Minute)

	removed := limiter.Sweep(clock.Now())
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, limiter.Len())
}

func TestRateLimitStartStop(t *testing.T) {
	limiter := NewRateLimitService(RateLimitServiceConfig{
		SweepInterval: 10 * time.Millisecond,
		StaleAfter:    time.Nanosecond,
	})

	limiter.Allow("k", 10, time.Minute)
	limiter.Start(context.Background())

	assert.Eventually(t, func() bool {
		return limiter.Len() == 0
	}, time.Second, 10*time.Millisecond)

	limiter.Stop()
	limiter.Stop()
}
