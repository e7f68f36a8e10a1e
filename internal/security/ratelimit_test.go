package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounter is an in-memory Counter with a manually advanced clock
type fakeCounter struct {
	counts  map[string]int64
	expires map[string]time.Time
	now     time.Time
	err     error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{
		counts:  map[string]int64{},
		expires: map[string]time.Time{},
		now:     time.Now(),
	}
}

func (c *fakeCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	if exp, ok := c.expires[key]; ok && c.now.After(exp) {
		delete(c.counts, key)
		delete(c.expires, key)
	}
	c.counts[key]++
	if c.counts[key] == 1 {
		c.expires[key] = c.now.Add(window)
	}
	return c.counts[key], nil
}

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	counter := newFakeCounter()
	limiter := NewRateLimiter(counter)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.NoError(t, limiter.Enforce(ctx, 1, "203.0.113.7", 3, 10))
	}

	err := limiter.Enforce(ctx, 1, "203.0.113.7", 3, 10)
	assert.ErrorIs(t, err, ErrTooManyRequests)
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	counter := newFakeCounter()
	limiter := NewRateLimiter(counter)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Enforce(ctx, 1, "203.0.113.7", 3, 10))
	}
	require.ErrorIs(t, limiter.Enforce(ctx, 1, "203.0.113.7", 3, 10), ErrTooManyRequests)

	counter.now = counter.now.Add(11 * time.Second)
	assert.NoError(t, limiter.Enforce(ctx, 1, "203.0.113.7", 3, 10))
}

func TestRateLimiterIsolatesFormsAndClients(t *testing.T) {
	counter := newFakeCounter()
	limiter := NewRateLimiter(counter)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Enforce(ctx, 1, "203.0.113.7", 3, 10))
	}
	require.ErrorIs(t, limiter.Enforce(ctx, 1, "203.0.113.7", 3, 10), ErrTooManyRequests)

	// Different form, same IP
	assert.NoError(t, limiter.Enforce(ctx, 2, "203.0.113.7", 3, 10))
	// Same form, different IP
	assert.NoError(t, limiter.Enforce(ctx, 1, "198.51.100.1", 3, 10))
}

func TestRateLimiterDisabled(t *testing.T) {
	counter := newFakeCounter()
	limiter := NewRateLimiter(counter)
	ctx := context.Background()

	assert.NoError(t, limiter.Enforce(ctx, 1, "203.0.113.7", 0, 10))
	assert.NoError(t, limiter.Enforce(ctx, 1, "203.0.113.7", 3, 0))
	assert.NoError(t, limiter.Enforce(ctx, 1, "", 3, 10))
	assert.Empty(t, counter.counts)
}

func TestRateLimiterCounterFailure(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("redis down")
	limiter := NewRateLimiter(counter)

	err := limiter.Enforce(context.Background(), 1, "203.0.113.7", 3, 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTooManyRequests)
}
