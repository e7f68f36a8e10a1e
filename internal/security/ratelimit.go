// internal/security/ratelimit.go
// Fixed-window rate limiting keyed by (form, client IP). The counter uses an
// atomic INCR so two concurrent submissions cannot read-then-write past each
// other; the window TTL is set when the key is first created.

package security

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrTooManyRequests is returned when the window count exceeds the limit
var ErrTooManyRequests = errors.New("too many requests")

const rateLimitKeyPrefix = "formhive:throttle:"

// Counter is the minimal store contract the limiter needs. *redis.Client is
// the production implementation via RedisCounter; tests use an in-memory one.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimiter enforces a fixed-window request limit
type RateLimiter struct {
	counter Counter
}

func NewRateLimiter(counter Counter) *RateLimiter {
	return &RateLimiter{counter: counter}
}

// Enforce increments the window counter for (formID, ip) and returns
// ErrTooManyRequests when the incremented count exceeds maxRequests.
// Non-positive limits or an empty IP disable the check.
func (l *RateLimiter) Enforce(ctx context.Context, formID int64, ip string, maxRequests, perSeconds int) error {
	if maxRequests <= 0 || perSeconds <= 0 || ip == "" {
		return nil
	}

	sum := md5.Sum([]byte(fmt.Sprintf("%d|%s", formID, ip)))
	key := rateLimitKeyPrefix + hex.EncodeToString(sum[:])

	count, err := l.counter.Incr(ctx, key, time.Duration(perSeconds)*time.Second)
	if err != nil {
		return fmt.Errorf("rate limit counter: %w", err)
	}

	if count > int64(maxRequests) {
		return ErrTooManyRequests
	}
	return nil
}

// RedisCounter implements Counter on a Redis client
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// Incr atomically increments key and starts the window TTL on first hit
func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}
