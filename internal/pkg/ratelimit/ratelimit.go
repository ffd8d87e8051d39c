package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window counter in redis. All state lives in the
// injected client, never in process memory, so every instance behind the
// load balancer enforces the same budget and a restart loses nothing.
type Limiter struct {
	client *redis.Client
	name   string
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewLimiter creates a limiter allowing limit calls per window, counted under
// the given name.
func NewLimiter(client *redis.Client, name string, limit int64, window time.Duration) *Limiter {
	return &Limiter{client: client, name: name, limit: limit, window: window, now: time.Now}
}

// WithClock overrides the clock for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow consumes one slot. When the budget is spent it returns ok=false and
// how long until the window rolls over. A redis outage fails open: limiting
// is protection, not a correctness guarantee, and dropping work because the
// counter is unreachable would invert that.
func (l *Limiter) Allow(ctx context.Context) (bool, time.Duration, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	key := fmt.Sprintf("ratelimit:%s:%d", l.name, windowStart.Unix())

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		log.Warnf("[RateLimit] redis unavailable for %s, allowing: %v", l.name, err)
		return true, 0, nil
	}
	if count == 1 {
		// First hit in the window owns setting the expiry.
		if err := l.client.Expire(ctx, key, l.window+time.Minute).Err(); err != nil {
			log.Warnf("[RateLimit] could not set expiry on %s: %v", key, err)
		}
	}

	if count > l.limit {
		retryAfter := windowStart.Add(l.window).Sub(now)
		return false, retryAfter, nil
	}
	return true, 0, nil
}

// Remaining reports the unused slots in the current window.
func (l *Limiter) Remaining(ctx context.Context) (int64, error) {
	windowStart := l.now().Truncate(l.window)
	key := fmt.Sprintf("ratelimit:%s:%d", l.name, windowStart.Unix())

	count, err := l.client.Get(ctx, key).Int64()
	if err != nil && err != redis.Nil {
		return 0, err
	}
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
