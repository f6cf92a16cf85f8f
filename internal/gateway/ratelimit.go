package gateway

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mrz1836/smartspec/internal/clock"
	"github.com/mrz1836/smartspec/internal/constants"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// Limiter enforces the per-user request budget. Allow returns nil when the
// call may proceed and a RateLimitError carrying retry-after when the window
// budget is spent. Limiting happens before any cost estimation.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// windowStart truncates now to the fixed window boundary.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

// memoryLimiter is the in-process fixed-window limiter used when no Redis
// backend is configured. Counts reset at window boundaries; stale windows are
// dropped on the next touch of their key.
type memoryLimiter struct {
	limit  int
	window time.Duration
	clock  clock.Clock

	mu      sync.Mutex
	windows map[string]*windowCount
}

type windowCount struct {
	start time.Time
	count int
}

// NewMemoryLimiter creates an in-process fixed-window limiter allowing limit
// requests per key per window.
func NewMemoryLimiter(limit int, window time.Duration, clk clock.Clock) Limiter {
	if window <= 0 {
		window = constants.RateLimitWindow
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &memoryLimiter{
		limit:   limit,
		window:  window,
		clock:   clk,
		windows: make(map[string]*windowCount),
	}
}

// Allow implements Limiter.
func (l *memoryLimiter) Allow(_ context.Context, key string) error {
	if l.limit <= 0 {
		return nil
	}
	now := l.clock.Now()
	start := windowStart(now, l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || w.start.Before(start) {
		w = &windowCount{start: start}
		l.windows[key] = w
	}
	if w.count >= l.limit {
		return &sserrors.RateLimitError{
			RetryAfter: start.Add(l.window).Sub(now),
			Limit:      l.limit,
		}
	}
	w.count++
	return nil
}

// redisLimiter is the distributed fixed-window limiter: one INCR'd counter
// per key per window, expiring shortly after the window closes. Multiple
// gateway processes sharing one Redis see one budget.
type redisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	clock  clock.Clock
}

// NewRedisLimiter creates a fixed-window limiter over the given Redis client.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, clk clock.Clock) Limiter {
	if window <= 0 {
		window = constants.RateLimitWindow
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &redisLimiter{client: client, limit: limit, window: window, clock: clk}
}

// Allow implements Limiter.
func (l *redisLimiter) Allow(ctx context.Context, key string) error {
	if l.limit <= 0 {
		return nil
	}
	now := l.clock.Now()
	start := windowStart(now, l.window)
	redisKey := "smartspec:ratelimit:" + key + ":" + strconv.FormatInt(start.Unix(), 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// Expiry outlives the window slightly so in-flight reads never race it.
	pipe.Expire(ctx, redisKey, l.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return sserrors.Wrap(err, "rate limit backend")
	}

	if int(incr.Val()) > l.limit {
		return &sserrors.RateLimitError{
			RetryAfter: start.Add(l.window).Sub(now),
			Limit:      l.limit,
		}
	}
	return nil
}
