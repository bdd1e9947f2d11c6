// Package ratelimit counts requests per key in fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter reports whether another request for key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter shares its counters across processes. Keys carry the window
// start so an expired window never blocks the next one.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, prefix string, limit int, d time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: d, now: time.Now}
}

// Allow fails open: when Redis errors the request is allowed and the error is
// returned for logging.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	windowStart := l.now().Truncate(l.window)
	redisKey := "ratelimit:" + l.prefix + ":" + key + ":" + strconv.FormatInt(windowStart.UnixMilli(), 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.PExpire(ctx, redisKey, l.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("rate limiter error (failing open): %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}

type window struct {
	start time.Time
	count int
}

// LocalLimiter keeps counters in process memory.
type LocalLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]*window
}

func NewLocalLimiter(limit int, d time.Duration) *LocalLimiter {
	return &LocalLimiter{limit: limit, window: d, now: time.Now, windows: make(map[string]*window)}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	start := l.now().Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok || !w.start.Equal(start) {
		for k, old := range l.windows {
			if old.start.Before(start) {
				delete(l.windows, k)
			}
		}
		w = &window{start: start}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.limit, nil
}
