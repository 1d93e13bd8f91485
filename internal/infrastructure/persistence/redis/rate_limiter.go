package redis

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window request counter shared by every server
// instance using the same Redis.
type RateLimiter struct {
	cache  *Cache
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit requests per key in each window.
func NewRateLimiter(cache *Cache, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = TTLRateLimitWindow
	}
	return &RateLimiter{
		cache:  cache,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Allow counts one request for key and reports whether it is within the limit.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	bucket := l.now().UnixNano() / int64(l.window)
	count, err := l.cache.IncrWithExpiry(ctx, RateLimitKey(key, bucket), l.window)
	if err != nil {
		return false, err
	}
	return count <= l.limit, nil
}
