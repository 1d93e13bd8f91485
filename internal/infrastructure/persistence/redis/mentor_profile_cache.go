package redis

import (
	"context"
	"time"

	"github.com/alem-hub/mentorship-hub/pkg/circuitbreaker"
)

// MentorProfileCache caches assembled mentor profile views under
// MentorProfileKey. Values are opaque JSON documents owned by the caller.
type MentorProfileCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// NewMentorProfileCache creates a new MentorProfileCache. A non-positive ttl
// falls back to TTLMentorProfile.
func NewMentorProfileCache(cache *Cache, ttl time.Duration) *MentorProfileCache {
	if ttl <= 0 {
		ttl = TTLMentorProfile
	}
	return &MentorProfileCache{cache: cache, ttl: ttl}
}

// WithBreaker routes every call through cb. Misses do not count as failures
// when cb was built with circuitbreaker.ForCache(..., ErrCacheMiss).
func (c *MentorProfileCache) WithBreaker(cb *circuitbreaker.CircuitBreaker) *MentorProfileCache {
	c.breaker = cb
	return c
}

// Get decodes the cached view of mentorID into dest.
// Returns ErrCacheMiss when nothing is cached.
func (c *MentorProfileCache) Get(ctx context.Context, mentorID string, dest any) error {
	return c.do(ctx, func(ctx context.Context) error {
		return c.cache.Get(ctx, MentorProfileKey(mentorID), dest)
	})
}

// Set caches the view of mentorID.
func (c *MentorProfileCache) Set(ctx context.Context, mentorID string, view any) error {
	return c.do(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, MentorProfileKey(mentorID), view, c.ttl)
	})
}

// Invalidate drops the cached view of mentorID.
func (c *MentorProfileCache) Invalidate(ctx context.Context, mentorID string) error {
	return c.do(ctx, func(ctx context.Context) error {
		return c.cache.Delete(ctx, MentorProfileKey(mentorID))
	})
}

func (c *MentorProfileCache) do(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Execute(ctx, fn)
}
