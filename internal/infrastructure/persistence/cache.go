package persistence

import (
	"context"
	"time"

	"github.com/alem-hub/mentorship-hub/config"
	"github.com/alem-hub/mentorship-hub/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/mentorship-hub/pkg/circuitbreaker"
	"github.com/alem-hub/mentorship-hub/pkg/logger"
	"github.com/alem-hub/mentorship-hub/pkg/retry"
)

// RedisConfig converts the application settings into client settings.
func RedisConfig(cfg config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = cfg.URL
	rc.Host = cfg.Host
	rc.Port = cfg.Port
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	if cfg.PoolSize > 0 {
		rc.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		rc.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		rc.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		rc.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		rc.WriteTimeout = cfg.WriteTimeout
	}
	return rc
}

// OpenCache connects to Redis. It returns nil without an error when Redis is
// disabled or unreachable; callers then run without the cache.
func OpenCache(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Cache {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("redis"))
	if cfg.Disabled {
		log.Info("redis disabled")
		return nil
	}

	retrier := retry.ConnectRetrier(func(attempt int, err error, delay time.Duration) {
		log.Warn("redis not ready, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	})

	var cache *redis.Cache
	err := retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		cache, err = redis.NewCache(ctx, RedisConfig(cfg))
		return err
	})
	if err != nil {
		log.Warn("failed to connect to redis, running without cache", logger.Err(err))
		return nil
	}
	log.Info("redis connection established")
	return cache
}

// ProfileCache wraps cache in a MentorProfileCache guarded by a circuit
// breaker, so an unhealthy Redis is skipped instead of slowing every request.
func ProfileCache(cache *redis.Cache, ttl time.Duration, log *logger.Logger) *redis.MentorProfileCache {
	if log == nil {
		log = logger.Nop()
	}
	breaker := circuitbreaker.ForCache("redis-profiles", func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.Component("redis"),
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	}, redis.ErrCacheMiss)
	return redis.NewMentorProfileCache(cache, ttl).WithBreaker(breaker)
}
