package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vendhub/vendhub/pkg/observability"
)

// RedisCache implements Cache over Redis. Backend errors are logged and
// swallowed: the caller sees a miss, never a failure.
type RedisCache struct {
	client  *redis.Client
	logger  *observability.Logger
	metrics *observability.Metrics
}

// RedisConfig configures the Redis cache adapter.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// NewRedisCache creates a Redis-backed cache and verifies connectivity.
func NewRedisCache(cfg RedisConfig, logger *observability.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB >= 0 {
		opts.DB = cfg.DB
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, logger: logger}, nil
}

// NewRedisCacheFromClient wraps an existing client (used in tests).
func NewRedisCacheFromClient(client *redis.Client, logger *observability.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

// WithMetrics enables hit/miss/error counters.
func (c *RedisCache) WithMetrics(m *observability.Metrics) *RedisCache {
	c.metrics = m
	return c
}

// Get returns the cached value, treating every backend error as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		if c.metrics != nil {
			c.metrics.CacheMissesTotal.WithLabelValues("redis").Inc()
		}
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Debug("cache get failed, treating as miss")
		if c.metrics != nil {
			c.metrics.CacheErrorsTotal.WithLabelValues("redis").Inc()
		}
		return nil, false
	}
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues("redis").Inc()
	}
	return data, true
}

// Set stores a value; failures are logged and dropped.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Debug("cache set failed")
		if c.metrics != nil {
			c.metrics.CacheErrorsTotal.WithLabelValues("redis").Inc()
		}
	}
}

// DeletePattern removes keys matching a glob pattern via SCAN.
func (c *RedisCache) DeletePattern(ctx context.Context, pattern string) int {
	deleted := 0
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.WithError(err).WithField("key", iter.Val()).Debug("cache delete failed")
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		c.logger.WithError(err).WithField("pattern", pattern).Debug("cache scan failed")
		if c.metrics != nil {
			c.metrics.CacheErrorsTotal.WithLabelValues("redis").Inc()
		}
	}
	return deleted
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
