package data

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmptyCacheKey is returned for a blank cache key.
var ErrEmptyCacheKey = errors.New("cache key cannot be empty")

// RedisCache is the Redis-backed core.CacheRepository.
type RedisCache struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisCache returns a cache whose keys are prefixed with namespace, so
// several deployments can share one Redis database.
func NewRedisCache(client redis.UniversalClient, namespace string) *RedisCache {
	ns := strings.TrimSpace(namespace)
	if ns != "" && !strings.HasSuffix(ns, ":") {
		ns += ":"
	}
	return &RedisCache{client: client, namespace: ns}
}

func (c *RedisCache) key(k string) (string, error) {
	if strings.TrimSpace(k) == "" {
		return "", ErrEmptyCacheKey
	}
	return c.namespace + k, nil
}

// Set stores value under key. A ttl <= 0 stores it without expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k, err := c.key(key)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, k, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Get returns the stored bytes, or nil without error on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	k, err := c.key(key)
	if err != nil {
		return nil, err
	}
	b, err := c.client.Get(ctx, k).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	return b, nil
}

// Delete reports whether a value was removed.
func (c *RedisCache) Delete(ctx context.Context, key string) (bool, error) {
	k, err := c.key(key)
	if err != nil {
		return false, err
	}
	n, err := c.client.Del(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("cache delete %s: %w", key, err)
	}
	return n > 0, nil
}

// Health pings Redis.
func (c *RedisCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
