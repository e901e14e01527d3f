// Package core defines the ports between the analysis services and their adapters.
package core

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// CacheRepository defines the interface for caching operations.
type CacheRepository interface {
	// Set stores a value with the given TTL. A zero TTL never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns nil when the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
	Health(ctx context.Context) error
}

const providerCacheKeyPrefix = "analysis:provider:"

// CachedProviderPreferences memoizes provider lookups. Cache errors fall through to the store.
type CachedProviderPreferences struct {
	store  ProviderPreferences
	cache  CacheRepository
	ttl    time.Duration
	logger *slog.Logger
}

// CachedProviderPreferencesOptions configures CachedProviderPreferences.
type CachedProviderPreferencesOptions struct {
	Store  ProviderPreferences // Required
	Cache  CacheRepository     // Optional: nil disables caching
	TTL    time.Duration       // Optional: defaults to 5m
	Logger *slog.Logger        // Optional
}

// NewCachedProviderPreferences constructs a caching ProviderPreferences.
func NewCachedProviderPreferences(opts CachedProviderPreferencesOptions) *CachedProviderPreferences {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProviderPreferences{
		store:  opts.Store,
		cache:  opts.Cache,
		ttl:    ttl,
		logger: logger.With("component", "provider_cache"),
	}
}

// ActiveProvider implements ProviderPreferences.
func (c *CachedProviderPreferences) ActiveProvider(ctx context.Context, userID int64) (string, error) {
	if c.cache == nil {
		return c.store.ActiveProvider(ctx, userID)
	}

	key := ProviderCacheKey(userID)
	if cached, err := c.cache.Get(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "provider cache get failed", "user_id", userID, "error", err)
	} else if cached != nil {
		return string(cached), nil
	}

	provider, err := c.store.ActiveProvider(ctx, userID)
	if err != nil {
		return "", err
	}
	if provider != "" {
		if setErr := c.cache.Set(ctx, key, []byte(provider), c.ttl); setErr != nil {
			c.logger.WarnContext(ctx, "provider cache set failed", "user_id", userID, "error", setErr)
		}
	}
	return provider, nil
}

// Invalidate drops the cached provider for a user.
func (c *CachedProviderPreferences) Invalidate(ctx context.Context, userID int64) error {
	if c.cache == nil {
		return nil
	}
	_, err := c.cache.Delete(ctx, ProviderCacheKey(userID))
	return err
}

// ProviderCacheKey returns the cache key for a user's provider.
func ProviderCacheKey(userID int64) string {
	return providerCacheKeyPrefix + strconv.FormatInt(userID, 10)
}
