package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/track-analysis-api/internal/testutil"
)

func TestRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	cache := NewRedisCache(client, "test")
	ctx := context.Background()

	t.Run("values live under the namespace", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "analysis:provider:1", []byte("openai"), 5*time.Minute))

		got, err := cache.Get(ctx, "analysis:provider:1")
		require.NoError(t, err)
		assert.Equal(t, []byte("openai"), got)

		raw, err := client.Get(ctx, "test:analysis:provider:1").Result()
		require.NoError(t, err)
		assert.Equal(t, "openai", raw)

		ttl := client.TTL(ctx, "test:analysis:provider:1").Val()
		assert.True(t, ttl > 0 && ttl <= 5*time.Minute)
	})

	t.Run("non-positive ttl never expires", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "analysis:provider:3", []byte("google"), -time.Second))
		assert.Equal(t, time.Duration(-1), client.TTL(ctx, "test:analysis:provider:3").Val())
	})

	t.Run("miss returns nil", func(t *testing.T) {
		got, err := cache.Get(ctx, "analysis:provider:missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "analysis:provider:2", []byte("google"), time.Minute))

		deleted, err := cache.Delete(ctx, "analysis:provider:2")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = cache.Delete(ctx, "analysis:provider:2")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, cache.Health(ctx))
	})
}

func TestRedisCache_RejectsBlankKeys(t *testing.T) {
	cache := NewRedisCache(nil, "")
	ctx := context.Background()

	require.ErrorIs(t, cache.Set(ctx, " ", []byte("x"), time.Minute), ErrEmptyCacheKey)
	_, err := cache.Get(ctx, "")
	require.ErrorIs(t, err, ErrEmptyCacheKey)
	_, err = cache.Delete(ctx, "")
	require.ErrorIs(t, err, ErrEmptyCacheKey)
}

func TestNewRedisCache_Namespace(t *testing.T) {
	assert.Equal(t, "prod:", NewRedisCache(nil, " prod ").namespace)
	assert.Equal(t, "prod:", NewRedisCache(nil, "prod:").namespace)
	assert.Empty(t, NewRedisCache(nil, "").namespace)
}
