package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

//go:generate mockgen -source=cache.go -destination=cache_mock.go -package=core

// stubPreferences is a minimal ProviderPreferences for cache tests.
type stubPreferences struct {
	provider string
	err      error
	calls    int
}

func (s *stubPreferences) ActiveProvider(context.Context, int64) (string, error) {
	s.calls++
	return s.provider, s.err
}

func TestCachedProviderPreferences_ActiveProvider(t *testing.T) {
	t.Parallel()

	key := ProviderCacheKey(42)

	tests := []struct {
		name      string
		store     *stubPreferences
		setup     func(*MockCacheRepository)
		want      string
		wantErr   bool
		wantCalls int
	}{
		{
			name:  "cache hit skips store",
			store: &stubPreferences{provider: "openai"},
			setup: func(cache *MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), key).Return([]byte("anthropic"), nil)
			},
			want:      "anthropic",
			wantCalls: 0,
		},
		{
			name:  "cache miss loads and stores",
			store: &stubPreferences{provider: "openai"},
			setup: func(cache *MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), key).Return(nil, nil)
				cache.EXPECT().Set(gomock.Any(), key, []byte("openai"), 5*time.Minute).Return(nil)
			},
			want:      "openai",
			wantCalls: 1,
		},
		{
			name:  "empty provider is not cached",
			store: &stubPreferences{},
			setup: func(cache *MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), key).Return(nil, nil)
			},
			want:      "",
			wantCalls: 1,
		},
		{
			name:  "cache errors fall through to store",
			store: &stubPreferences{provider: "google"},
			setup: func(cache *MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), key).Return(nil, errors.New("redis down"))
				cache.EXPECT().Set(gomock.Any(), key, []byte("google"), gomock.Any()).Return(errors.New("redis down"))
			},
			want:      "google",
			wantCalls: 1,
		},
		{
			name:  "store error is returned",
			store: &stubPreferences{err: errors.New("db down")},
			setup: func(cache *MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), key).Return(nil, nil)
			},
			wantErr:   true,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			cache := NewMockCacheRepository(ctrl)
			tt.setup(cache)

			prefs := NewCachedProviderPreferences(CachedProviderPreferencesOptions{
				Store: tt.store,
				Cache: cache,
			})

			got, err := prefs.ActiveProvider(context.Background(), 42)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.Equal(t, tt.wantCalls, tt.store.calls)
		})
	}
}

func TestCachedProviderPreferences_NoCache(t *testing.T) {
	store := &stubPreferences{provider: "openai"}
	prefs := NewCachedProviderPreferences(CachedProviderPreferencesOptions{Store: store})

	got, err := prefs.ActiveProvider(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "openai", got)
	require.NoError(t, prefs.Invalidate(context.Background(), 1))
}

func TestCachedProviderPreferences_Invalidate(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := NewMockCacheRepository(ctrl)
	cache.EXPECT().Delete(gomock.Any(), "analysis:provider:9").Return(true, nil)

	prefs := NewCachedProviderPreferences(CachedProviderPreferencesOptions{
		Store: &stubPreferences{},
		Cache: cache,
	})

	require.NoError(t, prefs.Invalidate(context.Background(), 9))
}
