package devseed

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisadapter "github.com/target/track-analysis-api/internal/adapters/redis"
	"github.com/target/track-analysis-api/internal/testutil"
)

func TestRun_RequiresRepositories(t *testing.T) {
	_, err := Run(context.Background(), Services{}, nil)
	require.Error(t, err)
}

func TestRun_SeedsIdempotently(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		client := testutil.SetupTestRedis(t)
		sessions := redisadapter.NewSessionStore(client, "")
		svc := NewServices(db, sessions)

		first, err := Run(ctx, svc, nil)
		require.NoError(t, err)
		require.Len(t, first.TrackIDs, len(demoTracks))
		assert.Equal(t, DevSessionID, first.SessionID)

		second, err := Run(ctx, svc, nil)
		require.NoError(t, err)
		assert.Equal(t, first.TrackIDs, second.TrackIDs, "re-running must not duplicate tracks")

		provider, err := svc.Providers.ActiveProvider(ctx, DevUserID)
		require.NoError(t, err)
		assert.Equal(t, first.Provider, provider)

		sess, err := sessions.Get(ctx, DevSessionID)
		require.NoError(t, err)
		assert.Equal(t, DevUserID, sess.UserID)
	})
}

func TestRun_WithoutSessionStore(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		res, err := Run(context.Background(), NewServices(db, nil), nil)
		require.NoError(t, err)
		assert.Empty(t, res.SessionID)
	})
}
