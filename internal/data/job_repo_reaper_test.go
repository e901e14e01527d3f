package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/domain/model"
	"github.com/target/track-analysis-api/internal/testutil"
)

func TestJobRepo_FailStaleJobs(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		clk := NewManualClock(start)
		cfg := RepoConfig{Clock: clk}
		jobs := NewJobRepo(db, cfg)
		attempts := NewAttemptRepo(db, cfg)
		ctx := context.Background()

		stale, err := jobs.Create(ctx, testutil.NewJobRequest().WithItems(1, 2).Build())
		require.NoError(t, err)
		require.NoError(t, attempts.StartMany(ctx, stale.ID, []int64{1, 2}))

		clk.Advance(40 * time.Minute)
		fresh, err := jobs.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)

		t.Run("validates params", func(t *testing.T) {
			_, err := jobs.FailStaleJobs(ctx, core.FailStaleJobsParams{BatchSize: 10})
			require.Error(t, err)
			_, err = jobs.FailStaleJobs(ctx, core.FailStaleJobsParams{MaxIdle: time.Minute})
			require.Error(t, err)
		})

		failed, err := jobs.FailStaleJobs(ctx, core.FailStaleJobsParams{MaxIdle: 30 * time.Minute, BatchSize: 10})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, stale.ID, failed[0].ID)
		assert.Equal(t, model.JobStatusFailed, failed[0].Status)
		require.NotNil(t, failed[0].ErrorMessage)
		assert.Equal(t, model.JobErrorStale, *failed[0].ErrorMessage)

		list, err := attempts.ListByJob(ctx, stale.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		for _, a := range list {
			assert.Equal(t, model.AttemptStatusFailed, a.Status)
			require.NotNil(t, a.ErrorType)
			assert.Equal(t, model.AttemptErrorStale, *a.ErrorType)
		}

		got, err := jobs.GetByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, got.Status)

		again, err := jobs.FailStaleJobs(ctx, core.FailStaleJobsParams{MaxIdle: 30 * time.Minute, BatchSize: 10})
		require.NoError(t, err)
		assert.Empty(t, again)

		t.Run("lists finished jobs", func(t *testing.T) {
			finished, err := jobs.ListFinishedSince(ctx, start, 10)
			require.NoError(t, err)
			require.Len(t, finished, 1)
			assert.Equal(t, stale.ID, finished[0].ID)

			later, err := jobs.ListFinishedSince(ctx, clk.Now().Add(time.Minute), 10)
			require.NoError(t, err)
			assert.Empty(t, later)
		})
	})
}
