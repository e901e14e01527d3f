package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/track-analysis-api/config"
	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/domain/model"
	"github.com/target/track-analysis-api/internal/mocks"
	"github.com/target/track-analysis-api/internal/observability/metrics"
	"github.com/target/track-analysis-api/internal/observability/statsd"
	"go.uber.org/mock/gomock"
)

func testReaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:   5 * time.Minute,
		StaleAfter: 30 * time.Minute,
		BatchSize:  100,
		PurgeLimit: 50,
	}
}

type reaperFixture struct {
	store  *mocks.MockReaperStore
	purger *mocks.MockQueueGroupPurger
	events *mocks.MockEventPublisher
	alerts *mocks.MockJobFailureNotifier
	svc    *ReaperService
}

func newReaperFixture(t *testing.T, cfg config.ReaperConfig) *reaperFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &reaperFixture{
		store:  mocks.NewMockReaperStore(ctrl),
		purger: mocks.NewMockQueueGroupPurger(ctrl),
		events: mocks.NewMockEventPublisher(ctrl),
		alerts: mocks.NewMockJobFailureNotifier(ctrl),
	}
	svc, err := NewReaperService(ReaperServiceOptions{
		Repo:   f.store,
		Config: cfg,
		Hooks:  JobHooks{Events: f.events, Purger: f.purger, Alerts: f.alerts},
		Logger: slog.Default(),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func staleJob(id string) *model.Job {
	msg := model.JobErrorStale
	return &model.Job{
		ID:           id,
		UserID:       7,
		Type:         model.JobTypeTrackBatch,
		Status:       model.JobStatusFailed,
		ItemCount:    3,
		ErrorMessage: &msg,
	}
}

func TestNewReaperService(t *testing.T) {
	t.Run("creates service with valid config", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   mocks.NewMockReaperStore(ctrl),
			Config: testReaperConfig(),
			Logger: slog.Default(),
		})

		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("returns error when repo is nil", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{Config: testReaperConfig()})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "ReaperStore is required")
	})

	t.Run("returns error when interval is not positive", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cfg := testReaperConfig()
		cfg.Interval = 0

		_, err := NewReaperService(ReaperServiceOptions{Repo: mocks.NewMockReaperStore(ctrl), Config: cfg})

		require.Error(t, err)
	})
}

func TestReaperService_failStaleJobs(t *testing.T) {
	t.Run("fails stale jobs in batches and runs terminal hooks", func(t *testing.T) {
		f := newReaperFixture(t, testReaperConfig())
		ctx := context.Background()
		params := core.FailStaleJobsParams{MaxIdle: 30 * time.Minute, BatchSize: 100}

		gomock.InOrder(
			f.store.EXPECT().FailStaleJobs(ctx, params).Return([]*model.Job{staleJob("j1"), staleJob("j2")}, nil),
			f.store.EXPECT().FailStaleJobs(ctx, params).Return(nil, nil),
		)
		for _, id := range []string{"j1", "j2"} {
			f.purger.EXPECT().PurgeGroup(ctx, id).Return(int64(1), nil)
			f.alerts.EXPECT().NotifyJob(ctx, gomock.Cond(func(j *model.Job) bool { return j.ID == id }))
		}
		f.events.EXPECT().Publish(ctx, gomock.Any()).Times(2).DoAndReturn(
			func(_ context.Context, ev model.Event) error {
				assert.Equal(t, model.EventJobCompleted, ev.Type)
				return nil
			})

		count, err := f.svc.failStaleJobs(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("hook failures do not abort the sweep", func(t *testing.T) {
		f := newReaperFixture(t, testReaperConfig())
		ctx := context.Background()

		gomock.InOrder(
			f.store.EXPECT().FailStaleJobs(ctx, gomock.Any()).Return([]*model.Job{staleJob("j1")}, nil),
			f.store.EXPECT().FailStaleJobs(ctx, gomock.Any()).Return(nil, nil),
		)
		f.purger.EXPECT().PurgeGroup(ctx, "j1").Return(int64(0), errors.New("redis down"))
		f.events.EXPECT().Publish(ctx, gomock.Any()).Return(errors.New("redis down"))
		f.alerts.EXPECT().NotifyJob(ctx, gomock.Any())

		count, err := f.svc.failStaleJobs(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("returns store error", func(t *testing.T) {
		f := newReaperFixture(t, testReaperConfig())
		ctx := context.Background()
		f.store.EXPECT().FailStaleJobs(ctx, gomock.Any()).Return(nil, errors.New("db down"))

		count, err := f.svc.failStaleJobs(ctx)

		require.Error(t, err)
		assert.Zero(t, count)
	})
}

func TestReaperService_purgeFinishedJobMessages(t *testing.T) {
	t.Run("purges groups of jobs finished within two intervals", func(t *testing.T) {
		f := newReaperFixture(t, testReaperConfig())
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		f.svc.now = func() time.Time { return now }
		ctx := context.Background()

		f.store.EXPECT().
			ListFinishedSince(ctx, now.Add(-10*time.Minute), 50).
			Return([]*model.Job{{ID: "a"}, {ID: "b"}}, nil)
		f.purger.EXPECT().PurgeGroup(ctx, "a").Return(int64(2), nil)
		f.purger.EXPECT().PurgeGroup(ctx, "b").Return(int64(0), nil)

		count, err := f.svc.purgeFinishedJobMessages(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("noop without purger", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   mocks.NewMockReaperStore(ctrl),
			Config: testReaperConfig(),
		})
		require.NoError(t, err)

		count, err := svc.purgeFinishedJobMessages(context.Background())

		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestReaperService_runCleanup(t *testing.T) {
	t.Run("continues on partial errors", func(t *testing.T) {
		f := newReaperFixture(t, testReaperConfig())
		ctx := context.Background()

		f.store.EXPECT().FailStaleJobs(ctx, gomock.Any()).Return(nil, errors.New("fail error"))
		f.store.EXPECT().ListFinishedSince(ctx, gomock.Any(), 50).Return(nil, nil)

		err := f.svc.runCleanup(ctx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "fail stale jobs")
	})

	t.Run("reports canceled when every step was canceled", func(t *testing.T) {
		f := newReaperFixture(t, testReaperConfig())
		ctx := context.Background()

		f.store.EXPECT().FailStaleJobs(ctx, gomock.Any()).Return(nil, context.Canceled)
		f.store.EXPECT().ListFinishedSince(ctx, gomock.Any(), 50).Return(nil, context.Canceled)

		err := f.svc.runCleanup(ctx)

		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("emits sweep and per-task metrics", func(t *testing.T) {
		rec := &statsd.Recorder{}
		ctrl := gomock.NewController(t)
		store := mocks.NewMockReaperStore(ctrl)
		svc, err := NewReaperService(ReaperServiceOptions{Repo: store, Config: testReaperConfig(), Metrics: rec})
		require.NoError(t, err)
		ctx := context.Background()

		store.EXPECT().FailStaleJobs(ctx, gomock.Any()).Return(nil, errors.New("db down"))

		require.Error(t, svc.runCleanup(ctx))

		sweeps := rec.Named("reaper.cleanup")
		require.Len(t, sweeps, 1)
		assert.Equal(t, metrics.ResultError, sweeps[0].Tags["result"])
		assert.Len(t, rec.Named("reaper.operation"), 2)
		assert.Empty(t, rec.Named("reaper.last_success_epoch"))
	})
}

func TestStartupJitter(t *testing.T) {
	assert.Zero(t, startupJitter(0))
	for range 50 {
		d := startupJitter(time.Minute)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 6*time.Second)
	}
}

func TestReaperService_Run(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		cfg := testReaperConfig()
		cfg.Interval = 100 * time.Millisecond
		f := newReaperFixture(t, cfg)

		f.store.EXPECT().FailStaleJobs(gomock.Any(), gomock.Any()).Return(nil, nil).MinTimes(1)
		f.store.EXPECT().ListFinishedSince(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).MinTimes(1)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- f.svc.Run(ctx)
		}()

		time.Sleep(150 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Run did not stop after context cancellation")
		}
	})

	t.Run("continues running despite cleanup errors", func(t *testing.T) {
		cfg := testReaperConfig()
		cfg.Interval = 50 * time.Millisecond
		f := newReaperFixture(t, cfg)

		f.store.EXPECT().FailStaleJobs(gomock.Any(), gomock.Any()).Return(nil, errors.New("test error")).MinTimes(2)
		f.store.EXPECT().ListFinishedSince(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		err := f.svc.Run(ctx)

		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
