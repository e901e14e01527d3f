package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/data"
	"github.com/target/track-analysis-api/internal/domain/model"
	apperrors "github.com/target/track-analysis-api/internal/errors"
	"github.com/target/track-analysis-api/internal/mocks"
	"go.uber.org/mock/gomock"
)

var persistNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type persistenceFixture struct {
	jobs     *mocks.MockJobStore
	attempts *mocks.MockAttemptLedger
	results  *mocks.MockResultStore
	outcomes *mocks.MockOutcomeTally
	events   *mocks.MockEventPublisher
	purger   *mocks.MockQueueGroupPurger
	alerts   *mocks.MockJobFailureNotifier
	svc      *JobPersistenceService
}

func passThroughTx(ctrl *gomock.Controller) *mocks.MockTransactor {
	tx := mocks.NewMockTransactor(ctrl)
	tx.EXPECT().WithinTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		}).AnyTimes()
	return tx
}

func newPersistenceFixture(t *testing.T) *persistenceFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &persistenceFixture{
		jobs:     mocks.NewMockJobStore(ctrl),
		attempts: mocks.NewMockAttemptLedger(ctrl),
		results:  mocks.NewMockResultStore(ctrl),
		outcomes: mocks.NewMockOutcomeTally(ctrl),
		events:   mocks.NewMockEventPublisher(ctrl),
		purger:   mocks.NewMockQueueGroupPurger(ctrl),
		alerts:   mocks.NewMockJobFailureNotifier(ctrl),
	}
	svc, err := NewJobPersistenceService(JobPersistenceServiceOptions{
		Tx: passThroughTx(ctrl),
		Stores: JobStores{
			Jobs:     f.jobs,
			Attempts: f.attempts,
			Results:  f.results,
			Outcomes: f.outcomes,
		},
		Hooks: JobHooks{Events: f.events, Purger: f.purger, Alerts: f.alerts},
		Clock: func() time.Time { return persistNow },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func counted(delta model.RollupDelta, ids ...int64) model.CountedOutcomes {
	return model.CountedOutcomes{Delta: delta, TrackIDs: ids}
}

func activeJob(id string, items ...int64) *model.Job {
	return &model.Job{
		ID:        id,
		UserID:    7,
		Type:      model.JobTypeTrackBatch,
		Status:    model.JobStatusInProgress,
		ItemCount: len(items),
		ItemIDs:   items,
		CreatedAt: persistNow.Add(-time.Minute),
		UpdatedAt: persistNow.Add(-time.Minute),
	}
}

func finishedCopy(job *model.Job, status model.JobStatus, reason string) *model.Job {
	out := *job
	out.Status = status
	if reason != "" {
		out.ErrorMessage = &reason
	}
	done := persistNow
	out.CompletedAt = &done
	return &out
}

func success(trackID int64) model.ItemOutcome {
	return model.ItemOutcome{
		TrackID:   trackID,
		Succeeded: true,
		Result:    &model.SaveResultRequest{ModelName: "gpt", Analysis: []byte(`{}`)},
	}
}

func failure(trackID int64) model.ItemOutcome {
	return model.ItemOutcome{
		TrackID: trackID,
		Failure: &model.AttemptFailure{ErrorType: model.AttemptErrorAnalysis, ErrorMessage: "provider rejected"},
	}
}

func TestNewJobPersistenceService(t *testing.T) {
	ctrl := gomock.NewController(t)

	_, err := NewJobPersistenceService(JobPersistenceServiceOptions{})
	require.Error(t, err)

	_, err = NewJobPersistenceService(JobPersistenceServiceOptions{
		Tx:     passThroughTx(ctrl),
		Stores: JobStores{Jobs: mocks.NewMockJobStore(ctrl)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AttemptLedger is required")
}

func TestJobPersistenceService_GetJob(t *testing.T) {
	ctx := context.Background()

	t.Run("maps missing job to not found", func(t *testing.T) {
		f := newPersistenceFixture(t)
		f.jobs.EXPECT().GetByID(ctx, "nope").Return(nil, data.ErrJobNotFound)

		_, err := f.svc.GetJob(ctx, 7, "nope")

		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("rejects another user's job", func(t *testing.T) {
		f := newPersistenceFixture(t)
		f.jobs.EXPECT().GetByID(ctx, "j1").Return(activeJob("j1", 1), nil)

		_, err := f.svc.GetJob(ctx, 8, "j1")

		assert.True(t, apperrors.IsForbidden(err))
	})

	t.Run("zero user skips ownership check", func(t *testing.T) {
		f := newPersistenceFixture(t)
		f.jobs.EXPECT().GetByID(ctx, "j1").Return(activeJob("j1", 1), nil)

		job, err := f.svc.GetJob(ctx, 0, "j1")

		require.NoError(t, err)
		assert.Equal(t, "j1", job.ID)
	})
}

func TestJobPersistenceService_BeginItems(t *testing.T) {
	ctx := context.Background()

	t.Run("starts unsettled members and skips the rest", func(t *testing.T) {
		f := newPersistenceFixture(t)
		job := activeJob("j1", 1, 2, 3)
		job.Status = model.JobStatusPending

		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(job, nil)
		f.outcomes.EXPECT().Settled(ctx, "j1", []int64{1, 2}).Return(map[int64]bool{2: true}, nil)
		f.attempts.EXPECT().StartMany(ctx, "j1", []int64{1}).Return(nil)
		started := *job
		started.Status = model.JobStatusInProgress
		f.jobs.EXPECT().StartProcessing(ctx, "j1").Return(&started, nil)

		res, err := f.svc.BeginItems(ctx, "j1", []int64{1, 2, 2, 99})

		require.NoError(t, err)
		assert.Equal(t, []int64{1}, res.Process)
		assert.ElementsMatch(t, []int64{99, 2}, res.Skip)
		assert.Equal(t, model.JobStatusInProgress, res.Job.Status)
	})

	t.Run("skips everything for a terminal job", func(t *testing.T) {
		f := newPersistenceFixture(t)
		job := finishedCopy(activeJob("j1", 1, 2), model.JobStatusFailed, model.JobErrorCancelled)
		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(job, nil)

		res, err := f.svc.BeginItems(ctx, "j1", []int64{1, 2})

		require.NoError(t, err)
		assert.Empty(t, res.Process)
		assert.Equal(t, []int64{1, 2}, res.Skip)
	})

	t.Run("does not start processing when everything is settled", func(t *testing.T) {
		f := newPersistenceFixture(t)
		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(activeJob("j1", 1), nil)
		f.outcomes.EXPECT().Settled(ctx, "j1", []int64{1}).Return(map[int64]bool{1: true}, nil)

		res, err := f.svc.BeginItems(ctx, "j1", []int64{1})

		require.NoError(t, err)
		assert.Empty(t, res.Process)
	})
}

func TestJobPersistenceService_ApplyOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("partial group advances rollups without finishing", func(t *testing.T) {
		f := newPersistenceFixture(t)
		job := activeJob("j1", 1, 2, 3)

		f.results.EXPECT().Upsert(ctx, gomock.Any()).Return(&model.AnalysisResult{TrackID: 1}, nil)
		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(job, nil)
		f.attempts.EXPECT().DeleteMany(ctx, "j1", []int64{1}).Return(int64(1), nil)
		f.attempts.EXPECT().MarkFailed(ctx, "j1", gomock.Len(1)).Return(nil)
		f.outcomes.EXPECT().Record(ctx, "j1", gomock.Len(2)).Return(counted(model.RollupDelta{Succeeded: 1, Failed: 1}, 1, 2), nil)
		rolled := *job
		rolled.ItemsProcessed, rolled.ItemsSucceeded, rolled.ItemsFailed = 2, 1, 1
		f.jobs.EXPECT().ApplyRollup(ctx, "j1", model.RollupDelta{Succeeded: 1, Failed: 1}).Return(&rolled, nil)

		res, err := f.svc.ApplyOutcomes(ctx, "j1", []model.ItemOutcome{success(1), failure(2)})

		require.NoError(t, err)
		assert.False(t, res.Completed)
		assert.Equal(t, 2, res.Job.ItemsProcessed)
	})

	t.Run("last outcome completes the job and publishes", func(t *testing.T) {
		f := newPersistenceFixture(t)
		job := activeJob("j1", 1, 2)
		job.ItemsProcessed, job.ItemsSucceeded = 1, 1

		f.results.EXPECT().Upsert(ctx, gomock.Any()).Return(&model.AnalysisResult{TrackID: 2}, nil)
		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(job, nil)
		f.attempts.EXPECT().DeleteMany(ctx, "j1", []int64{2}).Return(int64(1), nil)
		f.outcomes.EXPECT().Record(ctx, "j1", gomock.Len(1)).Return(counted(model.RollupDelta{Succeeded: 1}, 2), nil)
		rolled := *job
		rolled.ItemsProcessed, rolled.ItemsSucceeded = 2, 2
		f.jobs.EXPECT().ApplyRollup(ctx, "j1", model.RollupDelta{Succeeded: 1}).Return(&rolled, nil)
		f.jobs.EXPECT().
			Finish(ctx, core.FinishJobParams{JobID: "j1", Status: model.JobStatusCompleted}).
			Return(finishedCopy(&rolled, model.JobStatusCompleted, ""), true, nil)
		f.events.EXPECT().Publish(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, ev model.Event) error {
			assert.Equal(t, model.EventJobCompleted, ev.Type)
			assert.Equal(t, string(model.JobStatusCompleted), ev.Status)
			return nil
		})

		res, err := f.svc.ApplyOutcomes(ctx, "j1", []model.ItemOutcome{success(2)})

		require.NoError(t, err)
		assert.True(t, res.Completed)
		assert.Equal(t, model.JobStatusCompleted, res.Job.Status)
	})

	t.Run("all failed job fails and alerts", func(t *testing.T) {
		f := newPersistenceFixture(t)
		job := activeJob("j1", 1)

		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(job, nil)
		f.attempts.EXPECT().MarkFailed(ctx, "j1", gomock.Len(1)).Return(nil)
		f.outcomes.EXPECT().Record(ctx, "j1", gomock.Len(1)).Return(counted(model.RollupDelta{Failed: 1}, 1), nil)
		rolled := *job
		rolled.ItemsProcessed, rolled.ItemsFailed = 1, 1
		f.jobs.EXPECT().ApplyRollup(ctx, "j1", model.RollupDelta{Failed: 1}).Return(&rolled, nil)
		failed := finishedCopy(&rolled, model.JobStatusFailed, model.JobErrorAllItemsFailed)
		f.jobs.EXPECT().
			Finish(ctx, core.FinishJobParams{JobID: "j1", Status: model.JobStatusFailed, ErrorMessage: model.JobErrorAllItemsFailed}).
			Return(failed, true, nil)
		f.events.EXPECT().Publish(ctx, gomock.Any()).Return(nil)
		f.purger.EXPECT().PurgeGroup(ctx, "j1").Return(int64(0), nil)
		f.alerts.EXPECT().NotifyJob(ctx, failed)

		res, err := f.svc.ApplyOutcomes(ctx, "j1", []model.ItemOutcome{failure(1)})

		require.NoError(t, err)
		assert.True(t, res.Completed)
	})

	t.Run("redelivered outcomes leave rollups untouched", func(t *testing.T) {
		f := newPersistenceFixture(t)
		job := activeJob("j1", 1, 2)

		f.results.EXPECT().Upsert(ctx, gomock.Any()).Return(&model.AnalysisResult{TrackID: 1}, nil)
		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(job, nil)
		f.outcomes.EXPECT().Record(ctx, "j1", gomock.Len(1)).Return(model.CountedOutcomes{}, nil)

		res, err := f.svc.ApplyOutcomes(ctx, "j1", []model.ItemOutcome{success(1)})

		require.NoError(t, err)
		assert.True(t, res.Counted.IsZero())
		assert.False(t, res.Completed)
	})

	t.Run("duplicate failure after a counted success leaves the ledger alone", func(t *testing.T) {
		f := newPersistenceFixture(t)
		job := activeJob("j1", 1, 2)
		job.ItemsProcessed, job.ItemsSucceeded = 1, 1

		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(job, nil)
		f.outcomes.EXPECT().Record(ctx, "j1", gomock.Len(1)).Return(model.CountedOutcomes{}, nil)
		f.attempts.EXPECT().MarkFailed(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		f.jobs.EXPECT().ApplyRollup(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		res, err := f.svc.ApplyOutcomes(ctx, "j1", []model.ItemOutcome{failure(1)})

		require.NoError(t, err)
		assert.True(t, res.Counted.IsZero())
		assert.Equal(t, 1, res.Job.ItemsSucceeded)
	})

	t.Run("only newly counted items change attempts", func(t *testing.T) {
		f := newPersistenceFixture(t)
		job := activeJob("j1", 1, 2, 3)

		f.results.EXPECT().Upsert(ctx, gomock.Any()).Return(&model.AnalysisResult{TrackID: 3}, nil)
		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(job, nil)
		f.outcomes.EXPECT().Record(ctx, "j1", gomock.Len(3)).Return(counted(model.RollupDelta{Succeeded: 1, Failed: 1}, 2, 3), nil)
		f.attempts.EXPECT().DeleteMany(ctx, "j1", []int64{3}).Return(int64(1), nil)
		f.attempts.EXPECT().MarkFailed(ctx, "j1", []model.AttemptFailure{{
			TrackID:      2,
			ErrorType:    model.AttemptErrorAnalysis,
			ErrorMessage: "provider rejected",
		}}).Return(nil)
		rolled := *job
		rolled.ItemsProcessed, rolled.ItemsSucceeded, rolled.ItemsFailed = 2, 1, 1
		f.jobs.EXPECT().ApplyRollup(ctx, "j1", model.RollupDelta{Succeeded: 1, Failed: 1}).Return(&rolled, nil)

		res, err := f.svc.ApplyOutcomes(ctx, "j1", []model.ItemOutcome{failure(1), failure(2), success(3)})

		require.NoError(t, err)
		assert.Equal(t, model.RollupDelta{Succeeded: 1, Failed: 1}, res.Counted)
	})

	t.Run("failed result write becomes a persistence failure", func(t *testing.T) {
		f := newPersistenceFixture(t)
		job := activeJob("j1", 1, 2)

		f.results.EXPECT().Upsert(ctx, gomock.Any()).Return(nil, errors.New("disk full"))
		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(job, nil)
		f.attempts.EXPECT().MarkFailed(ctx, "j1", []model.AttemptFailure{{
			TrackID:      1,
			ErrorType:    model.AttemptErrorPersistence,
			ErrorMessage: persistFailedMessage,
		}}).Return(nil)
		f.outcomes.EXPECT().Record(ctx, "j1", gomock.Len(1)).Return(counted(model.RollupDelta{Failed: 1}, 1), nil)
		rolled := *job
		rolled.ItemsProcessed, rolled.ItemsFailed = 1, 1
		f.jobs.EXPECT().ApplyRollup(ctx, "j1", model.RollupDelta{Failed: 1}).Return(&rolled, nil)

		res, err := f.svc.ApplyOutcomes(ctx, "j1", []model.ItemOutcome{success(1)})

		require.NoError(t, err)
		assert.Equal(t, []int64{1}, res.PersistFailed)
	})

	t.Run("terminal job keeps results but not rollups", func(t *testing.T) {
		f := newPersistenceFixture(t)
		job := finishedCopy(activeJob("j1", 1), model.JobStatusFailed, model.JobErrorCancelled)

		f.results.EXPECT().Upsert(ctx, gomock.Any()).Return(&model.AnalysisResult{TrackID: 1}, nil)
		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(job, nil)

		res, err := f.svc.ApplyOutcomes(ctx, "j1", []model.ItemOutcome{success(1)})

		require.NoError(t, err)
		assert.False(t, res.Completed)
		assert.True(t, res.Counted.IsZero())
	})
}

func TestJobPersistenceService_Recover(t *testing.T) {
	ctx := context.Background()

	t.Run("no job", func(t *testing.T) {
		f := newPersistenceFixture(t)
		f.jobs.EXPECT().LatestForUser(ctx, int64(7)).Return(nil, data.ErrJobNotFound)

		_, err := f.svc.Recover(ctx, 7)

		require.ErrorIs(t, err, model.ErrNoActiveJob)
	})

	t.Run("latest job is terminal", func(t *testing.T) {
		f := newPersistenceFixture(t)
		f.jobs.EXPECT().LatestForUser(ctx, int64(7)).
			Return(finishedCopy(activeJob("j1", 1), model.JobStatusCompleted, ""), nil)

		_, err := f.svc.Recover(ctx, 7)

		require.ErrorIs(t, err, model.ErrNoActiveJob)
	})

	t.Run("reconstructs item states in order", func(t *testing.T) {
		f := newPersistenceFixture(t)
		job := activeJob("j1", 3, 1, 2, 4)

		f.jobs.EXPECT().LatestForUser(ctx, int64(7)).Return(job, nil)
		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(job, nil)
		f.attempts.EXPECT().ListByJob(ctx, "j1").Return([]*model.Attempt{
			{TrackID: 1, Status: model.AttemptStatusFailed},
			{TrackID: 2, Status: model.AttemptStatusInProgress},
			{TrackID: 3, Status: model.AttemptStatusInProgress},
		}, nil)
		f.results.EXPECT().ExistingTrackIDs(ctx, []int64{3, 2, 4}).Return(map[int64]bool{3: true}, nil)
		f.outcomes.EXPECT().Record(ctx, "j1", gomock.Len(2)).Return(model.CountedOutcomes{}, nil)

		rec, err := f.svc.Recover(ctx, 7)

		require.NoError(t, err)
		assert.False(t, rec.Transitioned)
		assert.Equal(t, []model.ItemStatePair{
			{ItemID: 3, State: model.ItemStateCompleted, Source: model.SourceResult},
			{ItemID: 1, State: model.ItemStateFailed, Source: model.SourceAttempt},
			{ItemID: 2, State: model.ItemStateInProgress, Source: model.SourceAttempt},
			{ItemID: 4, State: model.ItemStateQueued, Source: model.SourceDefault},
		}, rec.ItemStates)
	})

	t.Run("crash after result write is reconciled and completed", func(t *testing.T) {
		f := newPersistenceFixture(t)
		job := activeJob("j1", 1, 2)
		job.ItemsProcessed, job.ItemsSucceeded = 1, 1

		f.jobs.EXPECT().LatestForUser(ctx, int64(7)).Return(job, nil)
		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(job, nil)
		f.attempts.EXPECT().ListByJob(ctx, "j1").Return([]*model.Attempt{
			{TrackID: 2, Status: model.AttemptStatusInProgress},
		}, nil)
		f.results.EXPECT().ExistingTrackIDs(ctx, []int64{1, 2}).Return(map[int64]bool{1: true, 2: true}, nil)
		f.outcomes.EXPECT().Record(ctx, "j1", gomock.Len(2)).Return(counted(model.RollupDelta{Succeeded: 1}, 2), nil)
		rolled := *job
		rolled.ItemsProcessed, rolled.ItemsSucceeded = 2, 2
		f.jobs.EXPECT().ApplyRollup(ctx, "j1", model.RollupDelta{Succeeded: 1}).Return(&rolled, nil)
		f.jobs.EXPECT().
			Finish(ctx, core.FinishJobParams{JobID: "j1", Status: model.JobStatusCompleted}).
			Return(finishedCopy(&rolled, model.JobStatusCompleted, ""), true, nil)
		f.events.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

		rec, err := f.svc.Recover(ctx, 7)

		require.NoError(t, err)
		assert.True(t, rec.Transitioned)
		assert.Equal(t, model.JobStatusCompleted, rec.Status)
		assert.Equal(t, 2, rec.DBStats.Succeeded)
	})

	t.Run("stale job is failed with a retry message", func(t *testing.T) {
		f := newPersistenceFixture(t)
		job := activeJob("j1", 1, 2)
		job.UpdatedAt = persistNow.Add(-31 * time.Minute)

		f.jobs.EXPECT().LatestForUser(ctx, int64(7)).Return(job, nil)
		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(job, nil)
		f.attempts.EXPECT().ListByJob(ctx, "j1").Return([]*model.Attempt{
			{TrackID: 1, Status: model.AttemptStatusInProgress},
		}, nil)
		f.results.EXPECT().ExistingTrackIDs(ctx, []int64{1, 2}).Return(map[int64]bool{}, nil)
		failed := finishedCopy(job, model.JobStatusFailed, model.JobErrorStale)
		f.jobs.EXPECT().
			Finish(ctx, core.FinishJobParams{JobID: "j1", Status: model.JobStatusFailed, ErrorMessage: model.JobErrorStale}).
			Return(failed, true, nil)
		f.attempts.EXPECT().FailInFlight(ctx, "j1", gomock.Any()).Return(int64(1), nil)
		f.events.EXPECT().Publish(ctx, gomock.Any()).Return(nil)
		f.purger.EXPECT().PurgeGroup(ctx, "j1").Return(int64(1), nil)
		f.alerts.EXPECT().NotifyJob(ctx, failed)

		rec, err := f.svc.Recover(ctx, 7)

		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, rec.Status)
		assert.Equal(t, "analysis stalled, please retry", rec.Message)
		assert.Equal(t, model.ItemStateFailed, rec.StateMap()[1])
		assert.Equal(t, model.ItemStateQueued, rec.StateMap()[2])
	})
}

func TestJobPersistenceService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels an active job", func(t *testing.T) {
		f := newPersistenceFixture(t)
		job := activeJob("j1", 1, 2)
		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(job, nil)
		failed := finishedCopy(job, model.JobStatusFailed, model.JobErrorCancelled)
		f.jobs.EXPECT().
			Finish(ctx, core.FinishJobParams{JobID: "j1", Status: model.JobStatusFailed, ErrorMessage: model.JobErrorCancelled}).
			Return(failed, true, nil)
		f.attempts.EXPECT().FailInFlight(ctx, "j1", model.AttemptFailure{
			ErrorType:    model.AttemptErrorCancelled,
			ErrorMessage: cancelAttemptMessage,
		}).Return(int64(2), nil)
		f.events.EXPECT().Publish(ctx, gomock.Any()).Return(nil)
		f.purger.EXPECT().PurgeGroup(ctx, "j1").Return(int64(2), nil)
		f.alerts.EXPECT().NotifyJob(ctx, failed)

		got, err := f.svc.Cancel(ctx, core.CancelJobRequest{JobID: "j1", UserID: 7})

		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
	})

	t.Run("finished job conflicts", func(t *testing.T) {
		f := newPersistenceFixture(t)
		f.jobs.EXPECT().GetForUpdate(ctx, "j1").
			Return(finishedCopy(activeJob("j1", 1), model.JobStatusCompleted, ""), nil)

		_, err := f.svc.Cancel(ctx, core.CancelJobRequest{JobID: "j1", UserID: 7})

		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		f := newPersistenceFixture(t)
		f.jobs.EXPECT().GetForUpdate(ctx, "j1").Return(activeJob("j1", 1), nil)

		_, err := f.svc.Cancel(ctx, core.CancelJobRequest{JobID: "j1", UserID: 9})

		assert.True(t, apperrors.IsForbidden(err))
	})
}

func TestJobPersistenceService_MarkEnqueueFailed(t *testing.T) {
	ctx := context.Background()
	f := newPersistenceFixture(t)
	job := activeJob("j1", 1)
	job.Status = model.JobStatusPending
	failed := finishedCopy(job, model.JobStatusFailed, model.JobErrorEnqueueFailed)

	f.jobs.EXPECT().
		Finish(ctx, core.FinishJobParams{JobID: "j1", Status: model.JobStatusFailed, ErrorMessage: model.JobErrorEnqueueFailed}).
		Return(failed, true, nil)
	f.events.EXPECT().Publish(ctx, gomock.Any()).Return(nil)
	f.purger.EXPECT().PurgeGroup(ctx, "j1").Return(int64(0), nil)
	f.alerts.EXPECT().NotifyJob(ctx, failed)

	got, err := f.svc.MarkEnqueueFailed(ctx, "j1")

	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
}
