package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/track-analysis-api/config"
	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/data"
	jobpolicy "github.com/target/track-analysis-api/internal/domain/job"
	"github.com/target/track-analysis-api/internal/domain/model"
	apperrors "github.com/target/track-analysis-api/internal/errors"
	"github.com/target/track-analysis-api/internal/observability/metrics"
	"github.com/target/track-analysis-api/internal/observability/statsd"
)

// Messages recorded on attempts failed by the service itself.
const (
	persistFailedMessage  = "failed to save analysis"
	analysisFailedMessage = "analysis failed"
	staleAttemptMessage   = "analysis stalled"
	cancelAttemptMessage  = "cancelled by user"
)

// defaultStaleAfter applies when no recovery configuration is supplied.
const defaultStaleAfter = 30 * time.Minute

// JobStores groups the persistence ports behind JobPersistenceService.
type JobStores struct {
	Jobs     core.JobStore
	Attempts core.AttemptLedger
	Results  core.ResultStore
	Outcomes core.OutcomeTally
}

func (s JobStores) validate() error {
	switch {
	case s.Jobs == nil:
		return errors.New("JobStore is required")
	case s.Attempts == nil:
		return errors.New("AttemptLedger is required")
	case s.Results == nil:
		return errors.New("ResultStore is required")
	case s.Outcomes == nil:
		return errors.New("OutcomeTally is required")
	}
	return nil
}

// JobHooks are notified after a job reaches a terminal status.
type JobHooks struct {
	Events core.EventPublisher     // Optional: publishes JOB_COMPLETED
	Purger core.QueueGroupPurger   // Optional: drops leftover messages of failed jobs
	Alerts core.JobFailureNotifier // Optional: operator alerts for failed jobs
}

// JobPersistenceServiceOptions groups dependencies for JobPersistenceService.
type JobPersistenceServiceOptions struct {
	Tx       core.Transactor       // Required: transaction runner shared by the stores
	Stores   JobStores             // Required: job, attempt, result and outcome stores
	Recovery config.RecoveryConfig // Optional: stale threshold (defaults to 30m)
	Hooks    JobHooks              // Optional: terminal transition side effects
	Clock    func() time.Time      // Optional: defaults to time.Now
	Logger   *slog.Logger          // Optional: structured logger
	Metrics  statsd.Sink           // Optional: metrics sink (StatsD-compatible)
}

var (
	_ core.JobRecorder = (*JobPersistenceService)(nil)
	_ core.JobProgress = (*JobPersistenceService)(nil)
	_ core.JobQueries  = (*JobPersistenceService)(nil)
)

// JobPersistenceService owns every mutation of jobs, attempts and rollups.
//
// Rollups only move through OutcomeTally deltas applied under the job's row
// lock, so concurrent workers and redelivered messages never double count.
// Recovery reads persisted records only.
type JobPersistenceService struct {
	tx         core.Transactor
	stores     JobStores
	hooks      JobHooks
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger
	metrics    statsd.Sink
}

// NewJobPersistenceService constructs a new JobPersistenceService.
func NewJobPersistenceService(opts JobPersistenceServiceOptions) (*JobPersistenceService, error) {
	if opts.Tx == nil {
		return nil, errors.New("Transactor is required")
	}
	if err := opts.Stores.validate(); err != nil {
		return nil, err
	}

	staleAfter := opts.Recovery.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobPersistenceService{
		tx:         opts.Tx,
		stores:     opts.Stores,
		hooks:      opts.Hooks,
		staleAfter: staleAfter,
		now:        now,
		logger:     logger.With("component", "job_persistence"),
		metrics:    opts.Metrics,
	}, nil
}

// Create persists a pending job. Store errors are returned unmapped.
func (s *JobPersistenceService) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	job, err := s.stores.Jobs.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: "created",
		Result:     metrics.ResultSuccess,
	})
	return job, nil
}

// MarkEnqueueFailed is the compensating action for a job whose messages could not be queued.
func (s *JobPersistenceService) MarkEnqueueFailed(ctx context.Context, jobID string) (*model.Job, error) {
	job, changed, err := s.stores.Jobs.Finish(ctx, core.FinishJobParams{
		JobID:        jobID,
		Status:       model.JobStatusFailed,
		ErrorMessage: model.JobErrorEnqueueFailed,
	})
	if err != nil {
		return nil, fmt.Errorf("fail job %s after enqueue error: %w", jobID, err)
	}
	if changed {
		s.afterFinish(ctx, job)
	}
	return job, nil
}

// GetJob returns a job owned by userID. A zero userID skips the ownership check.
func (s *JobPersistenceService) GetJob(ctx context.Context, userID int64, jobID string) (*model.Job, error) {
	job, err := s.stores.Jobs.GetByID(ctx, jobID)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, apperrors.NotFound("job %s not found", jobID)
	}
	if err != nil {
		return nil, err
	}
	if userID > 0 && job.UserID != userID {
		return nil, apperrors.Forbidden("job %s belongs to another user", jobID)
	}
	return job, nil
}

// ListJobs returns a user's jobs, newest first.
func (s *JobPersistenceService) ListJobs(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	return s.stores.Jobs.List(ctx, opts)
}

// BeginItems marks a group of items as being processed. Items already counted
// for the job, and items that do not belong to it, are returned in Skip. For a
// terminal job every item is skipped.
func (s *JobPersistenceService) BeginItems(ctx context.Context, jobID string, trackIDs []int64) (*model.BeginResult, error) {
	res := &model.BeginResult{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.stores.Jobs.GetForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		res.Job = job
		ids := uniqueIDs(trackIDs)
		if job.Status.Terminal() {
			res.Skip = ids
			return nil
		}

		members, foreign := partitionMembers(job, ids)
		if len(foreign) > 0 {
			s.logger.WarnContext(ctx, "items do not belong to job", "job_id", jobID, "track_ids", foreign)
		}
		res.Skip = append(res.Skip, foreign...)

		settled, err := s.stores.Outcomes.Settled(ctx, jobID, members)
		if err != nil {
			return err
		}
		for _, id := range members {
			if settled[id] {
				res.Skip = append(res.Skip, id)
			} else {
				res.Process = append(res.Process, id)
			}
		}
		if len(res.Process) == 0 {
			return nil
		}

		if err := s.stores.Attempts.StartMany(ctx, jobID, res.Process); err != nil {
			return err
		}
		started, err := s.stores.Jobs.StartProcessing(ctx, jobID)
		if err != nil {
			return err
		}
		res.Job = started
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("begin items for job %s: %w", jobID, err)
	}
	return res, nil
}

// ApplyOutcomes persists a group's results and advances the job's rollups.
//
// Results are written first and outside the job transaction. A result that
// cannot be saved turns its outcome into a PERSISTENCE_FAILED failure. The
// ledger and rollup changes then commit together under the job's row lock.
// Only outcomes counted for the first time touch the attempt ledger or the
// counters, so a redelivered copy cannot overwrite the recorded terminal state.
// A terminal job keeps its results but its rollups are left unchanged.
func (s *JobPersistenceService) ApplyOutcomes(
	ctx context.Context,
	jobID string,
	outcomes []model.ItemOutcome,
) (*model.ApplyOutcomesResult, error) {
	res := &model.ApplyOutcomesResult{}
	outcomes = s.persistResults(ctx, jobID, outcomes, res)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.stores.Jobs.GetForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		res.Job = job
		if job.Status.Terminal() {
			return nil
		}

		counted, err := s.stores.Outcomes.Record(ctx, jobID, memberOutcomes(job, outcomes))
		if err != nil {
			return err
		}
		if len(counted.TrackIDs) > 0 {
			if err := s.settleAttempts(ctx, jobID, countedOutcomes(outcomes, counted)); err != nil {
				return err
			}
			res.Counted = counted.Delta
			if job, err = s.stores.Jobs.ApplyRollup(ctx, jobID, counted.Delta); err != nil {
				return err
			}
			res.Job = job
		}

		if !job.RollupComplete() {
			return nil
		}
		finished, changed, err := s.stores.Jobs.Finish(ctx, finishParams(job.ID, job.FinalStatus()))
		if err != nil {
			return err
		}
		res.Job = finished
		res.Completed = changed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply outcomes for job %s: %w", jobID, err)
	}

	if res.Completed {
		s.afterFinish(ctx, res.Job)
	}
	return res, nil
}

// settleAttempts clears the attempts of succeeded items and fails the rest.
func (s *JobPersistenceService) settleAttempts(ctx context.Context, jobID string, outcomes []model.ItemOutcome) error {
	succeeded, failures := splitOutcomes(outcomes)
	if len(succeeded) > 0 {
		if _, err := s.stores.Attempts.DeleteMany(ctx, jobID, succeeded); err != nil {
			return err
		}
	}
	if len(failures) > 0 {
		return s.stores.Attempts.MarkFailed(ctx, jobID, failures)
	}
	return nil
}

// persistResults upserts successful results and converts failed writes into failures.
func (s *JobPersistenceService) persistResults(
	ctx context.Context,
	jobID string,
	outcomes []model.ItemOutcome,
	res *model.ApplyOutcomesResult,
) []model.ItemOutcome {
	out := make([]model.ItemOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if !o.Succeeded {
			out = append(out, normalizeFailure(o))
			continue
		}

		var saveErr error
		if o.Result == nil {
			saveErr = errors.New("missing analysis payload")
		} else {
			req := *o.Result
			req.TrackID = o.TrackID
			_, saveErr = s.stores.Results.Upsert(ctx, req)
		}
		if saveErr == nil {
			out = append(out, o)
			continue
		}

		s.logger.ErrorContext(ctx, "failed to persist analysis result",
			"job_id", jobID,
			"track_id", o.TrackID,
			"error", saveErr,
		)
		res.PersistFailed = append(res.PersistFailed, o.TrackID)
		out = append(out, model.ItemOutcome{
			TrackID: o.TrackID,
			Failure: &model.AttemptFailure{
				TrackID:      o.TrackID,
				ErrorType:    model.AttemptErrorPersistence,
				ErrorMessage: persistFailedMessage,
			},
		})
	}
	return out
}

// Recover reconstructs the user's most recent job if it is still active.
// It returns model.ErrNoActiveJob when there is nothing to resume.
func (s *JobPersistenceService) Recover(ctx context.Context, userID int64) (*model.RecoveredJob, error) {
	latest, err := s.stores.Jobs.LatestForUser(ctx, userID)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, model.ErrNoActiveJob
	}
	if err != nil {
		return nil, fmt.Errorf("load latest job: %w", err)
	}
	if latest.Status.Terminal() || len(latest.ItemIDs) == 0 {
		return nil, model.ErrNoActiveJob
	}
	return s.RecoverJob(ctx, latest.ID)
}

// RecoverJob reconstructs one active job from its records and settles it when
// the records show it is complete or stalled.
func (s *JobPersistenceService) RecoverJob(ctx context.Context, jobID string) (*model.RecoveredJob, error) {
	var (
		out      *model.RecoveredJob
		finished *model.Job
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.stores.Jobs.GetForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status.Terminal() || len(job.ItemIDs) == 0 {
			return model.ErrNoActiveJob
		}

		states, err := s.loadItemStates(ctx, job)
		if err != nil {
			return err
		}
		if job, err = s.reconcileRollups(ctx, job, states); err != nil {
			return err
		}

		var (
			changed bool
			message string
		)
		switch {
		case settledCount(states) >= job.ItemCount || job.RollupComplete():
			status := model.JobStatusCompleted
			if (job.RollupComplete() && job.FinalStatus() == model.JobStatusFailed) || jobpolicy.AllFailed(states) {
				status = model.JobStatusFailed
			}
			job, changed, err = s.stores.Jobs.Finish(ctx, finishParams(job.ID, status))
			if err != nil {
				return err
			}
		case s.isStale(job):
			job, changed, err = s.failStale(ctx, job)
			if err != nil {
				return err
			}
			states = failInFlightStates(states)
			message = apperrors.UserMessage(apperrors.StaleJob(job.ID))
		}

		out = recoveredFrom(job, states)
		out.Message = message
		out.Transitioned = changed
		if changed {
			finished = job
		}
		return nil
	})
	if errors.Is(err, model.ErrNoActiveJob) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("recover job %s: %w", jobID, err)
	}

	if out.Transitioned {
		s.logger.InfoContext(ctx, "recovery settled job",
			"job_id", out.JobID,
			"status", out.Status,
			"processed", out.DBStats.Processed,
			"item_count", out.ItemCount,
		)
		s.afterFinish(ctx, finished)
	}
	return out, nil
}

// Snapshot reconstructs any job's item states without changing it.
func (s *JobPersistenceService) Snapshot(ctx context.Context, jobID string) (*model.RecoveredJob, error) {
	job, err := s.stores.Jobs.GetByID(ctx, jobID)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, apperrors.NotFound("job %s not found", jobID)
	}
	if err != nil {
		return nil, err
	}
	states, err := s.loadItemStates(ctx, job)
	if err != nil {
		return nil, err
	}
	return recoveredFrom(job, states), nil
}

// loadItemStates performs the attempt / result / default lookup for every item.
func (s *JobPersistenceService) loadItemStates(ctx context.Context, job *model.Job) ([]model.ItemStatePair, error) {
	attempts, err := s.stores.Attempts.ListByJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	byItem := make(map[int64]model.AttemptStatus, len(attempts))
	for _, a := range attempts {
		byItem[a.TrackID] = a.Status
	}

	probe := make([]int64, 0, len(job.ItemIDs))
	for _, id := range job.ItemIDs {
		if jobpolicy.NeedsResultProbe(byItem[id]) {
			probe = append(probe, id)
		}
	}
	results := map[int64]bool{}
	if len(probe) > 0 {
		if results, err = s.stores.Results.ExistingTrackIDs(ctx, probe); err != nil {
			return nil, fmt.Errorf("probe results: %w", err)
		}
	}
	return jobpolicy.ResolveItemStates(job.ItemIDs, byItem, results), nil
}

// reconcileRollups counts settled items the rollups missed, e.g. after a
// worker crashed between writing a result and applying its rollup.
func (s *JobPersistenceService) reconcileRollups(
	ctx context.Context,
	job *model.Job,
	states []model.ItemStatePair,
) (*model.Job, error) {
	var outcomes []model.ItemOutcome
	for _, p := range states {
		if p.State.Settled() {
			outcomes = append(outcomes, model.ItemOutcome{
				TrackID:   p.ItemID,
				Succeeded: p.State == model.ItemStateCompleted,
			})
		}
	}
	if len(outcomes) == 0 {
		return job, nil
	}
	counted, err := s.stores.Outcomes.Record(ctx, job.ID, outcomes)
	if err != nil {
		return nil, err
	}
	delta := counted.Delta
	if delta.IsZero() {
		return job, nil
	}
	s.logger.InfoContext(ctx, "reconciled rollups from persisted records",
		"job_id", job.ID,
		"succeeded", delta.Succeeded,
		"failed", delta.Failed,
	)
	return s.stores.Jobs.ApplyRollup(ctx, job.ID, delta)
}

func (s *JobPersistenceService) isStale(job *model.Job) bool {
	return s.now().Sub(job.UpdatedAt) > s.staleAfter
}

func (s *JobPersistenceService) failStale(ctx context.Context, job *model.Job) (*model.Job, bool, error) {
	finished, changed, err := s.stores.Jobs.Finish(ctx, core.FinishJobParams{
		JobID:        job.ID,
		Status:       model.JobStatusFailed,
		ErrorMessage: model.JobErrorStale,
	})
	if err != nil || !changed {
		return finished, changed, err
	}
	if _, err := s.stores.Attempts.FailInFlight(ctx, job.ID, model.AttemptFailure{
		ErrorType:    model.AttemptErrorStale,
		ErrorMessage: staleAttemptMessage,
	}); err != nil {
		return nil, false, err
	}
	return finished, true, nil
}

// Cancel fails an active job and its in-flight attempts.
func (s *JobPersistenceService) Cancel(ctx context.Context, req core.CancelJobRequest) (*model.Job, error) {
	var finished *model.Job
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.stores.Jobs.GetForUpdate(ctx, req.JobID)
		if errors.Is(err, data.ErrJobNotFound) {
			return apperrors.NotFound("job %s not found", req.JobID)
		}
		if err != nil {
			return err
		}
		if req.UserID > 0 && job.UserID != req.UserID {
			return apperrors.Forbidden("job %s belongs to another user", req.JobID)
		}
		if job.Status.Terminal() {
			return apperrors.Conflict("job %s already finished", req.JobID)
		}

		finished, _, err = s.stores.Jobs.Finish(ctx, core.FinishJobParams{
			JobID:        job.ID,
			Status:       model.JobStatusFailed,
			ErrorMessage: model.JobErrorCancelled,
		})
		if err != nil {
			return err
		}
		_, err = s.stores.Attempts.FailInFlight(ctx, job.ID, model.AttemptFailure{
			ErrorType:    model.AttemptErrorCancelled,
			ErrorMessage: cancelAttemptMessage,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "job cancelled", "job_id", finished.ID, "user_id", finished.UserID)
	s.afterFinish(ctx, finished)
	return finished, nil
}

// afterFinish runs the terminal hooks. All of them are best effort.
func (s *JobPersistenceService) afterFinish(ctx context.Context, job *model.Job) {
	var duration time.Duration
	if job.CompletedAt != nil {
		duration = job.CompletedAt.Sub(job.CreatedAt)
	}
	result := metrics.ResultSuccess
	if job.Status == model.JobStatusFailed {
		result = metrics.ResultError
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: string(job.Status),
		Result:     result,
		Duration:   duration,
		Analyzed:   job.ItemsSucceeded,
		Failed:     job.ItemsFailed,
	})

	if s.hooks.Events != nil {
		if err := s.hooks.Events.Publish(ctx, model.NewJobCompletedEvent(job, s.now())); err != nil {
			s.logger.WarnContext(ctx, "failed to publish job completion", "job_id", job.ID, "error", err)
		}
	}
	if job.Status != model.JobStatusFailed {
		return
	}
	if s.hooks.Purger != nil {
		if n, err := s.hooks.Purger.PurgeGroup(ctx, job.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to purge queued messages", "job_id", job.ID, "error", err)
		} else if n > 0 {
			s.logger.InfoContext(ctx, "purged queued messages", "job_id", job.ID, "count", n)
		}
	}
	if s.hooks.Alerts != nil {
		s.hooks.Alerts.NotifyJob(ctx, job)
	}
}

func finishParams(jobID string, status model.JobStatus) core.FinishJobParams {
	p := core.FinishJobParams{JobID: jobID, Status: status}
	if status == model.JobStatusFailed {
		p.ErrorMessage = model.JobErrorAllItemsFailed
	}
	return p
}

func recoveredFrom(job *model.Job, states []model.ItemStatePair) *model.RecoveredJob {
	return &model.RecoveredJob{
		JobID:      job.ID,
		UserID:     job.UserID,
		Status:     job.Status,
		JobType:    job.Type,
		ItemCount:  job.ItemCount,
		ItemStates: states,
		DBStats:    job.Stats(),
		CreatedAt:  job.CreatedAt,
	}
}

func settledCount(states []model.ItemStatePair) int {
	n := 0
	for _, p := range states {
		if p.State.Settled() {
			n++
		}
	}
	return n
}

// failInFlightStates mirrors FailInFlight on an already resolved state list.
func failInFlightStates(states []model.ItemStatePair) []model.ItemStatePair {
	out := make([]model.ItemStatePair, len(states))
	for i, p := range states {
		if p.State == model.ItemStateInProgress {
			p.State = model.ItemStateFailed
		}
		out[i] = p
	}
	return out
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func memberSet(job *model.Job) map[int64]struct{} {
	set := make(map[int64]struct{}, len(job.ItemIDs))
	for _, id := range job.ItemIDs {
		set[id] = struct{}{}
	}
	return set
}

func partitionMembers(job *model.Job, ids []int64) (members, foreign []int64) {
	set := memberSet(job)
	for _, id := range ids {
		if _, ok := set[id]; ok {
			members = append(members, id)
		} else {
			foreign = append(foreign, id)
		}
	}
	return members, foreign
}

func memberOutcomes(job *model.Job, outcomes []model.ItemOutcome) []model.ItemOutcome {
	set := memberSet(job)
	seen := make(map[int64]struct{}, len(outcomes))
	out := make([]model.ItemOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if _, ok := set[o.TrackID]; !ok {
			continue
		}
		if _, dup := seen[o.TrackID]; dup {
			continue
		}
		seen[o.TrackID] = struct{}{}
		out = append(out, o)
	}
	return out
}

// countedOutcomes keeps the first outcome of each newly counted item.
func countedOutcomes(outcomes []model.ItemOutcome, counted model.CountedOutcomes) []model.ItemOutcome {
	out := make([]model.ItemOutcome, 0, len(counted.TrackIDs))
	seen := make(map[int64]struct{}, len(counted.TrackIDs))
	for _, o := range outcomes {
		if _, dup := seen[o.TrackID]; dup || !counted.Includes(o.TrackID) {
			continue
		}
		seen[o.TrackID] = struct{}{}
		out = append(out, o)
	}
	return out
}

func splitOutcomes(outcomes []model.ItemOutcome) (succeeded []int64, failures []model.AttemptFailure) {
	for _, o := range outcomes {
		if o.Succeeded {
			succeeded = append(succeeded, o.TrackID)
			continue
		}
		failures = append(failures, *normalizeFailure(o).Failure)
	}
	return succeeded, failures
}

func normalizeFailure(o model.ItemOutcome) model.ItemOutcome {
	f := model.AttemptFailure{TrackID: o.TrackID, ErrorType: model.AttemptErrorAnalysis, ErrorMessage: analysisFailedMessage}
	if o.Failure != nil {
		if o.Failure.ErrorType != "" {
			f.ErrorType = o.Failure.ErrorType
		}
		if o.Failure.ErrorMessage != "" {
			f.ErrorMessage = o.Failure.ErrorMessage
		}
	}
	return model.ItemOutcome{TrackID: o.TrackID, Failure: &f}
}
