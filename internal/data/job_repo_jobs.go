package data

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/domain/model"
)

// Create inserts a pending job. The job's item list is fixed from this point on.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.clock.Now().UTC()
	var job *model.Job
	err := withQuerier(ctx, r.DB, func(q querier) error {
		rows, err := q.Query(ctx, `
			INSERT INTO analysis_jobs (id, user_id, job_type, status, item_count, item_ids, playlist_id, created_at, updated_at)
			VALUES ($1, $2, $3, 'pending', $4, $5, $6, $7, $7)
			RETURNING `+jobColumns,
			req.ID, req.UserID, req.Type, len(req.ItemIDs), req.ItemIDs, req.PlaylistID, now)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		job, err = collectJob(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	return r.getOne(ctx, `SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, id)
}

// GetForUpdate retrieves a job and locks its row until the surrounding transaction ends.
func (r *JobRepo) GetForUpdate(ctx context.Context, id string) (*model.Job, error) {
	if !InTx(ctx) {
		return nil, errors.New("GetForUpdate requires a transaction")
	}
	return r.getOne(ctx, `SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1 FOR UPDATE`, id)
}

func (r *JobRepo) getOne(ctx context.Context, query string, args ...any) (*model.Job, error) {
	var job *model.Job
	err := withQuerier(ctx, r.DB, func(q querier) error {
		rows, err := q.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query job: %w", err)
		}
		job, err = collectJob(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// StartProcessing moves a pending job to in_progress and refreshes updated_at for active jobs.
func (r *JobRepo) StartProcessing(ctx context.Context, id string) (*model.Job, error) {
	now := r.clock.Now().UTC()
	job, err := r.getOne(ctx, `
		UPDATE analysis_jobs
		SET status = 'in_progress',
		    updated_at = $2
		WHERE id = $1 AND `+activeStatusSQL+`
		RETURNING `+jobColumns, id, now)
	if errors.Is(err, ErrJobNotFound) {
		return nil, r.inactiveError(ctx, id)
	}
	return job, err
}

// ApplyRollup adds delta to the job's counters. Counters only move forward.
func (r *JobRepo) ApplyRollup(ctx context.Context, id string, delta model.RollupDelta) (*model.Job, error) {
	if delta.Succeeded < 0 || delta.Failed < 0 {
		return nil, fmt.Errorf("rollup delta must be non-negative: %+v", delta)
	}
	if delta.IsZero() {
		return r.GetByID(ctx, id)
	}

	now := r.clock.Now().UTC()
	job, err := r.getOne(ctx, `
		UPDATE analysis_jobs
		SET items_processed = items_processed + $2 + $3,
		    items_succeeded = items_succeeded + $2,
		    items_failed = items_failed + $3,
		    updated_at = $4
		WHERE id = $1 AND `+activeStatusSQL+`
		RETURNING `+jobColumns, id, delta.Succeeded, delta.Failed, now)
	if errors.Is(err, ErrJobNotFound) {
		return nil, r.inactiveError(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("apply rollup: %w", err)
	}
	return job, nil
}

// Finish transitions a non-terminal job to a terminal status.
// When the job is already terminal the stored job is returned with false.
func (r *JobRepo) Finish(ctx context.Context, params core.FinishJobParams) (*model.Job, bool, error) {
	if !params.Status.Terminal() {
		return nil, false, fmt.Errorf("finish requires a terminal status, got %q", params.Status)
	}

	var errMsg *string
	if msg := strings.TrimSpace(params.ErrorMessage); msg != "" {
		errMsg = &msg
	}

	now := r.clock.Now().UTC()
	job, err := r.getOne(ctx, `
		UPDATE analysis_jobs
		SET status = $2,
		    error_message = COALESCE($3, error_message),
		    completed_at = $4,
		    updated_at = $4
		WHERE id = $1 AND `+activeStatusSQL+`
		RETURNING `+jobColumns, params.JobID, params.Status, errMsg, now)
	if errors.Is(err, ErrJobNotFound) {
		existing, getErr := r.GetByID(ctx, params.JobID)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("finish job: %w", err)
	}
	return job, true, nil
}

// inactiveError distinguishes a missing job from a terminal one after a guarded update matched no row.
func (r *JobRepo) inactiveError(ctx context.Context, id string) error {
	job, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return model.ErrJobTerminal
	}
	return fmt.Errorf("job %s in unexpected status %q", id, job.Status)
}
