package data

import (
	"context"
	"fmt"
	"time"

	"github.com/target/track-analysis-api/internal/domain/model"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// LatestForUser returns the user's most recently created job.
func (r *JobRepo) LatestForUser(ctx context.Context, userID int64) (*model.Job, error) {
	return r.getOne(ctx, `
		SELECT `+jobColumns+`
		FROM analysis_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, userID)
}

// List returns a user's jobs, newest first.
func (r *JobRepo) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	var jobs []*model.Job
	err := withQuerier(ctx, r.DB, func(q querier) error {
		rows, err := q.Query(ctx, `
			SELECT `+jobColumns+`
			FROM analysis_jobs
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2 OFFSET $3
		`, opts.UserID, opts.Limit, opts.Offset)
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}
		jobs, err = collectJobs(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListActive returns non-terminal jobs across all users, oldest activity first.
func (r *JobRepo) ListActive(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	var jobs []*model.Job
	err := withQuerier(ctx, r.DB, func(q querier) error {
		rows, err := q.Query(ctx, `
			SELECT `+jobColumns+`
			FROM analysis_jobs
			WHERE `+activeStatusSQL+`
			ORDER BY updated_at ASC
			LIMIT $1
		`, limit)
		if err != nil {
			return fmt.Errorf("list active jobs: %w", err)
		}
		jobs, err = collectJobs(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListFinishedSince returns jobs completed or failed at or after since, newest first.
func (r *JobRepo) ListFinishedSince(ctx context.Context, since time.Time, limit int) ([]*model.Job, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	var jobs []*model.Job
	err := withQuerier(ctx, r.DB, func(q querier) error {
		rows, err := q.Query(ctx, `
			SELECT `+jobColumns+`
			FROM analysis_jobs
			WHERE completed_at >= $1
			ORDER BY completed_at DESC
			LIMIT $2
		`, since.UTC(), limit)
		if err != nil {
			return fmt.Errorf("list finished jobs: %w", err)
		}
		jobs, err = collectJobs(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
