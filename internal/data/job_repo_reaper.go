package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/data/pgxutil"
	"github.com/target/track-analysis-api/internal/domain/model"
)

// Advisory lock namespace for reaper operations, taken with the two-argument
// pg_try_advisory_xact_lock(major, minor).
const (
	advisoryLockReaperMajor     = 1000
	advisoryLockReaperFailStale = 1
)

// FailStaleJobs marks non-terminal jobs with no activity for MaxIdle as failed, and fails
// their in-flight attempts. Concurrent reapers skip the run instead of blocking.
// Returns the jobs that were transitioned.
func (r *JobRepo) FailStaleJobs(ctx context.Context, params core.FailStaleJobsParams) ([]*model.Job, error) {
	if params.MaxIdle <= 0 {
		return nil, errors.New("max idle must be greater than zero")
	}
	if params.BatchSize <= 0 {
		return nil, errors.New("batch size must be greater than zero")
	}

	var failed []*model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Retries: 1,
		Fn: func(tx pgx.Tx) error {
			failed = nil
			var locked bool
			if err := tx.QueryRow(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
				advisoryLockReaperMajor, advisoryLockReaperFailStale).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}

			now := r.clock.Now().UTC()
			cutoff := now.Add(-params.MaxIdle)

			rows, err := tx.Query(ctx, `
				UPDATE analysis_jobs
				SET status = 'failed',
				    error_message = $3,
				    completed_at = $1,
				    updated_at = $1
				WHERE id IN (
					SELECT id FROM analysis_jobs
					WHERE `+activeStatusSQL+`
					  AND updated_at < $2
					ORDER BY updated_at
					LIMIT $4
					FOR UPDATE SKIP LOCKED
				)
				RETURNING `+jobColumns, now, cutoff, model.JobErrorStale, params.BatchSize)
			if err != nil {
				return fmt.Errorf("fail stale jobs: %w", err)
			}
			failed, err = collectJobs(rows)
			if err != nil {
				return err
			}
			if len(failed) == 0 {
				return nil
			}

			ids := make([]string, 0, len(failed))
			for _, j := range failed {
				ids = append(ids, j.ID)
			}
			if _, err := tx.Exec(ctx, `
				UPDATE analysis_attempts
				SET status = 'failed',
				    error_type = $2,
				    error_message = 'analysis stalled',
				    updated_at = $3
				WHERE job_id = ANY($1) AND status = 'in_progress'
			`, ids, model.AttemptErrorStale, now); err != nil {
				return fmt.Errorf("fail stale attempts: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return failed, nil
}
