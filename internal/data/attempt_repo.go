package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/target/track-analysis-api/internal/domain/model"
)

// AttemptRepo is the Postgres Attempt Ledger.
type AttemptRepo struct {
	DB     *sql.DB
	clock  Clock
	logger *slog.Logger
}

// NewAttemptRepo creates an AttemptRepo.
func NewAttemptRepo(db *sql.DB, cfg RepoConfig) *AttemptRepo {
	return &AttemptRepo{DB: db, clock: cfg.clock(), logger: cfg.logger("attempt_repo")}
}

const attemptColumns = `id, job_id, track_id, status, error_type, error_message, created_at, updated_at`

// StartMany records in_progress attempts for the given items. Existing records are reset to in_progress.
func (r *AttemptRepo) StartMany(ctx context.Context, jobID string, trackIDs []int64) error {
	if len(trackIDs) == 0 {
		return nil
	}
	now := r.clock.Now().UTC()
	return withQuerier(ctx, r.DB, func(q querier) error {
		if _, err := q.Exec(ctx, `
			INSERT INTO analysis_attempts (job_id, track_id, status, created_at, updated_at)
			SELECT $1, t.track_id, 'in_progress', $3, $3
			FROM unnest($2::bigint[]) AS t(track_id)
			ON CONFLICT (job_id, track_id) DO UPDATE
			SET status = 'in_progress',
			    error_type = NULL,
			    error_message = NULL,
			    updated_at = EXCLUDED.updated_at
		`, jobID, trackIDs, now); err != nil {
			return fmt.Errorf("start attempts: %w", err)
		}
		return nil
	})
}

// ListByJob returns all attempts for a job ordered by track id.
func (r *AttemptRepo) ListByJob(ctx context.Context, jobID string) ([]*model.Attempt, error) {
	var out []*model.Attempt
	err := withQuerier(ctx, r.DB, func(q querier) error {
		rows, err := q.Query(ctx, `
			SELECT `+attemptColumns+`
			FROM analysis_attempts
			WHERE job_id = $1
			ORDER BY track_id
		`, jobID)
		if err != nil {
			return fmt.Errorf("list attempts: %w", err)
		}
		out, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Attempt])
		if err != nil {
			return fmt.Errorf("collect attempts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteMany removes attempts for items whose result is now authoritative.
func (r *AttemptRepo) DeleteMany(ctx context.Context, jobID string, trackIDs []int64) (int64, error) {
	if len(trackIDs) == 0 {
		return 0, nil
	}
	var n int64
	err := withQuerier(ctx, r.DB, func(q querier) error {
		tag, err := q.Exec(ctx, `
			DELETE FROM analysis_attempts
			WHERE job_id = $1 AND track_id = ANY($2)
		`, jobID, trackIDs)
		if err != nil {
			return fmt.Errorf("delete attempts: %w", err)
		}
		n = tag.RowsAffected()
		return nil
	})
	return n, err
}

// MarkFailed upserts failed attempts. Items that were never started get a record too.
func (r *AttemptRepo) MarkFailed(ctx context.Context, jobID string, failures []model.AttemptFailure) error {
	if len(failures) == 0 {
		return nil
	}
	ids := make([]int64, len(failures))
	types := make([]string, len(failures))
	msgs := make([]string, len(failures))
	for i, f := range failures {
		ids[i] = f.TrackID
		types[i] = f.ErrorType
		msgs[i] = f.ErrorMessage
	}

	now := r.clock.Now().UTC()
	return withQuerier(ctx, r.DB, func(q querier) error {
		if _, err := q.Exec(ctx, `
			INSERT INTO analysis_attempts (job_id, track_id, status, error_type, error_message, created_at, updated_at)
			SELECT $1, f.track_id, 'failed', NULLIF(f.error_type, ''), NULLIF(f.error_message, ''), $5, $5
			FROM unnest($2::bigint[], $3::text[], $4::text[]) AS f(track_id, error_type, error_message)
			ON CONFLICT (job_id, track_id) DO UPDATE
			SET status = 'failed',
			    error_type = EXCLUDED.error_type,
			    error_message = EXCLUDED.error_message,
			    updated_at = EXCLUDED.updated_at
		`, jobID, ids, types, msgs, now); err != nil {
			return fmt.Errorf("mark attempts failed: %w", err)
		}
		return nil
	})
}

// FailInFlight marks all in_progress attempts of a job as failed.
func (r *AttemptRepo) FailInFlight(ctx context.Context, jobID string, failure model.AttemptFailure) (int64, error) {
	now := r.clock.Now().UTC()
	var n int64
	err := withQuerier(ctx, r.DB, func(q querier) error {
		tag, err := q.Exec(ctx, `
			UPDATE analysis_attempts
			SET status = 'failed',
			    error_type = $2,
			    error_message = $3,
			    updated_at = $4
			WHERE job_id = $1 AND status = 'in_progress'
		`, jobID, failure.ErrorType, failure.ErrorMessage, now)
		if err != nil {
			return fmt.Errorf("fail in-flight attempts: %w", err)
		}
		n = tag.RowsAffected()
		return nil
	})
	return n, err
}
