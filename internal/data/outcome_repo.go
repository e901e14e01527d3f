package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/target/track-analysis-api/internal/domain/model"
)

// OutcomeRepo is the per-item tally that makes rollup updates idempotent.
type OutcomeRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewOutcomeRepo constructs an OutcomeRepo.
func NewOutcomeRepo(db *sql.DB, cfg RepoConfig) *OutcomeRepo {
	return &OutcomeRepo{DB: db, clock: cfg.clock()}
}

type countedRow struct {
	TrackID   int64
	Succeeded bool
}

// Record counts each outcome at most once per (job, item). Items outside the job's
// fixed item list are ignored. The result covers newly counted outcomes only.
func (r *OutcomeRepo) Record(ctx context.Context, jobID string, outcomes []model.ItemOutcome) (model.CountedOutcomes, error) {
	var res model.CountedOutcomes
	if len(outcomes) == 0 {
		return res, nil
	}

	seen := make(map[int64]struct{}, len(outcomes))
	ids := make([]int64, 0, len(outcomes))
	oks := make([]bool, 0, len(outcomes))
	for _, o := range outcomes {
		if _, dup := seen[o.TrackID]; dup {
			continue
		}
		seen[o.TrackID] = struct{}{}
		ids = append(ids, o.TrackID)
		oks = append(oks, o.Succeeded)
	}

	now := r.clock.Now().UTC()
	err := withQuerier(ctx, r.DB, func(q querier) error {
		rows, err := q.Query(ctx, `
			INSERT INTO analysis_item_outcomes (job_id, track_id, succeeded, counted_at)
			SELECT $1, o.track_id, o.succeeded, $4
			FROM unnest($2::bigint[], $3::boolean[]) AS o(track_id, succeeded)
			JOIN analysis_jobs j ON j.id = $1 AND o.track_id = ANY(j.item_ids)
			ON CONFLICT (job_id, track_id) DO NOTHING
			RETURNING track_id, succeeded
		`, jobID, ids, oks, now)
		if err != nil {
			return fmt.Errorf("record outcomes: %w", err)
		}
		counted, err := pgx.CollectRows(rows, pgx.RowToStructByPos[countedRow])
		if err != nil {
			return fmt.Errorf("collect outcomes: %w", err)
		}
		for _, c := range counted {
			res.TrackIDs = append(res.TrackIDs, c.TrackID)
			if c.Succeeded {
				res.Delta.Succeeded++
			} else {
				res.Delta.Failed++
			}
		}
		return nil
	})
	if err != nil {
		return model.CountedOutcomes{}, err
	}
	return res, nil
}

// Settled returns which of trackIDs already have a counted outcome for the job.
func (r *OutcomeRepo) Settled(ctx context.Context, jobID string, trackIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(trackIDs))
	if len(trackIDs) == 0 {
		return out, nil
	}
	err := withQuerier(ctx, r.DB, func(q querier) error {
		rows, err := q.Query(ctx, `
			SELECT track_id FROM analysis_item_outcomes
			WHERE job_id = $1 AND track_id = ANY($2)
		`, jobID, trackIDs)
		if err != nil {
			return fmt.Errorf("query settled outcomes: %w", err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return fmt.Errorf("collect settled outcomes: %w", err)
		}
		for _, id := range ids {
			out[id] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
