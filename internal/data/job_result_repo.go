package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/target/track-analysis-api/internal/domain/model"
)

// ResultRepo persists analysis results, one row per track.
type ResultRepo struct {
	DB     *sql.DB
	clock  Clock
	logger *slog.Logger
}

// NewResultRepo constructs a ResultRepo.
func NewResultRepo(db *sql.DB, cfg RepoConfig) *ResultRepo {
	return &ResultRepo{DB: db, clock: cfg.clock(), logger: cfg.logger("result_repo")}
}

const resultColumns = `id, track_id, model_name, analysis, version, created_at, updated_at`

// Upsert stores the analysis for a track, replacing any earlier result.
func (r *ResultRepo) Upsert(ctx context.Context, req model.SaveResultRequest) (*model.AnalysisResult, error) {
	if req.TrackID <= 0 {
		return nil, errors.New("track id is required")
	}
	if len(req.Analysis) == 0 {
		return nil, errors.New("analysis payload is required")
	}

	now := r.clock.Now().UTC()
	var res *model.AnalysisResult
	err := withQuerier(ctx, r.DB, func(q querier) error {
		rows, err := q.Query(ctx, `
			INSERT INTO track_analyses (track_id, model_name, analysis, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT ON CONSTRAINT track_analyses_track_key DO UPDATE
			SET model_name = EXCLUDED.model_name,
			    analysis = EXCLUDED.analysis,
			    version = EXCLUDED.version,
			    updated_at = EXCLUDED.updated_at
			RETURNING `+resultColumns,
			req.TrackID, req.ModelName, []byte(req.Analysis), model.CurrentAnalysisVersion, now)
		if err != nil {
			return fmt.Errorf("upsert track analysis: %w", err)
		}
		res, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.AnalysisResult])
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetByTrackID returns the stored analysis for a track.
func (r *ResultRepo) GetByTrackID(ctx context.Context, trackID int64) (*model.AnalysisResult, error) {
	var res *model.AnalysisResult
	err := withQuerier(ctx, r.DB, func(q querier) error {
		rows, err := q.Query(ctx, `SELECT `+resultColumns+` FROM track_analyses WHERE track_id = $1`, trackID)
		if err != nil {
			return err
		}
		res, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.AnalysisResult])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get track analysis: %w", err)
	}
	return res, nil
}

// ExistingTrackIDs returns the subset of trackIDs that have a stored result.
func (r *ResultRepo) ExistingTrackIDs(ctx context.Context, trackIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(trackIDs))
	if len(trackIDs) == 0 {
		return out, nil
	}
	err := withQuerier(ctx, r.DB, func(q querier) error {
		rows, err := q.Query(ctx, `SELECT track_id FROM track_analyses WHERE track_id = ANY($1)`, trackIDs)
		if err != nil {
			return fmt.Errorf("query existing results: %w", err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return fmt.Errorf("collect existing results: %w", err)
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
