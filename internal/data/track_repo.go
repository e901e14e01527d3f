package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/target/track-analysis-api/internal/domain/model"
)

// TrackRepo reads and seeds the track catalog.
type TrackRepo struct {
	DB *sql.DB
}

// NewTrackRepo constructs a TrackRepo.
func NewTrackRepo(db *sql.DB) *TrackRepo {
	return &TrackRepo{DB: db}
}

const trackColumns = `id, spotify_track_id, name, artist, album, created_at`

// GetByIDs returns the tracks that exist, in the order of ids. Missing ids are skipped.
func (r *TrackRepo) GetByIDs(ctx context.Context, ids []int64) ([]*model.Track, error) {
	if len(ids) == 0 {
		return []*model.Track{}, nil
	}
	var found []*model.Track
	err := withQuerier(ctx, r.DB, func(q querier) error {
		rows, err := q.Query(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = ANY($1)`, ids)
		if err != nil {
			return fmt.Errorf("query tracks: %w", err)
		}
		found, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Track])
		if err != nil {
			return fmt.Errorf("collect tracks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*model.Track, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	out := make([]*model.Track, 0, len(found))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
			delete(byID, id)
		}
	}
	return out, nil
}

// GetByID returns one track.
func (r *TrackRepo) GetByID(ctx context.Context, id int64) (*model.Track, error) {
	tracks, err := r.GetByIDs(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, ErrTrackNotFound
	}
	return tracks[0], nil
}

// UpsertTrackRequest describes a catalog entry keyed by its Spotify id.
type UpsertTrackRequest struct {
	SpotifyTrackID string
	Name           string
	Artist         string
	Album          string
}

// Upsert inserts or refreshes a catalog entry.
func (r *TrackRepo) Upsert(ctx context.Context, req UpsertTrackRequest) (*model.Track, error) {
	if strings.TrimSpace(req.SpotifyTrackID) == "" {
		return nil, errors.New("spotify track id is required")
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Artist) == "" {
		return nil, errors.New("track name and artist are required")
	}
	var track *model.Track
	err := withQuerier(ctx, r.DB, func(q querier) error {
		rows, err := q.Query(ctx, `
			INSERT INTO tracks (spotify_track_id, name, artist, album)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (spotify_track_id) DO UPDATE
			SET name = EXCLUDED.name,
			    artist = EXCLUDED.artist,
			    album = EXCLUDED.album
			RETURNING `+trackColumns,
			req.SpotifyTrackID, req.Name, req.Artist, req.Album)
		if err != nil {
			return fmt.Errorf("upsert track: %w", err)
		}
		track, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Track])
		return err
	})
	if err != nil {
		return nil, err
	}
	return track, nil
}
