// Package devseed loads a small demo catalog for local development.
package devseed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redisadapter "github.com/target/track-analysis-api/internal/adapters/redis"
	"github.com/target/track-analysis-api/internal/data"
	domainauth "github.com/target/track-analysis-api/internal/domain/auth"
)

// DevUserID owns the seeded provider preference and session.
const DevUserID int64 = 1

// DevSessionID is the session seeded for DevUserID, usable as X-Session-ID.
const DevSessionID = "dev-session"

// Services bundles the dependencies needed for development seeding.
type Services struct {
	Tracks    *data.TrackRepo
	Providers *data.ProviderPrefRepo
	// Sessions is optional; without it no dev session is written.
	Sessions *redisadapter.SessionStore
}

// NewServices constructs the seeding repositories on db.
func NewServices(db *sql.DB, sessions *redisadapter.SessionStore) Services {
	return Services{
		Tracks:    data.NewTrackRepo(db),
		Providers: data.NewProviderPrefRepo(db, data.RepoConfig{}),
		Sessions:  sessions,
	}
}

// Result lists what was seeded.
type Result struct {
	TrackIDs  []int64
	Provider  string
	SessionID string
}

var demoTracks = []data.UpsertTrackRequest{
	{SpotifyTrackID: "4uLU6hMCjMI75M1A2tKUQC", Name: "Never Gonna Give You Up", Artist: "Rick Astley", Album: "Whenever You Need Somebody"},
	{SpotifyTrackID: "7GhIk7Il098yCjg4BQjzvb", Name: "Never Too Much", Artist: "Luther Vandross", Album: "Never Too Much"},
	{SpotifyTrackID: "3n3Ppam7vgaVa1iaRUc9Lp", Name: "Mr. Brightside", Artist: "The Killers", Album: "Hot Fuss"},
	{SpotifyTrackID: "0VjIjW4GlUZAMYd2vXMi3b", Name: "Blinding Lights", Artist: "The Weeknd", Album: "After Hours"},
	{SpotifyTrackID: "5ghIJDpPoe3CfHMGu71E6T", Name: "Smells Like Teen Spirit", Artist: "Nirvana", Album: "Nevermind"},
	{SpotifyTrackID: "2takcwOaAZWiXQijPHIx7B", Name: "Time", Artist: "Pink Floyd", Album: "The Dark Side of the Moon"},
	{SpotifyTrackID: "1h2xVEoJORqrg71HocgqXd", Name: "Superstition", Artist: "Stevie Wonder", Album: "Talking Book"},
	{SpotifyTrackID: "6habFhsOp2NvshLv26DqMb", Name: "Despacito", Artist: "Luis Fonsi", Album: "Vida"},
	{SpotifyTrackID: "40riOy7x9W7GXjyGp4pjAv", Name: "Hotel California", Artist: "Eagles", Album: "Hotel California"},
	{SpotifyTrackID: "7qiZfU4dY1lWllzX7mPBI3", Name: "Shape of You", Artist: "Ed Sheeran", Album: "Divide"},
}

// Run upserts the demo catalog, a provider preference and, when a session
// store is configured, a long-lived dev session. It is safe to re-run.
func Run(ctx context.Context, svc Services, logger *slog.Logger) (Result, error) {
	if svc.Tracks == nil || svc.Providers == nil {
		return Result{}, errors.New("devseed: track and provider repositories are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var res Result
	for _, req := range demoTracks {
		track, err := svc.Tracks.Upsert(ctx, req)
		if err != nil {
			return res, fmt.Errorf("seed track %s: %w", req.SpotifyTrackID, err)
		}
		res.TrackIDs = append(res.TrackIDs, track.ID)
	}
	logger.InfoContext(ctx, "seeded tracks", "count", len(res.TrackIDs))

	res.Provider = "google"
	if err := svc.Providers.Set(ctx, DevUserID, res.Provider); err != nil {
		return res, fmt.Errorf("seed provider preference: %w", err)
	}

	if svc.Sessions != nil {
		sess := domainauth.Session{ID: DevSessionID, UserID: DevUserID, DisplayName: "Dev User"}
		if err := svc.Sessions.Save(ctx, sess, 30*24*time.Hour); err != nil {
			return res, fmt.Errorf("seed session: %w", err)
		}
		res.SessionID = sess.ID
		logger.InfoContext(ctx, "seeded dev session", "session_id", sess.ID, "user_id", sess.UserID)
	}
	return res, nil
}
