package model

import "time"

// Track is the canonical metadata for one library item.
type Track struct {
	ID             int64     `json:"id"             db:"id"`
	SpotifyTrackID string    `json:"spotifyTrackId" db:"spotify_track_id"`
	Name           string    `json:"name"           db:"name"`
	Artist         string    `json:"artist"         db:"artist"`
	Album          string    `json:"album"          db:"album"`
	CreatedAt      time.Time `json:"createdAt"      db:"created_at"`
}

// Metadata returns the subset of track fields carried on queue messages.
func (t *Track) Metadata() TrackMetadata {
	return TrackMetadata{
		Title:          t.Name,
		Artist:         t.Artist,
		Album:          t.Album,
		SpotifyTrackID: t.SpotifyTrackID,
	}
}

// TrackMetadata is the item metadata sent to the analysis provider.
type TrackMetadata struct {
	Title          string `json:"title"`
	Artist         string `json:"artist"`
	Album          string `json:"album,omitempty"`
	SpotifyTrackID string `json:"spotifyTrackId,omitempty"`
}

// DefaultProvider is used when a user has no stored preference.
const DefaultProvider = "google"

// ProviderPreference is a user's selected analysis provider.
type ProviderPreference struct {
	UserID         int64     `json:"userId"         db:"user_id"`
	ActiveProvider string    `json:"activeProvider" db:"active_provider"`
	UpdatedAt      time.Time `json:"updatedAt"      db:"updated_at"`
}
