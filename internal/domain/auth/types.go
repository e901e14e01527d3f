// Package auth contains the session record the API resolves requests to.
// Sessions are issued by the external login flow; this service only reads them.
package auth

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a session id is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side record for an authenticated user.
// ID is an opaque session identifier.
type Session struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session has lapsed at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Valid reports whether the session identifies a user and is still live at now.
func (s Session) Valid(now time.Time) bool {
	return s.ID != "" && s.UserID > 0 && !s.Expired(now)
}
