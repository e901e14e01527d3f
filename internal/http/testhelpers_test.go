package httpx

import (
	"context"
	"net/http"
	"time"

	domainauth "github.com/target/track-analysis-api/internal/domain/auth"
)

const (
	testSessionID = "sess-1"
	testUserID    = int64(42)
)

// fakeSessions is an in-memory SessionLookup.
type fakeSessions struct {
	sessions map[string]domainauth.Session
	err      error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]domainauth.Session{
		testSessionID: {ID: testSessionID, UserID: testUserID, ExpiresAt: time.Now().Add(time.Hour)},
	}}
}

func (f *fakeSessions) Get(_ context.Context, id string) (domainauth.Session, error) {
	if f.err != nil {
		return domainauth.Session{}, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	return s, nil
}

// withSession returns r carrying the test user's session.
func withSession(r *http.Request) *http.Request {
	s := &domainauth.Session{ID: testSessionID, UserID: testUserID}
	return r.WithContext(ContextWithSession(r.Context(), s))
}
