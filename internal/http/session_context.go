package httpx

import (
	"context"
	"net/http"

	domainauth "github.com/target/track-analysis-api/internal/domain/auth"
)

type sessionKey struct{}

// ContextWithSession attaches sess to ctx. A nil session leaves ctx as is.
func ContextWithSession(ctx context.Context, sess *domainauth.Session) context.Context {
	if sess == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the session the auth middleware resolved.
func SessionFromContext(ctx context.Context) (*domainauth.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*domainauth.Session)
	return sess, ok && sess != nil
}

// UserIDFromContext returns the session's user. Sessions without a positive
// user id are treated as anonymous.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	if sess, ok := SessionFromContext(ctx); ok && sess.UserID > 0 {
		return sess.UserID, true
	}
	return 0, false
}

// requireUser writes a 401 when the request carries no user.
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
	}
	return userID, ok
}
