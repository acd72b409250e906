package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/solyse/club-flow/pkg/logger"
)

const sessionHeader = "X-BC-Session"

type sessionContextKey struct{}

// Session resolves the per-browser session ID that scopes every cache key.
// A missing header mints a fresh ID; either way the ID is echoed back so the
// client can persist it.
func Session(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := r.Header.Get(sessionHeader)
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			w.Header().Set(sessionHeader, sessionID)

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session ID set by Session, or "".
func SessionFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionContextKey{}).(string)
	return sessionID
}

// WithSession is a test hook for injecting a session ID.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sessionID)
}
