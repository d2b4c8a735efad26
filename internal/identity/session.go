package identity

import (
	"context"
	"net/http"
)

// Session identifies the current user and carries the admin capability
// flag consumed by authorization gates.
type Session struct {
	UserID  string
	IsAdmin bool
}

type contextKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

// Middleware resolves the session from request headers. In production
// this would validate a JWT from the Authorization header; header-based
// identity keeps session mechanics out of the core.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		s := Session{
			UserID:  userID,
			IsAdmin: r.Header.Get("X-Admin") == "true",
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}
