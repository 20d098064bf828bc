// Package identity resolves the acting user for each request. This is a
// demo-grade scheme: the caller names itself with the X-User-ID header and
// no credentials are checked.
package identity

import (
	"context"
	"encoding/json"
	"net/http"
)

// HeaderName is the request header carrying the user identifier.
const HeaderName = "X-User-ID"

type contextKey struct{}

// UserID returns the user bound to the request context, or "" when the
// middleware did not run.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// WithUserID returns a context carrying the given user. Used by tests and
// internal callers that bypass the HTTP layer.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// Middleware requires the X-User-ID header on every request and binds its
// value into the request context. Requests without it get a 401.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderName)
		if userID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": HeaderName + " header is required",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}
