package middleware

import (
	"context"
	"log/slog"
	"net/http"
)

// Context keys for the caller's session identity. The session layer populates
// these; handlers only ever read them through the getters below.
type contextKeySessionID struct{}
type contextKeyIsAdmin struct{}

// GetSessionID retrieves the visitor session ID from the context.
func GetSessionID(ctx context.Context) string {
	if sid, ok := ctx.Value(contextKeySessionID{}).(string); ok {
		return sid
	}
	return ""
}

// WithSessionID injects a session ID into a context. Also used by handler
// tests that do not run the full middleware chain.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, contextKeySessionID{}, sessionID)
}

// IsAdmin reports whether the caller holds an authenticated admin session.
func IsAdmin(ctx context.Context) bool {
	admin, ok := ctx.Value(contextKeyIsAdmin{}).(bool)
	return ok && admin
}

// WithAdmin marks a context as carrying an authenticated admin session.
func WithAdmin(ctx context.Context, admin bool) context.Context {
	return context.WithValue(ctx, contextKeyIsAdmin{}, admin)
}

// RequireAdmin guards the real console. Anyone without the admin flag gets a
// plain 404 so probing traffic cannot confirm the path exists.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !IsAdmin(ctx) {
				logger.WarnContext(ctx, "unauthorized console access",
					"path", r.URL.Path,
					"ip", r.RemoteAddr,
					"request_id", GetRequestID(ctx),
				)
				http.NotFound(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
