package middleware

import (
	"log/slog"
	"net/http"
)

// Recovery converts handler panics into a generic failure response. The decoy
// surface must never show a stack trace, so the body stays deliberately bland.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.ErrorContext(r.Context(), "handler panic",
						"panic", rec,
						"path", r.URL.Path,
						"request_id", GetRequestID(r.Context()),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusBadRequest)
					_, _ = w.Write([]byte(`{"error":"invalid_input","error_description":"request could not be processed"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
