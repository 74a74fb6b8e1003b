// Package admin protects operational endpoints with a shared header token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"milkadmin/pkg/requestcontext"
)

// MetricsTokenHeader carries the scrape token for /metrics.
const MetricsTokenHeader = "X-Metrics-Token"

// RequireToken rejects requests whose header does not carry expectedToken.
// An empty expectedToken disables the check.
func RequireToken(header, expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expectedToken == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(header)
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "operational token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"token required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
