// Package auth guards console routes behind the operator session.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"milkadmin/internal/session/models"
	"milkadmin/pkg/requestcontext"
)

// SessionChecker reports the current state of the operator session.
type SessionChecker interface {
	Snapshot() models.Snapshot
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireSession returns middleware that rejects requests unless the session
// is AUTHENTICATED. The operator's user ID, when known, is placed in the context.
func RequireSession(checker SessionChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			snap := checker.Snapshot()
			if !snap.Authenticated() {
				logger.WarnContext(ctx, "unauthorized access - no operator session",
					"request_id", requestcontext.RequestID(ctx),
					"state", snap.State,
					"path", r.URL.Path,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Login required")
				return
			}

			if snap.UserID != nil {
				ctx = requestcontext.WithOperatorID(ctx, *snap.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
