package middleware

import (
	"log/slog"
	"net/http"

	"custos/internal/platform/secrets"
)

// RequireOpsToken guards operational endpoints (chain verification) with a
// shared token checked against a bcrypt hash. An empty hash disables the
// check for development.
func RequireOpsToken(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				next.ServeHTTP(w, r)
				return
			}
			token := r.Header.Get("X-Ops-Token")
			ok, err := secrets.Verify(token, tokenHash)
			if err != nil || !ok {
				ctx := r.Context()
				logger.WarnContext(ctx, "ops token mismatch",
					"request_id", GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"ops token required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
