// Package auth resolves the caller's identity before any handler runs.
//
// In networked mode RequireAuth validates the bearer credential and attaches
// the resulting user ID to the request context. In local mode LocalIdentity
// attaches a fixed identity without consulting any identity provider.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"phi-gateway/pkg/requestcontext"
)

// LocalUserID is the fixed identity attached to every request in local
// single-tenant mode.
const LocalUserID = "local"

// TokenValidator defines the interface for validating bearer tokens.
// Implementations return the stable user identifier carried by the token.
type TokenValidator interface {
	ValidateToken(tokenString string) (string, error)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid bearer token and injects the
// resolved user ID into the request context for downstream handlers.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "Missing or invalid Authorization header")
				return
			}

			userID, err := validator.ValidateToken(token)
			if err != nil || userID == "" {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "Invalid or expired token")
				return
			}

			ctx := requestcontext.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LocalIdentity attaches the fixed local identity to every request. Used in
// local single-tenant mode where no network identity provider exists.
func LocalIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithUserID(r.Context(), LocalUserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
