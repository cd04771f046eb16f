package testutil

import (
	"net/http"

	"phi-gateway/pkg/requestcontext"
)

// WithUserID attaches an authenticated user ID to the request context,
// simulating what the auth middleware does for authenticated requests.
func WithUserID(req *http.Request, userID string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	return req.WithContext(ctx)
}
