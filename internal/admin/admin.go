// Package admin gates the compliance reporting surface behind an email
// allowlist and serves the reports themselves: registered users, usage
// rollups, the request/PHI audit viewer, and BAA acceptance exports.
package admin

import (
	"context"
	"time"
)

// User is a registered account as seen by the admin user listing.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// UsageEntry is one logged model invocation.
type UsageEntry struct {
	UserID      string    `json:"user_id"`
	Model       string    `json:"model"`
	RequestType string    `json:"request_type"`
	Tokens      int       `json:"tokens"`
	Timestamp   time.Time `json:"timestamp"`
}

// UsageSummary is a per-user rollup over a reporting window.
type UsageSummary struct {
	UserID      string `json:"user_id"`
	Requests    int    `json:"requests"`
	TotalTokens int    `json:"total_tokens"`
}

// Directory resolves a user ID to the email address used for the allowlist
// check. Returns sentinel.ErrNotFound for unknown users.
type Directory interface {
	EmailByUserID(ctx context.Context, userID string) (string, error)
}

// Reporting persists and aggregates usage data and lists registered users.
type Reporting interface {
	ListUsers(ctx context.Context) ([]User, error)
	UsageSince(ctx context.Context, since time.Time) ([]UsageSummary, error)
	InsertUsage(ctx context.Context, entry UsageEntry) error
}
