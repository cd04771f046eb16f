// Package audit provides the two compliance sinks: the request audit log
// (every authenticated call) and the PHI access log (every access to
// protected health data). Both are append-only and fire-and-forget: a write
// failure is logged internally and never reaches the caller.
package audit

import "time"

// RequestRecord is one completed request. Never updated or deleted.
type RequestRecord struct {
	Timestamp  time.Time
	UserID     string // "anonymous" when the request carried no identity
	Method     string
	Path       string
	Status     int
	DurationMS float64
}

// PHIRecord is one access to protected health data.
// Empty ResourceID/IPAddress/UserAgent are persisted as NULL.
type PHIRecord struct {
	Timestamp    time.Time
	UserID       string
	Action       string // e.g. "view_report", "delete_report", "export_account"
	ResourceType string // e.g. "history", "letter", "account"
	ResourceID   string
	IPAddress    string
	UserAgent    string
}

// PHIFilter narrows PHI log listings for the admin viewer.
type PHIFilter struct {
	Since  *time.Time
	UserID string
	Action string
	Limit  int
	Offset int
}
