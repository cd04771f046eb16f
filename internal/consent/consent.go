// Package consent records and queries acceptance of the business associate
// agreement (BAA). Acceptances are immutable history: re-acceptance inserts a
// new record, nothing is ever updated or deleted.
package consent

import (
	"context"
	"log/slog"
	"time"

	gwerrors "phi-gateway/pkg/errors"
)

// CurrentVersion is the agreement version presented to users today.
const CurrentVersion = "1.0"

// Record is one acceptance of an agreement version by a user.
type Record struct {
	UserID     string
	Version    string
	AcceptedAt time.Time
	IPAddress  string
	UserAgent  string
}

// ListFilter narrows acceptance listings for compliance reporting.
type ListFilter struct {
	Since  *time.Time
	UserID string
}

// Store persists acceptance records.
type Store interface {
	Insert(ctx context.Context, record *Record) error
	Exists(ctx context.Context, userID, version string) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]Record, error)
}

// Service provides consent state to handlers. Both operations require a
// resolved identity.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Status reports whether userID has accepted the given agreement version.
func (s *Service) Status(ctx context.Context, userID, version string) (bool, error) {
	if userID == "" {
		return false, gwerrors.New(gwerrors.CodeUnauthenticated, "authentication required")
	}
	return s.store.Exists(ctx, userID, version)
}

// Accept records a new acceptance unconditionally. Prior acceptance is not
// checked: each acceptance is its own audit fact.
func (s *Service) Accept(ctx context.Context, userID, version, ip, userAgent string) error {
	if userID == "" {
		return gwerrors.New(gwerrors.CodeUnauthenticated, "authentication required")
	}
	record := &Record{
		UserID:     userID,
		Version:    version,
		AcceptedAt: time.Now().UTC(),
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	if err := s.store.Insert(ctx, record); err != nil {
		return err
	}
	s.logger.Info("BAA accepted", "version", version, "user_id", userID)
	return nil
}

// List returns acceptance history for compliance reporting.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	return s.store.List(ctx, filter)
}
