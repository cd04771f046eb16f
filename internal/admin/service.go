package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gwerrors "phi-gateway/pkg/errors"
	"phi-gateway/pkg/platform/sentinel"
)

// Service decides who may use the admin surface and fronts the reporting
// store for the handlers.
type Service struct {
	directory Directory
	reporting Reporting
	allowlist map[string]struct{}
	logger    *slog.Logger
}

// NewService builds the admin service. adminEmails come from configuration
// and are matched case-insensitively against the directory email.
func NewService(directory Directory, reporting Reporting, adminEmails []string, logger *slog.Logger) *Service {
	allowlist := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			allowlist[email] = struct{}{}
		}
	}
	return &Service{
		directory: directory,
		reporting: reporting,
		allowlist: allowlist,
		logger:    logger,
	}
}

// RequireAdmin returns nil only when userID resolves to an allowlisted email.
// An empty allowlist denies everyone: admin access must be an explicit
// deployment decision, never a default.
func (s *Service) RequireAdmin(ctx context.Context, userID string) error {
	if userID == "" {
		return gwerrors.New(gwerrors.CodeUnauthenticated, "authentication required")
	}
	if len(s.allowlist) == 0 {
		return gwerrors.New(gwerrors.CodeForbidden, "no admin users configured")
	}

	email, err := s.directory.EmailByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return gwerrors.New(gwerrors.CodeForbidden, "admin access required")
		}
		return fmt.Errorf("resolving admin email: %w", err)
	}

	if _, ok := s.allowlist[strings.ToLower(email)]; !ok {
		s.logger.Warn("admin access denied", "user_id", userID)
		return gwerrors.New(gwerrors.CodeForbidden, "admin access required")
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.reporting.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (s *Service) UsageSince(ctx context.Context, since time.Time) ([]UsageSummary, error) {
	summaries, err := s.reporting.UsageSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("summarizing usage: %w", err)
	}
	return summaries, nil
}

// LogUsage records one model invocation for the given user. Callers without
// an identity have nothing to attribute the usage to, so the entry is
// silently skipped.
func (s *Service) LogUsage(ctx context.Context, entry UsageEntry) error {
	if entry.UserID == "" {
		return nil
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := s.reporting.InsertUsage(ctx, entry); err != nil {
		return fmt.Errorf("inserting usage entry: %w", err)
	}
	return nil
}
