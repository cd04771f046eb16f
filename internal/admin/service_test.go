package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	gwerrors "phi-gateway/pkg/errors"
)

type AdminServiceSuite struct {
	suite.Suite
	directory *InMemoryDirectory
	reporting *InMemoryReporting
}

func TestAdminServiceSuite(t *testing.T) {
	suite.Run(t, new(AdminServiceSuite))
}

func (s *AdminServiceSuite) SetupTest() {
	s.directory = NewInMemoryDirectory()
	s.reporting = NewInMemoryReporting()
}

func (s *AdminServiceSuite) newService(adminEmails ...string) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(s.directory, s.reporting, adminEmails, logger)
}

func (s *AdminServiceSuite) requireCode(err error, code gwerrors.Code) {
	s.T().Helper()
	var gwErr gwerrors.GatewayError
	s.Require().ErrorAs(err, &gwErr)
	s.Equal(code, gwErr.Code)
}

func (s *AdminServiceSuite) TestAllowsAllowlistedAdmin() {
	s.directory.Add("u1", "Admin@Example.com")
	svc := s.newService("admin@example.com")

	s.Require().NoError(svc.RequireAdmin(context.Background(), "u1"))
}

func (s *AdminServiceSuite) TestAllowlistMatchIsCaseInsensitive() {
	s.directory.Add("u1", "admin@example.com")
	svc := s.newService("ADMIN@Example.COM")

	s.Require().NoError(svc.RequireAdmin(context.Background(), "u1"))
}

func (s *AdminServiceSuite) TestRejectsMissingIdentity() {
	svc := s.newService("admin@example.com")

	s.requireCode(svc.RequireAdmin(context.Background(), ""), gwerrors.CodeUnauthenticated)
}

func (s *AdminServiceSuite) TestEmptyAllowlistDeniesEveryone() {
	s.directory.Add("u1", "admin@example.com")
	svc := s.newService()

	err := svc.RequireAdmin(context.Background(), "u1")
	s.requireCode(err, gwerrors.CodeForbidden)
	s.Contains(err.Error(), "no admin users configured")
}

func (s *AdminServiceSuite) TestRejectsUnknownUser() {
	svc := s.newService("admin@example.com")

	s.requireCode(svc.RequireAdmin(context.Background(), "ghost"), gwerrors.CodeForbidden)
}

func (s *AdminServiceSuite) TestRejectsNonAdminEmail() {
	s.directory.Add("u2", "user@example.com")
	svc := s.newService("admin@example.com")

	s.requireCode(svc.RequireAdmin(context.Background(), "u2"), gwerrors.CodeForbidden)
}

func (s *AdminServiceSuite) TestDirectoryFailurePropagates() {
	svc := s.newService("admin@example.com")
	svc.directory = failingDirectory{}

	err := svc.RequireAdmin(context.Background(), "u1")
	s.Require().Error(err)
	var gwErr gwerrors.GatewayError
	s.False(errors.As(err, &gwErr))
}

func (s *AdminServiceSuite) TestLogUsageSkipsAnonymous() {
	svc := s.newService("admin@example.com")

	s.Require().NoError(svc.LogUsage(context.Background(), UsageEntry{Model: "gpt-4", Tokens: 100}))

	summaries, err := s.reporting.UsageSince(context.Background(), time.Time{})
	s.Require().NoError(err)
	s.Empty(summaries)
}

func (s *AdminServiceSuite) TestUsageSummaryAggregatesPerUser() {
	svc := s.newService("admin@example.com")
	ctx := context.Background()

	s.Require().NoError(svc.LogUsage(ctx, UsageEntry{UserID: "u1", Model: "gpt-4", Tokens: 100}))
	s.Require().NoError(svc.LogUsage(ctx, UsageEntry{UserID: "u1", Model: "gpt-4", Tokens: 50}))
	s.Require().NoError(svc.LogUsage(ctx, UsageEntry{UserID: "u2", Model: "gpt-4", Tokens: 25}))

	summaries, err := svc.UsageSince(ctx, time.Now().UTC().Add(-time.Hour))
	s.Require().NoError(err)
	s.Require().Len(summaries, 2)
	s.Equal(UsageSummary{UserID: "u1", Requests: 2, TotalTokens: 150}, summaries[0])
	s.Equal(UsageSummary{UserID: "u2", Requests: 1, TotalTokens: 25}, summaries[1])
}

func (s *AdminServiceSuite) TestUsageSinceExcludesOlderEntries() {
	svc := s.newService("admin@example.com")
	ctx := context.Background()

	old := UsageEntry{UserID: "u1", Tokens: 10, Timestamp: time.Now().UTC().Add(-48 * time.Hour)}
	s.Require().NoError(s.reporting.InsertUsage(ctx, old))
	s.Require().NoError(svc.LogUsage(ctx, UsageEntry{UserID: "u1", Tokens: 5}))

	summaries, err := svc.UsageSince(ctx, time.Now().UTC().Add(-time.Hour))
	s.Require().NoError(err)
	s.Require().Len(summaries, 1)
	s.Equal(1, summaries[0].Requests)
	s.Equal(5, summaries[0].TotalTokens)
}

type failingDirectory struct{}

func (failingDirectory) EmailByUserID(context.Context, string) (string, error) {
	return "", errors.New("directory down")
}
