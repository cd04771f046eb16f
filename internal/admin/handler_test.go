package admin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"phi-gateway/internal/audit"
	"phi-gateway/internal/consent"
	"phi-gateway/pkg/testutil"
)

type AdminHandlerSuite struct {
	suite.Suite
	router    chi.Router
	directory *InMemoryDirectory
	reporting *InMemoryReporting
	consents  *consent.InMemoryStore
	auditLog  *audit.InMemoryStore
}

func TestAdminHandlerSuite(t *testing.T) {
	suite.Run(t, new(AdminHandlerSuite))
}

func (s *AdminHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.directory = NewInMemoryDirectory()
	s.directory.Add("admin-1", "admin@example.com")
	s.directory.Add("user-1", "user@example.com")

	s.reporting = NewInMemoryReporting()
	s.consents = consent.NewInMemoryStore()
	s.auditLog = audit.NewInMemoryStore()

	service := NewService(s.directory, s.reporting, []string{"admin@example.com"}, logger)
	consentService := consent.NewService(s.consents, logger)
	recorder := audit.NewRecorder(audit.NewWorker(s.auditLog, logger), logger, false)
	handler := NewHandler(service, consentService, s.auditLog, recorder, logger)

	s.router = chi.NewRouter()
	handler.Register(s.router)
}

func (s *AdminHandlerSuite) do(userID, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if userID != "" {
		req = testutil.WithUserID(req, userID)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *AdminHandlerSuite) TestRejectsNonAdmin() {
	rec := s.do("user-1", http.MethodGet, "/admin/users", nil)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *AdminHandlerSuite) TestRejectsUnauthenticated() {
	rec := s.do("", http.MethodGet, "/admin/users", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *AdminHandlerSuite) TestListUsers() {
	s.reporting.AddUser(User{ID: "user-1", Email: "user@example.com", CreatedAt: time.Now().UTC()})

	rec := s.do("admin-1", http.MethodGet, "/admin/users", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var body struct {
		Users []User `json:"users"`
		Total int    `json:"total"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.Equal(1, body.Total)
	s.Equal("user@example.com", body.Users[0].Email)
}

func (s *AdminHandlerSuite) TestLogAndSummarizeUsage() {
	payload := strings.NewReader(`{"model":"gpt-4","request_type":"analyze","tokens":120}`)
	rec := s.do("admin-1", http.MethodPost, "/admin/usage/log", payload)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do("admin-1", http.MethodGet, "/admin/usage", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var body struct {
		Users []UsageSummary `json:"users"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.Require().Len(body.Users, 1)
	s.Equal("admin-1", body.Users[0].UserID)
	s.Equal(120, body.Users[0].TotalTokens)
}

func (s *AdminHandlerSuite) TestUsageRejectsMalformedSince() {
	rec := s.do("admin-1", http.MethodGet, "/admin/usage?since=yesterday", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *AdminHandlerSuite) TestAuditLogPagination() {
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		err := s.auditLog.AppendPHI(context.Background(), audit.PHIRecord{
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
			UserID:       "user-1",
			Action:       "view_report",
			ResourceType: "history",
		})
		s.Require().NoError(err)
	}

	rec := s.do("admin-1", http.MethodGet, "/admin/audit-log?limit=2&offset=1", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var body struct {
		Records []json.RawMessage `json:"records"`
		Total   int               `json:"total"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.Equal(5, body.Total)
	s.Len(body.Records, 2)
}

func (s *AdminHandlerSuite) TestAuditLogCSVExport() {
	err := s.auditLog.AppendPHI(context.Background(), audit.PHIRecord{
		Timestamp:    time.Now().UTC(),
		UserID:       "user-1",
		Action:       "export_account",
		ResourceType: "account",
	})
	s.Require().NoError(err)

	rec := s.do("admin-1", http.MethodGet, "/admin/audit-log?format=csv", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	s.Require().Len(lines, 2)
	s.Contains(lines[0], "user_id,action")
	s.Contains(lines[1], "export_account")
}

func (s *AdminHandlerSuite) TestBAAAcceptancesCSVIncludesBrowser() {
	err := s.consents.Insert(context.Background(), &consent.Record{
		UserID:     "user-1",
		Version:    consent.CurrentVersion,
		AcceptedAt: time.Now().UTC(),
		IPAddress:  "203.0.113.9",
		UserAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	})
	s.Require().NoError(err)

	rec := s.do("admin-1", http.MethodGet, "/admin/baa-acceptances?format=csv", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	body := rec.Body.String()
	s.Contains(body, "user-1")
	s.Contains(body, "Chrome")
}

func (s *AdminHandlerSuite) TestAuditLogRejectsOversizedLimit() {
	rec := s.do("admin-1", http.MethodGet, "/admin/audit-log?limit=5000", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}
