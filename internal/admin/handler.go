package admin

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"

	"phi-gateway/internal/audit"
	"phi-gateway/internal/consent"
	gwerrors "phi-gateway/pkg/errors"
	"phi-gateway/pkg/platform/httputil"
	"phi-gateway/pkg/requestcontext"
)

// defaultUsageWindow is how far back the usage report reaches when the
// request carries no explicit since parameter.
const defaultUsageWindow = 30 * 24 * time.Hour

// defaultAuditPageSize caps audit viewer pages unless the caller asks for
// less.
const defaultAuditPageSize = 100

// AuditLog is the audit viewer's read side.
type AuditLog interface {
	ListPHI(ctx context.Context, filter audit.PHIFilter) ([]audit.PHIRecord, int, error)
}

// Handler exposes the admin reporting surface. Every route runs behind the
// allowlist check. Mounted only in networked mode. Viewing or exporting the
// compliance data is itself an access worth recording, so the read endpoints
// go through the PHI recorder.
type Handler struct {
	service  *Service
	consents *consent.Service
	auditLog AuditLog
	recorder *audit.Recorder
	logger   *slog.Logger
}

func NewHandler(service *Service, consents *consent.Service, auditLog AuditLog, recorder *audit.Recorder, logger *slog.Logger) *Handler {
	return &Handler{service: service, consents: consents, auditLog: auditLog, recorder: recorder, logger: logger}
}

// Register mounts the admin routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/users", h.handleListUsers)
		r.Get("/usage", h.handleUsage)
		r.Post("/usage/log", h.handleLogUsage)
		r.Get("/audit-log", h.handleAuditLog)
		r.Get("/baa-acceptances", h.handleBAAAcceptances)
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := h.service.RequireAdmin(ctx, requestcontext.UserID(ctx)); err != nil {
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"total": len(users),
	})
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	since := time.Now().UTC().Add(-defaultUsageWindow)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, gwerrors.New(gwerrors.CodeBadRequest, "since must be RFC 3339"))
			return
		}
		since = parsed
	}

	summaries, err := h.service.UsageSince(r.Context(), since)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"since": since.Format(time.RFC3339),
		"users": summaries,
	})
}

type logUsageRequest struct {
	Model       string `json:"model"`
	RequestType string `json:"request_type"`
	Tokens      int    `json:"tokens"`
}

func (h *Handler) handleLogUsage(w http.ResponseWriter, r *http.Request) {
	var req logUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, gwerrors.New(gwerrors.CodeBadRequest, "invalid request body"))
		return
	}

	ctx := r.Context()
	err := h.service.LogUsage(ctx, UsageEntry{
		UserID:      requestcontext.UserID(ctx),
		Model:       req.Model,
		RequestType: req.RequestType,
		Tokens:      req.Tokens,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"logged": true})
}

func (h *Handler) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := audit.PHIFilter{
		UserID: query.Get("user_id"),
		Action: query.Get("action"),
		Limit:  defaultAuditPageSize,
	}
	if raw := query.Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, gwerrors.New(gwerrors.CodeBadRequest, "since must be RFC 3339"))
			return
		}
		filter.Since = &parsed
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > defaultAuditPageSize {
			httputil.WriteError(w, gwerrors.New(gwerrors.CodeBadRequest, "limit must be between 1 and 100"))
			return
		}
		filter.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			httputil.WriteError(w, gwerrors.New(gwerrors.CodeBadRequest, "offset must be non-negative"))
			return
		}
		filter.Offset = offset
	}

	records, total, err := h.auditLog.ListPHI(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.recorder.Record(r.Context(), "view_audit_log", "audit_log", "")

	if query.Get("format") == "csv" {
		h.writeAuditCSV(w, records)
		return
	}

	type auditEntry struct {
		Timestamp    time.Time `json:"timestamp"`
		UserID       string    `json:"user_id"`
		Action       string    `json:"action"`
		ResourceType string    `json:"resource_type"`
		ResourceID   string    `json:"resource_id,omitempty"`
		IPAddress    string    `json:"ip_address,omitempty"`
	}
	entries := make([]auditEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, auditEntry{
			Timestamp:    rec.Timestamp,
			UserID:       rec.UserID,
			Action:       rec.Action,
			ResourceType: rec.ResourceType,
			ResourceID:   rec.ResourceID,
			IPAddress:    rec.IPAddress,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"records": entries,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

func (h *Handler) writeAuditCSV(w http.ResponseWriter, records []audit.PHIRecord) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-log.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"timestamp", "user_id", "action", "resource_type", "resource_id", "ip_address"})
	for _, rec := range records {
		_ = cw.Write([]string{
			rec.Timestamp.Format(time.RFC3339),
			rec.UserID,
			rec.Action,
			rec.ResourceType,
			rec.ResourceID,
			rec.IPAddress,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("failed to write audit log export", "error", err)
	}
}

func (h *Handler) handleBAAAcceptances(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := consent.ListFilter{UserID: query.Get("user_id")}
	if raw := query.Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, gwerrors.New(gwerrors.CodeBadRequest, "since must be RFC 3339"))
			return
		}
		filter.Since = &parsed
	}

	records, err := h.consents.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.recorder.Record(r.Context(), "export_baa_acceptances", "baa_acceptances", "")

	if query.Get("format") == "csv" {
		h.writeBAACSV(w, records)
		return
	}

	type acceptanceEntry struct {
		UserID     string    `json:"user_id"`
		Version    string    `json:"version"`
		AcceptedAt time.Time `json:"accepted_at"`
		IPAddress  string    `json:"ip_address,omitempty"`
	}
	entries := make([]acceptanceEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, acceptanceEntry{
			UserID:     rec.UserID,
			Version:    rec.Version,
			AcceptedAt: rec.AcceptedAt,
			IPAddress:  rec.IPAddress,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"acceptances": entries,
		"total":       len(entries),
	})
}

func (h *Handler) writeBAACSV(w http.ResponseWriter, records []consent.Record) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="baa-acceptances.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"user_id", "version", "accepted_at", "ip_address", "browser", "os"})
	for _, rec := range records {
		browser, os := describeUserAgent(rec.UserAgent)
		_ = cw.Write([]string{
			rec.UserID,
			rec.Version,
			rec.AcceptedAt.Format(time.RFC3339),
			rec.IPAddress,
			browser,
			os,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("failed to write acceptance export", "error", err)
	}
}

// describeUserAgent condenses a raw User-Agent header into browser and OS
// columns for the export.
func describeUserAgent(raw string) (browser, os string) {
	if raw == "" {
		return "", ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if version != "" {
		browser = fmt.Sprintf("%s %s", name, version)
	} else {
		browser = name
	}
	return browser, ua.OS()
}
