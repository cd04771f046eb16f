package consent

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"phi-gateway/pkg/platform/httputil"
	"phi-gateway/pkg/requestcontext"
)

// Handler exposes BAA acceptance over HTTP. Mounted only in networked mode;
// in local mode these routes do not exist.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the consent routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/baa/status", h.handleStatus)
	r.Post("/baa/accept", h.handleAccept)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accepted, err := h.service.Status(ctx, requestcontext.UserID(ctx), CurrentVersion)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"accepted": accepted,
		"version":  CurrentVersion,
	})
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.service.Accept(ctx,
		requestcontext.UserID(ctx),
		CurrentVersion,
		requestcontext.ClientIP(ctx),
		requestcontext.UserAgent(ctx),
	)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"accepted": true})
}
