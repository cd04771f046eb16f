package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"phi-gateway/internal/secrets"
	gwerrors "phi-gateway/pkg/errors"
	"phi-gateway/pkg/platform/httputil"
)

// secretsHandler is the settings surface over the credential store. Reads
// never return the raw secret, only a masked preview.
type secretsHandler struct {
	store  *secrets.Store
	logger *slog.Logger
}

func newSecretsHandler(store *secrets.Store, logger *slog.Logger) *secretsHandler {
	return &secretsHandler{store: store, logger: logger}
}

func (h *secretsHandler) register(r chi.Router) {
	r.Get("/settings/api-key", h.handleGet)
	r.Put("/settings/api-key", h.handlePut)
	r.Delete("/settings/api-key", h.handleDelete)
}

func (h *secretsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		httputil.WriteError(w, gwerrors.New(gwerrors.CodeBadRequest, "name is required"))
		return
	}

	value, configured := h.store.Get(name)
	resp := map[string]any{
		"name":       name,
		"configured": configured,
	}
	if configured {
		resp["value"] = maskSecret(value)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type putSecretRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (h *secretsHandler) handlePut(w http.ResponseWriter, r *http.Request) {
	var req putSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, gwerrors.New(gwerrors.CodeBadRequest, "invalid request body"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Value == "" {
		httputil.WriteError(w, gwerrors.New(gwerrors.CodeBadRequest, "name and value are required"))
		return
	}

	h.store.Set(req.Name, req.Value)
	h.logger.Info("secret updated", "name", req.Name, "degraded", h.store.Degraded())
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"saved":    true,
		"degraded": h.store.Degraded(),
	})
}

func (h *secretsHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		httputil.WriteError(w, gwerrors.New(gwerrors.CodeBadRequest, "name is required"))
		return
	}

	h.store.Delete(name)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// maskSecret shows just enough of a stored value to recognize it.
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "********"
	}
	return value[:3] + "..." + value[len(value)-4:]
}
