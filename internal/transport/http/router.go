// Package httptransport assembles the gateway's HTTP surface. The router is
// where deployment mode becomes visible: networked mode mounts the compliance
// surface behind bearer authentication, local mode runs with a fixed identity
// and no compliance routes at all.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"phi-gateway/internal/admin"
	"phi-gateway/internal/audit"
	"phi-gateway/internal/consent"
	"phi-gateway/internal/platform/metrics"
	"phi-gateway/internal/ratelimit"
	"phi-gateway/internal/secrets"
	"phi-gateway/pkg/platform/httputil"
	"phi-gateway/pkg/platform/middleware/auth"
	"phi-gateway/pkg/platform/middleware/metadata"
	"phi-gateway/pkg/platform/middleware/tracing"
	"phi-gateway/pkg/requestcontext"
)

// Deps carries everything the router mounts. Consent and Admin are ignored in
// local mode; AnalyzeHandler and MetricsHandler are optional.
type Deps struct {
	Logger    *slog.Logger
	Networked bool

	Validator   auth.TokenValidator
	Secrets     *secrets.Store
	AuditWorker *audit.Worker
	Metrics     *metrics.Metrics
	RateLimit   *ratelimit.Middleware

	Consent *consent.Handler
	Admin   *admin.Handler

	// AnalyzeHandler serves the document analysis surface, mounted behind
	// the rate limiter.
	AnalyzeHandler http.Handler
	// MetricsHandler serves the Prometheus scrape endpoint.
	MetricsHandler http.Handler
}

// NewRouter wires middleware and routes for the given deployment mode.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(propagateRequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(tracing.Trace)

	// The request audit log covers every request, authenticated or not.
	if deps.Networked {
		var requests *prometheus.CounterVec
		if deps.Metrics != nil {
			requests = deps.Metrics.RequestsTotal
		}
		r.Use(audit.RequestAudit(deps.AuditWorker, deps.Logger, requests))
	}

	r.Get("/health", handleHealth(deps))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		if deps.Networked {
			r.Use(auth.RequireAuth(deps.Validator, deps.Logger))
		} else {
			r.Use(auth.LocalIdentity)
		}

		newSecretsHandler(deps.Secrets, deps.Logger).register(r)

		if deps.Networked {
			deps.Consent.Register(r)
			deps.Admin.Register(r)
		}

		if deps.AnalyzeHandler != nil {
			r.Group(func(r chi.Router) {
				if deps.RateLimit != nil {
					r.Use(deps.RateLimit.Limit)
				}
				r.Mount("/analyze", deps.AnalyzeHandler)
			})
		}
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	mode := "local"
	if deps.Networked {
		mode = "networked"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"mode":   mode,
		})
	}
}

// propagateRequestID copies the chi request ID into the request context keys
// the services read.
func propagateRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := chimiddleware.GetReqID(ctx); id != "" {
			ctx = requestcontext.WithRequestID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
