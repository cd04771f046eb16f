package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"phi-gateway/pkg/requestcontext"
)

// anonymousUser labels request records that carried no identity.
const anonymousUser = "anonymous"

// RequestAudit wraps every request and records identity, method, path,
// status, and elapsed time after the handler completes. The record is logged
// regardless of handler outcome and scheduled for persistence through the
// worker. Mounted only in networked mode.
func RequestAudit(worker *Worker, logger *slog.Logger, requests *prometheus.CounterVec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := float64(time.Since(start).Microseconds()) / 1000.0
			userID := requestcontext.UserID(r.Context())
			if userID == "" {
				userID = anonymousUser
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			logger.Info("request",
				"user", userID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", duration,
			)
			if requests != nil {
				requests.WithLabelValues(strconv.Itoa(status/100) + "xx").Inc()
			}

			worker.EnqueueRequest(RequestRecord{
				Timestamp:  start.UTC(),
				UserID:     userID,
				Method:     r.Method,
				Path:       r.URL.Path,
				Status:     status,
				DurationMS: duration,
			})
		})
	}
}
