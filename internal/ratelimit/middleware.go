package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"phi-gateway/pkg/platform/httputil"
	"phi-gateway/pkg/requestcontext"
)

// Middleware applies the limiter to a route class. Disabled entirely in local
// mode: the gateway then imposes no request bound at all.
type Middleware struct {
	service    *Service
	logger     *slog.Logger
	disabled   bool
	rejections prometheus.Counter
}

// Option configures a Middleware.
type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (local mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) { m.disabled = disabled }
}

// WithRejectionCounter records limit rejections.
func WithRejectionCounter(c prometheus.Counter) Option {
	return func(m *Middleware) { m.rejections = c }
}

func NewMiddleware(service *Service, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{service: service, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit enforces the request bound before the protected handler runs. Keys by
// user ID when the request carries an identity, else by client address. A
// store failure fails open: availability of the primary path wins.
func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := requestcontext.UserID(ctx)
		if key == "" {
			key = requestcontext.ClientIP(ctx)
		}

		result, err := m.service.Check(ctx, key)
		if err != nil {
			m.logger.Error("failed to check rate limit", "error", err, "key", key)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)

		if !result.Allowed {
			if m.rejections != nil {
				m.rejections.Inc()
			}
			writeRateLimitExceeded(w, result)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func addRateLimitHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate_limit_exceeded",
		"message":     "Too many requests. Please wait before making more requests.",
		"retry_after": result.RetryAfter,
	})
}
