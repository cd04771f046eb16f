package ratelimit

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"phi-gateway/pkg/requestcontext"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareLimit(t *testing.T) {
	t.Run("rejects over-limit requests before handler", func(t *testing.T) {
		service := NewService(NewInMemoryBucketStore(), 2, time.Minute)
		handlerCalls := 0
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalls++
		})
		mw := NewMiddleware(service, testLogger()).Limit(next)

		for i := range 3 {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/analyze", nil)
			r = r.WithContext(requestcontext.WithUserID(r.Context(), "u1"))
			mw.ServeHTTP(w, r)

			if i < 2 {
				assert.Equal(t, http.StatusOK, w.Code)
			} else {
				assert.Equal(t, http.StatusTooManyRequests, w.Code)
				assert.NotEmpty(t, w.Header().Get("Retry-After"))
				assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
			}
		}
		assert.Equal(t, 2, handlerCalls)
	})

	t.Run("keys by client IP when unauthenticated", func(t *testing.T) {
		service := NewService(NewInMemoryBucketStore(), 1, time.Minute)
		mw := NewMiddleware(service, testLogger()).Limit(okHandler())

		send := func(ip string) int {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/analyze", nil)
			r = r.WithContext(requestcontext.WithClientMetadata(r.Context(), ip, "ua"))
			mw.ServeHTTP(w, r)
			return w.Code
		}

		assert.Equal(t, http.StatusOK, send("192.0.2.1"))
		assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.1"))
		assert.Equal(t, http.StatusOK, send("192.0.2.2"))
	})

	t.Run("disabled middleware never limits", func(t *testing.T) {
		service := NewService(NewInMemoryBucketStore(), 1, time.Minute)
		mw := NewMiddleware(service, testLogger(), WithDisabled(true)).Limit(okHandler())

		for range 10 {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/analyze", nil)
			r = r.WithContext(requestcontext.WithUserID(r.Context(), "u1"))
			mw.ServeHTTP(w, r)
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})

	t.Run("sets rate limit headers on allowed requests", func(t *testing.T) {
		service := NewService(NewInMemoryBucketStore(), 5, time.Minute)
		mw := NewMiddleware(service, testLogger()).Limit(okHandler())

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/analyze", nil)
		r = r.WithContext(requestcontext.WithUserID(r.Context(), "u1"))
		mw.ServeHTTP(w, r)

		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
	})
}
