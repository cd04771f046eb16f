// Package ratelimit throttles request volume per identity within a sliding
// time window. Buckets live in memory by default and in Redis when a shared
// store is configured.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds; only meaningful when Allowed is false
}

// BucketStore tracks request counts per key within a window.
type BucketStore interface {
	// Allow checks if a request is allowed and increments the counter.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
	// Reset clears the counter for a key.
	Reset(ctx context.Context, key string) error
}

// Service applies a fixed limit per window to keys supplied by the caller
// (user ID when resolved, else client address).
type Service struct {
	store  BucketStore
	limit  int
	window time.Duration
}

func NewService(store BucketStore, limit int, window time.Duration) *Service {
	return &Service{store: store, limit: limit, window: window}
}

// Check records one request for key and reports whether it is within bounds.
func (s *Service) Check(ctx context.Context, key string) (*Result, error) {
	return s.store.Allow(ctx, key, s.limit, s.window)
}
