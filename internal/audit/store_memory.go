package audit

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore keeps audit records in memory. Used in tests and as the sink
// wired up when no relational store is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests []RequestRecord
	phi      []PHIRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AppendRequest(_ context.Context, record RequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, record)
	return nil
}

func (s *InMemoryStore) AppendPHI(_ context.Context, record PHIRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phi = append(s.phi, record)
	return nil
}

// Requests returns a copy of all request records.
func (s *InMemoryStore) Requests() []RequestRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RequestRecord{}, s.requests...)
}

// ListPHI returns matching PHI records, newest first, plus the total match
// count before pagination.
func (s *InMemoryStore) ListPHI(_ context.Context, filter PHIFilter) ([]PHIRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []PHIRecord
	for _, r := range s.phi {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.Action != "" && r.Action != filter.Action {
			continue
		}
		if filter.Since != nil && r.Timestamp.Before(*filter.Since) {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}
