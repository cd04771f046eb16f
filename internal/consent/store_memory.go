package consent

import (
	"context"
	"sort"
	"sync"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Insert(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *record)
	return nil
}

func (s *InMemoryStore) Exists(_ context.Context, userID, version string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.UserID == userID && r.Version == version {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) List(_ context.Context, filter ListFilter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.Since != nil && r.AcceptedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AcceptedAt.After(out[j].AcceptedAt) })
	return out, nil
}
