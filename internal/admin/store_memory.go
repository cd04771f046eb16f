package admin

import (
	"context"
	"sort"
	"sync"
	"time"

	"phi-gateway/pkg/platform/sentinel"
)

// InMemoryDirectory maps user IDs to emails. Test double for the postgres
// users table.
type InMemoryDirectory struct {
	mu     sync.RWMutex
	emails map[string]string
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{emails: make(map[string]string)}
}

func (d *InMemoryDirectory) Add(userID, email string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails[userID] = email
}

func (d *InMemoryDirectory) EmailByUserID(_ context.Context, userID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	email, ok := d.emails[userID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return email, nil
}

// InMemoryReporting keeps users and usage entries in memory.
type InMemoryReporting struct {
	mu    sync.RWMutex
	users []User
	usage []UsageEntry
}

func NewInMemoryReporting() *InMemoryReporting {
	return &InMemoryReporting{}
}

func (r *InMemoryReporting) AddUser(user User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, user)
}

func (r *InMemoryReporting) ListUsers(_ context.Context) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := append([]User{}, r.users...)
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (r *InMemoryReporting) UsageSince(_ context.Context, since time.Time) ([]UsageSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byUser := make(map[string]*UsageSummary)
	var order []string
	for _, e := range r.usage {
		if e.Timestamp.Before(since) {
			continue
		}
		s, ok := byUser[e.UserID]
		if !ok {
			s = &UsageSummary{UserID: e.UserID}
			byUser[e.UserID] = s
			order = append(order, e.UserID)
		}
		s.Requests++
		s.TotalTokens += e.Tokens
	}

	summaries := make([]UsageSummary, 0, len(order))
	for _, id := range order {
		summaries = append(summaries, *byUser[id])
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].UserID < summaries[j].UserID })
	return summaries, nil
}

func (r *InMemoryReporting) InsertUsage(_ context.Context, entry UsageEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage = append(r.usage, entry)
	return nil
}
