// Package leaderboard keeps a points ranking of users current.
package leaderboard

import (
	"context"
	"sort"
	"sync"

	"github.com/procasteam/procas/internal/progress"
	"github.com/procasteam/procas/internal/types"
)

// Entry is one row of the leaderboard. Rank is 1-based.
type Entry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// Ranker stores a ranking of users ordered by progress.Outranks: points
// descending, ties by user id ascending.
type Ranker interface {
	// Update replaces the ranking with users.
	Update(ctx context.Context, users []types.User) error
	// Top returns the best limit entries, highest points first.
	Top(ctx context.Context, limit int) ([]Entry, error)
	// Rank returns the 1-based position of userID, or 0 if unranked.
	Rank(ctx context.Context, userID string) (int, error)
}

// MemoryRanker is an in-process Ranker.
type MemoryRanker struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryRanker returns an empty MemoryRanker.
func NewMemoryRanker() *MemoryRanker {
	return &MemoryRanker{}
}

func (m *MemoryRanker) Update(_ context.Context, users []types.User) error {
	sorted := make([]types.User, len(users))
	copy(sorted, users)
	sort.Slice(sorted, func(i, j int) bool { return progress.Outranks(sorted[i], sorted[j]) })

	entries := make([]Entry, len(sorted))
	for i, u := range sorted {
		entries[i] = Entry{Rank: i + 1, UserID: u.ID, Name: u.Name, Points: u.Points}
	}

	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
	return nil
}

func (m *MemoryRanker) Top(_ context.Context, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}
	out := make([]Entry, limit)
	copy(out, m.entries[:limit])
	return out, nil
}

func (m *MemoryRanker) Rank(_ context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries {
		if e.UserID == userID {
			return e.Rank, nil
		}
	}
	return 0, nil
}
