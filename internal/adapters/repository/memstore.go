package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/matchform/internal/domain/model"
	"github.com/okian/matchform/pkg/metrics"
)

const defaultCapacity = 64

// MemoryStore is the in-memory rating store. It owns the team -> TeamRating
// map for the lifetime of a replay; nothing else holds rating state.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]model.TeamRating
	capacity int
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(s)
	}
	s.byID = make(map[string]model.TeamRating, s.capacity)
	return s
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, teamID string) (model.TeamRating, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[teamID]
	return r, ok
}

// Put implements Store.Put.
func (s *MemoryStore) Put(_ context.Context, rating model.TeamRating) {
	s.mu.Lock()
	_, existed := s.byID[rating.TeamID]
	s.byID[rating.TeamID] = rating
	n := len(s.byID)
	s.mu.Unlock()

	if !existed {
		metrics.UpdateTeamsRated(n)
	}
}

// All implements Store.All.
func (s *MemoryStore) All(_ context.Context) []model.TeamRating {
	s.mu.RLock()
	out := make([]model.TeamRating, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out
}

// Len implements Store.Len.
func (s *MemoryStore) Len(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Rank implements Store.Rank.
func (s *MemoryStore) Rank(ctx context.Context, teamID string) (model.RatingEntry, error) {
	if _, ok := s.Get(ctx, teamID); !ok {
		return model.RatingEntry{}, ErrNotFound
	}
	for _, e := range model.RankRatings(s.All(ctx)) {
		if e.TeamID == teamID {
			return e, nil
		}
	}
	return model.RatingEntry{}, ErrNotFound
}

// TopN implements Store.TopN.
func (s *MemoryStore) TopN(ctx context.Context, n int) ([]model.RatingEntry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	entries := model.RankRatings(s.All(ctx))
	if n < len(entries) {
		entries = entries[:n]
	}
	return entries, nil
}
