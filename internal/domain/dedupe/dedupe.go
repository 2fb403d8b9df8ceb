// Package dedupe drops repeated match results and records during ingestion.
package dedupe

import (
	"context"
	"sync"

	"github.com/okian/matchform/internal/domain/model"
)

const defaultCapacity = 1024

// Deduper records seen ids.
type Deduper interface {
	// SeenAndRecord reports whether id was already seen and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool
	// Seen reports whether id was recorded, without recording it.
	Seen(ctx context.Context, id string) bool
	Size() int
}

type inMemoryDeduper struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	capacity int
}

// NewInMemoryDeduper creates an unbounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{}, d.capacity)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Seen(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[id]
	return ok
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Results keeps the first result of every match id, in input order, and
// returns the ids of the dropped repeats.
func Results(ctx context.Context, d Deduper, results []model.MatchResult) ([]model.MatchResult, []string) {
	kept := make([]model.MatchResult, 0, len(results))
	var dropped []string
	for _, r := range results {
		if d.SeenAndRecord(ctx, r.ID) {
			dropped = append(dropped, r.ID)
			continue
		}
		kept = append(kept, r)
	}
	return kept, dropped
}

// Unseen drops results whose id committed has already recorded, then keeps
// the first result of every remaining id. committed is only read; Commit
// records the kept ids once they are applied.
func Unseen(ctx context.Context, committed Deduper, results []model.MatchResult) ([]model.MatchResult, []string) {
	fresh := make([]model.MatchResult, 0, len(results))
	var dropped []string
	for _, r := range results {
		if committed.Seen(ctx, r.ID) {
			dropped = append(dropped, r.ID)
			continue
		}
		fresh = append(fresh, r)
	}
	kept, repeats := Results(ctx, NewInMemoryDeduper(WithCapacity(len(fresh))), fresh)
	return kept, append(dropped, repeats...)
}

// Commit records the id of every result in d.
func Commit(ctx context.Context, d Deduper, results []model.MatchResult) {
	for _, r := range results {
		d.SeenAndRecord(ctx, r.ID)
	}
}

// Records keeps the first record of every (match, team) pair, in input order,
// and returns how many repeats were dropped.
func Records(ctx context.Context, d Deduper, records []*model.MatchRecord) ([]*model.MatchRecord, int) {
	kept := make([]*model.MatchRecord, 0, len(records))
	dropped := 0
	for _, r := range records {
		if r != nil && d.SeenAndRecord(ctx, r.MatchID+"\x00"+r.TeamID) {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	return kept, dropped
}
