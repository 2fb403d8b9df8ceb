package rating

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Policy names accepted by NewPolicy.
const (
	PolicyCutoff     = "cutoff"
	PolicyRankAnchor = "rank_anchor"
)

// Rules reported when a team is first rated.
const (
	RuleDefault    = "default"
	RuleLateEntry  = "late_entry"
	RuleRankAnchor = "rank_anchor"
	RuleLowest     = "lowest"
)

// InitialPolicy decides the rating of a team seen for the first time.
type InitialPolicy interface {
	// Initial returns the starting rating for a team first seen at `at` and
	// the rule that produced it. ratings is read, never written.
	Initial(ctx context.Context, ratings Store, at time.Time) (float64, string)
}

// CutoffPolicy assigns Default before Cutoff and LateEntry on or after it.
// A zero Cutoff disables late entry.
type CutoffPolicy struct {
	Default   float64
	LateEntry float64
	Cutoff    time.Time
}

// Initial implements InitialPolicy.
func (p CutoffPolicy) Initial(_ context.Context, _ Store, at time.Time) (float64, string) {
	if p.Cutoff.IsZero() || at.Before(p.Cutoff) {
		return p.Default, RuleDefault
	}
	return p.LateEntry, RuleLateEntry
}

// RankAnchorPolicy gives a newcomer the rating of the Rank-th best team
// already rated. With fewer teams it takes the lowest existing rating and
// with none it takes Default.
type RankAnchorPolicy struct {
	Rank    int
	Default float64
}

// Initial implements InitialPolicy.
func (p RankAnchorPolicy) Initial(ctx context.Context, ratings Store, _ time.Time) (float64, string) {
	teams := ratings.All(ctx)
	if len(teams) == 0 {
		return p.Default, RuleDefault
	}
	values := make([]float64, len(teams))
	for i, t := range teams {
		values[i] = t.Rating
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(values)))
	if len(values) >= p.Rank {
		return values[p.Rank-1], RuleRankAnchor
	}
	return values[len(values)-1], RuleLowest
}

// NewPolicy builds a policy by name.
func NewPolicy(name string, defaultRating, lateEntryRating float64, cutoff time.Time, anchorRank int) (InitialPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyCutoff:
		return CutoffPolicy{Default: defaultRating, LateEntry: lateEntryRating, Cutoff: cutoff}, nil
	case PolicyRankAnchor:
		if anchorRank < 1 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidAnchor, anchorRank)
		}
		return RankAnchorPolicy{Rank: anchorRank, Default: defaultRating}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}
