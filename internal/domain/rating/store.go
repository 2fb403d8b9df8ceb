package rating

import (
	"context"

	"github.com/okian/matchform/internal/domain/model"
)

// Store holds the per-team rating state mutated by the engine. The engine is
// its only writer.
type Store interface {
	// Get returns the rating of teamID and whether the team has been seen.
	Get(ctx context.Context, teamID string) (model.TeamRating, bool)
	// Put inserts or replaces the rating of rating.TeamID.
	Put(ctx context.Context, rating model.TeamRating)
	// All returns every rated team ordered by team id.
	All(ctx context.Context) []model.TeamRating
	Len(ctx context.Context) int
}
