// Package repository holds the rating store the engine mutates during a replay.
package repository

import (
	"context"

	"github.com/okian/matchform/internal/domain/model"
)

// Store provides read/write access to per-team rating state plus ranked views.
type Store interface {
	// Get returns the state of a team and whether it has been seen.
	Get(ctx context.Context, teamID string) (model.TeamRating, bool)
	// Put creates or replaces the state of a team.
	Put(ctx context.Context, rating model.TeamRating)
	// All returns every team ordered by team id.
	All(ctx context.Context) []model.TeamRating
	// Len returns the number of teams tracked.
	Len(ctx context.Context) int

	// Rank returns the ranked entry for a team.
	// Returns ErrNotFound if the team is unknown.
	Rank(ctx context.Context, teamID string) (model.RatingEntry, error)
	// TopN returns the top-N entries ordered by rating desc.
	TopN(ctx context.Context, n int) ([]model.RatingEntry, error)
}
