package model

import (
	"sort"
	"time"
)

// TeamRating is the mutable per-team state owned by the rating store.
type TeamRating struct {
	TeamID     string    `json:"team_id"`
	Rating     float64   `json:"rating"`
	LastActive time.Time `json:"last_active"`
	Tilt       float64   `json:"tilt"`
}

// RatingSnapshot is the engine state at the end of a replay, used to resume
// or to rate upcoming fixtures in a later run.
type RatingSnapshot struct {
	AsOf          time.Time             `json:"as_of"`
	HomeAdvantage float64               `json:"home_advantage"`
	Teams         map[string]TeamRating `json:"teams"`
}

// Ratings returns the plain team to rating mapping.
func (s RatingSnapshot) Ratings() map[string]float64 {
	out := make(map[string]float64, len(s.Teams))
	for id, t := range s.Teams {
		out[id] = t.Rating
	}
	return out
}

// RatingEntry is one row of a ranked rating table.
type RatingEntry struct {
	Rank       int       `json:"rank"`
	TeamID     string    `json:"team_id"`
	Rating     float64   `json:"rating"`
	LastActive time.Time `json:"last_active"`
}

// RankRatings orders teams by rating DESC then team id ASC and assigns ranks.
// Equal ratings share a rank; the next distinct rating skips accordingly.
func RankRatings(teams []TeamRating) []RatingEntry {
	entries := make([]RatingEntry, len(teams))
	for i, t := range teams {
		entries[i] = RatingEntry{TeamID: t.TeamID, Rating: t.Rating, LastActive: t.LastActive}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rating != entries[j].Rating {
			return entries[i].Rating > entries[j].Rating
		}
		return entries[i].TeamID < entries[j].TeamID
	})
	for i := range entries {
		if i > 0 && entries[i].Rating == entries[i-1].Rating {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
	return entries
}
