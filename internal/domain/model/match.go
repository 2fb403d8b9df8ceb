// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MatchResult is one recorded fixture outcome. It is immutable once recorded.
type MatchResult struct {
	ID        string    // unique match identifier, shared with the two MatchRecord rows
	HomeID    string    // home team identifier
	AwayID    string    // away team identifier
	HomeGoals int       // goals scored by the home team
	AwayGoals int       // goals scored by the away team
	Timestamp time.Time // kick-off time; the ordering key
}

// GoalDifference returns home goals minus away goals.
func (m MatchResult) GoalDifference() int {
	return m.HomeGoals - m.AwayGoals
}

// Validate reports the first missing or malformed required field.
func (m MatchResult) Validate() error {
	switch {
	case strings.TrimSpace(m.ID) == "":
		return fmt.Errorf("%w: missing id", ErrInvalidMatch)
	case strings.TrimSpace(m.HomeID) == "":
		return fmt.Errorf("%w: match %s: missing home id", ErrInvalidMatch, m.ID)
	case strings.TrimSpace(m.AwayID) == "":
		return fmt.Errorf("%w: match %s: missing away id", ErrInvalidMatch, m.ID)
	case m.HomeID == m.AwayID:
		return fmt.Errorf("%w: match %s: team %s plays itself", ErrInvalidMatch, m.ID, m.HomeID)
	case m.Timestamp.IsZero():
		return fmt.Errorf("%w: match %s: missing timestamp", ErrInvalidMatch, m.ID)
	case m.HomeGoals < 0 || m.AwayGoals < 0:
		return fmt.Errorf("%w: match %s: negative goals", ErrInvalidMatch, m.ID)
	}
	return nil
}

// ValidateResults validates every result and rejects the whole batch on the first failure.
func ValidateResults(results []MatchResult) error {
	for i := range results {
		if err := results[i].Validate(); err != nil {
			return fmt.Errorf("result %d: %w", i, err)
		}
	}
	return nil
}

// SortResults returns a copy of results ordered by timestamp. Exact ties keep
// their input order.
func SortResults(results []MatchResult) []MatchResult {
	sorted := make([]MatchResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// RatedMatch is a MatchResult annotated with the state the engine saw before
// applying it. Every field describes pre-match state except Delta, which is
// the transfer applied afterwards.
type RatedMatch struct {
	Match         MatchResult
	HomeRating    float64 // home rating before the match
	AwayRating    float64 // away rating before the match
	HomeAdvantage float64 // home advantage used for the expectation
	ExpectedHome  float64 // expected home score in [0,1]
	Delta         float64 // rating transferred to the home side (negative when home lost ground)
	HomeReset     bool    // home rating was reset after inactivity
	AwayReset     bool    // away rating was reset after inactivity
	HomeTilt      float64
	AwayTilt      float64
}

// Perspective returns the pre-match (team, opponent) ratings for teamID, and
// false if the team did not take part in the match.
func (r RatedMatch) Perspective(teamID string) (team, opp float64, ok bool) {
	switch teamID {
	case r.Match.HomeID:
		return r.HomeRating, r.AwayRating, true
	case r.Match.AwayID:
		return r.AwayRating, r.HomeRating, true
	}
	return 0, 0, false
}
