// Package fixtures generates deterministic synthetic leagues: match results
// plus the per-team match records an ingestion layer would produce.
package fixtures

import (
	"fmt"
	"time"

	"github.com/okian/matchform/internal/domain/model"
)

// Stat columns carried by generated records.
const (
	StatGoals         = "goals"
	StatShots         = "shots"
	StatTackles       = "tackles"
	StatOppPossession = "avg_opp_possession"
)

const (
	defaultTeams       = 8
	defaultSeasons     = 2
	defaultRoundGap    = 7 * 24 * time.Hour
	defaultSeasonGap   = 90 * 24 * time.Hour
	defaultKickoffStep = 2 * time.Hour
	defaultSeed        = 42
	defaultMissingRate = 0.05
)

// Columns lists the statistic columns of generated tables.
func Columns() []string {
	return []string{StatGoals, StatShots, StatTackles, StatOppPossession}
}

// Config controls league generation.
type Config struct {
	Teams        int           // number of teams, at least 2
	Seasons      int           // double round-robin seasons to play
	Upcoming     int           // extra rounds with records but no results
	Start        time.Time     // kick-off of the first round
	RoundGap     time.Duration // time between rounds
	SeasonGap    time.Duration // break between the last round of a season and the next
	KickoffStep  time.Duration // spacing of kick-offs inside a round; pairs of matches share one
	Seed         int64
	MissingRate  float64  // probability that a tackles value is absent
	Competitions []string // cycled per round
}

// DefaultConfig returns a small two-season league.
func DefaultConfig() Config {
	return Config{
		Teams:        defaultTeams,
		Seasons:      defaultSeasons,
		Start:        time.Date(2021, time.August, 14, 15, 0, 0, 0, time.UTC),
		RoundGap:     defaultRoundGap,
		SeasonGap:    defaultSeasonGap,
		KickoffStep:  defaultKickoffStep,
		Seed:         defaultSeed,
		MissingRate:  defaultMissingRate,
		Competitions: []string{"league"},
	}
}

// Validate checks the generation parameters.
func (c Config) Validate() error {
	switch {
	case c.Teams < 2:
		return fmt.Errorf("%w: need at least 2 teams, got %d", ErrInvalidConfig, c.Teams)
	case c.Seasons < 0 || c.Upcoming < 0:
		return fmt.Errorf("%w: negative season or round count", ErrInvalidConfig)
	case c.Start.IsZero():
		return fmt.Errorf("%w: missing start time", ErrInvalidConfig)
	case c.RoundGap <= 0:
		return fmt.Errorf("%w: round gap must be positive", ErrInvalidConfig)
	case c.MissingRate < 0 || c.MissingRate > 1:
		return fmt.Errorf("%w: missing rate %v outside [0,1]", ErrInvalidConfig, c.MissingRate)
	}
	return nil
}

// League is a generated data set.
type League struct {
	Teams   []string
	Results []model.MatchResult
	Table   *model.Table // two records per result plus records of upcoming rounds
}
