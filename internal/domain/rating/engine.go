// Package rating replays match results into point-in-time Elo ratings with
// inactivity resets and an adaptive home advantage.
package rating

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/matchform/internal/domain/model"
	"github.com/okian/matchform/pkg/logger"
	"github.com/okian/matchform/pkg/metrics"
)

const (
	eloScale  = 400.0
	tiltDecay = 0.98
	tiltGain  = 1 - tiltDecay
)

// Engine folds match results, in timestamp order, into the ratings held by
// its Store. It is a single-writer fold and is not safe for concurrent use.
type Engine struct {
	store  Store
	policy InitialPolicy
	logger logger.Logger

	k                 float64
	initialRating     float64
	lateEntryRating   float64
	resetRating       float64
	cutoff            time.Time
	inactivityMonths  int
	homeAdvantage     float64
	homeAdvantageRate float64
	expectedGoals     float64

	watermark time.Time
}

// NewEngine creates an engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:             store,
		k:                 DefaultKFactor,
		initialRating:     DefaultInitialRating,
		lateEntryRating:   DefaultLateEntryRating,
		resetRating:       DefaultResetRating,
		inactivityMonths:  DefaultInactivityMonths,
		homeAdvantage:     DefaultHomeAdvantage,
		homeAdvantageRate: DefaultHomeAdvantageRate,
		expectedGoals:     DefaultExpectedGoals,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.policy == nil {
		e.policy = CutoffPolicy{Default: e.initialRating, LateEntry: e.lateEntryRating, Cutoff: e.cutoff}
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("rating")
	}
	return e
}

// Expected returns the expected score of the side holding the rating
// advantage diff.
func Expected(diff float64) float64 {
	return 1 / (1 + math.Pow(10, -diff/eloScale))
}

// Margin returns the goal-difference multiplier. A level score skips the
// multiplier rather than zeroing it.
func Margin(goalDiff int) float64 {
	if goalDiff == 0 {
		return 1
	}
	return math.Sqrt(math.Abs(float64(goalDiff)))
}

// Actual returns the home side's actual score: 1 win, 0.5 draw, 0 loss.
func Actual(m model.MatchResult) float64 {
	switch {
	case m.HomeGoals > m.AwayGoals:
		return 1
	case m.HomeGoals < m.AwayGoals:
		return 0
	default:
		return 0.5
	}
}

// Replay validates results, orders a copy of them by timestamp and folds
// them into the rating state. The returned slice follows the sorted order
// and carries the pre-match ratings of every match.
func (e *Engine) Replay(ctx context.Context, results []model.MatchResult) ([]model.RatedMatch, error) {
	if err := model.ValidateResults(results); err != nil {
		return nil, err
	}
	sorted := model.SortResults(results)
	if len(sorted) > 0 && !e.watermark.IsZero() && sorted[0].Timestamp.Before(e.watermark) {
		return nil, fmt.Errorf("%w: match %s at %s, watermark %s", ErrOutOfOrder,
			sorted[0].ID, sorted[0].Timestamp.Format(time.RFC3339), e.watermark.Format(time.RFC3339))
	}

	start := time.Now()
	rated := make([]model.RatedMatch, 0, len(sorted))
	for _, m := range sorted {
		rated = append(rated, e.apply(ctx, m))
	}
	took := time.Since(start)

	metrics.RecordReplayDuration(float64(took.Milliseconds()))
	metrics.UpdateHomeAdvantage(e.homeAdvantage)
	e.logger.Info(ctx, "replay finished",
		logger.Int("matches", len(rated)),
		logger.Int("teams", e.store.Len(ctx)),
		logger.Float64("home_advantage", e.homeAdvantage),
		logger.Duration("took", took))
	return rated, nil
}

// apply processes one match. The home side is resolved and stored first so
// that a policy reading the pool sees it when rating a new away side.
func (e *Engine) apply(ctx context.Context, m model.MatchResult) model.RatedMatch {
	home, homeReset := e.resolve(ctx, m.HomeID, m.Timestamp, true)
	away, awayReset := e.resolve(ctx, m.AwayID, m.Timestamp, true)

	hfa := e.homeAdvantage
	expected := Expected(home.Rating + hfa - away.Rating)
	delta := e.k * (Actual(m) - expected) * Margin(m.GoalDifference())

	out := model.RatedMatch{
		Match:         m,
		HomeRating:    home.Rating,
		AwayRating:    away.Rating,
		HomeAdvantage: hfa,
		ExpectedHome:  expected,
		Delta:         delta,
		HomeReset:     homeReset,
		AwayReset:     awayReset,
		HomeTilt:      home.Tilt,
		AwayTilt:      away.Tilt,
	}

	home.Rating += delta
	away.Rating -= delta
	e.homeAdvantage += delta * e.homeAdvantageRate
	home.Tilt, away.Tilt = e.tilt(home.Tilt, away.Tilt, m.HomeGoals+m.AwayGoals)
	home.LastActive = m.Timestamp
	away.LastActive = m.Timestamp

	e.store.Put(ctx, home)
	e.store.Put(ctx, away)
	e.watermark = m.Timestamp
	metrics.RecordMatchReplayed()

	e.logger.Debug(ctx, "match rated",
		logger.String("match", m.ID),
		logger.Float64("expected_home", expected),
		logger.Float64("delta", delta),
		logger.Bool("home_reset", homeReset),
		logger.Bool("away_reset", awayReset))
	return out
}

// resolve returns the rating teamID enters a match at `at` with, applying
// the first-appearance and inactivity rules. When commit is set a newly
// seen team is written to the store immediately.
func (e *Engine) resolve(ctx context.Context, teamID string, at time.Time, commit bool) (model.TeamRating, bool) {
	current, ok := e.store.Get(ctx, teamID)
	if !ok {
		r, rule := e.policy.Initial(ctx, e.store, at)
		current = model.TeamRating{TeamID: teamID, Rating: r, LastActive: at, Tilt: 1}
		if commit {
			e.store.Put(ctx, current)
			metrics.RecordTeamInitialized(rule)
			e.logger.Debug(ctx, "team initialized",
				logger.String("team", teamID),
				logger.String("rule", rule),
				logger.Float64("rating", r))
		}
		return current, false
	}

	if e.inactive(current.LastActive, at) {
		if commit {
			metrics.RecordRatingReset()
			e.logger.Debug(ctx, "rating reset after inactivity",
				logger.String("team", teamID),
				logger.Time("last_active", current.LastActive),
				logger.Float64("rating", current.Rating))
		}
		current.Rating = e.resetRating
		return current, true
	}
	return current, false
}

func (e *Engine) inactive(last, at time.Time) bool {
	if e.inactivityMonths == 0 || last.IsZero() {
		return false
	}
	return at.After(last.AddDate(0, e.inactivityMonths, 0))
}

// tilt updates both goal tendencies. The away update reads the already
// updated home tilt.
func (e *Engine) tilt(home, away float64, goals int) (float64, float64) {
	g := float64(goals)
	home = tiltDecay*home + tiltGain*g/away/e.expectedGoals
	away = tiltDecay*away + tiltGain*g/home/e.expectedGoals
	return home, away
}

// Preview returns the pre-match state of an upcoming fixture without
// changing any rating. Both sides are resolved against the current pool.
func (e *Engine) Preview(ctx context.Context, homeID, awayID string, at time.Time) model.RatedMatch {
	home, homeReset := e.resolve(ctx, homeID, at, false)
	away, awayReset := e.resolve(ctx, awayID, at, false)
	hfa := e.homeAdvantage
	return model.RatedMatch{
		Match:         model.MatchResult{HomeID: homeID, AwayID: awayID, Timestamp: at},
		HomeRating:    home.Rating,
		AwayRating:    away.Rating,
		HomeAdvantage: hfa,
		ExpectedHome:  Expected(home.Rating + hfa - away.Rating),
		HomeReset:     homeReset,
		AwayReset:     awayReset,
		HomeTilt:      home.Tilt,
		AwayTilt:      away.Tilt,
	}
}

// Snapshot returns the current rating state.
func (e *Engine) Snapshot(ctx context.Context) model.RatingSnapshot {
	all := e.store.All(ctx)
	teams := make(map[string]model.TeamRating, len(all))
	for _, t := range all {
		teams[t.TeamID] = t
	}
	return model.RatingSnapshot{
		AsOf:          e.watermark,
		HomeAdvantage: e.homeAdvantage,
		Teams:         teams,
	}
}

// Restore loads a snapshot into an empty engine so that a later replay
// continues from it.
func (e *Engine) Restore(ctx context.Context, snap model.RatingSnapshot) error {
	if e.store.Len(ctx) > 0 {
		return ErrStateNotEmpty
	}
	for id, t := range snap.Teams {
		if id == "" || math.IsNaN(t.Rating) || math.IsInf(t.Rating, 0) {
			return fmt.Errorf("%w: team %q", ErrInvalidSnapshot, id)
		}
	}
	for id, t := range snap.Teams {
		t.TeamID = id
		if t.Tilt <= 0 {
			t.Tilt = 1
		}
		e.store.Put(ctx, t)
	}
	e.homeAdvantage = snap.HomeAdvantage
	e.watermark = snap.AsOf
	e.logger.Info(ctx, "rating state restored",
		logger.Int("teams", len(snap.Teams)),
		logger.Time("as_of", snap.AsOf))
	return nil
}

// HomeAdvantage returns the current home advantage in rating points.
func (e *Engine) HomeAdvantage() float64 {
	return e.homeAdvantage
}

// Watermark returns the timestamp of the last match folded in.
func (e *Engine) Watermark() time.Time {
	return e.watermark
}
