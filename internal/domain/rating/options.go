package rating

import (
	"time"

	"github.com/okian/matchform/pkg/logger"
)

// Default engine parameters.
const (
	DefaultKFactor           = 20.0
	DefaultInitialRating     = 1500.0
	DefaultLateEntryRating   = 1400.0
	DefaultResetRating       = 1350.0
	DefaultInactivityMonths  = 6
	DefaultHomeAdvantage     = 100.0
	DefaultHomeAdvantageRate = 0.075
	DefaultExpectedGoals     = 2.5
	DefaultAnchorRank        = 18
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithKFactor sets the update step size.
func WithKFactor(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.k = k
		}
	}
}

// WithInitialRating sets the rating of teams first seen before the cutoff.
func WithInitialRating(r float64) Option {
	return func(e *Engine) {
		e.initialRating = r
	}
}

// WithLateEntryRating sets the rating of teams first seen on or after the cutoff.
func WithLateEntryRating(r float64) Option {
	return func(e *Engine) {
		e.lateEntryRating = r
	}
}

// WithResetRating sets the rating a team returns to after a long absence.
func WithResetRating(r float64) Option {
	return func(e *Engine) {
		e.resetRating = r
	}
}

// WithLateEntryCutoff sets the late entry cutoff. A zero time disables it.
func WithLateEntryCutoff(cutoff time.Time) Option {
	return func(e *Engine) {
		e.cutoff = cutoff
	}
}

// WithInactivityMonths sets the inactivity period in calendar months.
// Zero disables resets.
func WithInactivityMonths(months int) Option {
	return func(e *Engine) {
		if months >= 0 {
			e.inactivityMonths = months
		}
	}
}

// WithHomeAdvantage sets the starting home advantage in rating points.
func WithHomeAdvantage(points float64) Option {
	return func(e *Engine) {
		e.homeAdvantage = points
	}
}

// WithHomeAdvantageRate sets the share of each delta folded into the home advantage.
func WithHomeAdvantageRate(rate float64) Option {
	return func(e *Engine) {
		if rate >= 0 {
			e.homeAdvantageRate = rate
		}
	}
}

// WithExpectedGoals sets the league goal expectation used by the tilt update.
func WithExpectedGoals(goals float64) Option {
	return func(e *Engine) {
		if goals > 0 {
			e.expectedGoals = goals
		}
	}
}

// WithInitialPolicy replaces the cutoff policy built from the rating options.
func WithInitialPolicy(p InitialPolicy) Option {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
