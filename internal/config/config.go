// Package config defines the run configuration and its loading.
//
// Conventions:
// - New returns a Config holding every default.
// - Load layers defaults, an optional YAML file and MATCHFORM_ env vars.
// - Errors wrap this package's sentinels.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Date layouts accepted for late_entry_cutoff.
const dateLayout = "2006-01-02"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Rating engine.
	KFactor           float64 `koanf:"k_factor"`
	InitialRating     float64 `koanf:"initial_rating"`
	LateEntryRating   float64 `koanf:"late_entry_rating"`
	ResetRating       float64 `koanf:"reset_rating"`
	LateEntryCutoff   string  `koanf:"late_entry_cutoff"` // 2006-01-02 or RFC3339; empty disables late entry
	InactivityMonths  int     `koanf:"inactivity_months"`
	HomeAdvantage     float64 `koanf:"home_advantage"`
	HomeAdvantageRate float64 `koanf:"home_advantage_rate"`
	InitialPolicy     string  `koanf:"initial_policy"` // cutoff or rank_anchor
	AnchorRank        int     `koanf:"anchor_rank"`
	ExpectedGoals     float64 `koanf:"expected_goals"`

	// Aggregation.
	StatColumns      []string `koanf:"stat_columns"`
	Variants         []string `koanf:"variants"`
	RollingWindow    int      `koanf:"rolling_window"`
	RatingBand       float64  `koanf:"rating_band"`
	DiffBand         float64  `koanf:"diff_band"`
	PossessionColumn string   `koanf:"possession_column"`

	// Outputs. Empty paths disable the output.
	DBPath          string `koanf:"db_path"`
	MetricsTextfile string `koanf:"metrics_textfile"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		KFactor:           20,
		InitialRating:     1500,
		LateEntryRating:   1400,
		ResetRating:       1350,
		InactivityMonths:  6,
		HomeAdvantage:     100,
		HomeAdvantageRate: 0.075,
		InitialPolicy:     "cutoff",
		AnchorRank:        18,
		ExpectedGoals:     2.5,
		StatColumns:       []string{"goals", "shots", "tackles"},
		Variants: []string{
			"plain", "rolling", "opp_quality", "rating_diff",
			"possession", "opponent", "head_to_head", "competition",
		},
		RollingWindow:    5,
		RatingBand:       100,
		DiffBand:         100,
		PossessionColumn: "avg_opp_possession",
	}
}

// Cutoff parses LateEntryCutoff. The zero time means no cutoff.
func (c *Config) Cutoff() (time.Time, error) {
	s := strings.TrimSpace(c.LateEntryCutoff)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: late_entry_cutoff %q", ErrInvalidConfig, c.LateEntryCutoff)
	}
	return t, nil
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	switch {
	case c.KFactor <= 0 || !finite(c.KFactor):
		return fmt.Errorf("%w: k_factor must be positive", ErrInvalidConfig)
	case !finite(c.InitialRating) || !finite(c.LateEntryRating) || !finite(c.ResetRating) || !finite(c.HomeAdvantage):
		return fmt.Errorf("%w: ratings must be finite", ErrInvalidConfig)
	case c.InactivityMonths < 0:
		return fmt.Errorf("%w: inactivity_months must not be negative", ErrInvalidConfig)
	case c.HomeAdvantageRate < 0 || !finite(c.HomeAdvantageRate):
		return fmt.Errorf("%w: home_advantage_rate must not be negative", ErrInvalidConfig)
	case c.ExpectedGoals <= 0:
		return fmt.Errorf("%w: expected_goals must be positive", ErrInvalidConfig)
	case len(c.StatColumns) == 0:
		return fmt.Errorf("%w: stat_columns is empty", ErrInvalidConfig)
	case len(c.Variants) == 0:
		return fmt.Errorf("%w: variants is empty", ErrInvalidConfig)
	case c.RollingWindow < 1:
		return fmt.Errorf("%w: rolling_window must be at least 1", ErrInvalidConfig)
	case c.RatingBand < 0 || c.DiffBand < 0:
		return fmt.Errorf("%w: bands must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.InitialPolicy) {
	case "", "cutoff":
	case "rank_anchor":
		if c.AnchorRank < 1 {
			return fmt.Errorf("%w: anchor_rank must be at least 1", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: initial_policy %q", ErrInvalidConfig, c.InitialPolicy)
	}
	if _, err := c.Cutoff(); err != nil {
		return err
	}
	return nil
}
