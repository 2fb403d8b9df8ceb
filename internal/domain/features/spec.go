package features

import (
	"fmt"
	"strings"
)

// Variant names one aggregation over the eligible history of a record.
type Variant string

// Supported variants.
const (
	Plain       Variant = "plain"        // same team
	Rolling     Variant = "rolling"      // last Window rows of the same team
	OppQuality  Variant = "opp_quality"  // population, historical opponent rating within RatingBand
	RatingDiff  Variant = "rating_diff"  // population, historical rating differential within DiffBand
	Possession  Variant = "possession"   // population, same possession band
	Opponent    Variant = "opponent"     // rows of the upcoming opponent
	HeadToHead  Variant = "head_to_head" // same team against the same opponent
	Competition Variant = "competition"  // same team in the same competition
)

// Defaults for a Spec.
const (
	DefaultWindow           = 5
	DefaultRatingBand       = 100.0
	DefaultDiffBand         = 100.0
	DefaultPossessionColumn = "avg_opp_possession"
)

// AllVariants lists every variant in output order.
func AllVariants() []Variant {
	return []Variant{Plain, Rolling, OppQuality, RatingDiff, Possession, Opponent, HeadToHead, Competition}
}

// ParseVariant resolves a variant name.
func ParseVariant(name string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range AllVariants() {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, name)
}

// ParseVariants resolves a list of variant names.
func ParseVariants(names []string) ([]Variant, error) {
	out := make([]Variant, 0, len(names))
	for _, n := range names {
		v, err := ParseVariant(n)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ColumnName returns the output column written for a statistic and variant.
func ColumnName(v Variant, column string) string {
	switch v {
	case Plain:
		return "avg_" + column
	case Rolling:
		return "rolling_avg_" + column
	case OppQuality:
		return "avg_" + column + "_adj_opp_quality"
	case RatingDiff:
		return "avg_" + column + "_adj_elo_diff"
	case Possession:
		return "avg_" + column + "_adj_opp_poss"
	case Opponent:
		return "opp_avg_" + column
	case HeadToHead:
		return "avg_h2h_" + column
	case Competition:
		return "avg_comp_" + column
	}
	return string(v) + "_" + column
}

// Spec selects the statistics and variants of one aggregation run.
type Spec struct {
	Columns          []string
	Variants         []Variant
	Window           int     // rolling window length
	RatingBand       float64 // half width around the opponent rating
	DiffBand         float64 // half width around the rating differential
	PossessionColumn string  // statistic classified into possession bands
	Bands            []Band  // possession bands, ascending
}

// DefaultSpec returns a spec applying every variant to columns.
func DefaultSpec(columns ...string) Spec {
	return Spec{
		Columns:          columns,
		Variants:         AllVariants(),
		Window:           DefaultWindow,
		RatingBand:       DefaultRatingBand,
		DiffBand:         DefaultDiffBand,
		PossessionColumn: DefaultPossessionColumn,
		Bands:            DefaultBands(),
	}
}

// Validate checks the spec independently of any table.
func (s Spec) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: no columns", ErrInvalidSpec)
	}
	if len(s.Variants) == 0 {
		return fmt.Errorf("%w: no variants", ErrInvalidSpec)
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("%w: empty column name", ErrInvalidSpec)
		}
		if seen[c] {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidSpec, c)
		}
		seen[c] = true
	}
	variants := make(map[Variant]bool, len(s.Variants))
	for _, v := range s.Variants {
		if _, err := ParseVariant(string(v)); err != nil {
			return err
		}
		if variants[v] {
			return fmt.Errorf("%w: duplicate variant %q", ErrInvalidSpec, v)
		}
		variants[v] = true
	}
	switch {
	case variants[Rolling] && s.Window < 1:
		return fmt.Errorf("%w: window %d", ErrInvalidSpec, s.Window)
	case s.RatingBand < 0 || s.DiffBand < 0:
		return fmt.Errorf("%w: negative band", ErrInvalidSpec)
	case variants[Possession] && s.PossessionColumn == "":
		return fmt.Errorf("%w: possession variant without possession column", ErrInvalidSpec)
	}
	if variants[Possession] {
		if err := validateBands(s.Bands); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether the spec requests variant v.
func (s Spec) Has(v Variant) bool {
	for _, x := range s.Variants {
		if x == v {
			return true
		}
	}
	return false
}

// OutputColumns lists the columns Apply writes, grouped by statistic.
func (s Spec) OutputColumns() []string {
	out := make([]string, 0, len(s.Columns)*len(s.Variants))
	for _, c := range s.Columns {
		for _, v := range s.Variants {
			out = append(out, ColumnName(v, c))
		}
	}
	return out
}
