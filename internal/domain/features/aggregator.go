// Package features computes leak-free historical aggregates over match
// records. Every value written for a record is derived only from records of
// other matches with a strictly earlier timestamp.
package features

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/matchform/internal/domain/model"
	"github.com/okian/matchform/pkg/logger"
	"github.com/okian/matchform/pkg/metrics"
)

const keySep = "\x00"

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithLogger sets the aggregator logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// Aggregator enriches a table with the aggregates selected by its Spec.
type Aggregator struct {
	spec   Spec
	logger logger.Logger
}

// NewAggregator validates spec and returns an aggregator for it.
func NewAggregator(spec Spec, opts ...Option) (*Aggregator, error) {
	if spec.Bands == nil {
		spec.Bands = DefaultBands()
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	a := &Aggregator{spec: spec}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Get().Named("features")
	}
	return a, nil
}

// Spec returns the aggregation spec.
func (a *Aggregator) Spec() Spec {
	return a.spec
}

// Report summarizes one Apply call.
type Report struct {
	Records int
	Missing map[string]int // output column -> cells left missing
	Took    time.Duration
}

// MissingColumns returns the output columns with at least one missing cell,
// sorted by name.
func (r Report) MissingColumns() []string {
	out := make([]string, 0, len(r.Missing))
	for c, n := range r.Missing {
		if n > 0 {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Check reports whether Apply would accept t: every spec column must be in
// its schema and every record must be valid.
func (a *Aggregator) Check(t *model.Table) error {
	for _, c := range a.spec.Columns {
		if !t.HasColumn(c) {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, c)
		}
	}
	if a.spec.Has(Possession) && !t.HasColumn(a.spec.PossessionColumn) {
		return fmt.Errorf("%w: possession column %q", ErrUnknownColumn, a.spec.PossessionColumn)
	}
	return t.Validate()
}

// Apply checks the table against the spec, orders its records by timestamp
// (stable) and writes every requested aggregate onto them. Nothing is
// written when validation fails.
func (a *Aggregator) Apply(ctx context.Context, t *model.Table) (Report, error) {
	if err := a.Check(t); err != nil {
		return Report{}, err
	}

	start := time.Now()
	t.SortByTime()

	width := len(a.spec.Columns)
	cohorts := a.cohorts(width)
	names := make([][]string, len(a.spec.Variants))
	for vi, v := range a.spec.Variants {
		names[vi] = make([]string, width)
		for ci, c := range a.spec.Columns {
			names[vi][ci] = ColumnName(v, c)
		}
	}

	vals := make([][]float64, len(t.Records))
	for i, r := range t.Records {
		vals[i] = make([]float64, width)
		for ci, c := range a.spec.Columns {
			vals[i][ci] = r.Stat(c)
		}
	}

	report := Report{Records: len(t.Records), Missing: make(map[string]int, width*len(a.spec.Variants))}
	missingByVariant := make(map[Variant]int, len(a.spec.Variants))
	out := make([]float64, width)

	// Emit a whole timestamp group before folding it in, so rows of the
	// same instant (and so of the same match) never see each other.
	for i := 0; i < len(t.Records); {
		j := i + 1
		for j < len(t.Records) && t.Records[j].Timestamp.Equal(t.Records[i].Timestamp) {
			j++
		}
		for _, r := range t.Records[i:j] {
			for vi, c := range cohorts {
				c.mean(r, out)
				for ci, v := range out {
					r.SetFeature(names[vi][ci], v)
					if math.IsNaN(v) {
						report.Missing[names[vi][ci]]++
						missingByVariant[a.spec.Variants[vi]]++
					}
				}
			}
		}
		for k := i; k < j; k++ {
			for _, c := range cohorts {
				c.add(t.Records[k], vals[k])
			}
		}
		i = j
	}
	report.Took = time.Since(start)

	metrics.RecordRecordsEnriched(len(t.Records))
	metrics.RecordAggregationDuration(float64(report.Took.Milliseconds()))
	for v, n := range missingByVariant {
		metrics.RecordAggregateMissing(string(v), n)
	}
	a.logger.Info(ctx, "aggregation finished",
		logger.Int("records", len(t.Records)),
		logger.Int("columns", width*len(a.spec.Variants)),
		logger.Int("missing_columns", len(report.MissingColumns())),
		logger.Duration("took", report.Took))
	return report, nil
}

// cohorts builds one cohort per requested variant, in spec order.
func (a *Aggregator) cohorts(width int) []cohort {
	out := make([]cohort, len(a.spec.Variants))
	for i, v := range a.spec.Variants {
		switch v {
		case Plain:
			out[i] = newKeyed(width, byTeam, byTeam)
		case Rolling:
			out[i] = newWindow(a.spec.Window, width)
		case OppQuality:
			out[i] = newCentred(width, a.spec.RatingBand, func(r *model.MatchRecord) float64 { return r.OppRating })
		case RatingDiff:
			out[i] = newCentred(width, a.spec.DiffBand, func(r *model.MatchRecord) float64 { return r.RatingDiff })
		case Possession:
			band := a.possessionBand()
			out[i] = newKeyed(width, band, band)
		case Opponent:
			out[i] = newKeyed(width, byTeam, byOpponent)
		case HeadToHead:
			out[i] = newKeyed(width, byPair, byPair)
		case Competition:
			out[i] = newKeyed(width, byCompetition, byCompetition)
		}
	}
	return out
}

func (a *Aggregator) possessionBand() keyFunc {
	col, bands := a.spec.PossessionColumn, a.spec.Bands
	return func(r *model.MatchRecord) (string, bool) {
		i := bandIndex(bands, r.Stat(col))
		if i < 0 {
			return "", false
		}
		return bands[i].String(), true
	}
}

func byTeam(r *model.MatchRecord) (string, bool)     { return r.TeamID, true }
func byOpponent(r *model.MatchRecord) (string, bool) { return r.OpponentID, true }
func byPair(r *model.MatchRecord) (string, bool)     { return r.TeamID + keySep + r.OpponentID, true }
func byCompetition(r *model.MatchRecord) (string, bool) {
	return r.TeamID + keySep + r.Competition, true
}
