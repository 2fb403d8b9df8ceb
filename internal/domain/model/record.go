package model

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// MatchRecord is one row per team per match. Stats are supplied by ingestion;
// TeamRating, OppRating, RatingDiff and Features are written by the core.
type MatchRecord struct {
	MatchID     string
	TeamID      string
	OpponentID  string
	Timestamp   time.Time
	Home        bool   // row is written from the home side's perspective
	Competition string // optional grouping such as a league or division

	Stats map[string]float64

	TeamRating float64 // pre-match rating of TeamID, NaN when unknown
	OppRating  float64 // pre-match rating of OpponentID, NaN when unknown
	RatingDiff float64 // TeamRating - OppRating

	Features map[string]float64
}

// NewMatchRecord returns a record with unknown ratings and empty maps.
func NewMatchRecord(matchID, teamID, opponentID string, ts time.Time) *MatchRecord {
	return &MatchRecord{
		MatchID:    matchID,
		TeamID:     teamID,
		OpponentID: opponentID,
		Timestamp:  ts,
		Stats:      make(map[string]float64),
		TeamRating: math.NaN(),
		OppRating:  math.NaN(),
		RatingDiff: math.NaN(),
		Features:   make(map[string]float64),
	}
}

// Stat returns the named statistic, or NaN when it is absent.
func (r *MatchRecord) Stat(column string) float64 {
	v, ok := r.Stats[column]
	if !ok {
		return math.NaN()
	}
	return v
}

// SetRatings stores the pre-match ratings and the derived differential.
func (r *MatchRecord) SetRatings(team, opp float64) {
	r.TeamRating = team
	r.OppRating = opp
	r.RatingDiff = team - opp
}

// SetFeature stores a derived column value.
func (r *MatchRecord) SetFeature(name string, v float64) {
	if r.Features == nil {
		r.Features = make(map[string]float64)
	}
	r.Features[name] = v
}

// Feature returns a derived column value, or NaN when it was never written.
func (r *MatchRecord) Feature(name string) float64 {
	v, ok := r.Features[name]
	if !ok {
		return math.NaN()
	}
	return v
}

// Clone returns a deep copy of the record.
func (r *MatchRecord) Clone() *MatchRecord {
	c := *r
	c.Stats = make(map[string]float64, len(r.Stats))
	for k, v := range r.Stats {
		c.Stats[k] = v
	}
	c.Features = make(map[string]float64, len(r.Features))
	for k, v := range r.Features {
		c.Features[k] = v
	}
	return &c
}

// Validate reports the first missing required field.
func (r *MatchRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.MatchID) == "":
		return fmt.Errorf("%w: missing match id", ErrInvalidRecord)
	case strings.TrimSpace(r.TeamID) == "":
		return fmt.Errorf("%w: match %s: missing team id", ErrInvalidRecord, r.MatchID)
	case strings.TrimSpace(r.OpponentID) == "":
		return fmt.Errorf("%w: match %s: missing opponent id", ErrInvalidRecord, r.MatchID)
	case r.Timestamp.IsZero():
		return fmt.Errorf("%w: match %s: missing timestamp", ErrInvalidRecord, r.MatchID)
	}
	return nil
}

// Table is the record set handed to the aggregator together with its schema.
type Table struct {
	Columns []string // statistic columns every record may carry
	Records []*MatchRecord
}

// HasColumn reports whether column is part of the schema.
func (t *Table) HasColumn(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Validate checks every record and that rows of the same match share a timestamp.
func (t *Table) Validate() error {
	seen := make(map[string]time.Time, len(t.Records)/2+1)
	for i, r := range t.Records {
		if r == nil {
			return fmt.Errorf("record %d: %w: nil record", i, ErrInvalidRecord)
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if ts, ok := seen[r.MatchID]; ok && !ts.Equal(r.Timestamp) {
			return fmt.Errorf("record %d: %w: match %s at %s and %s",
				i, ErrInconsistentMatch, r.MatchID, ts.Format(time.RFC3339), r.Timestamp.Format(time.RFC3339))
		}
		seen[r.MatchID] = r.Timestamp
	}
	return nil
}

// SortByTime orders the records by timestamp in place. Exact ties keep their
// current relative order.
func (t *Table) SortByTime() {
	sort.SliceStable(t.Records, func(i, j int) bool {
		return t.Records[i].Timestamp.Before(t.Records[j].Timestamp)
	})
}
