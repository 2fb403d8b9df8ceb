// Package csvio reads match results and match records from CSV and writes
// results and enriched tables back out.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/okian/matchform/internal/domain/model"
)

// Fixed column names.
const (
	ColMatchID     = "match_id"
	ColHomeID      = "home_id"
	ColAwayID      = "away_id"
	ColHomeGoals   = "home_goals"
	ColAwayGoals   = "away_goals"
	ColTimestamp   = "timestamp"
	ColTeamID      = "team_id"
	ColOpponentID  = "opponent_id"
	ColHome        = "home"
	ColCompetition = "competition"
	ColTeamElo     = "team_elo"
	ColOppElo      = "opp_elo"
	ColEloDiff     = "elo_diff"
)

const dateLayout = "2006-01-02"

func resultHeader() []string {
	return []string{ColMatchID, ColHomeID, ColAwayID, ColHomeGoals, ColAwayGoals, ColTimestamp}
}

func recordHeader() []string {
	return []string{ColMatchID, ColTeamID, ColOpponentID, ColTimestamp, ColHome, ColCompetition}
}

// ReadResults parses a results file with the columns
// match_id,home_id,away_id,home_goals,away_goals,timestamp in any order.
func ReadResults(r io.Reader) ([]model.MatchResult, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHeader, err)
	}
	idx, err := index(header, resultHeader())
	if err != nil {
		return nil, err
	}

	var out []model.MatchResult
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w %d: %w", ErrRow, line, err)
		}
		m := model.MatchResult{
			ID:     row[idx[ColMatchID]],
			HomeID: row[idx[ColHomeID]],
			AwayID: row[idx[ColAwayID]],
		}
		if m.HomeGoals, err = strconv.Atoi(strings.TrimSpace(row[idx[ColHomeGoals]])); err != nil {
			return nil, fmt.Errorf("%w %d: home_goals: %w", ErrRow, line, err)
		}
		if m.AwayGoals, err = strconv.Atoi(strings.TrimSpace(row[idx[ColAwayGoals]])); err != nil {
			return nil, fmt.Errorf("%w %d: away_goals: %w", ErrRow, line, err)
		}
		if m.Timestamp, err = ParseTime(row[idx[ColTimestamp]]); err != nil {
			return nil, fmt.Errorf("%w %d: %w", ErrRow, line, err)
		}
		out = append(out, m)
	}
}

// WriteResults writes results in the layout ReadResults accepts.
func WriteResults(w io.Writer, results []model.MatchResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resultHeader()); err != nil {
		return err
	}
	for _, m := range results {
		if err := cw.Write([]string{
			m.ID, m.HomeID, m.AwayID,
			strconv.Itoa(m.HomeGoals), strconv.Itoa(m.AwayGoals),
			m.Timestamp.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTable parses a records file. Columns other than the fixed ones are
// statistic columns; an empty cell is a missing value. The home and
// competition columns are optional.
func ReadTable(r io.Reader) (*model.Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHeader, err)
	}
	idx, err := index(header, []string{ColMatchID, ColTeamID, ColOpponentID, ColTimestamp})
	if err != nil {
		return nil, err
	}
	fixed := make(map[string]bool)
	for _, c := range append(recordHeader(), ColTeamElo, ColOppElo, ColEloDiff) {
		fixed[c] = true
	}
	homeIdx, compIdx := position(header, ColHome), position(header, ColCompetition)

	table := &model.Table{}
	var statIdx []int
	for i, c := range header {
		if !fixed[strings.TrimSpace(c)] {
			table.Columns = append(table.Columns, strings.TrimSpace(c))
			statIdx = append(statIdx, i)
		}
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return table, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w %d: %w", ErrRow, line, err)
		}
		ts, err := ParseTime(row[idx[ColTimestamp]])
		if err != nil {
			return nil, fmt.Errorf("%w %d: %w", ErrRow, line, err)
		}
		rec := model.NewMatchRecord(row[idx[ColMatchID]], row[idx[ColTeamID]], row[idx[ColOpponentID]], ts)
		if homeIdx >= 0 {
			if rec.Home, err = parseBool(row[homeIdx]); err != nil {
				return nil, fmt.Errorf("%w %d: home: %w", ErrRow, line, err)
			}
		}
		if compIdx >= 0 {
			rec.Competition = strings.TrimSpace(row[compIdx])
		}
		for k, i := range statIdx {
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w %d: %s: %w", ErrRow, line, table.Columns[k], err)
			}
			rec.Stats[table.Columns[k]] = v
		}
		table.Records = append(table.Records, rec)
	}
}

// WriteTable writes the records with their statistics, the rating columns
// and the given feature columns. Missing values are written as empty cells.
func WriteTable(w io.Writer, t *model.Table, features []string) error {
	cw := csv.NewWriter(w)
	header := append(recordHeader(), t.Columns...)
	header = append(header, ColTeamElo, ColOppElo, ColEloDiff)
	header = append(header, features...)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, 0, len(header))
	for _, r := range t.Records {
		row = append(row[:0],
			r.MatchID, r.TeamID, r.OpponentID,
			r.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatBool(r.Home), r.Competition,
		)
		for _, c := range t.Columns {
			row = append(row, FormatFloat(r.Stat(c)))
		}
		row = append(row, FormatFloat(r.TeamRating), FormatFloat(r.OppRating), FormatFloat(r.RatingDiff))
		for _, f := range features {
			row = append(row, FormatFloat(r.Feature(f)))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseTime accepts RFC3339 timestamps and plain dates.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: want RFC3339 or %s", s, dateLayout)
	}
	return t, nil
}

// FormatFloat renders v compactly, or as an empty cell when missing.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "away", "a":
		return false, nil
	case "1", "true", "home", "h":
		return true, nil
	}
	return false, fmt.Errorf("unrecognized value %q", s)
}

func index(header, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(required))
	for _, c := range required {
		i := position(header, c)
		if i < 0 {
			return nil, fmt.Errorf("%w: missing column %q", ErrHeader, c)
		}
		idx[c] = i
	}
	return idx, nil
}

func position(header []string, column string) int {
	for i, c := range header {
		if strings.TrimSpace(c) == column {
			return i
		}
	}
	return -1
}
