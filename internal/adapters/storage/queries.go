package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/okian/matchform/internal/domain/model"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one persisted pipeline execution.
type Run struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	AsOf          time.Time // watermark of the replay
	Matches       int
	Records       int
	HomeAdvantage float64
}

// SaveRun stores the run row together with its rating snapshot in one
// transaction.
func (db *DB) SaveRun(ctx context.Context, run Run, snap model.RatingSnapshot) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs(id, started_at, finished_at, as_of, matches, records, home_advantage)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at, finished_at = excluded.finished_at, as_of = excluded.as_of,
			matches = excluded.matches, records = excluded.records, home_advantage = excluded.home_advantage`,
		run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt), formatTime(run.AsOf),
		run.Matches, run.Records, run.HomeAdvantage,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO ratings(run_id, team_id, rating, tilt, last_active)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, t := range snap.Teams {
		if _, err := stmt.ExecContext(ctx, run.ID, id, t.Rating, t.Tilt, formatTime(t.LastActive)); err != nil {
			return fmt.Errorf("insert rating for %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// SaveFeatures stores every derived column of every record in long format,
// one row per (match, team, column). Missing values are stored as NULL.
// It returns the number of rows written.
func (db *DB) SaveFeatures(ctx context.Context, runID string, records []*model.MatchRecord, columns []string) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO features(run_id, match_id, team_id, ts, name, value)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	n := 0
	for _, r := range records {
		ts := formatTime(r.Timestamp)
		for _, c := range columns {
			if _, err := stmt.ExecContext(ctx, runID, r.MatchID, r.TeamID, ts, c, nullable(r.Feature(c))); err != nil {
				return n, fmt.Errorf("insert feature %s for %s/%s: %w", c, r.MatchID, r.TeamID, err)
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// ListRuns returns every run, newest first.
func (db *DB) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, started_at, finished_at, as_of, matches, records, home_advantage
		FROM runs ORDER BY finished_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// LatestRun returns the most recently finished run.
func (db *DB) LatestRun(ctx context.Context) (Run, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, as_of, matches, records, home_advantage
		FROM runs ORDER BY finished_at DESC, id LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return run, err
}

// LoadSnapshot rebuilds the rating snapshot saved with a run.
func (db *DB) LoadSnapshot(ctx context.Context, runID string) (model.RatingSnapshot, error) {
	var asOf string
	var hfa float64
	err := db.conn.QueryRowContext(ctx, "SELECT as_of, home_advantage FROM runs WHERE id = ?", runID).Scan(&asOf, &hfa)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RatingSnapshot{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return model.RatingSnapshot{}, err
	}

	snap := model.RatingSnapshot{HomeAdvantage: hfa, Teams: make(map[string]model.TeamRating)}
	if snap.AsOf, err = parseTime(asOf); err != nil {
		return model.RatingSnapshot{}, err
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT team_id, rating, tilt, last_active FROM ratings WHERE run_id = ? ORDER BY team_id", runID)
	if err != nil {
		return model.RatingSnapshot{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var t model.TeamRating
		var last string
		if err := rows.Scan(&t.TeamID, &t.Rating, &t.Tilt, &last); err != nil {
			return model.RatingSnapshot{}, err
		}
		if t.LastActive, err = parseTime(last); err != nil {
			return model.RatingSnapshot{}, err
		}
		snap.Teams[t.TeamID] = t
	}
	return snap, rows.Err()
}

// FeatureCounts returns the number of stored feature cells for a run and how
// many of them are missing.
func (db *DB) FeatureCounts(ctx context.Context, runID string) (total, missing int, err error) {
	err = db.conn.QueryRowContext(ctx,
		"SELECT COUNT(1), COUNT(1) - COUNT(value) FROM features WHERE run_id = ?", runID).Scan(&total, &missing)
	return total, missing, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var started, finished, asOf string
	if err := s.Scan(&run.ID, &started, &finished, &asOf, &run.Matches, &run.Records, &run.HomeAdvantage); err != nil {
		return Run{}, err
	}
	var err error
	if run.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, err
	}
	if run.AsOf, err = parseTime(asOf); err != nil {
		return Run{}, err
	}
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
