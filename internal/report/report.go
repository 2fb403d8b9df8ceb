// Package report renders ratings, runs and missing-value summaries as text
// tables.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/okian/matchform/internal/adapters/storage"
	"github.com/okian/matchform/internal/domain/features"
	"github.com/okian/matchform/internal/domain/model"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

const dateLayout = "2006-01-02"

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

// PrintSnapshotHeader prints a one-line summary of a rating snapshot.
func PrintSnapshotHeader(w io.Writer, snap model.RatingSnapshot) {
	fmt.Fprintf(w, "\nAs of: %s  |  Teams: %d  |  Home advantage: %.2f\n\n",
		formatDate(snap.AsOf), len(snap.Teams), snap.HomeAdvantage)
}

// PrintRatings prints the ranked rating table.
func PrintRatings(w io.Writer, entries []model.RatingEntry) error {
	table := newTable(w)
	table.Header("RANK", "TEAM", "RATING", "LAST_ACTIVE")
	for _, e := range entries {
		if err := table.Append(
			strconv.Itoa(e.Rank),
			e.TeamID,
			fmt.Sprintf("%.1f", e.Rating),
			formatDate(e.LastActive),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

// PrintMissing prints, per output column with gaps, how many cells were left
// missing because their eligible history was empty.
func PrintMissing(w io.Writer, rep features.Report) error {
	table := newTable(w)
	table.Header("COLUMN", "MISSING", "MISSING%")
	for _, c := range rep.MissingColumns() {
		n := rep.Missing[c]
		pct := 0.0
		if rep.Records > 0 {
			pct = 100 * float64(n) / float64(rep.Records)
		}
		if err := table.Append(c, strconv.Itoa(n), fmt.Sprintf("%.1f%%", pct)); err != nil {
			return err
		}
	}
	return table.Render()
}

// PrintRuns prints stored runs, newest first.
func PrintRuns(w io.Writer, runs []storage.Run) error {
	sorted := append([]storage.Run(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].FinishedAt.After(sorted[j].FinishedAt) })

	table := newTable(w)
	table.Header("RUN", "FINISHED", "AS_OF", "MATCHES", "RECORDS", "HFA")
	for _, r := range sorted {
		if err := table.Append(
			r.ID,
			r.FinishedAt.UTC().Format(time.RFC3339),
			formatDate(r.AsOf),
			strconv.Itoa(r.Matches),
			strconv.Itoa(r.Records),
			fmt.Sprintf("%.2f", r.HomeAdvantage),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(dateLayout)
}
