package main

import (
	"errors"
	"fmt"

	"github.com/okian/matchform/internal/adapters/storage"
	"github.com/okian/matchform/internal/report"
	"github.com/spf13/cobra"
)

var errNoDatabase = errors.New("no database configured; pass --db or set db_path")

type ratingsFlags struct {
	run  string
	top  int
	list bool
}

func newRatingsCmd(c *cli) *cobra.Command {
	f := &ratingsFlags{}
	cmd := &cobra.Command{
		Use:   "ratings",
		Short: "Show the ratings stored by a previous run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runRatings(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.run, "run", "", "run id (default latest)")
	cmd.Flags().IntVar(&f.top, "top", 0, "print only the top N teams")
	cmd.Flags().BoolVar(&f.list, "list", false, "list stored runs instead")
	return cmd
}

func (c *cli) runRatings(cmd *cobra.Command, f *ratingsFlags) error {
	ctx := cmd.Context()
	db, err := c.openDB(ctx)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if db == nil {
		return errNoDatabase
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if f.list {
		runs, err := db.ListRuns(ctx)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs stored yet. Run 'matchform replay' or 'matchform features' with --db.")
			return nil
		}
		return report.PrintRuns(out, runs)
	}

	runID := f.run
	if runID == "" {
		latest, err := db.LatestRun(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintln(out, "No runs stored yet.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("latest run: %w", err)
		}
		runID = latest.ID
	}
	snap, err := db.LoadSnapshot(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}
	report.PrintSnapshotHeader(out, snap)
	return report.PrintRatings(out, ratingRows(snap, f.top))
}
