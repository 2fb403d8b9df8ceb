package main

import (
	"fmt"

	"github.com/okian/matchform/internal/adapters/repository"
	"github.com/okian/matchform/internal/domain/model"
	"github.com/okian/matchform/internal/report"
	"github.com/spf13/cobra"
)

type replayFlags struct {
	results     string
	snapshotIn  string
	snapshotOut string
	top         int
	team        string
}

func newReplayCmd(c *cli) *cobra.Command {
	f := &replayFlags{}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay match results and print the rating table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runReplay(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.results, "results", "", "results CSV (required)")
	cmd.Flags().StringVar(&f.snapshotIn, "snapshot-in", "", "resume from a JSON rating snapshot")
	cmd.Flags().StringVar(&f.snapshotOut, "snapshot-out", "", "write the final rating snapshot as JSON")
	cmd.Flags().IntVar(&f.top, "top", 0, "print only the top N teams")
	cmd.Flags().StringVar(&f.team, "team", "", "print the rank of a single team")
	_ = cmd.MarkFlagRequired("results")
	return cmd
}

func (c *cli) runReplay(cmd *cobra.Command, f *replayFlags) error {
	ctx := cmd.Context()
	results, err := readResults(f.results)
	if err != nil {
		return fmt.Errorf("read results: %w", err)
	}

	db, err := c.openDB(ctx)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if db != nil {
		defer db.Close()
	}

	store := repository.NewMemoryStore()
	p, err := c.pipeline(store, db, f.snapshotIn)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx, results, nil)
	if err != nil {
		return err
	}

	if f.snapshotOut != "" {
		if err := writeSnapshot(f.snapshotOut, res.Snapshot); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	report.PrintSnapshotHeader(out, res.Snapshot)
	if f.team != "" {
		entry, err := store.Rank(ctx, f.team)
		if err != nil {
			return fmt.Errorf("team %s: %w", f.team, err)
		}
		return report.PrintRatings(out, []model.RatingEntry{entry})
	}

	n := f.top
	if n < 1 {
		n = store.Len(ctx)
	}
	if n < 1 {
		return nil
	}
	entries, err := store.TopN(ctx, n)
	if err != nil {
		return err
	}
	return report.PrintRatings(out, entries)
}
