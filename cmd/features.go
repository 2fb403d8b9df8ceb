package main

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/matchform/internal/adapters/csvio"
	"github.com/okian/matchform/internal/adapters/repository"
	"github.com/okian/matchform/internal/report"
	"github.com/spf13/cobra"
)

type featuresFlags struct {
	results     string
	records     string
	out         string
	snapshotIn  string
	snapshotOut string
	quiet       bool
}

func newFeaturesCmd(c *cli) *cobra.Command {
	f := &featuresFlags{}
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Attach pre-match ratings and historical aggregates to match records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runFeatures(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.results, "results", "", "results CSV (required)")
	cmd.Flags().StringVar(&f.records, "records", "", "per-team records CSV (required)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "-", "enriched CSV output, - for stdout")
	cmd.Flags().StringVar(&f.snapshotIn, "snapshot-in", "", "resume from a JSON rating snapshot")
	cmd.Flags().StringVar(&f.snapshotOut, "snapshot-out", "", "write the final rating snapshot as JSON")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not print the missing-value report")
	_ = cmd.MarkFlagRequired("results")
	_ = cmd.MarkFlagRequired("records")
	return cmd
}

func (c *cli) runFeatures(cmd *cobra.Command, f *featuresFlags) error {
	ctx := cmd.Context()
	results, err := readResults(f.results)
	if err != nil {
		return fmt.Errorf("read results: %w", err)
	}
	table, err := readTable(f.records)
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}

	db, err := c.openDB(ctx)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if db != nil {
		defer db.Close()
	}

	spec, err := aggregationSpec(c.cfg)
	if err != nil {
		return err
	}
	p, err := c.pipeline(repository.NewMemoryStore(), db, f.snapshotIn)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx, results, table)
	if err != nil {
		return err
	}

	if f.snapshotOut != "" {
		if err := writeSnapshot(f.snapshotOut, res.Snapshot); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}

	var w io.Writer = cmd.OutOrStdout()
	if f.out != "-" {
		file, err := os.Create(f.out)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	if err := csvio.WriteTable(w, res.Table, spec.OutputColumns()); err != nil {
		return fmt.Errorf("write records: %w", err)
	}

	if f.quiet || len(res.Report.MissingColumns()) == 0 {
		return nil
	}
	return report.PrintMissing(cmd.ErrOrStderr(), res.Report)
}
