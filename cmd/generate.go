package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/matchform/internal/adapters/csvio"
	"github.com/okian/matchform/internal/fixtures"
	"github.com/okian/matchform/pkg/logger"
	"github.com/spf13/cobra"
)

// Output file names written by generate.
const (
	resultsFile = "results.csv"
	recordsFile = "records.csv"
)

func newGenerateCmd(c *cli) *cobra.Command {
	gen := fixtures.DefaultConfig()
	var outDir string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic league as results and records CSV files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runGenerate(cmd, gen, outDir)
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "directory for "+resultsFile+" and "+recordsFile)
	cmd.Flags().IntVar(&gen.Teams, "teams", gen.Teams, "number of teams")
	cmd.Flags().IntVar(&gen.Seasons, "seasons", gen.Seasons, "double round-robin seasons")
	cmd.Flags().IntVar(&gen.Upcoming, "upcoming", gen.Upcoming, "rounds with records but no results")
	cmd.Flags().Int64Var(&gen.Seed, "seed", gen.Seed, "random seed")
	cmd.Flags().Float64Var(&gen.MissingRate, "missing-rate", gen.MissingRate, "probability of a missing tackles value")
	return cmd
}

func (c *cli) runGenerate(cmd *cobra.Command, gen fixtures.Config, outDir string) error {
	ctx := cmd.Context()
	league, err := fixtures.Generate(ctx, gen)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	resultsPath := filepath.Join(outDir, resultsFile)
	if err := writeFile(resultsPath, func(f *os.File) error { return csvio.WriteResults(f, league.Results) }); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	recordsPath := filepath.Join(outDir, recordsFile)
	if err := writeFile(recordsPath, func(f *os.File) error { return csvio.WriteTable(f, league.Table, nil) }); err != nil {
		return fmt.Errorf("write records: %w", err)
	}

	c.log.Info(ctx, "league written",
		logger.String("results", resultsPath),
		logger.String("records", recordsPath))
	fmt.Fprintf(cmd.OutOrStdout(), "%d results, %d records written to %s\n",
		len(league.Results), len(league.Table.Records), outDir)
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
