package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/matchform/internal/adapters/csvio"
	"github.com/okian/matchform/internal/adapters/repository"
	"github.com/okian/matchform/internal/adapters/storage"
	"github.com/okian/matchform/internal/app"
	"github.com/okian/matchform/internal/config"
	"github.com/okian/matchform/internal/domain/features"
	"github.com/okian/matchform/internal/domain/model"
	"github.com/okian/matchform/internal/domain/rating"
	"github.com/okian/matchform/pkg/logger"
	"github.com/okian/matchform/pkg/metrics"
	"github.com/spf13/cobra"
)

// cli holds the state shared by every subcommand.
type cli struct {
	configPath string
	dbPath     string

	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:                "matchform",
		Short:              "Point-in-time Elo ratings and leak-free match features",
		Long:               "Replay match results into Elo ratings and enrich per-team match records with historical aggregates.",
		SilenceUsage:       true,
		PersistentPreRunE:  c.setup,
		PersistentPostRunE: c.flushMetrics,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (default $"+config.EnvConfig+")")
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database for runs (overrides db_path)")

	root.AddCommand(newReplayCmd(c))
	root.AddCommand(newFeaturesCmd(c))
	root.AddCommand(newRatingsCmd(c))
	root.AddCommand(newGenerateCmd(c))
	return root
}

// setup loads configuration (defaults -> optional file -> env) and
// initializes logging on stderr so stdout stays free for output.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Context(), c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.dbPath != "" {
		cfg.DBPath = c.dbPath
	}
	c.cfg = cfg

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	c.log = logger.Named("cli")
	return nil
}

func (c *cli) flushMetrics(cmd *cobra.Command, _ []string) error {
	if c.cfg == nil || c.cfg.MetricsTextfile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(c.cfg.MetricsTextfile); err != nil {
		return err
	}
	c.log.Debug(cmd.Context(), "metrics written", logger.String("path", c.cfg.MetricsTextfile))
	return nil
}

// openDB opens the configured run database. It returns nil when no
// database is configured.
func (c *cli) openDB(ctx context.Context) (*storage.DB, error) {
	if c.cfg.DBPath == "" {
		return nil, nil
	}
	if dir := filepath.Dir(c.cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	return storage.Open(ctx, c.cfg.DBPath)
}

// pipeline builds a pipeline over store from the loaded config.
// snapshotPath, when set, resumes the rating state from a JSON snapshot.
func (c *cli) pipeline(store repository.Store, db *storage.DB, snapshotPath string) (*app.Pipeline, error) {
	engineOpts, err := engineOptions(c.cfg)
	if err != nil {
		return nil, err
	}
	spec, err := aggregationSpec(c.cfg)
	if err != nil {
		return nil, err
	}
	opts := []app.Option{
		app.WithLogger(logger.Named("pipeline")),
		app.WithEngineOptions(engineOpts...),
		app.WithSpec(spec),
		app.WithStore(store),
	}
	if db != nil {
		opts = append(opts, app.WithStorage(db))
	}
	if snapshotPath != "" {
		snap, err := readSnapshot(snapshotPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, app.WithSnapshot(snap))
	}
	return app.New(opts...)
}

func engineOptions(cfg *config.Config) ([]rating.Option, error) {
	cutoff, err := cfg.Cutoff()
	if err != nil {
		return nil, err
	}
	policy, err := rating.NewPolicy(cfg.InitialPolicy, cfg.InitialRating, cfg.LateEntryRating, cutoff, cfg.AnchorRank)
	if err != nil {
		return nil, err
	}
	return []rating.Option{
		rating.WithKFactor(cfg.KFactor),
		rating.WithInitialRating(cfg.InitialRating),
		rating.WithLateEntryRating(cfg.LateEntryRating),
		rating.WithResetRating(cfg.ResetRating),
		rating.WithLateEntryCutoff(cutoff),
		rating.WithInactivityMonths(cfg.InactivityMonths),
		rating.WithHomeAdvantage(cfg.HomeAdvantage),
		rating.WithHomeAdvantageRate(cfg.HomeAdvantageRate),
		rating.WithExpectedGoals(cfg.ExpectedGoals),
		rating.WithInitialPolicy(policy),
	}, nil
}

func aggregationSpec(cfg *config.Config) (features.Spec, error) {
	variants, err := features.ParseVariants(cfg.Variants)
	if err != nil {
		return features.Spec{}, err
	}
	spec := features.DefaultSpec(cfg.StatColumns...)
	spec.Variants = variants
	spec.Window = cfg.RollingWindow
	spec.RatingBand = cfg.RatingBand
	spec.DiffBand = cfg.DiffBand
	spec.PossessionColumn = cfg.PossessionColumn
	return spec, nil
}

func readResults(path string) ([]model.MatchResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	results, err := csvio.ReadResults(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return results, nil
}

func readTable(path string) (*model.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	table, err := csvio.ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

func readSnapshot(path string) (model.RatingSnapshot, error) {
	var snap model.RatingSnapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return snap, nil
}

func writeSnapshot(path string, snap model.RatingSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func ratingRows(snap model.RatingSnapshot, top int) []model.RatingEntry {
	teams := make([]model.TeamRating, 0, len(snap.Teams))
	for id, t := range snap.Teams {
		t.TeamID = id
		teams = append(teams, t)
	}
	entries := model.RankRatings(teams)
	if top > 0 && top < len(entries) {
		entries = entries[:top]
	}
	return entries
}
