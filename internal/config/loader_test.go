package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/matchform/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matchform.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	ctx := context.Background()
	t.Setenv(config.EnvConfig, "")

	convey.Convey("Given a config loader", t, func() {
		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := writeConfig(t, `
k_factor: 32
late_entry_cutoff: "2023-08-01"
initial_policy: rank_anchor
anchor_rank: 17
stat_columns: [xg, shots]
variants:
  - plain
  - rolling
db_path: /tmp/matchform.db
`)
			cfg, err := config.Load(ctx, path)

			convey.Convey("Then file values replace the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.KFactor, convey.ShouldEqual, 32)
				convey.So(cfg.LateEntryCutoff, convey.ShouldEqual, "2023-08-01")
				convey.So(cfg.InitialPolicy, convey.ShouldEqual, "rank_anchor")
				convey.So(cfg.AnchorRank, convey.ShouldEqual, 17)
				convey.So(cfg.StatColumns, convey.ShouldResemble, []string{"xg", "shots"})
				convey.So(cfg.Variants, convey.ShouldResemble, []string{"plain", "rolling"})
				convey.So(cfg.DBPath, convey.ShouldEqual, "/tmp/matchform.db")
				convey.So(cfg.ResetRating, convey.ShouldEqual, 1350)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeConfig(t, "k_factor: 32\nrolling_window: 3\n")
			t.Setenv("MATCHFORM_K_FACTOR", "25")
			t.Setenv("MATCHFORM_VARIANTS", "plain, opponent")
			t.Setenv(config.EnvConfig, path)
			defer func() {
				_ = os.Unsetenv("MATCHFORM_K_FACTOR")
				_ = os.Unsetenv("MATCHFORM_VARIANTS")
				_ = os.Unsetenv(config.EnvConfig)
			}()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.KFactor, convey.ShouldEqual, 25)
				convey.So(cfg.RollingWindow, convey.ShouldEqual, 3)
				convey.So(cfg.Variants, convey.ShouldResemble, []string{"plain", "opponent"})
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			path := writeConfig(t, `invalid: yaml: content: [`)
			cfg, err := config.Load(ctx, path)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			cfg, err := config.Load(ctx, filepath.Join(t.TempDir(), "missing.yaml"))
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When the file holds an invalid value", func() {
			path := writeConfig(t, "rolling_window: 0\n")
			_, err := config.Load(ctx, path)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
