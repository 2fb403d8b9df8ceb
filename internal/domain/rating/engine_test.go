package rating_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/matchform/internal/adapters/repository"
	"github.com/okian/matchform/internal/domain/model"
	"github.com/okian/matchform/internal/domain/rating"
	"github.com/okian/matchform/internal/fixtures"
	"github.com/okian/matchform/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2022, time.January, 8, 15, 0, 0, 0, time.UTC)

func match(id, home, away string, hg, ag int, at time.Time) model.MatchResult {
	return model.MatchResult{ID: id, HomeID: home, AwayID: away, HomeGoals: hg, AwayGoals: ag, Timestamp: at}
}

func newEngine(opts ...rating.Option) (*rating.Engine, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	return rating.NewEngine(store, opts...), store
}

func TestEngineSingleMatch(t *testing.T) {
	ctx := context.Background()

	Convey("Given two unseen teams and the default parameters", t, func() {
		engine, store := newEngine()

		Convey("When the home side wins 2-0", func() {
			rated, err := engine.Replay(ctx, []model.MatchResult{match("m1", "A", "B", 2, 0, t0)})
			So(err, ShouldBeNil)
			So(len(rated), ShouldEqual, 1)

			Convey("Then the pre-match ratings are the defaults", func() {
				So(rated[0].HomeRating, ShouldEqual, 1500)
				So(rated[0].AwayRating, ShouldEqual, 1500)
				So(rated[0].HomeAdvantage, ShouldEqual, 100)
			})

			Convey("And the update follows the margin-weighted Elo step", func() {
				So(rated[0].ExpectedHome, ShouldAlmostEqual, 0.6401, 1e-4)
				So(rated[0].Delta, ShouldAlmostEqual, 10.18, 0.01)

				a, _ := store.Get(ctx, "A")
				b, _ := store.Get(ctx, "B")
				So(a.Rating, ShouldAlmostEqual, 1510.18, 0.01)
				So(b.Rating, ShouldAlmostEqual, 1489.82, 0.01)
				So(engine.HomeAdvantage(), ShouldAlmostEqual, 100.76, 0.01)
				So(a.LastActive, ShouldEqual, t0)
				So(engine.Watermark(), ShouldEqual, t0)
			})
		})

		Convey("When equal teams draw", func() {
			rated, err := engine.Replay(ctx, []model.MatchResult{match("m1", "A", "B", 1, 1, t0)})
			So(err, ShouldBeNil)

			Convey("Then the home side still loses ground to the home advantage", func() {
				So(rated[0].Delta, ShouldAlmostEqual, 20*(0.5-rated[0].ExpectedHome), 1e-9)
				So(rated[0].Delta, ShouldBeLessThan, 0)
			})
		})
	})
}

func TestMargin(t *testing.T) {
	Convey("Given the margin multiplier", t, func() {
		So(rating.Margin(0), ShouldEqual, 1)
		So(rating.Margin(1), ShouldEqual, 1)
		So(rating.Margin(-4), ShouldEqual, 2)
		So(rating.Margin(2), ShouldAlmostEqual, math.Sqrt2, 1e-12)
		So(rating.Expected(0), ShouldEqual, 0.5)
		So(rating.Actual(match("m", "A", "B", 0, 3, t0)), ShouldEqual, 0)
	})
}

func TestEngineInactivity(t *testing.T) {
	ctx := context.Background()

	Convey("Given a team that played once", t, func() {
		engine, store := newEngine()
		_, err := engine.Replay(ctx, []model.MatchResult{match("m1", "A", "B", 3, 0, t0)})
		So(err, ShouldBeNil)

		Convey("When it returns after seven months", func() {
			rated, err := engine.Replay(ctx, []model.MatchResult{match("m2", "A", "C", 0, 0, t0.AddDate(0, 7, 0))})
			So(err, ShouldBeNil)

			Convey("Then it enters the match at the reset rating", func() {
				So(rated[0].HomeRating, ShouldEqual, 1350)
				So(rated[0].HomeReset, ShouldBeTrue)
				So(rated[0].AwayRating, ShouldEqual, 1500)
				So(rated[0].AwayReset, ShouldBeFalse)

				a, _ := store.Get(ctx, "A")
				So(a.Rating, ShouldAlmostEqual, 1350+rated[0].Delta, 1e-9)
			})
		})

		Convey("When it returns after five months", func() {
			before, _ := store.Get(ctx, "A")
			rated, err := engine.Replay(ctx, []model.MatchResult{match("m2", "A", "C", 0, 0, t0.AddDate(0, 5, 0))})
			So(err, ShouldBeNil)

			Convey("Then the rating carries over", func() {
				So(rated[0].HomeReset, ShouldBeFalse)
				So(rated[0].HomeRating, ShouldEqual, before.Rating)
			})
		})

		Convey("When it returns exactly six months later", func() {
			rated, err := engine.Replay(ctx, []model.MatchResult{match("m2", "A", "C", 0, 0, t0.AddDate(0, 6, 0))})
			So(err, ShouldBeNil)
			So(rated[0].HomeReset, ShouldBeFalse)
		})
	})

	Convey("Given resets disabled", t, func() {
		engine, _ := newEngine(rating.WithInactivityMonths(0))
		rated, err := engine.Replay(ctx, []model.MatchResult{
			match("m1", "A", "B", 1, 0, t0),
			match("m2", "A", "B", 1, 0, t0.AddDate(3, 0, 0)),
		})
		So(err, ShouldBeNil)
		So(rated[1].HomeReset, ShouldBeFalse)
	})
}

// recordingLogger keeps the fields of every debug entry by message.
type recordingLogger struct {
	debug map[string][]logger.Field
}

func (l *recordingLogger) Info(context.Context, string, ...logger.Field)  {}
func (l *recordingLogger) Error(context.Context, string, ...logger.Field) {}
func (l *recordingLogger) Warn(context.Context, string, ...logger.Field)  {}
func (l *recordingLogger) Fatal(context.Context, string, ...logger.Field) {}
func (l *recordingLogger) Named(string) logger.Logger                     { return l }
func (l *recordingLogger) Debug(_ context.Context, msg string, fields ...logger.Field) {
	l.debug[msg] = fields
}

func (l *recordingLogger) field(msg, key string) any {
	for _, f := range l.debug[msg] {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

func TestEngineResetLogging(t *testing.T) {
	ctx := context.Background()

	Convey("Given an engine with a recording logger", t, func() {
		rec := &recordingLogger{debug: make(map[string][]logger.Field)}
		engine, _ := newEngine(rating.WithLogger(rec))

		Convey("When a team returns after seven months", func() {
			_, err := engine.Replay(ctx, []model.MatchResult{
				match("m1", "A", "B", 1, 0, t0),
				match("m2", "C", "A", 0, 0, t0.AddDate(0, 7, 0)),
			})
			So(err, ShouldBeNil)

			Convey("Then the rated-match entry flags the reset side", func() {
				So(rec.field("match rated", "match"), ShouldEqual, "m2")
				So(rec.field("match rated", "home_reset"), ShouldEqual, false)
				So(rec.field("match rated", "away_reset"), ShouldEqual, true)
			})
		})
	})
}

func TestEngineLateEntry(t *testing.T) {
	ctx := context.Background()
	cutoff := time.Date(2022, time.June, 1, 0, 0, 0, 0, time.UTC)

	Convey("Given a late-entry cutoff", t, func() {
		engine, _ := newEngine(rating.WithLateEntryCutoff(cutoff))

		Convey("When teams first appear either side of it", func() {
			rated, err := engine.Replay(ctx, []model.MatchResult{
				match("m1", "A", "B", 1, 0, t0),
				match("m2", "C", "D", 1, 0, cutoff),
			})
			So(err, ShouldBeNil)

			Convey("Then early teams get the default and late teams the late-entry rating", func() {
				So(rated[0].HomeRating, ShouldEqual, 1500)
				So(rated[1].HomeRating, ShouldEqual, 1400)
				So(rated[1].AwayRating, ShouldEqual, 1400)
			})
		})
	})
}

func TestEngineReplayProperties(t *testing.T) {
	ctx := context.Background()

	Convey("Given a generated league with no inactivity gaps", t, func() {
		league, err := fixtures.Generate(ctx, fixtures.DefaultConfig())
		So(err, ShouldBeNil)

		Convey("When it is replayed", func() {
			engine, store := newEngine()
			rated, err := engine.Replay(ctx, league.Results)
			So(err, ShouldBeNil)
			So(len(rated), ShouldEqual, len(league.Results))

			Convey("Then rating points are conserved", func() {
				sum := 0.0
				for _, r := range store.All(ctx) {
					sum += r.Rating
				}
				So(sum, ShouldAlmostEqual, 1500*float64(len(league.Teams)), 1e-6)
			})

			Convey("And replaying again from scratch is bit-identical", func() {
				again, _ := newEngine()
				rerated, err := again.Replay(ctx, league.Results)
				So(err, ShouldBeNil)
				So(rerated, ShouldResemble, rated)
				So(again.Snapshot(ctx), ShouldResemble, engine.Snapshot(ctx))
			})

			Convey("And each emitted rating is the state before that match", func() {
				last := make(map[string]float64)
				for _, m := range rated {
					if prev, ok := last[m.Match.HomeID]; ok {
						So(m.HomeRating, ShouldEqual, prev)
					}
					if prev, ok := last[m.Match.AwayID]; ok {
						So(m.AwayRating, ShouldEqual, prev)
					}
					last[m.Match.HomeID] = m.HomeRating + m.Delta
					last[m.Match.AwayID] = m.AwayRating - m.Delta
				}
			})
		})

		Convey("When the results arrive shuffled", func() {
			reversed := make([]model.MatchResult, len(league.Results))
			for i, r := range league.Results {
				reversed[len(reversed)-1-i] = r
			}
			engine, _ := newEngine()
			rated, err := engine.Replay(ctx, reversed)
			So(err, ShouldBeNil)

			Convey("Then they are processed in timestamp order", func() {
				for i := 1; i < len(rated); i++ {
					So(rated[i].Match.Timestamp.Before(rated[i-1].Match.Timestamp), ShouldBeFalse)
				}
			})
		})
	})
}

func TestEngineOrderingAndValidation(t *testing.T) {
	ctx := context.Background()

	Convey("Given an engine that has replayed a match", t, func() {
		engine, store := newEngine()
		_, err := engine.Replay(ctx, []model.MatchResult{match("m1", "A", "B", 1, 0, t0)})
		So(err, ShouldBeNil)

		Convey("When a batch starts before the watermark", func() {
			_, err := engine.Replay(ctx, []model.MatchResult{match("m0", "A", "B", 1, 0, t0.Add(-time.Hour))})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, rating.ErrOutOfOrder), ShouldBeTrue)
			})
		})

		Convey("When a batch contains an invalid result", func() {
			_, err := engine.Replay(ctx, []model.MatchResult{
				match("m2", "A", "C", 1, 0, t0.Add(time.Hour)),
				match("m3", "", "C", 1, 0, t0.Add(2*time.Hour)),
			})

			Convey("Then the whole batch is rejected untouched", func() {
				So(errors.Is(err, model.ErrInvalidMatch), ShouldBeTrue)
				So(store.Len(ctx), ShouldEqual, 2)
			})
		})

		Convey("When a match shares the watermark timestamp", func() {
			_, err := engine.Replay(ctx, []model.MatchResult{match("m2", "C", "D", 1, 0, t0)})
			So(err, ShouldBeNil)
		})
	})
}

func TestEnginePreview(t *testing.T) {
	ctx := context.Background()

	Convey("Given a replayed engine", t, func() {
		engine, store := newEngine()
		_, err := engine.Replay(ctx, []model.MatchResult{match("m1", "A", "B", 2, 1, t0)})
		So(err, ShouldBeNil)
		before := engine.Snapshot(ctx)

		Convey("When an upcoming fixture is previewed", func() {
			p := engine.Preview(ctx, "B", "Z", t0.AddDate(0, 1, 0))

			Convey("Then known and new teams are rated without mutating state", func() {
				b, _ := store.Get(ctx, "B")
				So(p.HomeRating, ShouldEqual, b.Rating)
				So(p.AwayRating, ShouldEqual, 1500)
				So(p.HomeAdvantage, ShouldEqual, engine.HomeAdvantage())
				So(p.Delta, ShouldEqual, 0)
				So(engine.Snapshot(ctx), ShouldResemble, before)
			})
		})

		Convey("When the fixture is far in the future", func() {
			p := engine.Preview(ctx, "A", "B", t0.AddDate(1, 0, 0))
			So(p.HomeReset, ShouldBeTrue)
			So(p.HomeRating, ShouldEqual, 1350)
		})
	})
}

func TestEngineTilt(t *testing.T) {
	ctx := context.Background()

	Convey("Given two fresh teams", t, func() {
		engine, store := newEngine()

		Convey("When they share five goals", func() {
			rated, err := engine.Replay(ctx, []model.MatchResult{match("m1", "A", "B", 3, 2, t0)})
			So(err, ShouldBeNil)

			Convey("Then pre-match tilts are neutral and both move towards the goal rate", func() {
				So(rated[0].HomeTilt, ShouldEqual, 1)
				So(rated[0].AwayTilt, ShouldEqual, 1)

				a, _ := store.Get(ctx, "A")
				b, _ := store.Get(ctx, "B")
				So(a.Tilt, ShouldAlmostEqual, 0.98+0.02*5/2.5, 1e-12)
				So(b.Tilt, ShouldAlmostEqual, 0.98+0.02*5/a.Tilt/2.5, 1e-12)
			})
		})
	})
}

func TestEngineSnapshotRestore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a snapshot of a replayed league", t, func() {
		league, err := fixtures.Generate(ctx, fixtures.DefaultConfig())
		So(err, ShouldBeNil)
		half := len(league.Results) / 2

		full, _ := newEngine()
		_, err = full.Replay(ctx, league.Results)
		So(err, ShouldBeNil)

		first, _ := newEngine()
		_, err = first.Replay(ctx, league.Results[:half])
		So(err, ShouldBeNil)
		snap := first.Snapshot(ctx)

		Convey("When a new engine restores it and replays the rest", func() {
			resumed, _ := newEngine()
			So(resumed.Restore(ctx, snap), ShouldBeNil)
			_, err := resumed.Replay(ctx, league.Results[half:])
			So(err, ShouldBeNil)

			Convey("Then it ends in the same state as a single replay", func() {
				So(resumed.Snapshot(ctx), ShouldResemble, full.Snapshot(ctx))
			})
		})

		Convey("When restoring into a populated engine", func() {
			So(errors.Is(first.Restore(ctx, snap), rating.ErrStateNotEmpty), ShouldBeTrue)
		})

		Convey("When the snapshot holds a NaN rating", func() {
			snap.Teams["bad"] = model.TeamRating{Rating: math.NaN()}
			fresh, _ := newEngine()
			So(errors.Is(fresh.Restore(ctx, snap), rating.ErrInvalidSnapshot), ShouldBeTrue)
		})

		Convey("Then its plain mapping lists every team", func() {
			So(len(snap.Ratings()), ShouldEqual, len(league.Teams))
		})
	})
}
