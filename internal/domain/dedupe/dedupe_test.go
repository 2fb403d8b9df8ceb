package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/matchform/internal/domain/dedupe"
	"github.com/okian/matchform/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithCapacity(8))
		So(d.Size(), ShouldEqual, 0)

		Convey("When an id is recorded twice", func() {
			first := d.SeenAndRecord(ctx, "m1")
			second := d.SeenAndRecord(ctx, "m1")

			Convey("Then only the second call reports it as seen", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When ids are recorded concurrently", func() {
			var wg sync.WaitGroup
			for g := 0; g < 4; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 100; i++ {
						d.SeenAndRecord(ctx, fmt.Sprintf("m%d", i))
					}
				}()
			}
			wg.Wait()

			Convey("Then every id is counted once", func() {
				So(d.Size(), ShouldEqual, 100)
			})
		})
	})
}

func TestResultsAndRecords(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, time.March, 2, 15, 0, 0, 0, time.UTC)

	Convey("Given results with a repeated match id", t, func() {
		results := []model.MatchResult{
			{ID: "m1", HomeID: "A", AwayID: "B", HomeGoals: 1, Timestamp: at},
			{ID: "m2", HomeID: "C", AwayID: "D", Timestamp: at},
			{ID: "m1", HomeID: "A", AwayID: "B", HomeGoals: 3, Timestamp: at},
		}

		kept, dropped := dedupe.Results(ctx, dedupe.NewInMemoryDeduper(), results)

		Convey("Then the first occurrence wins", func() {
			So(len(kept), ShouldEqual, 2)
			So(kept[0].HomeGoals, ShouldEqual, 1)
			So(dropped, ShouldResemble, []string{"m1"})
		})
	})

	Convey("Given records repeated per team", t, func() {
		records := []*model.MatchRecord{
			model.NewMatchRecord("m1", "A", "B", at),
			model.NewMatchRecord("m1", "B", "A", at),
			model.NewMatchRecord("m1", "A", "B", at),
		}

		kept, dropped := dedupe.Records(ctx, dedupe.NewInMemoryDeduper(), records)
		So(len(kept), ShouldEqual, 2)
		So(dropped, ShouldEqual, 1)
	})
}

func TestUnseenAndCommit(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, time.March, 2, 15, 0, 0, 0, time.UTC)

	Convey("Given a deduper that already committed one match", t, func() {
		committed := dedupe.NewInMemoryDeduper()
		dedupe.Commit(ctx, committed, []model.MatchResult{{ID: "m1"}})

		results := []model.MatchResult{
			{ID: "m1", HomeID: "A", AwayID: "B", Timestamp: at},
			{ID: "m2", HomeID: "C", AwayID: "D", Timestamp: at},
			{ID: "m2", HomeID: "C", AwayID: "D", HomeGoals: 4, Timestamp: at},
		}

		Convey("When a batch is filtered", func() {
			kept, dropped := dedupe.Unseen(ctx, committed, results)

			Convey("Then known and repeated ids are dropped without recording the rest", func() {
				So(kept, ShouldHaveLength, 1)
				So(kept[0].ID, ShouldEqual, "m2")
				So(kept[0].HomeGoals, ShouldEqual, 0)
				So(dropped, ShouldResemble, []string{"m1", "m2"})
				So(committed.Seen(ctx, "m2"), ShouldBeFalse)
				So(committed.Size(), ShouldEqual, 1)
			})

			Convey("Then committing the kept results records them", func() {
				dedupe.Commit(ctx, committed, kept)
				So(committed.Seen(ctx, "m2"), ShouldBeTrue)
				So(committed.Size(), ShouldEqual, 2)
			})
		})
	})
}
