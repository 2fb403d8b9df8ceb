package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/okian/matchform/internal/adapters/storage"
	"github.com/okian/matchform/internal/domain/features"
	"github.com/okian/matchform/internal/domain/model"
	"github.com/okian/matchform/internal/report"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPrintRatings(t *testing.T) {
	at := time.Date(2024, time.May, 19, 0, 0, 0, 0, time.UTC)

	Convey("Given ranked ratings", t, func() {
		entries := model.RankRatings([]model.TeamRating{
			{TeamID: "ARS", Rating: 1601.26, LastActive: at},
			{TeamID: "BUR", Rating: 1388.4, LastActive: at},
		})
		var buf bytes.Buffer

		Convey("When they are printed", func() {
			So(report.PrintRatings(&buf, entries), ShouldBeNil)
			report.PrintSnapshotHeader(&buf, model.RatingSnapshot{AsOf: at, HomeAdvantage: 100.76})

			Convey("Then each team appears with its rounded rating", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "RANK")
				So(out, ShouldContainSubstring, "ARS")
				So(out, ShouldContainSubstring, "1601.3")
				So(out, ShouldContainSubstring, "1388.4")
				So(out, ShouldContainSubstring, "2024-05-19")
				So(out, ShouldContainSubstring, "Home advantage: 100.76")
			})
		})
	})
}

func TestPrintMissingAndRuns(t *testing.T) {
	Convey("Given an aggregation report and a run", t, func() {
		rep := features.Report{Records: 40, Missing: map[string]int{"avg_goals": 4, "opp_avg_goals": 0}}
		run := storage.Run{ID: "run-1", FinishedAt: time.Date(2024, time.May, 19, 10, 0, 0, 0, time.UTC), Matches: 20, Records: 40}
		var buf bytes.Buffer

		So(report.PrintMissing(&buf, rep), ShouldBeNil)
		So(report.PrintRuns(&buf, []storage.Run{run}), ShouldBeNil)

		out := buf.String()
		So(out, ShouldContainSubstring, "avg_goals")
		So(out, ShouldContainSubstring, "10.0%")
		So(out, ShouldNotContainSubstring, "opp_avg_goals")
		So(out, ShouldContainSubstring, "run-1")
	})
}
