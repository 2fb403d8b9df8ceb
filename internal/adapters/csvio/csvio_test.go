package csvio_test

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/okian/matchform/internal/adapters/csvio"
	"github.com/okian/matchform/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestResults(t *testing.T) {
	Convey("Given a results file with reordered columns", t, func() {
		in := "timestamp,match_id,home_id,away_id,home_goals,away_goals\n" +
			"2023-08-12,m1,ARS,NFO,2,1\n" +
			"2023-08-12T17:30:00Z,m2,BUR,MCI,0,3\n"

		results, err := csvio.ReadResults(strings.NewReader(in))

		Convey("Then every row is parsed", func() {
			So(err, ShouldBeNil)
			So(len(results), ShouldEqual, 2)
			So(results[0], ShouldResemble, model.MatchResult{
				ID: "m1", HomeID: "ARS", AwayID: "NFO", HomeGoals: 2, AwayGoals: 1,
				Timestamp: time.Date(2023, time.August, 12, 0, 0, 0, 0, time.UTC),
			})
			So(results[1].Timestamp.Hour(), ShouldEqual, 17)
		})

		Convey("And writing them back reads the same", func() {
			var buf bytes.Buffer
			So(csvio.WriteResults(&buf, results), ShouldBeNil)
			again, err := csvio.ReadResults(&buf)
			So(err, ShouldBeNil)
			So(len(again), ShouldEqual, 2)
			So(again[1].ID, ShouldEqual, "m2")
			So(again[1].Timestamp.Equal(results[1].Timestamp), ShouldBeTrue)
		})
	})

	Convey("Given malformed results", t, func() {
		_, err := csvio.ReadResults(strings.NewReader("match_id,home_id\nm1,ARS\n"))
		So(errors.Is(err, csvio.ErrHeader), ShouldBeTrue)

		_, err = csvio.ReadResults(strings.NewReader(
			"match_id,home_id,away_id,home_goals,away_goals,timestamp\nm1,ARS,NFO,two,1,2023-08-12\n"))
		So(errors.Is(err, csvio.ErrRow), ShouldBeTrue)

		_, err = csvio.ReadResults(strings.NewReader(
			"match_id,home_id,away_id,home_goals,away_goals,timestamp\nm1,ARS,NFO,2,1,last week\n"))
		So(errors.Is(err, csvio.ErrRow), ShouldBeTrue)
	})
}

func TestTable(t *testing.T) {
	Convey("Given a records file with two statistics", t, func() {
		in := "match_id,team_id,opponent_id,timestamp,home,competition,goals,tackles\n" +
			"m1,ARS,NFO,2023-08-12,true,league,2,14\n" +
			"m1,NFO,ARS,2023-08-12,false,league,1,\n"

		table, err := csvio.ReadTable(strings.NewReader(in))

		Convey("Then the schema and rows are read", func() {
			So(err, ShouldBeNil)
			So(table.Columns, ShouldResemble, []string{"goals", "tackles"})
			So(len(table.Records), ShouldEqual, 2)
			So(table.Records[0].Home, ShouldBeTrue)
			So(table.Records[0].Competition, ShouldEqual, "league")
			So(table.Records[0].Stat("tackles"), ShouldEqual, 14)
			So(math.IsNaN(table.Records[1].Stat("tackles")), ShouldBeTrue)
			So(math.IsNaN(table.Records[1].TeamRating), ShouldBeTrue)
		})

		Convey("When it is written enriched", func() {
			table.Records[0].SetRatings(1510, 1490)
			table.Records[0].SetFeature("avg_goals", 1.5)

			var buf bytes.Buffer
			So(csvio.WriteTable(&buf, table, []string{"avg_goals"}), ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

			Convey("Then ratings and features follow the statistics and missing cells are empty", func() {
				So(lines[0], ShouldEqual, "match_id,team_id,opponent_id,timestamp,home,competition,goals,tackles,team_elo,opp_elo,elo_diff,avg_goals")
				So(lines[1], ShouldEqual, "m1,ARS,NFO,2023-08-12T00:00:00Z,true,league,2,14,1510,1490,20,1.5")
				So(lines[2], ShouldEqual, "m1,NFO,ARS,2023-08-12T00:00:00Z,false,league,1,,,,,")
			})

			Convey("And reading it back ignores the rating columns", func() {
				again, err := csvio.ReadTable(&buf)
				So(err, ShouldBeNil)
				So(again.Columns, ShouldResemble, []string{"goals", "tackles", "avg_goals"})
			})
		})
	})

	Convey("Given a records file without the team column", t, func() {
		_, err := csvio.ReadTable(strings.NewReader("match_id,opponent_id,timestamp\n"))
		So(errors.Is(err, csvio.ErrHeader), ShouldBeTrue)
	})
}
