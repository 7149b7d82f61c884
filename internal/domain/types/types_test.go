package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLeaderboardJSON(t *testing.T) {
	Convey("Given a leaderboard with one entry", t, func() {
		lb := types.Leaderboard{
			Metric:  "cases",
			Entries: []types.Entry{{Rank: 1, County: "Los Angeles", State: "California", Value: 1200}},
		}

		Convey("When it is encoded", func() {
			b, err := json.Marshal(lb)

			Convey("Then the wire names are snake case", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `{"metric":"cases","entries":[{"rank":1,"county":"Los Angeles","state":"California","value":1200}]}`)
			})
		})
	})
}
