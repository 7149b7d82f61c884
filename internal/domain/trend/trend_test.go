package trend_test

import (
	"testing"
	"time"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/trend"
	. "github.com/smartystreets/goconvey/convey"
)

func f(v float64) *float64 { return &v }

func day(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAggregate(t *testing.T) {
	Convey("Given records spread over three unordered dates", t, func() {
		records := []model.CaseRecord{
			{Date: day("2021-03-02"), County: "A", Cases: f(5)},
			{Date: day("2021-03-01"), County: "A", Cases: f(1)},
			{Date: day("2021-03-02"), County: "B", Cases: f(7)},
			{Date: day("2021-03-03"), County: "A", Cases: nil},
			{Date: day("2021-03-01"), County: "B", Cases: f(2)},
		}

		series := trend.Aggregate(records)

		Convey("Then there is one ascending point per date", func() {
			So(len(series), ShouldEqual, 3)
			So(series[0].Date, ShouldEqual, day("2021-03-01"))
			So(series[1].Date, ShouldEqual, day("2021-03-02"))
			So(series[2].Date, ShouldEqual, day("2021-03-03"))
		})

		Convey("Then cases are summed and missing counts add nothing", func() {
			So(series[0].Cases, ShouldEqual, 3)
			So(series[1].Cases, ShouldEqual, 12)
			So(series[2].Cases, ShouldEqual, 0)
		})

		Convey("Then the wire form uses calendar dates", func() {
			pts := series.Points()
			So(pts[1].Date, ShouldEqual, "2021-03-02")
			So(pts[1].Cases, ShouldEqual, 12)
		})

		Convey("Then the span covers first to last", func() {
			first, last, ok := series.Span()
			So(ok, ShouldBeTrue)
			So(first, ShouldEqual, day("2021-03-01"))
			So(last, ShouldEqual, day("2021-03-03"))
		})
	})

	Convey("Given no records", t, func() {
		series := trend.Aggregate(nil)
		So(series, ShouldBeEmpty)
		_, _, ok := series.Span()
		So(ok, ShouldBeFalse)
	})
}
