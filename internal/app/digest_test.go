package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/StoneBodini/Covid-19-Live-Analysis/internal/app"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
)

type countingSender struct {
	calls atomic.Int32
	err   error
}

func (c *countingSender) SendDigest(context.Context) (int, error) {
	c.calls.Add(1)
	return 3, c.err
}

func TestDigest(t *testing.T) {
	Convey("Given a digest with a valid cron expression", t, func() {
		sender := &countingSender{}
		d := service.NewDigest(sender, "0 8 * * *", logger.Nop())

		Convey("When started", func() {
			So(d.Start(), ShouldBeNil)
			So(d.Start(), ShouldBeNil)
			defer d.Stop()

			Convey("Then the next run is at eight UTC", func() {
				next := d.NextRun()
				So(next.IsZero(), ShouldBeFalse)
				So(next.UTC().Hour(), ShouldEqual, 8)
				So(next.UTC().Minute(), ShouldEqual, 0)
			})
		})

		Convey("When run by hand", func() {
			n, err := d.RunOnce(context.Background())
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)
			So(sender.calls.Load(), ShouldEqual, 1)
		})
	})

	Convey("Given a sender that fails", t, func() {
		boom := errors.New("boom")
		d := service.NewDigest(&countingSender{err: boom}, "0 8 * * *", nil)

		_, err := d.RunOnce(context.Background())
		So(errors.Is(err, boom), ShouldBeTrue)
	})

	Convey("Given a malformed cron expression", t, func() {
		d := service.NewDigest(&countingSender{}, "every morning", nil)

		So(d.Start(), ShouldNotBeNil)
		d.Stop()
	})
}
