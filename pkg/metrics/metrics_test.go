package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created and enabled", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Enabled(), ShouldBeTrue)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(false),
				WithRefreshInterval(5*time.Second),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.Enabled(), ShouldBeFalse)
				So(manager.RefreshInterval(), ShouldEqual, 5*time.Second)
				manager.subscriberCount.Set(3)

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_subscribers" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestPipelineMetrics(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording dropped rows", func() {
			before := testutil.ToFloat64(global().rowsDropped.WithLabelValues("invalid_denominator"))
			RecordRowsDropped("invalid_denominator", 4)
			RecordRowsDropped("invalid_denominator", 0)

			Convey("Then only positive counts are added", func() {
				after := testutil.ToFloat64(global().rowsDropped.WithLabelValues("invalid_denominator"))
				So(after-before, ShouldEqual, 4)
			})
		})

		Convey("When recording join misses", func() {
			before := testutil.ToFloat64(global().joinMisses.WithLabelValues("cases"))
			RecordJoinMisses("cases", 2)

			Convey("Then the counter grows", func() {
				So(testutil.ToFloat64(global().joinMisses.WithLabelValues("cases"))-before, ShouldEqual, 2)
			})
		})

		Convey("When updating snapshot gauges", func() {
			UpdateSnapshotRows(10, 30)
			ts := time.Date(2021, 3, 3, 0, 0, 0, 0, time.UTC)
			UpdateSnapshotTimestamp(ts)
			RecordStageDuration("derive", 1.5)
			RecordSnapshotBuild("ok")

			Convey("Then the gauges reflect the values", func() {
				So(testutil.ToFloat64(global().snapshotRows), ShouldEqual, 10)
				So(testutil.ToFloat64(global().snapshotFeedRows), ShouldEqual, 30)
				So(testutil.ToFloat64(global().snapshotTimestamp), ShouldEqual, float64(ts.Unix()))
			})
		})
	})
}

func TestMailAndOutboxMetrics(t *testing.T) {
	Convey("Given mail and outbox helpers", t, func() {
		So(func() {
			UpdateSubscriberCount(2)
			RecordMailSent("confirmation")
			RecordMailFailed("update")
			RecordMailDuplicate()
			RecordMailLatency(12)
			UpdateOutboxSize(1)
			UpdateOutboxCapacity(100)
			RecordOutboxEnqueue()
			RecordOutboxRejected("full")
			UpdateWorkerActiveCount(2)
		}, ShouldNotPanic)

		So(testutil.ToFloat64(global().outboxCapacity), ShouldEqual, 100)
		So(testutil.ToFloat64(global().subscriberCount), ShouldEqual, 2)
	})
}

func TestHTTPAndSystemMetrics(t *testing.T) {
	Convey("Given HTTP and system helpers", t, func() {
		RecordHTTPRequest("maps", "GET", "200")
		RecordHTTPRequestDuration("maps", "GET", "200", 3)
		RecordErrorByComponent("feed", "unavailable")
		RecordErrorByEndpoint("subscribe", "POST", "client_error")
		UpdateSystemMemoryUsage(1024)
		UpdateSystemGoroutineCount(8)
		RecordSystemGCPauseTime(0.2)

		Convey("Then the registry exposes them", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			joined := strings.Join(names, ",")
			So(joined, ShouldContainSubstring, "covidmap_http_requests_total")
			So(joined, ShouldContainSubstring, "covidmap_system_goroutine_count")
			So(joined, ShouldContainSubstring, "covidmap_service_errors_by_component_total")
		})
	})
}

func TestInit(t *testing.T) {
	Convey("Given the package manager rebuilt from options", t, func() {
		defer Init()
		Init(
			WithNamespace("covidtest"),
			WithRefreshInterval(3*time.Second),
			WithConstLabels(map[string]string{"deployment": "test"}),
		)

		Convey("Then helpers record into the new registry", func() {
			So(RefreshInterval(), ShouldEqual, 3*time.Second)
			UpdateSubscriberCount(7)

			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			found := false
			for _, f := range families {
				if f.GetName() == "covidtest_service_subscribers" {
					found = true
					So(f.GetMetric()[0].GetGauge().GetValue(), ShouldEqual, 7)
					So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
				}
			}
			So(found, ShouldBeTrue)
		})

		Convey("And a disabled manager ignores observations", func() {
			Init(WithMetricsEnabled(false))
			UpdateSubscriberCount(9)
			RecordMailSent("update")

			So(testutil.ToFloat64(global().subscriberCount), ShouldEqual, 0)
			So(testutil.ToFloat64(global().mailSent.WithLabelValues("update")), ShouldEqual, 0)
		})
	})
}
