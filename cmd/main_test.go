package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/feed"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/mail"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/config"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
)

const boundariesJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"NAME":"Cook"},
 "geometry":{"type":"Polygon","coordinates":[[[-88,41],[-87,41],[-87,42],[-88,42],[-88,41]]]}},
{"type":"Feature","properties":{"NAME":"Harris"},
 "geometry":{"type":"Polygon","coordinates":[[[-96,29],[-95,29],[-95,30],[-96,30],[-96,29]]]}}
]}`

func feedCSV() string {
	day := feed.Yesterday(time.Now()).Format(model.DateLayout)
	before := feed.Yesterday(time.Now()).AddDate(0, 0, -1).Format(model.DateLayout)
	return fmt.Sprintf(`date,county,state,cases,cases_avg_per_100k
%[2]s,Cook,Illinois,90,45
%[1]s,Cook,Illinois,100,50
%[1]s,Harris,Texas,300,20
`, day, before)
}

func testConfig(t *testing.T, status int) *config.Config {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, feedCSV())
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	path := filepath.Join(dir, "counties.json")
	if err := os.WriteFile(path, []byte(boundariesJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.New()
	cfg.Addr = "127.0.0.1:0"
	cfg.FeedURL = srv.URL
	cfg.BoundariesPath = path
	cfg.TrendPNGPath = filepath.Join(dir, "uploads", "line.png")
	return cfg
}

func TestRun(t *testing.T) {
	convey.Convey("Given a reachable feed and a boundary file", t, func() {
		cfg := testConfig(t, http.StatusOK)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		addrs := make(chan net.Addr, 1)
		done := make(chan error, 1)
		go func() { done <- run(ctx, cfg, logger.Nop(), func(a net.Addr) { addrs <- a }) }()

		var base string
		select {
		case a := <-addrs:
			base = "http://" + a.String()
		case err := <-done:
			t.Fatalf("run exited early: %v", err)
		case <-time.After(10 * time.Second):
			t.Fatal("server did not start")
		}

		get := func(path string) (int, string) {
			resp, err := http.Get(base + path)
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			return resp.StatusCode, string(body)
		}

		convey.Convey("Then the service is ready and serves every surface", func() {
			code, body := get("/readyz")
			convey.So(code, convey.ShouldEqual, http.StatusOK)
			convey.So(body, convey.ShouldContainSubstring, "ready")

			code, body = get("/api/leaderboard?metric=potential_risk&limit=1")
			convey.So(code, convey.ShouldEqual, http.StatusOK)
			convey.So(body, convey.ShouldContainSubstring, `"county":"Harris"`)

			code, body = get("/total")
			convey.So(code, convey.ShouldEqual, http.StatusOK)
			convey.So(body, convey.ShouldContainSubstring, "covid-map")

			code, _ = get("/uploads/line.png")
			convey.So(code, convey.ShouldEqual, http.StatusOK)

			code, _ = get("/api-docs")
			convey.So(code, convey.ShouldEqual, http.StatusOK)

			code, body = get("/metrics")
			convey.So(code, convey.ShouldEqual, http.StatusOK)
			convey.So(body, convey.ShouldContainSubstring, "covidmap_snapshot_derived_rows 2")
			convey.So(body, convey.ShouldNotContainSubstring, "go_goroutines")
		})

		convey.Convey("And a subscription round trip works", func() {
			resp, err := http.Post(base+"/api/subscribers", "application/json", strings.NewReader(
				`{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","county":"cook","state":"Illinois"}`))
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusCreated)

			resp, err = http.Post(base+"/api/updates", "application/json", strings.NewReader(`{"email":"ada@example.com"}`))
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)
		})

		convey.Convey("And it shuts down cleanly when cancelled", func() {
			cancel()
			select {
			case err := <-done:
				convey.So(err, convey.ShouldBeNil)
			case <-time.After(10 * time.Second):
				t.Fatal("run did not return")
			}
		})

		cancel()
	})
}

func TestRunFailures(t *testing.T) {
	convey.Convey("Given a feed that is down", t, func() {
		cfg := testConfig(t, http.StatusServiceUnavailable)
		err := run(context.Background(), cfg, logger.Nop(), nil)

		convey.So(errors.Is(err, feed.ErrDataUnavailable), convey.ShouldBeTrue)
	})

	convey.Convey("Given a missing boundary file", t, func() {
		cfg := testConfig(t, http.StatusOK)
		cfg.BoundariesPath = filepath.Join(t.TempDir(), "missing.json")
		err := run(context.Background(), cfg, logger.Nop(), nil)

		convey.So(err, convey.ShouldNotBeNil)
		convey.So(err.Error(), convey.ShouldContainSubstring, "boundaries")
	})
}

func TestWiring(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := config.New()

		convey.Convey("Then mail is logged, not sent", func() {
			_, ok := newMailer(cfg, logger.Nop()).(*mail.LogMailer)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("And SMTP is used once enabled", func() {
			cfg.MailEnabled = true
			cfg.SMTPFrom = "maps@example.com"
			_, ok := newMailer(cfg, logger.Nop()).(*mail.SMTPMailer)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("And the memory store is the default", func() {
			st, err := openStore(context.Background(), cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(st.Close(), convey.ShouldBeNil)
		})

		convey.Convey("And a bad MySQL DSN fails fast", func() {
			cfg.StoreDriver = config.StoreMySQL
			cfg.MySQLDSN = "not a dsn"
			_, err := openStore(context.Background(), cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the metrics registry", t, func() {
		convey.So(func() { updateSystemMetrics() }, convey.ShouldNotPanic)
	})
}
