package site_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonboulle/clockwork"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/feed"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/http/site"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/render"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/repository"
	service "github.com/StoneBodini/Covid-19-Live-Analysis/internal/app"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/geo"
)

const testCSV = `date,county,state,cases,cases_avg_per_100k
2021-03-01,Cook,Illinois,80,40
2021-03-02,Cook,Illinois,100,50
2021-03-02,Harris,Texas,300,20
2021-03-02,Maricopa,Arizona,50,100
`

const testGeoJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"NAME":"Cook"},
 "geometry":{"type":"Polygon","coordinates":[[[-88,41],[-87,41],[-87,42],[-88,42],[-88,41]]]}},
{"type":"Feature","properties":{"NAME":"Harris"},
 "geometry":{"type":"Polygon","coordinates":[[[-96,29],[-95,29],[-95,30],[-96,30],[-96,29]]]}}
]}`

func buildSnapshot(t *testing.T) *service.Snapshot {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testCSV))
	}))
	defer srv.Close()

	fc, err := geo.Decode(strings.NewReader(testGeoJSON))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	clock := clockwork.NewFakeClockAt(time.Date(2021, 3, 3, 9, 0, 0, 0, time.UTC))
	snap, err := service.Build(context.Background(), service.BuildConfig{
		Loader:       feed.NewLoader(srv.URL, feed.WithClock(clock)),
		Boundaries:   fc,
		TrendPNGPath: t.TempDir() + "/line.png",
		MapOptions:   render.DefaultMapOptions(),
		Clock:        clock,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return snap
}

type mockDependencies struct {
	snap *service.Snapshot

	users        []repository.Subscriber
	subscribeErr error
	updateErr    error
	removeErr    error

	lastRequest service.SubscribeRequest
	lastEmail   string
}

func (m *mockDependencies) Snapshot() (*service.Snapshot, error) {
	if m.snap == nil {
		return nil, service.ErrNoSnapshot
	}
	return m.snap, nil
}

func (m *mockDependencies) Subscribe(_ context.Context, req service.SubscribeRequest) (repository.Subscriber, error) {
	m.lastRequest = req
	return repository.Subscriber{Email: req.Email}, m.subscribeErr
}

func (m *mockDependencies) RequestUpdate(_ context.Context, email string) (service.UpdateResult, error) {
	m.lastEmail = email
	return service.UpdateResult{Queued: m.updateErr == nil}, m.updateErr
}

func (m *mockDependencies) Unsubscribe(_ context.Context, email string) error {
	m.lastEmail = email
	return m.removeErr
}

func (m *mockDependencies) Subscribers(context.Context) ([]repository.Subscriber, error) {
	return m.users, nil
}

func get(mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func post(mux *http.ServeMux, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func parse(w *httptest.ResponseRecorder) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(w.Body)
	So(err, ShouldBeNil)
	return doc
}

func TestSitePages(t *testing.T) {
	Convey("Given the site over a snapshot", t, func() {
		deps := &mockDependencies{snap: buildSnapshot(t)}
		mux := http.NewServeMux()
		site.Register(context.Background(), mux, deps, site.WithTableSize(2))

		Convey("Then the root and home serve the home page", func() {
			for _, path := range []string{"/", "/home"} {
				w := get(mux, path)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(parse(w).Find("title").Text(), ShouldEqual, "Home Page")
			}
		})

		Convey("And unknown paths are not found", func() {
			So(get(mux, "/nowhere").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("And each map page embeds its map and a top table", func() {
			pages := map[string]struct{ title, metric, first string }{
				"/total":     {"Total Cases", "cases", "Harris"},
				"/100k":      {"Cases Per 100k", "cases_avg_per_100k", "Maricopa"},
				"/potential": {"Potential Risk", "potential_risk", "Harris"},
			}
			for path, want := range pages {
				w := get(mux, path)
				So(w.Code, ShouldEqual, http.StatusOK)
				doc := parse(w)

				So(doc.Find("title").Text(), ShouldEqual, want.title)
				So(doc.Find(".data-date").Text(), ShouldContainSubstring, "2021-03-02")
				So(doc.Find(`link[href*="leaflet"]`).Length(), ShouldEqual, 1)
				So(doc.Find("div.covid-map").AttrOr("data-metric", ""), ShouldEqual, want.metric)

				rows := doc.Find("table.leaderboard tbody tr")
				So(rows.Length(), ShouldEqual, 2)
				So(rows.First().Find("td").Eq(1).Text(), ShouldEqual, want.first)
			}
		})

		Convey("And the line page points at the chart", func() {
			w := get(mux, "/line")
			So(parse(w).Find("img.trend-chart").AttrOr("src", ""), ShouldEqual, "/uploads/line.png")

			img := get(mux, "/uploads/line.png")
			So(img.Code, ShouldEqual, http.StatusOK)
			So(img.Header().Get("Content-Type"), ShouldEqual, "image/png")
		})

		Convey("And the subscriber list is rendered", func() {
			deps.users = []repository.Subscriber{{
				FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
				County: "Cook", State: "Illinois", CreatedAt: time.Date(2021, 3, 2, 8, 30, 0, 0, time.UTC),
			}}
			doc := parse(get(mux, "/email"))
			cells := doc.Find("table.subscribers tbody tr td")
			So(cells.Eq(2).Text(), ShouldEqual, "ada@example.com")
			So(cells.Eq(5).Text(), ShouldEqual, "2021-03-02 08:30")
		})

		Convey("And an empty subscriber list says so", func() {
			So(parse(get(mux, "/email")).Find("tr.empty").Length(), ShouldEqual, 1)
		})

		Convey("And the forms post to their handlers", func() {
			forms := map[string]string{
				"/subscribe":   "/subscribeform",
				"/requestpage": "/requestform",
				"/unsubscribe": "/unsubscribeform",
			}
			for page, action := range forms {
				doc := parse(get(mux, page))
				So(doc.Find("form").AttrOr("action", ""), ShouldEqual, action)
			}
			doc := parse(get(mux, "/subscribe"))
			for _, name := range []string{"first_name", "last_name", "email", "county", "state"} {
				So(doc.Find(fmt.Sprintf(`input[name=%q]`, name)).Length(), ShouldEqual, 1)
			}
		})

		Convey("And the stylesheet is embedded", func() {
			w := get(mux, "/static/style.css")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, ".site-nav")
		})
	})

	Convey("Given the site without a snapshot", t, func() {
		mux := http.NewServeMux()
		site.Register(context.Background(), mux, &mockDependencies{})

		So(get(mux, "/total").Code, ShouldEqual, http.StatusServiceUnavailable)
		So(get(mux, "/uploads/line.png").Code, ShouldEqual, http.StatusNotFound)
		So(get(mux, "/home").Code, ShouldEqual, http.StatusOK)
	})
}

func TestSiteForms(t *testing.T) {
	Convey("Given the site forms", t, func() {
		deps := &mockDependencies{snap: buildSnapshot(t)}
		mux := http.NewServeMux()
		site.Register(context.Background(), mux, deps)

		subscribe := url.Values{
			"first_name": {"Ada"}, "last_name": {"Lovelace"}, "email": {"ada@example.com"},
			"county": {"cook"}, "state": {"illinois"},
		}

		Convey("When a subscription succeeds", func() {
			w := post(mux, "/subscribeform", subscribe)

			Convey("Then the thank you page is shown", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(parse(w).Find("title").Text(), ShouldEqual, "Thank You!")
				So(deps.lastRequest.County, ShouldEqual, "cook")
				So(deps.lastRequest.FirstName, ShouldEqual, "Ada")
			})
		})

		Convey("When a subscription is invalid", func() {
			deps.subscribeErr = &service.ValidationError{Field: "county", Message: service.MsgUnknownCounty}
			w := post(mux, "/subscribeform", subscribe)

			Convey("Then the failure reason is shown", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(parse(w).Find(".error-statement").Text(), ShouldEqual, service.MsgUnknownCounty)
			})
		})

		Convey("When the outbox is full", func() {
			deps.subscribeErr = fmt.Errorf("%w: full", service.ErrBackpressure)
			w := post(mux, "/subscribeform", subscribe)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(parse(w).Find(".error-statement").Text(), ShouldEqual, site.MsgBusy)
		})

		Convey("When the store breaks", func() {
			deps.subscribeErr = errors.New("disk on fire")
			w := post(mux, "/subscribeform", subscribe)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldNotContainSubstring, "disk on fire")
		})

		Convey("When an update is requested", func() {
			w := post(mux, "/requestform", url.Values{"email_request": {" ada@example.com "}})
			So(w.Code, ShouldEqual, http.StatusOK)
			So(parse(w).Find("title").Text(), ShouldEqual, "Request Sent")
			So(deps.lastEmail, ShouldEqual, "ada@example.com")
		})

		Convey("When an update is requested for an unknown email", func() {
			deps.updateErr = repository.ErrNotFound
			w := post(mux, "/requestform", url.Values{"email_request": {"nobody@example.com"}})
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(parse(w).Find(".error-statement").Text(), ShouldEqual, site.MsgRequestNotFound)
		})

		Convey("When unsubscribing", func() {
			w := post(mux, "/unsubscribeform", url.Values{"email_remove": {"ada@example.com"}})
			So(w.Code, ShouldEqual, http.StatusOK)
			So(parse(w).Find("title").Text(), ShouldEqual, "Unsubscribes")
		})

		Convey("When unsubscribing an unknown email", func() {
			deps.removeErr = repository.ErrNotFound
			w := post(mux, "/unsubscribeform", url.Values{"email_remove": {"nobody@example.com"}})
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(parse(w).Find(".error-statement").Text(), ShouldEqual, site.MsgUnsubscribeNotFound)
		})

		Convey("When a form page is fetched with the wrong method", func() {
			w := get(mux, "/subscribeform")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestSiteHandlerWithNilMux(t *testing.T) {
	Convey("Given a nil mux", t, func() {
		So(func() {
			site.Register(context.Background(), nil, &mockDependencies{})
		}, ShouldPanic)
	})
}
