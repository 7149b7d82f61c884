package service_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/feed"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/mail"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/render"
	service "github.com/StoneBodini/Covid-19-Live-Analysis/internal/app"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/geo"
)

// Two days of four counties. Kings has no case count on the current day.
const fixtureCSV = `date,geoid,county,state,cases,cases_avg,cases_avg_per_100k,deaths_avg
2021-03-01,USA-17031,Cook,Illinois,80,70,40,1
2021-03-01,USA-48201,Harris,Texas,200,180,18,2
2021-03-01,USA-04013,Maricopa,Arizona,40,35,90,0
2021-03-02,USA-17031,Cook,Illinois,100,75,50,1
2021-03-02,USA-48201,Harris,Texas,300,190,20,2
2021-03-02,USA-04013,Maricopa,Arizona,50,38,100,0
2021-03-02,USA-36047,Kings,New York,,60,10,1
`

const fixtureGeoJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"NAME":"Cook","STATE":"17","GEO_ID":"0500000US17031"},
 "geometry":{"type":"Polygon","coordinates":[[[-88,41],[-87,41],[-87,42],[-88,42],[-88,41]]]}},
{"type":"Feature","properties":{"NAME":"Harris","STATE":"48","GEO_ID":"0500000US48201"},
 "geometry":{"type":"Polygon","coordinates":[[[-96,29],[-95,29],[-95,30],[-96,30],[-96,29]]]}},
{"type":"Feature","properties":{"NAME":"Maricopa","STATE":"04","GEO_ID":"0500000US04013"},
 "geometry":{"type":"Polygon","coordinates":[[[-113,33],[-111,33],[-111,34],[-113,34],[-113,33]]]}},
{"type":"Feature","properties":{"NAME":"Los Angeles","STATE":"06","GEO_ID":"0500000US06037"},
 "geometry":{"type":"Polygon","coordinates":[[[-119,33.5],[-117.5,33.5],[-117.5,35],[-119,35],[-119,33.5]]]}}
]}`

// fixtureNow makes 2021-03-02 the current day.
var fixtureNow = time.Date(2021, 3, 3, 10, 0, 0, 0, time.UTC)

func fixtureBoundaries(t *testing.T) *geo.FeatureCollection {
	t.Helper()
	fc, err := geo.Decode(strings.NewReader(fixtureGeoJSON))
	if err != nil {
		t.Fatalf("decode boundaries: %v", err)
	}
	return fc
}

func fixtureServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fixtureConfig(t *testing.T, srv *httptest.Server) service.BuildConfig {
	t.Helper()
	clock := clockwork.NewFakeClockAt(fixtureNow)
	return service.BuildConfig{
		Loader:       feed.NewLoader(srv.URL, feed.WithClock(clock)),
		Boundaries:   fixtureBoundaries(t),
		TrendPNGPath: t.TempDir() + "/uploads/line.png",
		MapOptions:   render.DefaultMapOptions(),
		Clock:        clock,
	}
}

func fixtureSnapshot(t *testing.T) *service.Snapshot {
	t.Helper()
	snap, err := service.Build(context.Background(), fixtureConfig(t, fixtureServer(t, http.StatusOK, fixtureCSV)))
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	return snap
}

// captureMailer records every message it is asked to send.
type captureMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	fail bool
}

func (c *captureMailer) Send(_ context.Context, m mail.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("smtp unavailable")
	}
	c.sent = append(c.sent, m)
	return nil
}

func (c *captureMailer) Messages() []mail.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]mail.Message(nil), c.sent...)
}

func (c *captureMailer) SetFail(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = fail
}

// blockingMailer holds each send until release is closed.
type blockingMailer struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingMailer() *blockingMailer {
	return &blockingMailer{entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingMailer) Send(ctx context.Context, _ mail.Message) error {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// eventually polls cond for up to two seconds.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
