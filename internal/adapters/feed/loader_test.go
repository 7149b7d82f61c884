package feed_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/feed"
)

const body = `date,geoid,county,state,cases,cases_avg,cases_avg_per_100k,deaths,deaths_avg,deaths_avg_per_100k
2021-03-09,USA-01001,Autauga,Alabama,12,10.1,18.2,0,0.1,0.2
2021-03-10,USA-01001,Autauga,Alabama,15,11,19.7,1,0.2,0.3
2021-03-10,USA-01003,Baldwin,Alabama,,20,9.5,0,0.1,0.1
2021-03-10,USA-72999,Unknown,Puerto Rico,4,1,,0,0,
2021-03-11,USA-01001,Autauga,Alabama,9,9,17,0,0,0
`

func serve(t *testing.T, status int, payload string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func clockAt(s string) clockwork.Clock {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return clockwork.NewFakeClockAt(t)
}

func TestLoader_Load_FiltersYesterday(t *testing.T) {
	srv := serve(t, http.StatusOK, body)
	l := feed.NewLoader(srv.URL, feed.WithClock(clockAt("2021-03-11T15:04:05Z")))

	f, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2021-03-10", f.Date.Format("2006-01-02"))
	assert.Len(t, f.All(), 5)
	require.Len(t, f.Latest(), 3)

	first := f.Latest()[0]
	assert.Equal(t, "Autauga", first.County)
	assert.Equal(t, "Alabama", first.State)
	assert.Equal(t, "USA-01001", first.GeoID)
	require.NotNil(t, first.Cases)
	assert.Equal(t, 15.0, *first.Cases)
	require.NotNil(t, first.CasesAvgPer100k)
	assert.Equal(t, 19.7, *first.CasesAvgPer100k)

	assert.Nil(t, f.Latest()[1].Cases, "empty cell decodes to nil")
	assert.Nil(t, f.Latest()[2].CasesAvgPer100k)
}

func TestLoader_Load_NoRowsForYesterday(t *testing.T) {
	srv := serve(t, http.StatusOK, body)
	l := feed.NewLoader(srv.URL, feed.WithClock(clockAt("2021-04-01T00:00:00Z")))

	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, feed.ErrDataUnavailable))
	assert.Contains(t, err.Error(), "2021-03-31")
}

func TestLoader_Load_BadStatus(t *testing.T) {
	srv := serve(t, http.StatusBadGateway, "upstream down")
	l := feed.NewLoader(srv.URL, feed.WithClock(clockAt("2021-03-11T00:00:00Z")))

	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, feed.ErrDataUnavailable)
	assert.Contains(t, err.Error(), "502")
}

func TestLoader_Load_Unreachable(t *testing.T) {
	srv := serve(t, http.StatusOK, body)
	url := srv.URL
	srv.Close()

	_, err := feed.NewLoader(url).Load(context.Background())
	assert.ErrorIs(t, err, feed.ErrDataUnavailable)
}

func TestLoader_Load_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	l := feed.NewLoader(srv.URL, feed.WithTimeout(50*time.Millisecond))
	_, err := l.Load(context.Background())
	assert.ErrorIs(t, err, feed.ErrDataUnavailable)
}

func TestParse_QuotedFieldsAndBlanks(t *testing.T) {
	in := "date,county,state,cases,cases_avg_per_100k\n" +
		"2021-03-10,\"Anchorage, Municipality of\",Alaska,120,14.5\n" +
		"2021-03-10,Kings,New York,,10\n"

	rows, err := feed.Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Anchorage, Municipality of", rows[0].County)
	require.NotNil(t, rows[0].Cases)
	assert.Equal(t, 120.0, *rows[0].Cases)
	assert.Equal(t, 14.5, *rows[0].CasesAvgPer100k)
	assert.Nil(t, rows[1].Cases)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"empty body":     "",
		"missing column": "date,county,state,cases\n2021-03-10,A,B,1\n",
		"bad date":       "date,county,state,cases,cases_avg_per_100k\n03/10/2021,A,B,1,2\n",
		"bad number":     "date,county,state,cases,cases_avg_per_100k\n2021-03-10,A,B,many,2\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := feed.Parse(strings.NewReader(in))
			assert.ErrorIs(t, err, feed.ErrDataUnavailable)
		})
	}
}

func TestYesterday(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2021, 3, 1, 1, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2021, 2, 28, 0, 0, 0, 0, time.UTC), feed.Yesterday(now))
}
