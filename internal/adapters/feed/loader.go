package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/jszwec/csvutil"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/metrics"
)

const defaultTimeout = 30 * time.Second

// Loader downloads the feed once per call.
type Loader struct {
	url     string
	client  *http.Client
	timeout time.Duration
	clock   clockwork.Clock
	log     logger.Logger
}

// NewLoader creates a loader for the CSV at url.
func NewLoader(url string, opts ...Option) *Loader {
	l := &Loader{
		url:     url,
		client:  http.DefaultClient,
		timeout: defaultTimeout,
		clock:   clockwork.NewRealClock(),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Yesterday is the calendar day before now in now's location, at midnight UTC.
func Yesterday(now time.Time) time.Time {
	y := now.AddDate(0, 0, -1)
	return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC)
}

// Load fetches and parses the feed and keeps yesterday's rows as the
// current-day set. Any failure wraps ErrDataUnavailable.
func (l *Loader) Load(ctx context.Context) (Feed, error) {
	start := l.clock.Now()
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return Feed{}, fmt.Errorf("%w: create request: %v", ErrDataUnavailable, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Feed{}, fmt.Errorf("%w: fetch: %v", ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return Feed{}, fmt.Errorf("%w: status %d", ErrDataUnavailable, resp.StatusCode)
	}

	all, err := Parse(resp.Body)
	if err != nil {
		return Feed{}, err
	}

	day := Yesterday(l.clock.Now())
	f := Feed{Date: day, FetchedAt: l.clock.Now(), all: all}
	for _, r := range all {
		if r.Date.Equal(day) {
			f.latest = append(f.latest, r)
		}
	}
	metrics.RecordStageDuration("load", float64(l.clock.Since(start).Milliseconds()))

	if len(f.latest) == 0 {
		return Feed{}, fmt.Errorf("%w: no rows for %s", ErrDataUnavailable, day.Format(model.DateLayout))
	}
	l.log.Info(ctx, "feed loaded",
		logger.String("date", day.Format(model.DateLayout)),
		logger.Int("rows", len(all)),
		logger.Int("current_rows", len(f.latest)))
	return f, nil
}

// Parse decodes a feed body. Unknown columns are ignored; a missing required
// column or a malformed date or number fails the whole body.
func Parse(r io.Reader) ([]model.CaseRecord, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrDataUnavailable, err)
	}
	header := dec.Header()
	for _, col := range requiredColumns {
		if !slices.Contains(header, col) {
			return nil, fmt.Errorf("%w: missing column %q", ErrDataUnavailable, col)
		}
	}

	var rows []row
	if err := dec.Decode(&rows); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: decode: %v", ErrDataUnavailable, err)
	}

	out := make([]model.CaseRecord, 0, len(rows))
	for i, rw := range rows {
		d, err := time.Parse(model.DateLayout, strings.TrimSpace(rw.Date))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: bad date %q", ErrDataUnavailable, i+2, rw.Date)
		}
		out = append(out, model.CaseRecord{
			Date:            d,
			County:          rw.County,
			State:           rw.State,
			GeoID:           rw.GeoID,
			Cases:           rw.Cases,
			CasesAvgPer100k: rw.CasesAvgPer100k,
			CasesAvg:        rw.CasesAvg,
			DeathsAvg:       rw.DeathsAvg,
		})
	}
	return out, nil
}
