package service

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/feed"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/render"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/binning"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/geo"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/ranking"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/risk"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/trend"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/types"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/metrics"
)

// Loader fetches the case feed.
type Loader interface {
	Load(ctx context.Context) (feed.Feed, error)
}

// BuildConfig carries everything one snapshot build needs.
type BuildConfig struct {
	Loader     Loader
	Boundaries *geo.FeatureCollection
	// TrendPNGPath receives the trend chart. Empty skips writing it.
	TrendPNGPath    string
	// LeaderboardSize is capped at ranking.DefaultSize.
	LeaderboardSize int
	MapOptions      render.MapOptions
	Clock           clockwork.Clock
	Logger          logger.Logger
}

// Snapshot is the immutable result of one pipeline run. Every page and API
// call reads from the same snapshot; it is replaced whole, never edited.
type Snapshot struct {
	date     time.Time
	builtAt  time.Time
	feedRows int
	rows     []model.DerivedRecord
	dropped  map[string]int

	edges        map[model.Metric]binning.Edges
	artifacts    map[model.Metric]render.Artifact
	leaderboards map[model.Metric]types.Leaderboard
	joinMisses   map[model.Metric]int

	trend     trend.Series
	trendPath string
	counties  []string
	countySet map[string]string
	index     *geo.Index
}

// Build runs load, derive, bin, join, render, rank and trend in order. Any
// stage error fails the whole build and no partial snapshot is returned.
func Build(ctx context.Context, cfg BuildConfig) (*Snapshot, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.LeaderboardSize <= 0 || cfg.LeaderboardSize > ranking.DefaultSize {
		cfg.LeaderboardSize = ranking.DefaultSize
	}
	if cfg.Boundaries == nil {
		return nil, fmt.Errorf("build snapshot: %w", ErrNoBoundaries)
	}

	snap, err := build(ctx, cfg)
	if err != nil {
		metrics.RecordSnapshotBuild("failed")
		return nil, err
	}
	metrics.RecordSnapshotBuild("ok")
	metrics.UpdateSnapshotRows(len(snap.rows), snap.feedRows)
	metrics.UpdateSnapshotTimestamp(snap.builtAt)
	cfg.Logger.Info(ctx, "snapshot built",
		logger.String("date", snap.date.Format(model.DateLayout)),
		logger.Int("feed_rows", snap.feedRows),
		logger.Int("derived_rows", len(snap.rows)),
		logger.Int("dropped_rows", sum(snap.dropped)),
	)
	return snap, nil
}

func build(ctx context.Context, cfg BuildConfig) (*Snapshot, error) {
	clock := cfg.Clock
	stage := func(name string, start time.Time) {
		metrics.RecordStageDuration(name, float64(clock.Since(start).Milliseconds()))
	}

	f, err := cfg.Loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}

	start := clock.Now()
	derived := risk.Derive(f.Latest())
	for reason, n := range derived.Dropped {
		metrics.RecordRowsDropped(reason, n)
	}
	stage("derive", start)

	snap := &Snapshot{
		date:         f.Date,
		feedRows:     len(f.Latest()),
		rows:         derived.Rows,
		dropped:      derived.Dropped,
		edges:        make(map[model.Metric]binning.Edges, len(model.Metrics)),
		artifacts:    make(map[model.Metric]render.Artifact, len(model.Metrics)),
		leaderboards: make(map[model.Metric]types.Leaderboard, len(model.Metrics)),
		joinMisses:   make(map[model.Metric]int, len(model.Metrics)),
		trendPath:    cfg.TrendPNGPath,
		index:        geo.NewIndex(cfg.Boundaries),
	}

	start = clock.Now()
	for _, m := range model.Metrics {
		values := column(snap.rows, m)
		var edges binning.Edges
		if m.RankBinned() {
			edges, err = binning.RankEdges(values)
		} else {
			edges, err = binning.EqualWidth(values, render.AutoClasses)
		}
		if err != nil {
			return nil, fmt.Errorf("bin %s: %w", m, err)
		}
		snap.edges[m] = edges
	}
	stage("bin", start)

	start = clock.Now()
	for _, m := range model.Metrics {
		j := geo.Join(cfg.Boundaries, snap.rows, m)
		snap.joinMisses[m] = j.Misses
		metrics.RecordJoinMisses(string(m), j.Misses)

		art, err := render.Choropleth(j, snap.edges[m], cfg.MapOptions)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", m, err)
		}
		snap.artifacts[m] = art
	}
	stage("render", start)

	snap.leaderboards = ranking.All(snap.rows, cfg.LeaderboardSize)

	start = clock.Now()
	snap.trend = trend.Aggregate(f.All())
	if cfg.TrendPNGPath != "" {
		if err := render.WriteTrendPNG(snap.trend, cfg.TrendPNGPath); err != nil {
			return nil, fmt.Errorf("trend chart: %w", err)
		}
	}
	stage("trend", start)

	snap.countySet = make(map[string]string)
	for _, r := range snap.rows {
		snap.countySet[strings.ToLower(r.County)] = r.County
	}
	snap.counties = make([]string, 0, len(snap.countySet))
	for _, c := range snap.countySet {
		snap.counties = append(snap.counties, c)
	}
	sort.Strings(snap.counties)

	snap.builtAt = clock.Now()
	return snap, nil
}

func column(rows []model.DerivedRecord, m model.Metric) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = m.Value(r)
	}
	return out
}

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// Date is the calendar day the snapshot describes.
func (s *Snapshot) Date() time.Time { return s.date }

// BuiltAt is when the build finished.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// FeedRows is the number of current-day rows before validation.
func (s *Snapshot) FeedRows() int { return s.feedRows }

// Dropped returns a copy of the excluded row counts by reason.
func (s *Snapshot) Dropped() map[string]int { return maps.Clone(s.dropped) }

// Rows returns a copy of the derived rows.
func (s *Snapshot) Rows() []model.DerivedRecord {
	out := make([]model.DerivedRecord, len(s.rows))
	copy(out, s.rows)
	return out
}

// Artifact returns the rendered map for m.
func (s *Snapshot) Artifact(m model.Metric) (render.Artifact, bool) {
	a, ok := s.artifacts[m]
	return a, ok
}

// Edges returns a copy of the class edges for m.
func (s *Snapshot) Edges(m model.Metric) binning.Edges {
	e := s.edges[m]
	out := make(binning.Edges, len(e))
	copy(out, e)
	return out
}

// JoinMisses is the number of rows of m that matched no boundary.
func (s *Snapshot) JoinMisses(m model.Metric) int { return s.joinMisses[m] }

// Leaderboard returns at most limit top entries for m. limit <= 0 returns all.
func (s *Snapshot) Leaderboard(m model.Metric, limit int) types.Leaderboard {
	lb := s.leaderboards[m]
	entries := lb.Entries
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	out := types.Leaderboard{Metric: lb.Metric, Entries: make([]types.Entry, len(entries))}
	copy(out.Entries, entries)
	return out
}

// Trend returns the daily national series.
func (s *Snapshot) Trend() trend.Series { return append(trend.Series(nil), s.trend...) }

// TrendPNGPath is where the trend chart was written.
func (s *Snapshot) TrendPNGPath() string { return s.trendPath }

// CountyNames lists the distinct counties with a derived row, sorted.
func (s *Snapshot) CountyNames() []string { return append([]string(nil), s.counties...) }

// CanonicalCounty returns the feed spelling of a current-day county name
// typed in any case.
func (s *Snapshot) CanonicalCounty(name string) (string, bool) {
	c, ok := s.countySet[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// RowsFor returns the derived rows for an exact county and state.
func (s *Snapshot) RowsFor(county, state string) []model.DerivedRecord {
	var out []model.DerivedRecord
	for _, r := range s.rows {
		if r.County == county && r.State == state {
			out = append(out, r)
		}
	}
	return out
}

// Boundaries is the county index built from the boundary file.
func (s *Snapshot) Boundaries() *geo.Index { return s.index }
