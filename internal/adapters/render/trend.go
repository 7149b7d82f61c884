package render

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/trend"
)

// Trend chart labels.
const (
	TrendXLabel = "Past 30 days"
	TrendYLabel = "Cases Reported"
)

const (
	trendWidth  = 1024
	trendHeight = 512
)

// TrendPNG draws the daily series as a line chart.
func TrendPNG(series trend.Series, w io.Writer) error {
	first, last, ok := series.Span()
	if !ok {
		return ErrEmptySeries
	}

	xs := make([]time.Time, len(series))
	ys := make([]float64, len(series))
	lo, hi := series[0].Cases, series[0].Cases
	for i, p := range series {
		xs[i] = p.Date
		ys[i] = p.Cases
		lo = min(lo, p.Cases)
		hi = max(hi, p.Cases)
	}

	xAxis := chart.XAxis{
		Name:           TrendXLabel,
		ValueFormatter: chart.TimeValueFormatterWithFormat("01-02"),
	}
	// go-chart needs a non-zero range on both axes.
	if first.Equal(last) {
		xAxis.Range = &chart.ContinuousRange{
			Min: chart.TimeToFloat64(first.Add(-12 * time.Hour)),
			Max: chart.TimeToFloat64(first.Add(12 * time.Hour)),
		}
	}
	yAxis := chart.YAxis{Name: TrendYLabel}
	if lo == hi {
		yAxis.Range = &chart.ContinuousRange{Min: 0, Max: max(hi*2, 1)}
	}

	ch := chart.Chart{
		Width:      trendWidth,
		Height:     trendHeight,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      xAxis,
		YAxis:      yAxis,
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "cases",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("e31a1c"),
					StrokeWidth: 2,
				},
			},
		},
	}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render trend: %w", err)
	}
	return nil
}

// WriteTrendPNG renders the series to path, replacing any previous file
// only once the new image is complete.
func WriteTrendPNG(series trend.Series, path string) error {
	var buf bytes.Buffer
	if err := TrendPNG(series, &buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create trend dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil { //nolint:gosec // served publicly
		return fmt.Errorf("write trend: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace trend: %w", err)
	}
	return nil
}
