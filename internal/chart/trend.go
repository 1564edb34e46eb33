package chart

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/electionmap/internal/models"
	"github.com/rewired-gh/electionmap/internal/trend"
)

// Candidate line colors shared with the choropleth palette.
var CandidateColors = map[models.Candidate]string{
	models.Harris: "#2563eb",
	models.Trump:  "#dc2626",
}

// TrendYMax is the default top of the count axis; it grows when a count exceeds it.
const TrendYMax = 1000

// Trend builds the winning-combinations chart from aggregated records: a faint daily
// line and a bold rolling-average line per candidate. Records must already be sorted
// and averaged over window days (see trend.Aggregate).
func Trend(records []models.TrendRecord, window int, width, height float64) (*LineChart, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("trend chart needs at least one record")
	}
	categories := make([]string, len(records))
	for i, r := range records {
		categories[i] = r.Date.Format("01/02")
	}

	ymax := float64(TrendYMax)
	for _, r := range records {
		ymax = math.Max(ymax, float64(max(r.HarrisDaily, r.TrumpDaily)))
	}
	ymax = niceCeil(ymax)

	c := &LineChart{
		Width:      width,
		Height:     height,
		Margin:     DefaultMargin,
		Categories: categories,
		XTickEvery: 7,
		YMin:       0,
		YMax:       ymax,
		YTicks:     5,
		YFormat:    func(v float64) string { return humanize.Comma(int64(math.Round(v))) },
		Legend:     true,
	}
	for _, cand := range models.Candidates {
		c.Series = append(c.Series, trendSeries(records, window, cand, false))
	}
	for _, cand := range models.Candidates {
		c.Series = append(c.Series, trendSeries(records, window, cand, true))
	}
	return c.fit(), nil
}

func trendSeries(records []models.TrendRecord, window int, c models.Candidate, avg bool) Series {
	id := trend.SeriesID(c, avg)
	s := Series{
		Key:      id,
		Label:    trend.LegendLabel(id, window),
		Color:    CandidateColors[c],
		Width:    1,
		Opacity:  0.5,
		Values:   make([]float64, len(records)),
		Tooltips: make([]string, len(records)),
	}
	if avg {
		s.Width, s.Opacity = 3, 1
	}
	label := trend.Label(id, window)
	for i, r := range records {
		var v float64
		if avg {
			v = r.Average(c)
		} else {
			v = float64(r.Daily(c))
		}
		s.Values[i] = v
		s.Tooltips[i] = fmt.Sprintf("%s - %s: %s combinations",
			r.Date.Format("01/02/2006"), label, humanize.Comma(int64(math.Round(v))))
	}
	return s
}

// niceCeil rounds v up to 1, 2, 2.5 or 5 times a power of ten.
func niceCeil(v float64) float64 {
	if v <= 0 {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if v <= m*mag {
			return m * mag
		}
	}
	return 10 * mag
}
