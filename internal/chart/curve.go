package chart

import (
	"fmt"
	"strconv"

	"github.com/rewired-gh/electionmap/internal/models"
)

const curveColor = "#8884d8"

// Curve builds the probability curve chart for points sampled with normalization k.
func Curve(points []models.CurvePoint, k, width, height float64) (*LineChart, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("curve chart needs at least one point")
	}
	s := Series{
		Key:      "probability",
		Label:    "p(win)",
		Color:    curveColor,
		Width:    2,
		Opacity:  1,
		Values:   make([]float64, len(points)),
		Tooltips: make([]string, len(points)),
	}
	categories := make([]string, len(points))
	for i, p := range points {
		spread := strconv.FormatFloat(p.Spread, 'f', -1, 64)
		categories[i] = spread
		s.Values[i] = p.Probability
		s.Tooltips[i] = fmt.Sprintf("spread = %s: %.4f", spread, p.Probability)
	}

	c := &LineChart{
		Width:      width,
		Height:     height,
		Margin:     DefaultMargin,
		Categories: categories,
		XTickEvery: tickEvery(len(points), 10),
		XAxisLabel: "spread (in %)",
		YAxisLabel: fmt.Sprintf("p(win) = 0.5 * (1 + erf(s/%s))", strconv.FormatFloat(k, 'f', -1, 64)),
		YMin:       0,
		YMax:       1,
		YTicks:     4,
		YFormat:    func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
		Series:     []Series{s},
	}
	return c.fit(), nil
}

// tickEvery spaces labels so at most limit+1 are drawn.
func tickEvery(n, limit int) int {
	if n <= limit {
		return 1
	}
	return (n + limit - 1) / limit
}
