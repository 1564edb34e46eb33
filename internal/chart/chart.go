// Package chart renders multi-series line charts as SVG.
package chart

import (
	"errors"
	"fmt"
	"html"
	"io"
	"math"
	"strconv"
	"strings"
)

// Series is one line over the chart's category axis. Values and Tooltips are indexed
// by category; a NaN value leaves a gap.
type Series struct {
	Key      string
	Label    string
	Color    string
	Width    float64
	Opacity  float64
	Values   []float64
	Tooltips []string
}

// Margin is the space reserved around the plot area for axes and the legend.
type Margin struct {
	Top, Right, Bottom, Left float64
}

// DefaultMargin leaves room for tick labels, axis titles, and a legend row on top.
var DefaultMargin = Margin{Top: 40, Right: 20, Bottom: 50, Left: 60}

// MinPlotSize is the smallest plot area side the chart builders keep after margins.
const MinPlotSize = 40

// LineChart plots every series against shared category labels on the x axis.
type LineChart struct {
	Title      string
	Width      float64
	Height     float64
	Margin     Margin
	Categories []string
	// XTickEvery labels every n-th category; values below 1 label all of them.
	XTickEvery int
	XAxisLabel string
	YAxisLabel string
	YMin, YMax float64
	YTicks     int
	YFormat    func(float64) string
	Legend     bool
	Series     []Series
}

// Validate checks the chart can be drawn.
func (c *LineChart) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.New("chart size must be positive")
	}
	if c.Width-c.Margin.Left-c.Margin.Right <= 0 || c.Height-c.Margin.Top-c.Margin.Bottom <= 0 {
		return errors.New("margins leave no plot area")
	}
	if !(c.YMax > c.YMin) {
		return fmt.Errorf("y domain [%v, %v] is empty", c.YMin, c.YMax)
	}
	if len(c.Categories) == 0 {
		return errors.New("chart has no categories")
	}
	for _, s := range c.Series {
		if len(s.Values) != len(c.Categories) {
			return fmt.Errorf("series %s has %d values for %d categories", s.Key, len(s.Values), len(c.Categories))
		}
		if len(s.Tooltips) != 0 && len(s.Tooltips) != len(s.Values) {
			return fmt.Errorf("series %s has %d tooltips for %d values", s.Key, len(s.Tooltips), len(s.Values))
		}
	}
	return nil
}

// fit grows Width and Height so the plot area inside the margins is at least
// MinPlotSize on each side.
func (c *LineChart) fit() *LineChart {
	c.Width = math.Max(c.Width, c.Margin.Left+c.Margin.Right+MinPlotSize)
	c.Height = math.Max(c.Height, c.Margin.Top+c.Margin.Bottom+MinPlotSize)
	return c
}

func (c *LineChart) plot() (x0, y0, w, h float64) {
	return c.Margin.Left, c.Margin.Top,
		c.Width - c.Margin.Left - c.Margin.Right,
		c.Height - c.Margin.Top - c.Margin.Bottom
}

// X returns the horizontal position of category i. A single category sits in the middle.
func (c *LineChart) X(i int) float64 {
	x0, _, w, _ := c.plot()
	if len(c.Categories) < 2 {
		return x0 + w/2
	}
	return x0 + w*float64(i)/float64(len(c.Categories)-1)
}

// Y returns the vertical position of v, clamped to the plot area.
func (c *LineChart) Y(v float64) float64 {
	_, y0, _, h := c.plot()
	t := (v - c.YMin) / (c.YMax - c.YMin)
	t = math.Max(0, math.Min(1, t))
	return y0 + h*(1-t)
}

func (c *LineChart) yFormat() func(float64) string {
	if c.YFormat != nil {
		return c.YFormat
	}
	return func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
}

// WriteSVG writes the chart as a standalone SVG document.
func (c *LineChart) WriteSVG(out io.Writer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	w := &svgWriter{w: out}
	x0, y0, pw, ph := c.plot()

	w.printf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %s %s" width="%s" height="%s" font-family="sans-serif" font-size="12">`+"\n",
		num(c.Width), num(c.Height), num(c.Width), num(c.Height))
	if c.Title != "" {
		w.printf("<title>%s</title>\n", esc(c.Title))
	}

	ticks := c.YTicks
	if ticks < 1 {
		ticks = 5
	}
	format := c.yFormat()
	w.printf(`<g class="grid" stroke="#e5e7eb" stroke-dasharray="3,3">` + "\n")
	for i := 0; i <= ticks; i++ {
		v := c.YMin + (c.YMax-c.YMin)*float64(i)/float64(ticks)
		y := c.Y(v)
		w.printf(`<line x1="%s" y1="%s" x2="%s" y2="%s"/>`+"\n", num(x0), num(y), num(x0+pw), num(y))
	}
	w.printf("</g>\n")

	w.printf(`<g class="axis y-axis" fill="#374151" text-anchor="end">` + "\n")
	for i := 0; i <= ticks; i++ {
		v := c.YMin + (c.YMax-c.YMin)*float64(i)/float64(ticks)
		w.printf(`<text x="%s" y="%s" dy="0.32em">%s</text>`+"\n", num(x0-6), num(c.Y(v)), esc(format(v)))
	}
	w.printf("</g>\n")

	every := c.XTickEvery
	if every < 1 {
		every = 1
	}
	w.printf(`<g class="axis x-axis" fill="#374151" text-anchor="middle">` + "\n")
	w.printf(`<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="#9ca3af"/>`+"\n", num(x0), num(y0+ph), num(x0+pw), num(y0+ph))
	for i := 0; i < len(c.Categories); i += every {
		w.printf(`<text x="%s" y="%s">%s</text>`+"\n", num(c.X(i)), num(y0+ph+18), esc(c.Categories[i]))
	}
	w.printf("</g>\n")

	if c.XAxisLabel != "" {
		w.printf(`<text class="x-label" x="%s" y="%s" text-anchor="middle">%s</text>`+"\n",
			num(x0+pw/2), num(c.Height-8), esc(c.XAxisLabel))
	}
	if c.YAxisLabel != "" {
		w.printf(`<text class="y-label" transform="translate(14,%s) rotate(-90)" text-anchor="middle">%s</text>`+"\n",
			num(y0+ph/2), esc(c.YAxisLabel))
	}

	for _, s := range c.Series {
		c.writeSeries(w, s)
	}
	if c.Legend {
		c.writeLegend(w)
	}
	w.printf("</svg>\n")
	return w.err
}

func (c *LineChart) writeSeries(w *svgWriter, s Series) {
	opacity := s.Opacity
	if opacity <= 0 {
		opacity = 1
	}
	width := s.Width
	if width <= 0 {
		width = 1
	}

	var d strings.Builder
	pen := false
	for i, v := range s.Values {
		if math.IsNaN(v) {
			pen = false
			continue
		}
		if pen {
			d.WriteByte('L')
		} else {
			d.WriteByte('M')
			pen = true
		}
		d.WriteString(num(c.X(i)))
		d.WriteByte(',')
		d.WriteString(num(c.Y(v)))
	}

	w.printf(`<g class="series" data-series="%s">`+"\n", esc(s.Key))
	w.printf(`<path d="%s" fill="none" stroke="%s" stroke-width="%s" stroke-opacity="%s"/>`+"\n",
		d.String(), esc(s.Color), num(width), num(opacity))
	if len(s.Tooltips) > 0 {
		for i, v := range s.Values {
			if math.IsNaN(v) {
				continue
			}
			w.printf(`<circle cx="%s" cy="%s" r="3" fill="%s" fill-opacity="0" data-tooltip="%s"><title>%s</title></circle>`+"\n",
				num(c.X(i)), num(c.Y(v)), esc(s.Color), esc(s.Tooltips[i]), esc(s.Tooltips[i]))
		}
	}
	w.printf("</g>\n")
}

func (c *LineChart) writeLegend(w *svgWriter) {
	x := c.Margin.Left
	y := c.Margin.Top / 2
	w.printf(`<g class="legend">` + "\n")
	for _, s := range c.Series {
		w.printf(`<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%s"/>`+"\n",
			num(x), num(y), num(x+18), num(y), esc(s.Color), num(math.Max(s.Width, 1)))
		w.printf(`<text x="%s" y="%s" dy="0.32em">%s</text>`+"\n", num(x+22), num(y), esc(s.Label))
		x += 30 + 7*float64(len(s.Label))
	}
	w.printf("</g>\n")
}

type svgWriter struct {
	w   io.Writer
	err error
}

func (s *svgWriter) printf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, format, args...)
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

func esc(s string) string {
	return html.EscapeString(s)
}
