// Package panel owns the lifecycle of one visual: loading its source, drawing it at the
// current width, and exposing an immutable snapshot to the web layer.
package panel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/electionmap/internal/chart"
	"github.com/rewired-gh/electionmap/internal/choropleth"
	"github.com/rewired-gh/electionmap/internal/ingest"
	"github.com/rewired-gh/electionmap/internal/logger"
	"github.com/rewired-gh/electionmap/internal/models"
	"github.com/rewired-gh/electionmap/internal/probability"
	"github.com/rewired-gh/electionmap/internal/trend"
)

var tracer = otel.Tracer("github.com/rewired-gh/electionmap/internal/panel")

// ErrStale is returned by Load when a newer load was started before this one finished.
var ErrStale = errors.New("stale load discarded")

// ErrNotReady is returned when a panel has nothing drawn yet.
var ErrNotReady = errors.New("panel has no data loaded")

// Kind selects what a panel draws.
type Kind string

const (
	KindGeo   Kind = "geo"
	KindGrid  Kind = "grid"
	KindTrend Kind = "trend"
	KindCurve Kind = "curve"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindGeo, KindGrid, KindTrend, KindCurve:
		return k, nil
	}
	return "", fmt.Errorf("unknown panel kind %q", s)
}

// Fetcher retrieves raw source documents.
type Fetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// Options are the collaborators and drawing parameters shared by panels.
type Options struct {
	Fetcher  Fetcher
	Geometry *GeometryCache
	Policy   ingest.Policy
	Width    float64
	// ChartAspect is the height to width ratio of trend and curve charts.
	ChartAspect    float64
	GeoRenderer    *choropleth.GeoRenderer
	GridRenderer   *choropleth.GridRenderer
	CurveDomain    probability.Domain
	Normalization  float64
	TrendWindow    int
	ResizeDebounce time.Duration
}

func (o *Options) setDefaults() {
	if o.Width <= 0 {
		o.Width = 960
	}
	if o.ChartAspect <= 0 {
		o.ChartAspect = 0.5
	}
	if o.GeoRenderer == nil {
		o.GeoRenderer = choropleth.NewGeoRenderer()
	}
	if o.GridRenderer == nil {
		o.GridRenderer = choropleth.NewGridRenderer()
	}
	if o.CurveDomain == (probability.Domain{}) {
		o.CurveDomain = probability.DefaultDomain
	}
	if o.Normalization == 0 {
		o.Normalization = probability.DefaultNormalization
	}
	if o.TrendWindow <= 0 {
		o.TrendWindow = trend.DefaultWindow
	}
}

// Outcome describes a finished load and is passed to OnLoad observers. Stale loads are
// not reported.
type Outcome struct {
	PanelID    string
	Kind       Kind
	Source     string
	Generation uint64
	Err        error
	Dataset    *models.ElectionDataset
	Trend      []models.TrendRecord
	Rows       int
	LoadedAt   time.Time
}

// Snapshot is a read-only view of a panel for rendering.
type Snapshot struct {
	ID         string               `json:"id"`
	Kind       Kind                 `json:"kind"`
	Title      string               `json:"title"`
	Source     string               `json:"source"`
	Generation uint64               `json:"generation"`
	Width      float64              `json:"width"`
	Loaded     bool                 `json:"loaded"`
	Error      string               `json:"error,omitempty"`
	ErrorKind  models.Kind          `json:"error_kind,omitempty"`
	Totals     models.VoteTotals    `json:"totals"`
	Results    []models.StateResult `json:"results,omitempty"`
	Trend      []models.TrendRecord `json:"trend,omitempty"`
	Curve      []models.CurvePoint  `json:"curve,omitempty"`
	Warnings   []string             `json:"warnings,omitempty"`
	LoadedAt   time.Time            `json:"loaded_at,omitempty"`
	Scene      *choropleth.Scene    `json:"-"`
	Chart      *chart.LineChart     `json:"-"`
}

// loaded is everything parsed from one successful load.
type loaded struct {
	dataset  *models.ElectionDataset
	features []models.GeoFeature
	trend    []models.TrendRecord
	curve    []models.CurvePoint
	rows     int
	warnings []string
}

type view struct {
	scene *choropleth.Scene
	chart *chart.LineChart
}

// Panel is one configurable visual: a data source, a title, and a kind.
type Panel struct {
	ID    string
	Kind  Kind
	Title string

	opts Options
	gen  atomic.Uint64

	mu        sync.RWMutex
	source    string
	width     float64
	data      *loaded
	view      view
	err       error
	errMsg    string
	applied   uint64
	loadedAt  time.Time
	observers []func(Outcome)

	resizeMu     sync.Mutex
	resizeTimer  *time.Timer
	pendingWidth float64
}

// New creates a panel. Nothing is fetched until Load.
func New(id string, kind Kind, source, title string, opts Options) *Panel {
	opts.setDefaults()
	return &Panel{
		ID:     id,
		Kind:   kind,
		Title:  title,
		opts:   opts,
		source: source,
		width:  opts.Width,
	}
}

// OnLoad registers fn to run after every applied load, successful or not.
func (p *Panel) OnLoad(fn func(Outcome)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// Source returns the current data source.
func (p *Panel) Source() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.source
}

// SetSource replaces the data source and reloads.
func (p *Panel) SetSource(ctx context.Context, src string) error {
	p.mu.Lock()
	p.source = src
	p.mu.Unlock()
	return p.Load(ctx)
}

// Load fetches, parses, and draws the panel's source. The result is applied only if
// no newer load was started in the meantime; otherwise ErrStale is returned and the
// panel is left as the newer load leaves it.
func (p *Panel) Load(ctx context.Context) error {
	gen := p.gen.Add(1)
	p.mu.RLock()
	src, width := p.source, p.width
	p.mu.RUnlock()

	ctx, span := tracer.Start(ctx, "panel.Load", trace.WithAttributes(
		attribute.String("panel", p.ID),
		attribute.String("kind", string(p.Kind)),
		attribute.Int64("generation", int64(gen)),
	))
	defer span.End()

	l := logger.With().With().Str("panel", p.ID).Uint64("generation", gen).Logger()

	data, err := p.fetchAndParse(ctx, src)
	var v view
	if err == nil {
		v, err = p.draw(data, width)
	}

	p.mu.Lock()
	if gen != p.gen.Load() {
		p.mu.Unlock()
		l.Warn().Uint64("latest", p.gen.Load()).Msg("stale load discarded")
		span.SetAttributes(attribute.Bool("stale", true))
		return ErrStale
	}
	if err == nil && p.width != width {
		// Resized while fetching.
		v, err = p.draw(data, p.width)
	}
	now := time.Now()
	out := Outcome{PanelID: p.ID, Kind: p.Kind, Source: src, Generation: gen, Err: err, LoadedAt: now}
	if err != nil {
		p.data, p.view = nil, view{}
		p.err, p.errMsg = err, p.failureMessage(err)
	} else {
		p.data, p.view = data, v
		p.err, p.errMsg = nil, ""
		out.Dataset, out.Trend, out.Rows = data.dataset, data.trend, data.rows
	}
	p.applied = gen
	p.loadedAt = now
	observers := append([]func(Outcome){}, p.observers...)
	p.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.Error().Err(err).Str("kind", string(models.KindOf(err))).Str("source", src).Msg("panel load failed")
	} else {
		for _, w := range data.warnings {
			l.Warn().Msg(w)
		}
		l.Info().Int("rows", data.rows).Msg("panel loaded")
	}
	for _, fn := range observers {
		fn(out)
	}
	return err
}

func (p *Panel) failureMessage(err error) string {
	if models.IsRender(err) && (p.Kind == KindGeo || p.Kind == KindGrid) {
		return "Failed to create map visualization"
	}
	switch p.Kind {
	case KindTrend:
		return "Failed to load trend data: " + err.Error()
	case KindCurve:
		return "Failed to draw probability curve: " + err.Error()
	}
	return "Failed to load election data: " + err.Error()
}

func (p *Panel) fetchAndParse(ctx context.Context, src string) (*loaded, error) {
	switch p.Kind {
	case KindCurve:
		points, err := probability.Curve(p.opts.CurveDomain, p.opts.Normalization)
		if err != nil {
			return nil, models.NewRenderError("curve", "invalid curve parameters", err)
		}
		return &loaded{curve: points, rows: len(points)}, nil

	case KindTrend:
		doc, err := p.opts.Fetcher.Fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		records, err := ingest.ParseTrend(bytes.NewReader(doc))
		if err != nil {
			return nil, err
		}
		return &loaded{trend: trend.Aggregate(records, p.opts.TrendWindow), rows: len(records)}, nil

	case KindGeo:
		var doc []byte
		var features []models.GeoFeature
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			doc, err = p.opts.Fetcher.Fetch(gctx, src)
			return err
		})
		g.Go(func() error {
			if p.opts.Geometry == nil {
				return models.NewRenderError("geometry", "no geometry source configured", nil)
			}
			var err error
			features, err = p.opts.Geometry.Get(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		data, err := p.parseElection(doc)
		if err != nil {
			return nil, err
		}
		data.features = features
		return data, nil

	case KindGrid:
		doc, err := p.opts.Fetcher.Fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		return p.parseElection(doc)
	}
	return nil, fmt.Errorf("unknown panel kind %q", p.Kind)
}

func (p *Panel) parseElection(doc []byte) (*loaded, error) {
	res, err := ingest.ParseElection(bytes.NewReader(doc), ingest.Options{Policy: p.opts.Policy})
	if err != nil {
		return nil, err
	}
	data := &loaded{dataset: res.Dataset, rows: res.Dataset.Len(), warnings: res.Warnings}
	for _, rowErr := range res.RowErrors {
		data.warnings = append(data.warnings, "skipped "+rowErr.Error())
	}
	return data, nil
}

// draw builds a fresh view of data at width. It never mutates panel state.
func (p *Panel) draw(data *loaded, width float64) (view, error) {
	switch p.Kind {
	case KindGeo:
		scene, err := p.opts.GeoRenderer.Draw(data.dataset, data.features, width)
		if err != nil {
			return view{}, err
		}
		if len(scene.Misses) > 0 {
			logger.Debug("Panel %s: %d states without a join partner: %v", p.ID, len(scene.Misses), scene.Misses)
		}
		return view{scene: scene}, nil
	case KindGrid:
		return view{scene: p.opts.GridRenderer.Draw(data.dataset)}, nil
	case KindTrend:
		c, err := chart.Trend(data.trend, p.opts.TrendWindow, width, width*p.opts.ChartAspect)
		if err != nil {
			return view{}, models.NewRenderError("trend", "cannot draw trend chart", err)
		}
		return view{chart: c}, nil
	case KindCurve:
		c, err := chart.Curve(data.curve, p.opts.Normalization, width, width*p.opts.ChartAspect)
		if err != nil {
			return view{}, models.NewRenderError("curve", "cannot draw curve chart", err)
		}
		return view{chart: c}, nil
	}
	return view{}, fmt.Errorf("unknown panel kind %q", p.Kind)
}

// Snapshot returns the panel's current state.
func (p *Panel) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Snapshot{
		ID:         p.ID,
		Kind:       p.Kind,
		Title:      p.Title,
		Source:     p.source,
		Generation: p.applied,
		Width:      p.width,
		Loaded:     p.data != nil,
		Error:      p.errMsg,
		ErrorKind:  models.KindOf(p.err),
		LoadedAt:   p.loadedAt,
		Scene:      p.view.scene,
		Chart:      p.view.chart,
	}
	if p.data != nil {
		s.Totals = p.data.dataset.Totals()
		s.Results = p.data.dataset.Results()
		s.Trend = p.data.trend
		s.Curve = p.data.curve
		s.Warnings = p.data.warnings
	}
	return s
}

// Err returns the error of the last applied load, if any.
func (p *Panel) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// WriteSVG writes the panel's drawing. A positive width different from the current one
// draws a throwaway view at that width without changing the panel.
func (p *Panel) WriteSVG(w io.Writer, width float64) error {
	p.mu.RLock()
	data, v, current, errMsg := p.data, p.view, p.width, p.errMsg
	p.mu.RUnlock()

	if data == nil {
		if errMsg != "" {
			return errors.New(errMsg)
		}
		return ErrNotReady
	}
	if width > 0 && width != current {
		var err error
		if v, err = p.draw(data, width); err != nil {
			return err
		}
	}
	if v.scene != nil {
		return v.scene.WriteSVG(w)
	}
	return v.chart.WriteSVG(w)
}
