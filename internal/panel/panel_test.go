package panel

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rewired-gh/electionmap/internal/ingest"
	"github.com/rewired-gh/electionmap/internal/models"
)

const resultsCSV = `State,Info,Winner,Votes
OH,"[['Harris', 48], ['Trump', 52]]",Trump,17
CA,"[['Harris', 60], ['Trump', 40]]",Harris,54
`

const otherCSV = `State,Info,Winner,Votes
TX,"[['Harris', 45], ['Trump', 55]]",Trump,40
`

const trendCSV = `date,harris_winning_combinations_ctn,trump_winning_combinations_ctn
2024_10_02,400,600
2024_10_01,500,500
`

const geometryJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"Ohio"},"geometry":{"type":"Polygon","coordinates":[[[-84,39],[-80,39],[-80,42],[-84,42],[-84,39]]]}},
 {"type":"Feature","properties":{"name":"California"},"geometry":{"type":"Polygon","coordinates":[[[-124,33],[-117,33],[-117,41],[-124,41],[-124,33]]]}},
 {"type":"Feature","properties":{"name":"Puerto Rico"},"geometry":{"type":"Polygon","coordinates":[[[-67,18],[-65.5,18],[-65.5,18.5],[-67,18.5],[-67,18]]]}}
]}`

// fakeFetcher serves documents from memory. Sources listed in block wait until the
// channel is closed; started is signalled when such a fetch begins.
type fakeFetcher struct {
	mu      sync.Mutex
	docs    map[string]string
	calls   map[string]int
	block   map[string]chan struct{}
	started chan string
}

func newFakeFetcher(docs map[string]string) *fakeFetcher {
	return &fakeFetcher{
		docs:    docs,
		calls:   make(map[string]int),
		block:   make(map[string]chan struct{}),
		started: make(chan string, 8),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	f.mu.Lock()
	f.calls[src]++
	wait := f.block[src]
	doc, ok := f.docs[src]
	f.mu.Unlock()

	if wait != nil {
		f.started <- src
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if src == "" {
		return nil, models.NewFetchError("", "No data file path provided", nil)
	}
	if !ok {
		return nil, models.NewFetchError("", "Failed to fetch data: Not Found", nil)
	}
	return []byte(doc), nil
}

func (f *fakeFetcher) count(src string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[src]
}

func newOptions(f *fakeFetcher) Options {
	return Options{
		Fetcher:  f,
		Geometry: NewGeometryCache(f, "geometry.json", ""),
		Width:    800,
	}
}

func TestLoad_Grid(t *testing.T) {
	f := newFakeFetcher(map[string]string{"results.csv": resultsCSV})
	p := New("grid", KindGrid, "results.csv", "2024 Electoral Map", newOptions(f))

	var outcomes []Outcome
	p.OnLoad(func(o Outcome) { outcomes = append(outcomes, o) })

	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap := p.Snapshot()
	if !snap.Loaded || snap.Error != "" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Totals != (models.VoteTotals{Harris: 54, Trump: 17}) {
		t.Errorf("totals = %+v", snap.Totals)
	}
	if len(snap.Scene.Shapes) != 2 {
		t.Errorf("got %d shapes", len(snap.Scene.Shapes))
	}
	if len(outcomes) != 1 || outcomes[0].Err != nil || outcomes[0].Rows != 2 || outcomes[0].Generation != 1 {
		t.Errorf("outcomes = %+v", outcomes)
	}
}

func TestLoad_GeoCachesGeometry(t *testing.T) {
	f := newFakeFetcher(map[string]string{"results.csv": resultsCSV, "geometry.json": geometryJSON})
	p := New("geo", KindGeo, "results.csv", "", newOptions(f))

	for i := 0; i < 2; i++ {
		if err := p.Load(context.Background()); err != nil {
			t.Fatalf("Load %d: %v", i, err)
		}
	}
	if n := f.count("geometry.json"); n != 1 {
		t.Errorf("geometry fetched %d times, want 1", n)
	}
	if n := f.count("results.csv"); n != 2 {
		t.Errorf("results fetched %d times, want 2", n)
	}

	snap := p.Snapshot()
	if math.Abs(snap.Scene.Height-494.4) > 1e-9 {
		t.Errorf("scene height = %v", snap.Scene.Height)
	}
	oh, ok := snap.Scene.Shape("OH")
	if !ok || oh.Fill != "#dc2626" {
		t.Errorf("OH shape = %+v", oh)
	}
	if snap.Generation != 2 {
		t.Errorf("generation = %d", snap.Generation)
	}
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		source  string
		docs    map[string]string
		opts    func(o *Options)
		message string
		errKind models.Kind
	}{
		{
			name:    "missing source",
			kind:    KindGrid,
			message: "Failed to load election data: No data file path provided",
			errKind: models.KindFetch,
		},
		{
			name:    "not found",
			kind:    KindGrid,
			source:  "gone.csv",
			message: "Failed to load election data: Failed to fetch data: Not Found",
			errKind: models.KindFetch,
		},
		{
			name:    "malformed breakdown",
			kind:    KindGrid,
			source:  "bad.csv",
			docs:    map[string]string{"bad.csv": "State,Info,Winner,Votes\nOH,\"[['Harris', 48], ['Trump'\",Trump,17\n"},
			message: "Failed to load election data: ingest election: row 2",
			errKind: models.KindParse,
		},
		{
			name:    "bad geometry",
			kind:    KindGeo,
			source:  "results.csv",
			docs:    map[string]string{"results.csv": resultsCSV, "geometry.json": `{"type":"Feature"}`},
			message: "Failed to create map visualization",
			errKind: models.KindRender,
		},
		{
			name:    "trend parse error",
			kind:    KindTrend,
			source:  "trend.csv",
			docs:    map[string]string{"trend.csv": "date,harris\n"},
			message: "Failed to load trend data: ",
			errKind: models.KindParse,
		},
		{
			name:    "invalid curve domain",
			kind:    KindCurve,
			opts:    func(o *Options) { o.Normalization = -1 },
			message: "Failed to draw probability curve: ",
			errKind: models.KindRender,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher(tt.docs)
			opts := newOptions(f)
			if tt.opts != nil {
				tt.opts(&opts)
			}
			p := New("p", tt.kind, tt.source, "", opts)
			var got Outcome
			p.OnLoad(func(o Outcome) { got = o })

			if err := p.Load(context.Background()); err == nil {
				t.Fatal("expected load error")
			}
			snap := p.Snapshot()
			if snap.Loaded || snap.Scene != nil || snap.Chart != nil {
				t.Error("failed load must not leave a drawing")
			}
			if !strings.HasPrefix(snap.Error, tt.message) {
				t.Errorf("error = %q, want prefix %q", snap.Error, tt.message)
			}
			if snap.ErrorKind != tt.errKind {
				t.Errorf("error kind = %q, want %q", snap.ErrorKind, tt.errKind)
			}
			if got.Err == nil {
				t.Error("observer did not see the failure")
			}
			var buf bytes.Buffer
			if err := p.WriteSVG(&buf, 0); err == nil || err.Error() != snap.Error {
				t.Errorf("WriteSVG error = %v", err)
			}
		})
	}
}

func TestLoad_ErrorClearsPreviousData(t *testing.T) {
	f := newFakeFetcher(map[string]string{"results.csv": resultsCSV})
	p := New("grid", KindGrid, "results.csv", "", newOptions(f))
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := p.SetSource(context.Background(), "missing.csv"); err == nil {
		t.Fatal("expected error")
	}
	snap := p.Snapshot()
	if snap.Loaded || snap.Totals.Sum() != 0 {
		t.Errorf("stale data survived a failed load: %+v", snap)
	}

	if err := p.SetSource(context.Background(), "results.csv"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if p.Snapshot().Error != "" {
		t.Error("successful reload should clear the error")
	}
}

func TestLoad_StaleResultDiscarded(t *testing.T) {
	f := newFakeFetcher(map[string]string{"slow.csv": resultsCSV, "fast.csv": otherCSV})
	release := make(chan struct{})
	f.block["slow.csv"] = release
	p := New("grid", KindGrid, "slow.csv", "", newOptions(f))

	var applied atomic.Int32
	p.OnLoad(func(Outcome) { applied.Add(1) })

	slowErr := make(chan error, 1)
	go func() { slowErr <- p.Load(context.Background()) }()
	<-f.started

	if err := p.SetSource(context.Background(), "fast.csv"); err != nil {
		t.Fatalf("fast load: %v", err)
	}
	close(release)

	select {
	case err := <-slowErr:
		if !errors.Is(err, ErrStale) {
			t.Errorf("slow load error = %v, want ErrStale", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("slow load did not finish")
	}

	snap := p.Snapshot()
	if snap.Totals != (models.VoteTotals{Trump: 40}) {
		t.Errorf("totals = %+v, want only the newer dataset", snap.Totals)
	}
	if snap.Generation != 2 {
		t.Errorf("generation = %d, want 2", snap.Generation)
	}
	if applied.Load() != 1 {
		t.Errorf("observers ran %d times, want 1", applied.Load())
	}
}

func TestLoad_IsolatePolicy(t *testing.T) {
	csv := resultsCSV + "TX,\"[['Harris', 45], ['Trump', 55]]\",Trump,forty\n"
	f := newFakeFetcher(map[string]string{"results.csv": csv})
	opts := newOptions(f)
	opts.Policy = ingest.PolicyIsolate
	p := New("grid", KindGrid, "results.csv", "", opts)

	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap := p.Snapshot()
	if snap.Totals.Sum() != 71 || len(snap.Warnings) != 1 {
		t.Errorf("totals %+v warnings %v", snap.Totals, snap.Warnings)
	}
}

func TestLoad_TrendAndCurve(t *testing.T) {
	f := newFakeFetcher(map[string]string{"trend.csv": trendCSV})
	tp := New("trend", KindTrend, "trend.csv", "", newOptions(f))
	if err := tp.Load(context.Background()); err != nil {
		t.Fatalf("trend Load: %v", err)
	}
	snap := tp.Snapshot()
	if len(snap.Trend) != 2 || snap.Trend[0].Date.Day() != 1 {
		t.Fatalf("trend = %+v", snap.Trend)
	}
	if snap.Trend[1].HarrisAvg != 450 || snap.Chart == nil {
		t.Errorf("rolling average = %v", snap.Trend[1].HarrisAvg)
	}

	cp := New("curve", KindCurve, "", "", newOptions(f))
	if err := cp.Load(context.Background()); err != nil {
		t.Fatalf("curve Load: %v", err)
	}
	if n := len(cp.Snapshot().Curve); n != 41 {
		t.Errorf("curve has %d points, want 41", n)
	}
	var buf bytes.Buffer
	if err := cp.WriteSVG(&buf, 0); err != nil || !strings.Contains(buf.String(), "spread (in %)") {
		t.Errorf("WriteSVG: %v", err)
	}
}

func TestLoad_TrendWindowLabels(t *testing.T) {
	f := newFakeFetcher(map[string]string{"trend.csv": trendCSV})
	opts := newOptions(f)
	opts.TrendWindow = 3
	p := New("trend", KindTrend, "trend.csv", "", opts)
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	var buf bytes.Buffer
	if err := p.WriteSVG(&buf, 0); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	if !strings.Contains(buf.String(), "Harris 3-Day Moving Average") {
		t.Error("legend should name the configured window")
	}
	if strings.Contains(buf.String(), "10-Day") {
		t.Error("legend still names the default window")
	}
}

func TestResizeNow_Idempotent(t *testing.T) {
	f := newFakeFetcher(map[string]string{"results.csv": resultsCSV, "geometry.json": geometryJSON})
	p := New("geo", KindGeo, "results.csv", "", newOptions(f))
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	first := p.Snapshot().Scene

	if err := p.ResizeNow(400); err != nil {
		t.Fatalf("ResizeNow: %v", err)
	}
	if p.Snapshot().Scene.Width != 400 {
		t.Errorf("scene width = %v", p.Snapshot().Scene.Width)
	}
	if err := p.ResizeNow(800); err != nil {
		t.Fatalf("ResizeNow: %v", err)
	}
	again := p.Snapshot().Scene
	if first == again {
		t.Fatal("redraw must build a new scene")
	}
	for i := range first.Shapes {
		if first.Shapes[i].Path != again.Shapes[i].Path {
			t.Errorf("shape %s differs after resizing back", first.Shapes[i].ID)
		}
	}
	if n := f.count("results.csv"); n != 1 {
		t.Errorf("resize refetched data %d times", n-1)
	}

	if err := p.ResizeNow(0); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestResizeNow_DuringLoad(t *testing.T) {
	f := newFakeFetcher(map[string]string{"results.csv": resultsCSV, "geometry.json": geometryJSON})
	release := make(chan struct{})
	f.block["results.csv"] = release
	p := New("geo", KindGeo, "results.csv", "", newOptions(f))

	loadErr := make(chan error, 1)
	go func() { loadErr <- p.Load(context.Background()) }()
	<-f.started

	if err := p.ResizeNow(400); err != nil {
		t.Fatalf("ResizeNow: %v", err)
	}
	close(release)

	select {
	case err := <-loadErr:
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("load did not finish")
	}
	if p.Width() != 400 {
		t.Errorf("width = %v, want 400", p.Width())
	}
	if w := p.Snapshot().Scene.Width; w != 400 {
		t.Errorf("scene width = %v, want the width set during the fetch", w)
	}
}

func TestResizeNow_NarrowChart(t *testing.T) {
	f := newFakeFetcher(map[string]string{"trend.csv": trendCSV})
	for _, kind := range []Kind{KindCurve, KindTrend} {
		p := New(string(kind), kind, "trend.csv", "", newOptions(f))
		if err := p.Load(context.Background()); err != nil {
			t.Fatalf("%s Load: %v", kind, err)
		}
		if err := p.ResizeNow(100); err != nil {
			t.Fatalf("%s ResizeNow: %v", kind, err)
		}
		var buf bytes.Buffer
		if err := p.WriteSVG(&buf, 0); err != nil {
			t.Errorf("%s WriteSVG at width 100: %v", kind, err)
		}
		if snap := p.Snapshot(); snap.Error != "" {
			t.Errorf("%s error = %q", kind, snap.Error)
		}
	}
}

func TestResize_Debounced(t *testing.T) {
	f := newFakeFetcher(map[string]string{"results.csv": resultsCSV, "geometry.json": geometryJSON})
	opts := newOptions(f)
	opts.ResizeDebounce = 30 * time.Millisecond
	p := New("geo", KindGeo, "results.csv", "", opts)
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, w := range []float64{500, 600, 700} {
		p.Resize(w)
	}
	if p.Width() != 800 {
		t.Errorf("width changed before the debounce elapsed: %v", p.Width())
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.Width() != 700 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if p.Width() != 700 {
		t.Fatalf("width = %v, want 700", p.Width())
	}
	if p.Snapshot().Scene.Width != 700 {
		t.Errorf("scene width = %v", p.Snapshot().Scene.Width)
	}
}

func TestWriteSVG_Width(t *testing.T) {
	f := newFakeFetcher(map[string]string{"results.csv": resultsCSV, "geometry.json": geometryJSON})
	p := New("geo", KindGeo, "results.csv", "", newOptions(f))

	var buf bytes.Buffer
	if err := p.WriteSVG(&buf, 0); !errors.Is(err, ErrNotReady) {
		t.Errorf("before load: %v", err)
	}
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := p.WriteSVG(&buf, 300); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	if !strings.Contains(buf.String(), `viewBox="0 0 300 185.4"`) {
		t.Errorf("svg not drawn at requested width: %.120s", buf.String())
	}
	if p.Width() != 800 {
		t.Error("WriteSVG must not change the panel width")
	}
}

func TestRegistry(t *testing.T) {
	f := newFakeFetcher(map[string]string{"results.csv": resultsCSV})
	a := New("a", KindGrid, "results.csv", "", newOptions(f))
	b := New("b", KindGrid, "missing.csv", "", newOptions(f))
	r, err := NewRegistry(a, b)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := r.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if !a.Snapshot().Loaded || b.Snapshot().Error == "" {
		t.Error("one panel's failure must not affect another")
	}
	if got, ok := r.Get("b"); !ok || got != b {
		t.Error("Get(b) failed")
	}
	if len(r.All()) != 2 || r.All()[0] != a {
		t.Error("All() must keep display order")
	}
	if _, err := NewRegistry(a, a); err == nil {
		t.Error("expected duplicate id error")
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []string{"geo", "grid", "trend", "curve"} {
		if _, err := ParseKind(k); err != nil {
			t.Errorf("ParseKind(%q): %v", k, err)
		}
	}
	if _, err := ParseKind("pie"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
