package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rewired-gh/electionmap/internal/models"
	"github.com/rewired-gh/electionmap/internal/panel"
)

const resultsCSV = `State,Info,Winner,Votes
OH,"[['Harris', 48], ['Trump', 52]]",Trump,17
CA,"[['Harris', 60], ['Trump', 40]]",Harris,54
`

type memFetcher struct {
	mu   sync.Mutex
	docs map[string]string
}

func (f *memFetcher) Fetch(_ context.Context, src string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[src]
	if !ok {
		return nil, models.NewFetchError("", "Failed to fetch data: Not Found", nil)
	}
	return []byte(doc), nil
}

func (f *memFetcher) set(src, doc string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[src] = doc
}

type memHistory struct {
	loads []models.LoadRecord
}

func (h *memHistory) RecentLoads(panelID string, k int) ([]models.LoadRecord, error) {
	var out []models.LoadRecord
	for _, l := range h.loads {
		if l.PanelID == panelID && len(out) < k {
			out = append(out, l)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T, history HistoryStore) (*Server, *memFetcher) {
	t.Helper()
	f := &memFetcher{docs: map[string]string{"results.csv": resultsCSV}}
	opts := panel.Options{Fetcher: f, Width: 600}
	grid := panel.New("grid", panel.KindGrid, "results.csv", "2024 Electoral Map", opts)
	broken := panel.New("broken", panel.KindGrid, "missing.csv", "Broken Map", opts)
	curve := panel.New("curve", panel.KindCurve, "", "Spread to Win Probability", opts)
	reg, err := panel.NewRegistry(grid, broken, curve)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := reg.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	return NewServer(reg, history, Options{AllowedOrigins: []string{"*"}}), f
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) apiResponse {
	t.Helper()
	var raw struct {
		apiResponse
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("invalid data %s: %v", raw.Data, err)
		}
	}
	return raw.apiResponse
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var data map[string]int
	if resp := decode(t, rec, &data); !resp.Success || data["panels"] != 3 {
		t.Errorf("response = %+v, data = %v", resp, data)
	}
}

func TestListPanels(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/panels", "")
	var panels []panelSummary
	decode(t, rec, &panels)
	if len(panels) != 3 {
		t.Fatalf("got %d panels", len(panels))
	}
	if panels[0].ID != "grid" || !panels[0].Loaded || panels[0].Totals.Harris != 54 {
		t.Errorf("grid summary = %+v", panels[0])
	}
	if panels[1].Loaded || panels[1].Error != "Failed to load election data: Failed to fetch data: Not Found" {
		t.Errorf("broken summary = %+v", panels[1])
	}
}

func TestGetPanel(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/panels/grid", "")
	var snap panel.Snapshot
	decode(t, rec, &snap)
	if rec.Code != http.StatusOK || len(snap.Results) != 2 || snap.Totals.Trump != 17 {
		t.Errorf("status %d snapshot %+v", rec.Code, snap)
	}

	rec = do(t, s, http.MethodGet, "/api/panels/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown panel status = %d", rec.Code)
	}
}

func TestSVG(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		name   string
		target string
		status int
		body   string
	}{
		{"grid", "/panels/grid.svg", http.StatusOK, `class="choropleth grid"`},
		{"curve at width", "/panels/curve.svg?width=400", http.StatusOK, `viewBox="0 0 400 200"`},
		{"failed panel", "/panels/broken.svg", http.StatusServiceUnavailable, "Failed to load election data"},
		{"bad width", "/panels/grid.svg?width=wide", http.StatusBadRequest, "Invalid width"},
		{"unknown", "/panels/nope.svg", http.StatusNotFound, "Panel not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, tt.target, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("body missing %q: %.200s", tt.body, rec.Body.String())
			}
			if tt.status == http.StatusOK && rec.Header().Get("Content-Type") != "image/svg+xml" {
				t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestTooltip(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/panels/grid/tooltip/OH?x=5&y=7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var tip struct {
		Visible bool     `json:"visible"`
		X, Y    float64  `json:"-"`
		Lines   []string `json:"lines"`
	}
	decode(t, rec, &tip)
	if !tip.Visible || len(tip.Lines) < 3 || tip.Lines[0] != "OH" || tip.Lines[1] != "Winner: Trump" {
		t.Errorf("tooltip = %+v", tip)
	}

	if rec := do(t, s, http.MethodGet, "/api/panels/grid/tooltip/ZZ", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing shape status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/panels/curve/tooltip/OH", ""); rec.Code != http.StatusNotFound {
		t.Errorf("chart panel status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/panels/grid/tooltip/OH?x=left", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad x status = %d", rec.Code)
	}

	rec = do(t, s, http.MethodDelete, "/api/panels/grid/tooltip", "")
	decode(t, rec, &tip)
	if tip.Visible {
		t.Error("tooltip still visible after leave")
	}
}

func TestReload(t *testing.T) {
	s, f := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/panels/broken/reload", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decode(t, rec, nil); resp.Success || !strings.HasPrefix(resp.Message, "Failed to load election data") {
		t.Errorf("response = %+v", resp)
	}

	f.set("missing.csv", resultsCSV)
	rec = do(t, s, http.MethodPost, "/api/panels/broken/reload", "")
	var snap panel.Snapshot
	decode(t, rec, &snap)
	if rec.Code != http.StatusOK || !snap.Loaded || snap.Error != "" {
		t.Errorf("status %d snapshot %+v", rec.Code, snap)
	}
}

func TestSetSource(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodPut, "/api/panels/broken/source", `{"source":"results.csv"}`)
	var snap panel.Snapshot
	decode(t, rec, &snap)
	if rec.Code != http.StatusOK || !snap.Loaded || snap.Source != "results.csv" {
		t.Fatalf("status %d snapshot %+v", rec.Code, snap)
	}

	rec = do(t, s, http.MethodPut, "/api/panels/broken/source", `{"source":""}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("empty source: status = %d", rec.Code)
	}
	if resp := decode(t, rec, nil); !strings.HasPrefix(resp.Message, "Failed to load election data") {
		t.Errorf("empty source: message = %q", resp.Message)
	}

	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"invalid json", "/api/panels/grid/source", `not json`, http.StatusBadRequest},
		{"missing field", "/api/panels/grid/source", `{}`, http.StatusBadRequest},
		{"unknown panel", "/api/panels/nope/source", `{"source":"results.csv"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, s, http.MethodPut, tt.target, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestResize(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/panels/grid/resize", `{"width":480}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	p, _ := s.registry.Get("grid")
	if p.Width() != 480 {
		t.Errorf("width = %v, want 480", p.Width())
	}

	for _, body := range []string{`{"width":0}`, `{"width":-3}`, `not json`} {
		if rec := do(t, s, http.MethodPost, "/api/panels/grid/resize", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d", body, rec.Code)
		}
	}
}

func TestHistory(t *testing.T) {
	s, _ := newTestServer(t, nil)
	if rec := do(t, s, http.MethodGet, "/api/panels/grid/history", ""); rec.Code != http.StatusNotFound {
		t.Errorf("without storage: status = %d", rec.Code)
	}

	now := time.Now()
	h := &memHistory{loads: []models.LoadRecord{
		{ID: "a", PanelID: "grid", Status: models.LoadOK, LoadedAt: now},
		{ID: "b", PanelID: "grid", Status: models.LoadError, Message: "boom", LoadedAt: now},
		{ID: "c", PanelID: "curve", Status: models.LoadOK, LoadedAt: now},
	}}
	s, _ = newTestServer(t, h)

	rec := do(t, s, http.MethodGet, "/api/panels/grid/history?limit=1", "")
	var loads []models.LoadRecord
	decode(t, rec, &loads)
	if rec.Code != http.StatusOK || len(loads) != 1 || loads[0].ID != "a" {
		t.Errorf("status %d loads %+v", rec.Code, loads)
	}
	if rec := do(t, s, http.MethodGet, "/api/panels/grid/history?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"2024 Electoral Map",
		`<div class="count">54</div>`,
		`<div class="count">17</div>`,
		"Failed to load election data: Failed to fetch data: Not Found",
		"<svg",
		"spread (in %)",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/panels/grid/resize", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := loggingMiddleware(recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
