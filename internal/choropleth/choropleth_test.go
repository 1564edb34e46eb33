package choropleth

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rewired-gh/electionmap/internal/models"
)

func result(code string, winner models.Candidate, votes int, harris, trump float64) models.StateResult {
	return models.StateResult{
		Code:           code,
		Winner:         winner,
		ElectoralVotes: votes,
		Breakdown: []models.BreakdownEntry{
			{Label: "Harris", Percent: harris},
			{Label: "Trump", Percent: trump},
		},
	}
}

func newDataset(t *testing.T, results ...models.StateResult) *models.ElectionDataset {
	t.Helper()
	ds, err := models.NewElectionDataset(results)
	if err != nil {
		t.Fatalf("NewElectionDataset: %v", err)
	}
	return ds
}

func square(lon, lat float64) models.Geometry {
	return models.Geometry{Type: "Polygon", Polygons: []models.Polygon{{
		{{lon, lat}, {lon + 1, lat}, {lon + 1, lat + 1}, {lon, lat + 1}, {lon, lat}},
	}}}
}

func features() []models.GeoFeature {
	return []models.GeoFeature{
		{ID: "39", Name: "Ohio", Geometry: square(-83, 40)},
		{ID: "06", Name: "California", Geometry: square(-120, 37)},
		{ID: "72", Name: "Puerto Rico", Geometry: square(-66.5, 18)},
	}
}

func TestGeoRenderer_Draw(t *testing.T) {
	ds := newDataset(t,
		result("OH", models.Trump, 17, 48, 52),
		result("CA", models.Harris, 54, 60, 40),
		result("TX", models.Trump, 40, 45, 55),
	)
	r := NewGeoRenderer()
	scene, err := r.Draw(ds, features(), 960)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if scene.Height != r.Height(960) {
		t.Errorf("height = %v", scene.Height)
	}
	if len(scene.Shapes) != 3 {
		t.Fatalf("got %d shapes, want 3", len(scene.Shapes))
	}

	oh, ok := scene.Shape("OH")
	if !ok {
		t.Fatal("OH shape missing")
	}
	if oh.Fill != DefaultPalette.Trump || oh.NoData {
		t.Errorf("OH fill = %s nodata = %v", oh.Fill, oh.NoData)
	}
	tip := strings.Join(oh.Tooltip, "\n")
	for _, want := range []string{"Ohio", "Electoral votes: 17", "Harris: 48%", "Trump: 52%"} {
		if !strings.Contains(tip, want) {
			t.Errorf("OH tooltip %q missing %q", tip, want)
		}
	}

	ca, _ := scene.Shape("CA")
	if ca.Fill != DefaultPalette.Harris {
		t.Errorf("CA fill = %s", ca.Fill)
	}

	pr, ok := scene.Shape("f2")
	if !ok {
		t.Fatal("Puerto Rico shape missing")
	}
	if !pr.NoData || pr.Fill != DefaultPalette.NoData {
		t.Errorf("Puerto Rico should use no-data fill, got %+v", pr)
	}
	if pr.Tooltip[1] != "Electoral votes: N/A" {
		t.Errorf("Puerto Rico tooltip = %v", pr.Tooltip)
	}

	if got := strings.Join(scene.Misses, ","); got != "Puerto Rico,TX" {
		t.Errorf("misses = %s", got)
	}
	if scene.Totals.Trump != 57 || scene.Totals.Harris != 54 {
		t.Errorf("totals = %+v", scene.Totals)
	}
}

func TestGeoRenderer_Redraw(t *testing.T) {
	ds := newDataset(t, result("OH", models.Trump, 17, 48, 52))
	r := NewGeoRenderer()

	first, err := r.Draw(ds, features(), 800)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if _, err := r.Draw(ds, features(), 400); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	again, err := r.Draw(ds, features(), 800)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if len(first.Shapes) != len(again.Shapes) {
		t.Fatalf("shape count changed: %d vs %d", len(first.Shapes), len(again.Shapes))
	}
	for i := range first.Shapes {
		if first.Shapes[i].Path != again.Shapes[i].Path || first.Shapes[i].Fill != again.Shapes[i].Fill {
			t.Errorf("shape %d differs after redraw", i)
		}
	}
}

func TestGeoRenderer_Errors(t *testing.T) {
	ds := newDataset(t, result("OH", models.Trump, 17, 48, 52))
	r := NewGeoRenderer()

	tests := []struct {
		name     string
		features []models.GeoFeature
		width    float64
	}{
		{"zero width", features(), 0},
		{"no features", nil, 800},
		{"empty geometry", []models.GeoFeature{{Name: "Ohio", Geometry: models.Geometry{Type: "Polygon"}}}, 800},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Draw(ds, tt.features, tt.width)
			if !models.IsRender(err) {
				t.Errorf("expected render error, got %v", err)
			}
		})
	}
}

func TestGridRenderer_Draw(t *testing.T) {
	ds := newDataset(t,
		result("OH", models.Trump, 17, 48, 52),
		result("CA", models.Harris, 54, 60, 40),
		result("ZZ", models.Harris, 3, 60, 40),
	)
	r := NewGridRenderer()
	scene := r.Draw(ds)

	if len(scene.Shapes) != 2 {
		t.Fatalf("got %d shapes, want 2", len(scene.Shapes))
	}
	// layout order: OH (row 3) comes before CA (row 4)
	if scene.Shapes[0].Code != "OH" || scene.Shapes[1].Code != "CA" {
		t.Errorf("shape order = %s, %s", scene.Shapes[0].Code, scene.Shapes[1].Code)
	}
	oh := scene.Shapes[0]
	want := []string{"OH", "Winner: Trump", "Electoral votes: 17", "Harris: 48%", "Trump: 52%"}
	if strings.Join(oh.Tooltip, "|") != strings.Join(want, "|") {
		t.Errorf("tooltip = %v, want %v", oh.Tooltip, want)
	}
	if oh.X != 4+8*64 || oh.Y != 4+2*30 {
		t.Errorf("OH cell at %v,%v", oh.X, oh.Y)
	}
	if len(scene.Misses) != 1 || scene.Misses[0] != "ZZ" {
		t.Errorf("misses = %v", scene.Misses)
	}

	w, h := r.Size()
	if scene.Width != w || scene.Height != h {
		t.Errorf("scene size %vx%v, want %vx%v", scene.Width, scene.Height, w, h)
	}
}

func TestDefaultGrid(t *testing.T) {
	if err := DefaultGrid.Validate(); err != nil {
		t.Fatalf("DefaultGrid invalid: %v", err)
	}
	if len(DefaultGrid) != 50 {
		t.Errorf("DefaultGrid has %d cells, want 50", len(DefaultGrid))
	}
	cols, rows := DefaultGrid.Bounds()
	if cols != GridColumns || rows != GridRows {
		t.Errorf("bounds = %dx%d", cols, rows)
	}
}

func TestGridLayout_Validate(t *testing.T) {
	tests := []struct {
		name   string
		layout GridLayout
	}{
		{"duplicate code", GridLayout{{"OH", 1, 1}, {"OH", 2, 1}}},
		{"overlap", GridLayout{{"OH", 1, 1}, {"PA", 1, 1}}},
		{"zero position", GridLayout{{"OH", 0, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.layout.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestScene_WriteSVG(t *testing.T) {
	ds := newDataset(t, result("OH", models.Trump, 17, 48, 52))
	var buf bytes.Buffer
	if err := NewGridRenderer().Draw(ds).WriteSVG(&buf); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	svg := buf.String()
	for _, want := range []string{`id="OH"`, `fill="#dc2626"`, "<title>OH\nWinner: Trump", `data-tooltip="OH`} {
		if !strings.Contains(svg, want) {
			t.Errorf("svg missing %q", want)
		}
	}

	buf.Reset()
	scene, err := NewGeoRenderer().Draw(ds, features(), 600)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if err := scene.WriteSVG(&buf); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	if strings.Count(buf.String(), "<path ") != 3 || !strings.Contains(buf.String(), `data-nodata="true"`) {
		t.Errorf("geo svg = %s", buf.String())
	}
}

func TestHover(t *testing.T) {
	ds := newDataset(t, result("OH", models.Trump, 17, 48, 52))
	scene := NewGridRenderer().Draw(ds)
	h := &Hover{OffsetX: 10, OffsetY: -8}

	if h.Tooltip().Visible {
		t.Fatal("tooltip visible before enter")
	}
	if !h.Enter(scene, "OH", 100, 50) {
		t.Fatal("Enter OH failed")
	}
	tip := h.Tooltip()
	if !tip.Visible || tip.X != 110 || tip.Y != 42 || tip.Lines[0] != "OH" {
		t.Errorf("tooltip after enter = %+v", tip)
	}

	h.Move(200, 75)
	tip = h.Tooltip()
	if tip.X != 210 || tip.Y != 67 {
		t.Errorf("tooltip did not follow the pointer: %+v", tip)
	}

	h.Leave()
	if h.Tooltip().Visible {
		t.Error("tooltip visible after leave")
	}
	h.Move(5, 5)
	if h.Tooltip().Visible {
		t.Error("move after leave must not show the tooltip")
	}

	if h.Enter(scene, "CA", 1, 1) {
		t.Error("Enter on missing shape should fail")
	}
}
