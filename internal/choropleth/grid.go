package choropleth

import (
	"fmt"

	"github.com/rewired-gh/electionmap/internal/models"
)

// GridCell places a state on the tile grid. Col and Row are 1-based.
type GridCell struct {
	Code string
	Col  int
	Row  int
}

// GridLayout is an ordered, read-only list of cell positions.
type GridLayout []GridCell

// Grid dimensions of DefaultGrid.
const (
	GridColumns = 12
	GridRows    = 9
)

// DefaultGrid positions the 50 states on a 12 x 9 grid that keeps rough geographic
// neighborhoods.
var DefaultGrid = GridLayout{
	{"ME", 12, 1},
	{"WI", 7, 2}, {"VT", 11, 2}, {"NH", 12, 2},
	{"WA", 2, 2}, {"MT", 3, 2}, {"ND", 4, 2}, {"MN", 6, 2}, {"MI", 8, 2}, {"NY", 10, 2},
	{"MA", 12, 3}, {"RI", 12, 4},
	{"OR", 2, 3}, {"ID", 3, 3}, {"WY", 4, 3}, {"SD", 5, 3}, {"IA", 6, 3}, {"IL", 7, 3},
	{"IN", 8, 3}, {"OH", 9, 3}, {"PA", 10, 3}, {"NJ", 11, 3}, {"CT", 12, 5},
	{"CA", 2, 4}, {"NV", 3, 4}, {"UT", 4, 4}, {"CO", 5, 4}, {"NE", 6, 4}, {"MO", 7, 4},
	{"KY", 8, 4}, {"WV", 9, 4}, {"VA", 10, 4}, {"MD", 11, 4}, {"DE", 11, 5},
	{"AZ", 3, 5}, {"NM", 4, 5}, {"KS", 5, 5}, {"AR", 6, 5}, {"TN", 7, 5}, {"NC", 8, 5}, {"SC", 9, 5},
	{"OK", 5, 6}, {"LA", 6, 6}, {"MS", 7, 6}, {"AL", 8, 6}, {"GA", 9, 6},
	{"TX", 5, 7}, {"FL", 10, 7},
	{"AK", 2, 8},
	{"HI", 2, 9},
}

// Bounds returns the largest column and row used.
func (l GridLayout) Bounds() (cols, rows int) {
	for _, c := range l {
		cols = max(cols, c.Col)
		rows = max(rows, c.Row)
	}
	return cols, rows
}

// Validate rejects duplicate codes, overlapping cells, and non-positive positions.
func (l GridLayout) Validate() error {
	codes := make(map[string]bool, len(l))
	cells := make(map[[2]int]string, len(l))
	for _, c := range l {
		if c.Col < 1 || c.Row < 1 {
			return fmt.Errorf("cell %s has non-positive position %d,%d", c.Code, c.Col, c.Row)
		}
		if codes[c.Code] {
			return fmt.Errorf("duplicate grid code %s", c.Code)
		}
		codes[c.Code] = true
		pos := [2]int{c.Col, c.Row}
		if other, ok := cells[pos]; ok {
			return fmt.Errorf("cells %s and %s overlap at %d,%d", other, c.Code, c.Col, c.Row)
		}
		cells[pos] = c.Code
	}
	return nil
}

// GridRenderer draws one tile per laid-out state present in the dataset. The surface
// size depends only on the layout and cell size, never on the viewport.
type GridRenderer struct {
	Layout     GridLayout
	CellWidth  float64
	CellHeight float64
	Gap        float64
	Palette    Palette
}

// NewGridRenderer returns a renderer for DefaultGrid.
func NewGridRenderer() *GridRenderer {
	return &GridRenderer{Layout: DefaultGrid, CellWidth: 60, CellHeight: 26, Gap: 4, Palette: DefaultPalette}
}

// Size returns the width and height of the drawing surface.
func (r *GridRenderer) Size() (float64, float64) {
	cols, rows := r.Layout.Bounds()
	if cols < GridColumns {
		cols = GridColumns
	}
	if rows < GridRows {
		rows = GridRows
	}
	return float64(cols)*(r.CellWidth+r.Gap) + r.Gap, float64(rows)*(r.CellHeight+r.Gap) + r.Gap
}

// Draw lays out the dataset. States absent from the dataset are left empty and
// dataset codes absent from the layout are reported as misses.
func (r *GridRenderer) Draw(ds *models.ElectionDataset) *Scene {
	palette := r.Palette.orDefault()
	w, h := r.Size()
	scene := &Scene{
		Kind:   "grid",
		Width:  w,
		Height: h,
		Totals: ds.Totals(),
	}
	placed := make(map[string]bool, len(r.Layout))
	for _, cell := range r.Layout {
		placed[cell.Code] = true
		result, ok := ds.Get(cell.Code)
		if !ok {
			continue
		}
		scene.Shapes = append(scene.Shapes, Shape{
			ID:      cell.Code,
			Code:    cell.Code,
			Name:    cell.Code,
			X:       r.Gap + float64(cell.Col-1)*(r.CellWidth+r.Gap),
			Y:       r.Gap + float64(cell.Row-1)*(r.CellHeight+r.Gap),
			W:       r.CellWidth,
			H:       r.CellHeight,
			Fill:    palette.Fill(result.Winner),
			Tooltip: gridTooltip(result),
		})
	}
	for _, code := range ds.Codes() {
		if !placed[code] {
			scene.Misses = append(scene.Misses, code)
		}
	}
	return scene
}

func gridTooltip(r models.StateResult) []string {
	lines := []string{
		r.Code,
		"Winner: " + string(r.Winner),
		fmt.Sprintf("Electoral votes: %d", r.ElectoralVotes),
	}
	for _, e := range r.Breakdown {
		lines = append(lines, e.Label+": "+percent(e.Percent))
	}
	return lines
}
