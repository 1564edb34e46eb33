package choropleth

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/rewired-gh/electionmap/internal/geo"
	"github.com/rewired-gh/electionmap/internal/identity"
	"github.com/rewired-gh/electionmap/internal/models"
)

const opGeo = "render geo"

// GoldenAspect is the height to width ratio of the geographic map.
const GoldenAspect = 0.618

// GeoRenderer draws state boundaries projected with Albers USA and filled by winner.
type GeoRenderer struct {
	Identity *identity.Resolver
	Palette  Palette
	// Aspect overrides GoldenAspect when positive.
	Aspect float64
}

// NewGeoRenderer returns a renderer using the 50-state table and the default palette.
func NewGeoRenderer() *GeoRenderer {
	return &GeoRenderer{Identity: identity.MustNew(identity.States), Palette: DefaultPalette}
}

// Height returns the drawing height for width.
func (r *GeoRenderer) Height(width float64) float64 {
	aspect := r.Aspect
	if aspect <= 0 {
		aspect = GoldenAspect
	}
	return width * aspect
}

// Draw projects every feature onto a width-wide surface and fills it by the dataset
// entry its name resolves to. Features with no entry get the no-data fill.
func (r *GeoRenderer) Draw(ds *models.ElectionDataset, features []models.GeoFeature, width float64) (*Scene, error) {
	if !(width > 0) {
		return nil, models.NewRenderError(opGeo, fmt.Sprintf("width must be positive, got %v", width), nil)
	}
	if len(features) == 0 {
		return nil, models.NewRenderError(opGeo, "no geometry features", nil)
	}
	palette := r.Palette.orDefault()
	height := r.Height(width)
	proj := geo.NewAlbersUSA()
	proj.Fit(width, height)

	scene := &Scene{
		Kind:   "geo",
		Width:  width,
		Height: height,
		Shapes: make([]Shape, 0, len(features)),
		Totals: ds.Totals(),
	}
	drawn := make(map[string]bool, len(features))
	for i, f := range features {
		d, _, err := geo.Path(proj, f.Geometry)
		if err != nil {
			return nil, models.NewRenderError(opGeo, fmt.Sprintf("feature %q", f.Name), err)
		}
		shape := Shape{
			ID:   "f" + strconv.Itoa(i),
			Name: f.Name,
			Path: d,
		}
		var result models.StateResult
		var found bool
		if r.Identity != nil {
			if code, ok := r.Identity.NameToCode(f.Name); ok {
				shape.Code = code
				shape.ID = code
				result, found = ds.Get(code)
			}
		}
		if found {
			shape.Fill = palette.Fill(result.Winner)
			drawn[shape.Code] = true
		} else {
			shape.Fill = palette.NoData
			shape.NoData = true
			scene.Misses = append(scene.Misses, f.Name)
		}
		shape.Tooltip = geoTooltip(f.Name, result, found)
		scene.Shapes = append(scene.Shapes, shape)
	}
	for _, code := range ds.Codes() {
		if !drawn[code] {
			scene.Misses = append(scene.Misses, code)
		}
	}
	sort.Strings(scene.Misses)
	return scene, nil
}

func geoTooltip(name string, r models.StateResult, found bool) []string {
	if !found {
		return []string{name, "Electoral votes: N/A"}
	}
	lines := []string{name, "Electoral votes: " + strconv.Itoa(r.ElectoralVotes)}
	for _, e := range r.Breakdown {
		lines = append(lines, e.Label+": "+percent(e.Percent))
	}
	return lines
}
