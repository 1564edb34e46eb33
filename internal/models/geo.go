package models

// Point is a longitude/latitude pair in degrees.
type Point [2]float64

// Ring is a closed sequence of points.
type Ring []Point

// Polygon is an exterior ring followed by any holes.
type Polygon []Ring

// Geometry is a polygonal boundary. Single polygons are stored as a one-element slice.
type Geometry struct {
	Type     string    `json:"type"`
	Polygons []Polygon `json:"-"`
}

// Empty reports whether the geometry has no rings to draw.
func (g Geometry) Empty() bool {
	for _, p := range g.Polygons {
		for _, r := range p {
			if len(r) > 0 {
				return false
			}
		}
	}
	return true
}

// GeoFeature is a drawable region sourced from a geometry provider.
type GeoFeature struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name"`
	Geometry Geometry `json:"geometry"`
}
