package geo

import (
	"errors"
	"math"
	"strconv"

	"github.com/rewired-gh/electionmap/internal/models"
)

type ringProjector interface {
	ringProjection(first [2]float64) Projection
}

// Bounds is an axis-aligned box on the drawing surface.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Path renders geometry as SVG path data, one closed subpath per ring, and returns the
// bounds of the projected points.
func Path(p Projection, g models.Geometry) (string, Bounds, error) {
	b := Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	buf := make([]byte, 0, 256)

	for _, poly := range g.Polygons {
		for _, ring := range poly {
			if len(ring) < 3 {
				continue
			}
			proj := p
			if rp, ok := p.(ringProjector); ok {
				proj = rp.ringProjection(ring[0])
			}
			for i, pt := range ring {
				x, y := proj.Project(pt[0], pt[1])
				if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
					return "", Bounds{}, errors.New("projection produced a non-finite coordinate")
				}
				if i == 0 {
					buf = append(buf, 'M')
				} else {
					buf = append(buf, 'L')
				}
				buf = strconv.AppendFloat(buf, x, 'f', 1, 64)
				buf = append(buf, ',')
				buf = strconv.AppendFloat(buf, y, 'f', 1, 64)
				b.MinX, b.MaxX = math.Min(b.MinX, x), math.Max(b.MaxX, x)
				b.MinY, b.MaxY = math.Min(b.MinY, y), math.Max(b.MaxY, y)
			}
			buf = append(buf, 'Z')
		}
	}
	if len(buf) == 0 {
		return "", Bounds{}, errors.New("geometry has no drawable rings")
	}
	return string(buf), b, nil
}
