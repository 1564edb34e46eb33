package geo

import "math"

const radians = math.Pi / 180

// Projection maps longitude/latitude in degrees to surface coordinates.
type Projection interface {
	Project(lon, lat float64) (x, y float64)
}

// conicEqualArea is an Albers conic equal-area projection with a longitude rotation,
// a projection center, and a scale/translate transform.
type conicEqualArea struct {
	n, c, r0 float64
	rotate   float64
	cx, cy   float64
	k        float64
	dx, dy   float64
}

func newConicEqualArea(rotateDeg, centerLon, centerLat, parallel0, parallel1 float64) *conicEqualArea {
	sy0 := math.Sin(parallel0 * radians)
	n := (sy0 + math.Sin(parallel1*radians)) / 2
	c := 1 + sy0*(2*n-sy0)
	p := &conicEqualArea{
		n:      n,
		c:      c,
		r0:     math.Sqrt(c) / n,
		rotate: rotateDeg * radians,
	}
	p.cx, p.cy = p.raw(centerLon*radians, centerLat*radians)
	return p
}

func (p *conicEqualArea) raw(lambda, phi float64) (float64, float64) {
	r := math.Sqrt(math.Max(0, p.c-2*p.n*math.Sin(phi))) / p.n
	return r * math.Sin(lambda*p.n), p.r0 - r*math.Cos(lambda*p.n)
}

func (p *conicEqualArea) setTransform(k, tx, ty float64) {
	p.k = k
	p.dx = tx - k*p.cx
	p.dy = ty + k*p.cy
}

func (p *conicEqualArea) Project(lon, lat float64) (float64, float64) {
	lambda := lon*radians + p.rotate
	if lambda > math.Pi {
		lambda -= 2 * math.Pi
	} else if lambda < -math.Pi {
		lambda += 2 * math.Pi
	}
	x, y := p.raw(lambda, lat*radians)
	return p.dx + p.k*x, p.dy - p.k*y
}

// AlbersUSA is a composite projection: the lower 48 states on one conic, with Alaska
// (scaled to 0.35) and Hawaii drawn as insets below the south-west corner.
type AlbersUSA struct {
	lower48 *conicEqualArea
	alaska  *conicEqualArea
	hawaii  *conicEqualArea
	scale   float64
	tx, ty  float64
}

// ScaleFactor relates projection scale to the drawing width.
const ScaleFactor = 1.3

// NewAlbersUSA returns the composite projection at its reference scale.
func NewAlbersUSA() *AlbersUSA {
	a := &AlbersUSA{
		lower48: newConicEqualArea(96, -0.6, 38.7, 29.5, 45.5),
		alaska:  newConicEqualArea(154, -2, 58.5, 55, 65),
		hawaii:  newConicEqualArea(157, -3, 19.9, 8, 18),
	}
	a.SetTransform(1070, 480, 250)
	return a
}

// SetTransform sets the scale and the surface position of the lower-48 center.
func (a *AlbersUSA) SetTransform(k, tx, ty float64) {
	a.scale, a.tx, a.ty = k, tx, ty
	a.lower48.setTransform(k, tx, ty)
	a.alaska.setTransform(k*0.35, tx-0.307*k, ty+0.201*k)
	a.hawaii.setTransform(k, tx-0.205*k, ty+0.212*k)
}

// Fit sizes the projection to a width x height surface, centered.
func (a *AlbersUSA) Fit(width, height float64) {
	a.SetTransform(width*ScaleFactor, width/2, height/2)
}

// Scale returns the current scale.
func (a *AlbersUSA) Scale() float64 {
	return a.scale
}

// Project routes a point to the lower-48, Alaska, or Hawaii conic by location.
func (a *AlbersUSA) Project(lon, lat float64) (float64, float64) {
	return a.pick(lon, lat).Project(lon, lat)
}

func (a *AlbersUSA) pick(lon, lat float64) *conicEqualArea {
	switch {
	case lat > 50 && (lon < -129 || lon > 170):
		return a.alaska
	case lat > 15 && lat < 24 && lon > -162 && lon < -153:
		return a.hawaii
	}
	return a.lower48
}

// ringProjection returns the projection for a whole ring so inset rings are never split
// across conics.
func (a *AlbersUSA) ringProjection(first [2]float64) Projection {
	return a.pick(first[0], first[1])
}
