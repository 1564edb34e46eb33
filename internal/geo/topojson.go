// Package geo decodes state boundary documents and projects them onto a drawing surface.
package geo

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rewired-gh/electionmap/internal/models"
)

const opDecode = "decode geometry"

// DefaultObject is the topology object holding state boundaries in us-atlas documents.
const DefaultObject = "states"

type transform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

type topoGeometry struct {
	Type       string          `json:"type"`
	ID         json.RawMessage `json:"id"`
	Properties map[string]any  `json:"properties"`
	Arcs       json.RawMessage `json:"arcs"`
	Geometries []topoGeometry  `json:"geometries"`
}

type geoJSONFeature struct {
	ID         json.RawMessage `json:"id"`
	Properties map[string]any  `json:"properties"`
	Geometry   *struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
}

// Decode reads a TopoJSON topology (quantized or not) or a GeoJSON FeatureCollection and
// returns one feature per polygonal geometry. object names the topology object to read;
// it is ignored for GeoJSON. Features without geometry are skipped.
func Decode(doc []byte, object string) ([]models.GeoFeature, error) {
	if !gjson.ValidBytes(doc) {
		return nil, models.NewRenderError(opDecode, "geometry document is not valid JSON", nil)
	}
	switch typ := gjson.GetBytes(doc, "type").String(); typ {
	case "Topology":
		return decodeTopology(doc, object)
	case "FeatureCollection":
		return decodeFeatureCollection(doc)
	default:
		return nil, models.NewRenderError(opDecode, fmt.Sprintf("unsupported geometry document type %q", typ), nil)
	}
}

func decodeTopology(doc []byte, object string) ([]models.GeoFeature, error) {
	if object == "" {
		object = DefaultObject
	}
	obj := gjson.GetBytes(doc, "objects."+gjsonEscape(object))
	if !obj.Exists() {
		var names []string
		gjson.GetBytes(doc, "objects").ForEach(func(k, _ gjson.Result) bool {
			names = append(names, k.String())
			return true
		})
		return nil, models.NewRenderError(opDecode,
			fmt.Sprintf("topology has no object %q (have %s)", object, strings.Join(names, ", ")), nil)
	}

	var arcs [][][]float64
	if raw := gjson.GetBytes(doc, "arcs").Raw; raw != "" {
		if err := json.Unmarshal([]byte(raw), &arcs); err != nil {
			return nil, models.NewRenderError(opDecode, "invalid arcs", err)
		}
	}
	var tf *transform
	if raw := gjson.GetBytes(doc, "transform").Raw; raw != "" {
		tf = &transform{}
		if err := json.Unmarshal([]byte(raw), tf); err != nil {
			return nil, models.NewRenderError(opDecode, "invalid transform", err)
		}
	}
	decoded := decodeArcs(arcs, tf)

	var root topoGeometry
	if err := json.Unmarshal([]byte(obj.Raw), &root); err != nil {
		return nil, models.NewRenderError(opDecode, "invalid topology object", err)
	}

	var features []models.GeoFeature
	var walk func(g topoGeometry) error
	walk = func(g topoGeometry) error {
		switch g.Type {
		case "GeometryCollection":
			for _, child := range g.Geometries {
				if err := walk(child); err != nil {
					return err
				}
			}
			return nil
		case "", "null":
			return nil
		}
		geom, err := topoToGeometry(g, decoded)
		if err != nil {
			return models.NewRenderError(opDecode, fmt.Sprintf("feature %s", featureName(g.Properties, g.ID)), err)
		}
		features = append(features, models.GeoFeature{
			ID:       rawID(g.ID),
			Name:     featureName(g.Properties, nil),
			Geometry: geom,
		})
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return features, nil
}

// decodeArcs undoes delta encoding and quantization when a transform is present.
func decodeArcs(arcs [][][]float64, tf *transform) [][]models.Point {
	out := make([][]models.Point, len(arcs))
	for i, arc := range arcs {
		pts := make([]models.Point, 0, len(arc))
		var x, y float64
		for _, p := range arc {
			if len(p) < 2 {
				continue
			}
			if tf != nil {
				x += p[0]
				y += p[1]
				pts = append(pts, models.Point{x*tf.Scale[0] + tf.Translate[0], y*tf.Scale[1] + tf.Translate[1]})
			} else {
				pts = append(pts, models.Point{p[0], p[1]})
			}
		}
		out[i] = pts
	}
	return out
}

func topoToGeometry(g topoGeometry, arcs [][]models.Point) (models.Geometry, error) {
	geom := models.Geometry{Type: g.Type}
	switch g.Type {
	case "Polygon":
		var rings [][]int
		if err := json.Unmarshal(g.Arcs, &rings); err != nil {
			return geom, fmt.Errorf("invalid polygon arcs: %w", err)
		}
		poly, err := stitchPolygon(rings, arcs)
		if err != nil {
			return geom, err
		}
		geom.Polygons = []models.Polygon{poly}
	case "MultiPolygon":
		var polys [][][]int
		if err := json.Unmarshal(g.Arcs, &polys); err != nil {
			return geom, fmt.Errorf("invalid multipolygon arcs: %w", err)
		}
		for _, rings := range polys {
			poly, err := stitchPolygon(rings, arcs)
			if err != nil {
				return geom, err
			}
			geom.Polygons = append(geom.Polygons, poly)
		}
	default:
		return geom, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	return geom, nil
}

// stitchPolygon joins arcs into rings. A negative index ~i means arc i reversed, and
// consecutive arcs share their joining point.
func stitchPolygon(rings [][]int, arcs [][]models.Point) (models.Polygon, error) {
	poly := make(models.Polygon, 0, len(rings))
	for _, ring := range rings {
		var pts models.Ring
		for _, idx := range ring {
			i := idx
			reversed := idx < 0
			if reversed {
				i = ^idx
			}
			if i < 0 || i >= len(arcs) {
				return nil, fmt.Errorf("arc index %d out of range", idx)
			}
			arc := arcs[i]
			if len(pts) > 0 {
				pts = pts[:len(pts)-1]
			}
			if reversed {
				for j := len(arc) - 1; j >= 0; j-- {
					pts = append(pts, arc[j])
				}
			} else {
				pts = append(pts, arc...)
			}
		}
		poly = append(poly, pts)
	}
	return poly, nil
}

func decodeFeatureCollection(doc []byte) ([]models.GeoFeature, error) {
	var features []models.GeoFeature
	var decodeErr error
	gjson.GetBytes(doc, "features").ForEach(func(_, v gjson.Result) bool {
		var f geoJSONFeature
		if err := json.Unmarshal([]byte(v.Raw), &f); err != nil {
			decodeErr = models.NewRenderError(opDecode, "invalid feature", err)
			return false
		}
		if f.Geometry == nil {
			return true
		}
		geom := models.Geometry{Type: f.Geometry.Type}
		switch f.Geometry.Type {
		case "Polygon":
			var poly models.Polygon
			if err := json.Unmarshal(f.Geometry.Coordinates, &poly); err != nil {
				decodeErr = models.NewRenderError(opDecode, "invalid polygon coordinates", err)
				return false
			}
			geom.Polygons = []models.Polygon{poly}
		case "MultiPolygon":
			if err := json.Unmarshal(f.Geometry.Coordinates, &geom.Polygons); err != nil {
				decodeErr = models.NewRenderError(opDecode, "invalid multipolygon coordinates", err)
				return false
			}
		default:
			decodeErr = models.NewRenderError(opDecode,
				fmt.Sprintf("feature %s: unsupported geometry type %q", featureName(f.Properties, f.ID), f.Geometry.Type), nil)
			return false
		}
		features = append(features, models.GeoFeature{
			ID:       rawID(f.ID),
			Name:     featureName(f.Properties, nil),
			Geometry: geom,
		})
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return features, nil
}

func featureName(props map[string]any, id json.RawMessage) string {
	if name, ok := props["name"].(string); ok {
		return name
	}
	if id != nil {
		return rawID(id)
	}
	return ""
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func gjsonEscape(s string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(s)
}
