package choropleth

import (
	"fmt"
	"html"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rewired-gh/electionmap/internal/models"
)

// Shape is one drawn state: a projected boundary (Path) or a grid tile (X, Y, W, H).
type Shape struct {
	ID      string   `json:"id"`
	Code    string   `json:"code,omitempty"`
	Name    string   `json:"name"`
	Path    string   `json:"path,omitempty"`
	X       float64  `json:"x,omitempty"`
	Y       float64  `json:"y,omitempty"`
	W       float64  `json:"w,omitempty"`
	H       float64  `json:"h,omitempty"`
	Fill    string   `json:"fill"`
	NoData  bool     `json:"no_data,omitempty"`
	Tooltip []string `json:"tooltip"`
}

// Scene is a fully drawn choropleth. Scenes are never mutated after Draw returns;
// a redraw builds a new one.
type Scene struct {
	Kind   string            `json:"kind"`
	Width  float64           `json:"width"`
	Height float64           `json:"height"`
	Shapes []Shape           `json:"shapes"`
	Totals models.VoteTotals `json:"totals"`
	// Misses lists states present on only one side of the data/geometry join.
	Misses []string `json:"misses,omitempty"`
}

// Shape finds a shape by id.
func (s *Scene) Shape(id string) (Shape, bool) {
	if s == nil {
		return Shape{}, false
	}
	for _, sh := range s.Shapes {
		if sh.ID == id {
			return sh, true
		}
	}
	return Shape{}, false
}

// WriteSVG writes the scene as an SVG document. Every shape carries its tooltip both as
// a data-tooltip attribute (newline separated) and as a <title> child.
func (s *Scene) WriteSVG(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" class="choropleth %s" viewBox="0 0 %s %s" width="100%%" preserveAspectRatio="xMidYMid meet" font-family="sans-serif">`+"\n",
		s.Kind, num(s.Width), num(s.Height))
	for _, sh := range s.Shapes {
		tip := html.EscapeString(strings.Join(sh.Tooltip, "\n"))
		nodata := ""
		if sh.NoData {
			nodata = ` data-nodata="true"`
		}
		if sh.Path != "" {
			fmt.Fprintf(&b, `<path id="%s" d="%s" fill="%s" stroke="#ffffff" stroke-width="0.2"%s data-tooltip="%s"><title>%s</title></path>`+"\n",
				html.EscapeString(sh.ID), sh.Path, sh.Fill, nodata, tip, tip)
			continue
		}
		fmt.Fprintf(&b, `<g id="%s" data-tooltip="%s"%s><title>%s</title>`, html.EscapeString(sh.ID), tip, nodata, tip)
		fmt.Fprintf(&b, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s" stroke="rgba(255,255,255,0.2)"/>`,
			num(sh.X), num(sh.Y), num(sh.W), num(sh.H), sh.Fill)
		fmt.Fprintf(&b, `<text x="%s" y="%s" fill="#ffffff" font-size="12" font-weight="bold" text-anchor="middle" dominant-baseline="central">%s</text></g>`+"\n",
			num(sh.X+sh.W/2), num(sh.Y+sh.H/2), html.EscapeString(sh.Code))
	}
	b.WriteString("</svg>\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
