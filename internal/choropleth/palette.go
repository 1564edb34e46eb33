// Package choropleth colors states by winning candidate, either on projected state
// boundaries or on a fixed tile grid, and tracks the hover tooltip for either view.
package choropleth

import "github.com/rewired-gh/electionmap/internal/models"

// Palette maps winners to fills. NoData fills shapes without a dataset entry.
type Palette struct {
	Harris string
	Trump  string
	NoData string
}

// DefaultPalette uses the campaign colors and a neutral gray for missing states.
var DefaultPalette = Palette{
	Harris: "#2563eb",
	Trump:  "#dc2626",
	NoData: "#9ca3af",
}

// Fill returns the fill for a winner.
func (p Palette) Fill(c models.Candidate) string {
	switch c {
	case models.Harris:
		return p.Harris
	case models.Trump:
		return p.Trump
	}
	return p.NoData
}

func (p Palette) orDefault() Palette {
	if p == (Palette{}) {
		return DefaultPalette
	}
	return p
}
