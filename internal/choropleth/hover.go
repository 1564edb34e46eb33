package choropleth

import "sync"

// Tooltip is the floating label next to the cursor.
type Tooltip struct {
	Visible bool     `json:"visible"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Lines   []string `json:"lines,omitempty"`
}

// Hover tracks which shape the pointer is over. The tooltip follows the live pointer
// position shifted by the offsets.
type Hover struct {
	OffsetX float64
	OffsetY float64

	mu  sync.Mutex
	tip Tooltip
}

// Enter shows the tooltip for shapeID. It reports false, leaving the tooltip hidden,
// when the scene has no such shape.
func (h *Hover) Enter(scene *Scene, shapeID string, x, y float64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	shape, ok := scene.Shape(shapeID)
	if !ok {
		h.tip = Tooltip{}
		return false
	}
	h.tip = Tooltip{
		Visible: true,
		X:       x + h.OffsetX,
		Y:       y + h.OffsetY,
		Lines:   append([]string(nil), shape.Tooltip...),
	}
	return true
}

// Move repositions a visible tooltip.
func (h *Hover) Move(x, y float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tip.Visible {
		h.tip.X, h.tip.Y = x+h.OffsetX, y+h.OffsetY
	}
}

// Leave hides the tooltip.
func (h *Hover) Leave() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tip = Tooltip{}
}

// Tooltip returns the current tooltip state.
func (h *Hover) Tooltip() Tooltip {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := h.tip
	t.Lines = append([]string(nil), h.tip.Lines...)
	return t
}
