package panel

import (
	"fmt"
	"time"

	"github.com/rewired-gh/electionmap/internal/logger"
)

// Resize schedules a redraw at width. Calls within the debounce interval coalesce
// into a single redraw at the last requested width.
func (p *Panel) Resize(width float64) {
	d := p.opts.ResizeDebounce
	if d <= 0 {
		if err := p.ResizeNow(width); err != nil {
			logger.Error("Panel %s resize to %v failed: %v", p.ID, width, err)
		}
		return
	}

	p.resizeMu.Lock()
	defer p.resizeMu.Unlock()
	p.pendingWidth = width
	if p.resizeTimer == nil {
		p.resizeTimer = time.AfterFunc(d, p.flushResize)
		return
	}
	p.resizeTimer.Reset(d)
}

func (p *Panel) flushResize() {
	p.resizeMu.Lock()
	width := p.pendingWidth
	p.resizeMu.Unlock()
	if err := p.ResizeNow(width); err != nil {
		logger.Error("Panel %s resize to %v failed: %v", p.ID, width, err)
	}
}

// ResizeNow redraws the current data at width immediately. Redrawing replaces the whole
// view, so repeating a width yields the same drawing. With no data loaded only the width
// is recorded for the next load.
func (p *Panel) ResizeNow(width float64) error {
	if !(width > 0) {
		return fmt.Errorf("width must be positive, got %v", width)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.width = width
	if p.data == nil {
		return nil
	}
	v, err := p.draw(p.data, width)
	if err != nil {
		p.data, p.view = nil, view{}
		p.err, p.errMsg = err, p.failureMessage(err)
		return err
	}
	p.view = v
	return nil
}

// Width returns the current drawing width.
func (p *Panel) Width() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.width
}
