package panel

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Registry holds the configured panels in display order.
type Registry struct {
	panels []*Panel
	byID   map[string]*Panel
}

// NewRegistry indexes panels by id, rejecting duplicates.
func NewRegistry(panels ...*Panel) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Panel, len(panels))}
	for _, p := range panels {
		if _, dup := r.byID[p.ID]; dup {
			return nil, errors.New("duplicate panel id " + p.ID)
		}
		r.byID[p.ID] = p
		r.panels = append(r.panels, p)
	}
	return r, nil
}

// Get returns the panel with id.
func (r *Registry) Get(id string) (*Panel, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// All returns the panels in display order.
func (r *Registry) All() []*Panel {
	return append([]*Panel(nil), r.panels...)
}

// LoadAll loads every panel concurrently. Panel failures become panel error states
// and are not returned; only context cancellation is.
func (r *Registry) LoadAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range r.panels {
		g.Go(func() error {
			_ = p.Load(gctx)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}
