package main

import (
	"fmt"

	"github.com/rewired-gh/electionmap/internal/choropleth"
	"github.com/rewired-gh/electionmap/internal/config"
	"github.com/rewired-gh/electionmap/internal/ingest"
	"github.com/rewired-gh/electionmap/internal/panel"
	"github.com/rewired-gh/electionmap/internal/probability"
	"github.com/rewired-gh/electionmap/internal/source"
)

// panelOptions maps configuration onto the options shared by every panel.
func panelOptions(cfg *config.Config, fetcher panel.Fetcher) (panel.Options, error) {
	policy, err := ingest.ParsePolicy(cfg.Ingest.RowPolicy)
	if err != nil {
		return panel.Options{}, err
	}

	geoRenderer := choropleth.NewGeoRenderer()
	geoRenderer.Aspect = cfg.Render.Aspect

	gridRenderer := choropleth.NewGridRenderer()
	gridRenderer.CellWidth = cfg.Render.GridCellWidth
	gridRenderer.CellHeight = cfg.Render.GridCellHeight
	gridRenderer.Gap = cfg.Render.GridGap

	return panel.Options{
		Fetcher:      fetcher,
		Geometry:     panel.NewGeometryCache(fetcher, cfg.Sources.GeometryURL, cfg.Sources.GeometryObject),
		Policy:       policy,
		Width:        cfg.Render.Width,
		GeoRenderer:  geoRenderer,
		GridRenderer: gridRenderer,
		CurveDomain: probability.Domain{
			Min:  cfg.Render.Curve.Min,
			Max:  cfg.Render.Curve.Max,
			Step: cfg.Render.Curve.Step,
		},
		Normalization:  cfg.Render.Curve.Normalization,
		ResizeDebounce: cfg.Render.ResizeDebounce,
	}, nil
}

func newFetcher(cfg *config.Config) *source.Client {
	return source.NewClient(cfg.Fetch.Timeout, cfg.Fetch.MaxRetries, cfg.Fetch.RetryDelayBase)
}

// buildRegistry creates the configured panels in display order.
func buildRegistry(cfg *config.Config, opts panel.Options) (*panel.Registry, error) {
	panels := make([]*panel.Panel, 0, len(cfg.Panels))
	for _, pc := range cfg.Panels {
		kind, err := panel.ParseKind(pc.Kind)
		if err != nil {
			return nil, fmt.Errorf("panel %s: %w", pc.ID, err)
		}
		panels = append(panels, panel.New(pc.ID, kind, pc.Source, pc.Title, opts))
	}
	return panel.NewRegistry(panels...)
}
