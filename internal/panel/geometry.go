package panel

import (
	"context"
	"sync"

	"github.com/rewired-gh/electionmap/internal/geo"
	"github.com/rewired-gh/electionmap/internal/logger"
	"github.com/rewired-gh/electionmap/internal/models"
)

// GeometryCache fetches and decodes state boundaries once and shares them between
// geo panels. A failed fetch is not cached; the next Get tries again.
type GeometryCache struct {
	fetcher Fetcher
	source  string
	object  string

	mu       sync.Mutex
	features []models.GeoFeature
}

// NewGeometryCache returns a cache reading object from the document at source.
func NewGeometryCache(fetcher Fetcher, source, object string) *GeometryCache {
	return &GeometryCache{fetcher: fetcher, source: source, object: object}
}

// Get returns the decoded features, fetching them on first use.
func (c *GeometryCache) Get(ctx context.Context) ([]models.GeoFeature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.features != nil {
		return c.features, nil
	}
	doc, err := c.fetcher.Fetch(ctx, c.source)
	if err != nil {
		return nil, err
	}
	features, err := geo.Decode(doc, c.object)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded %d geometry features from %s", len(features), c.source)
	c.features = features
	return features, nil
}
