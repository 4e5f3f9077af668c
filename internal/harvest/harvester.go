package harvest

import (
	"context"

	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/spotify"
)

type Harvester struct {
	catalog Catalog
}

func NewHarvester(catalog Catalog) *Harvester {
	return &Harvester{catalog: catalog}
}

// Harvest returns every item of a playlist in arrival order, which is the
// playlist's own ranking. Any failure is a *HarvestError.
func (h *Harvester) Harvest(ctx context.Context, playlistID string) ([]spotify.PlaylistItem, error) {
	items, err := drain(ctx, func(ctx context.Context, cursor string) (*spotify.Page[spotify.PlaylistItem], error) {
		return h.catalog.PlaylistItems(ctx, playlistID, cursor)
	})
	if err != nil {
		return nil, &HarvestError{PlaylistID: playlistID, Err: err}
	}
	logger.Debug("Harvested playlist", zap.String("playlistId", playlistID), zap.Int("items", len(items)))
	return items, nil
}
