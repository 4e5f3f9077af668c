package crawler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/dataset"
	"github.com/rcong315/toptracks/internal/harvest"
)

// Worker runs the per-region pipeline: resolve, harvest, enrich, assemble.
type Worker struct {
	resolver  *harvest.Resolver
	harvester *harvest.Harvester
	enricher  *harvest.Enricher
	metrics   *Metrics
	logger    *zap.Logger
}

func NewWorker(catalog harvest.Catalog, metrics *Metrics, logger *zap.Logger) *Worker {
	return &Worker{
		resolver:  harvest.NewResolver(catalog),
		harvester: harvest.NewHarvester(catalog),
		enricher:  harvest.NewEnricher(catalog),
		metrics:   metrics,
		logger:    logger,
	}
}

// processRegion returns the region's stamped rows. A nil result with a nil
// error means the region had nothing to contribute.
func (w *Worker) processRegion(ctx context.Context, code string) ([]dataset.Row, error) {
	start := time.Now()
	defer func() {
		w.metrics.RegionDuration.Observe(time.Since(start).Seconds())
	}()

	playlist, err := w.resolver.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	items, err := w.harvester.Harvest(ctx, playlist.ID)
	if err != nil {
		return nil, err
	}
	w.metrics.PlaylistSize.Observe(float64(len(items)))

	enriched, err := w.enricher.Enrich(ctx, items)
	if err != nil {
		return nil, err
	}

	placeholders, missing := 0, 0
	for _, r := range enriched {
		switch {
		case r.Placeholder:
			placeholders++
		case len(r.Features) == 0:
			missing++
		}
	}
	w.metrics.TracksEnriched.Add(float64(len(enriched)))
	w.metrics.PlaceholderRows.Add(float64(placeholders))
	w.metrics.MissingFeatures.Add(float64(missing))

	rows, ok := harvest.Assemble(enriched, *playlist)
	if !ok {
		w.logger.Info("Region has nothing to contribute",
			zap.String("countryCode", code),
			zap.String("playlistId", playlist.ID),
			zap.Int("items", len(items)))
		return nil, nil
	}
	harvest.StampRegion(rows, playlist.CountryCode, playlist.Country)

	w.logger.Info("Harvested region",
		zap.String("countryCode", code),
		zap.String("country", playlist.Country),
		zap.String("playlistId", playlist.ID),
		zap.String("playlistName", playlist.Name),
		zap.Int("rows", len(rows)),
		zap.Int("placeholders", placeholders),
		zap.Int("missingFeatures", missing),
		zap.Duration("duration", time.Since(start)))
	return rows, nil
}
