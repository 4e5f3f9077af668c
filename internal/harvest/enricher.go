package harvest

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/dataset"
	"github.com/rcong315/toptracks/internal/spotify"
)

// Enricher turns harvested playlist items into rows carrying genre tags and
// the audio feature vector. Artist genres are cached for the Enricher's
// lifetime, so one Enricher per run keeps artist lookups to one per artist.
type Enricher struct {
	catalog Catalog

	// RefreshTracks re-reads each track from the catalog instead of using
	// the copy embedded in the playlist listing.
	RefreshTracks bool

	genres map[string][]string
}

func NewEnricher(catalog Catalog) *Enricher {
	return &Enricher{
		catalog: catalog,
		genres:  make(map[string][]string),
	}
}

// Enrich emits exactly one row per item with a non-nil track. Items whose
// fields cannot be read become placeholder rows. The only error returned
// is context cancellation.
func (e *Enricher) Enrich(ctx context.Context, items []spotify.PlaylistItem) ([]dataset.Row, error) {
	rows := make([]dataset.Row, 0, len(items))
	skipped := 0

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if item.Track == nil {
			skipped++
			continue
		}

		row, err := e.extract(ctx, item.Track)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("Substituting placeholder row",
				zap.Error(err),
				zap.Any("item", item))
			rows = append(rows, dataset.PlaceholderRow())
			continue
		}
		rows = append(rows, row)
	}

	if err := e.attachFeatures(ctx, rows); err != nil {
		return nil, err
	}

	logger.Debug("Enriched playlist items",
		zap.Int("items", len(items)),
		zap.Int("rows", len(rows)),
		zap.Int("skipped", skipped))
	return rows, nil
}

func (e *Enricher) extract(ctx context.Context, track *spotify.Track) (dataset.Row, error) {
	if e.RefreshTracks && track.ID != "" {
		fresh, err := e.catalog.Track(ctx, track.ID)
		if err != nil {
			return dataset.Row{}, &EnrichmentError{TrackID: track.ID, Field: "track", Err: err}
		}
		track = fresh
	}

	if track.ID == "" {
		return dataset.Row{}, &EnrichmentError{Field: "track_id", Err: errors.New("empty track id")}
	}
	if len(track.Artists) == 0 {
		return dataset.Row{}, &EnrichmentError{TrackID: track.ID, Field: "artist", Err: errors.New("no credited artist")}
	}
	artist := track.Artists[0]
	if artist.ID == "" {
		return dataset.Row{}, &EnrichmentError{TrackID: track.ID, Field: "artist_id", Err: errors.New("empty artist id")}
	}

	genres, err := e.artistGenres(ctx, artist.ID)
	if err != nil {
		return dataset.Row{}, &EnrichmentError{TrackID: track.ID, Field: "genre", Err: err}
	}

	return dataset.Row{
		Artist:     artist.Name,
		ArtistID:   artist.ID,
		Album:      track.Album.Name,
		AlbumID:    track.Album.ID,
		TrackName:  track.Name,
		TrackID:    track.ID,
		Genres:     genres,
		Popularity: track.Popularity,
		Explicit:   track.Explicit,
		Features:   dataset.Features{},
	}, nil
}

func (e *Enricher) artistGenres(ctx context.Context, artistID string) ([]string, error) {
	if g, ok := e.genres[artistID]; ok {
		return g, nil
	}
	a, err := e.catalog.Artist(ctx, artistID)
	if err != nil {
		return nil, err
	}
	g := dedupe(a.Genres)
	e.genres[artistID] = g
	return g, nil
}

func dedupe(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// attachFeatures looks vectors up in batches. A failed batch leaves those
// rows with the missing marker and does not affect other batches.
func (e *Enricher) attachFeatures(ctx context.Context, rows []dataset.Row) error {
	var ids []string
	seen := make(map[string]bool)
	for _, r := range rows {
		if r.Placeholder || seen[r.TrackID] {
			continue
		}
		seen[r.TrackID] = true
		ids = append(ids, r.TrackID)
	}

	vectors := make(map[string]*spotify.AudioFeatures, len(ids))
	for start := 0; start < len(ids); start += spotify.MaxAudioFeaturesBatch {
		end := min(start+spotify.MaxAudioFeaturesBatch, len(ids))
		batch, err := e.catalog.AudioFeatures(ctx, ids[start:end]...)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("Audio feature lookup failed, marking batch missing",
				zap.Strings("trackIds", ids[start:end]),
				zap.Error(err))
			continue
		}
		for id, v := range batch {
			vectors[id] = v
		}
	}

	for i := range rows {
		if rows[i].Placeholder {
			continue
		}
		v, ok := vectors[rows[i].TrackID]
		if !ok || v == nil {
			logger.Info("No audio features for track", zap.String("trackId", rows[i].TrackID))
			continue
		}
		assignFeatures(rows[i].Features, v)
	}
	return nil
}

// assignFeatures sets each feature on its own; a bad value only drops
// that one feature.
func assignFeatures(dst dataset.Features, v *spotify.AudioFeatures) {
	for _, name := range dataset.FeatureColumns {
		value, err := featureValue(v, name)
		if err == nil && !dst.Set(name, value) {
			err = errors.New("non-finite value")
		}
		if err != nil {
			logger.Warn("Dropping audio feature",
				zap.String("trackId", v.ID),
				zap.String("feature", name),
				zap.Any("features", v),
				zap.Error(err))
		}
	}
}

func featureValue(v *spotify.AudioFeatures, name string) (float64, error) {
	switch name {
	case dataset.FeatureKey:
		return v.Key, nil
	case dataset.FeatureTempo:
		return v.Tempo, nil
	case dataset.FeatureTimeSignature:
		return v.TimeSignature, nil
	case dataset.FeatureValence:
		return v.Valence, nil
	case dataset.FeatureLiveness:
		return v.Liveness, nil
	case dataset.FeatureEnergy:
		return v.Energy, nil
	case dataset.FeatureDanceability:
		return v.Danceability, nil
	case dataset.FeatureLoudness:
		return v.Loudness, nil
	case dataset.FeatureSpeechiness:
		return v.Speechiness, nil
	case dataset.FeatureAcousticness:
		return v.Acousticness, nil
	case dataset.FeatureInstrumentalness:
		return v.Instrumentalness, nil
	case dataset.FeatureMode:
		return v.Mode, nil
	case dataset.FeatureDurationMS:
		return v.DurationMS, nil
	}
	return math.NaN(), errors.New("unknown feature")
}
