package spotify

import (
	"context"
	"fmt"

	spotifyapi "github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
)

func convertTrack(t *spotifyapi.FullTrack) *Track {
	track := &Track{
		ID:         string(t.ID),
		Name:       t.Name,
		Album:      AlbumRef{ID: string(t.Album.ID), Name: t.Album.Name},
		Popularity: int(t.Popularity),
		Explicit:   t.Explicit,
	}
	for _, a := range t.Artists {
		track.Artists = append(track.Artists, ArtistRef{ID: string(a.ID), Name: a.Name})
	}
	return track
}

// Track looks up a single track.
func (c *Client) Track(ctx context.Context, id string) (*Track, error) {
	t, err := call(ctx, c, "track", func(ctx context.Context) (*spotifyapi.FullTrack, error) {
		return c.api.GetTrack(ctx, spotifyapi.ID(id))
	})
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("track %s: %w", id, ErrNotFound)
	}
	return convertTrack(t), nil
}

// AudioFeatures looks up feature vectors for the given track ids, at most
// MaxAudioFeaturesBatch per upstream call. Ids the upstream has no vector
// for are absent from the result.
func (c *Client) AudioFeatures(ctx context.Context, ids ...string) (map[string]*AudioFeatures, error) {
	result := make(map[string]*AudioFeatures, len(ids))

	for start := 0; start < len(ids); start += MaxAudioFeaturesBatch {
		end := min(start+MaxAudioFeaturesBatch, len(ids))
		batch := make([]spotifyapi.ID, 0, end-start)
		for _, id := range ids[start:end] {
			batch = append(batch, spotifyapi.ID(id))
		}

		features, err := call(ctx, c, "audio_features", func(ctx context.Context) ([]*spotifyapi.AudioFeatures, error) {
			return c.api.GetAudioFeatures(ctx, batch...)
		})
		if err != nil {
			return nil, fmt.Errorf("fetching audio features (batch %d-%d): %w", start+1, end, err)
		}

		for _, f := range features {
			if f == nil {
				continue
			}
			result[string(f.ID)] = &AudioFeatures{
				ID:               string(f.ID),
				Acousticness:     float64(f.Acousticness),
				Danceability:     float64(f.Danceability),
				DurationMS:       float64(f.Duration),
				Energy:           float64(f.Energy),
				Instrumentalness: float64(f.Instrumentalness),
				Key:              float64(f.Key),
				Liveness:         float64(f.Liveness),
				Loudness:         float64(f.Loudness),
				Mode:             float64(f.Mode),
				Speechiness:      float64(f.Speechiness),
				Tempo:            float64(f.Tempo),
				TimeSignature:    float64(f.TimeSignature),
				Valence:          float64(f.Valence),
			}
		}
		logger.Debug("Fetched audio features batch",
			zap.Int("requested", len(batch)),
			zap.Int("returned", len(features)))
	}

	return result, nil
}
