package harvest

import (
	"context"

	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/region"
	"github.com/rcong315/toptracks/internal/spotify"
)

// Playlist is the featured playlist resolved for one region.
type Playlist struct {
	ID          string
	Name        string
	CountryCode string
	Country     string
}

type Resolver struct {
	catalog Catalog
}

func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve looks up the region's display name and its first featured
// playlist. Every failure is a *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, code string) (*Playlist, error) {
	name, err := region.Lookup(code)
	if err != nil {
		return nil, &ResolutionError{Code: code, Err: err}
	}

	playlists, err := drain(ctx, func(ctx context.Context, cursor string) (*spotify.Page[spotify.PlaylistSummary], error) {
		return r.catalog.FeaturedPlaylists(ctx, code, cursor)
	})
	if err != nil {
		return nil, &ResolutionError{Code: code, Err: err}
	}
	if len(playlists) == 0 {
		return nil, &ResolutionError{Code: code, Err: ErrNoFeaturedPlaylist}
	}

	first := playlists[0]
	logger.Debug("Resolved featured playlist",
		zap.String("countryCode", code),
		zap.String("playlistId", first.ID),
		zap.String("playlistName", first.Name),
		zap.Int("candidates", len(playlists)))

	return &Playlist{
		ID:          first.ID,
		Name:        first.Name,
		CountryCode: code,
		Country:     name,
	}, nil
}

// ResolveAll resolves each code in order. Failed codes are reported in the
// error map and left out of the result; they never stop the batch.
func (r *Resolver) ResolveAll(ctx context.Context, codes []string) ([]Playlist, map[string]error) {
	var resolved []Playlist
	failed := make(map[string]error)
	for _, code := range codes {
		if ctx.Err() != nil {
			failed[code] = &ResolutionError{Code: code, Err: ctx.Err()}
			continue
		}
		p, err := r.Resolve(ctx, code)
		if err != nil {
			logger.Warn("Skipping unresolvable region", zap.String("countryCode", code), zap.Error(err))
			failed[code] = err
			continue
		}
		resolved = append(resolved, *p)
	}
	return resolved, failed
}

// Probe reports whether a region currently resolves. It matches
// region.ProbeFunc.
func (r *Resolver) Probe(ctx context.Context, code string) error {
	_, err := r.Resolve(ctx, code)
	return err
}
