// Package harvest turns a region code into an enriched, normalized table of
// the tracks on that region's featured playlist.
package harvest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/spotify"
)

// Catalog is the subset of the catalog client the pipeline depends on.
type Catalog interface {
	FeaturedPlaylists(ctx context.Context, country, cursor string) (*spotify.Page[spotify.PlaylistSummary], error)
	PlaylistItems(ctx context.Context, playlistID, cursor string) (*spotify.Page[spotify.PlaylistItem], error)
	Artist(ctx context.Context, id string) (*spotify.Artist, error)
	Track(ctx context.Context, id string) (*spotify.Track, error)
	AudioFeatures(ctx context.Context, ids ...string) (map[string]*spotify.AudioFeatures, error)
}

var logger = zap.NewNop()

// InitializeLogger sets the logger for the harvest package.
func InitializeLogger(l *zap.Logger) {
	logger = l
}

// drain follows a cursor-paginated listing until it reports exhaustion.
func drain[T any](ctx context.Context, fetch func(ctx context.Context, cursor string) (*spotify.Page[T], error)) ([]T, error) {
	var items []T
	cursor := ""
	for {
		page, err := fetch(ctx, cursor)
		if err != nil {
			return items, err
		}
		items = append(items, page.Items...)
		if page.Next == "" {
			return items, nil
		}
		if page.Next == cursor {
			return items, fmt.Errorf("pagination cursor %q did not advance", cursor)
		}
		cursor = page.Next
	}
}
