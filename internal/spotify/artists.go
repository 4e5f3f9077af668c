package spotify

import (
	"context"
	"fmt"

	spotifyapi "github.com/zmb3/spotify/v2"
)

// Artist looks up an artist, including its genre tags.
func (c *Client) Artist(ctx context.Context, id string) (*Artist, error) {
	a, err := call(ctx, c, "artist", func(ctx context.Context) (*spotifyapi.FullArtist, error) {
		return c.api.GetArtist(ctx, spotifyapi.ID(id))
	})
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("artist %s: %w", id, ErrNotFound)
	}
	return &Artist{
		ID:     string(a.ID),
		Name:   a.Name,
		Genres: append([]string(nil), a.Genres...),
	}, nil
}
