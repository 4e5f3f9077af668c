package spotify

import (
	"context"

	spotifyapi "github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
)

// FeaturedPlaylists returns one page of the featured playlists for a
// country. Pass an empty cursor for the first page.
func (c *Client) FeaturedPlaylists(ctx context.Context, country, cursor string) (*Page[PlaylistSummary], error) {
	opts, err := pageOptions(cursor)
	if err != nil {
		return nil, err
	}
	opts = append(opts, spotifyapi.Country(country))

	page, err := call(ctx, c, "featured_playlists", func(ctx context.Context) (*spotifyapi.SimplePlaylistPage, error) {
		_, page, err := c.api.FeaturedPlaylists(ctx, opts...)
		return page, err
	})
	if err != nil {
		return nil, err
	}
	if page == nil {
		return &Page[PlaylistSummary]{}, nil
	}

	items := make([]PlaylistSummary, 0, len(page.Playlists))
	for _, p := range page.Playlists {
		items = append(items, PlaylistSummary{ID: string(p.ID), Name: p.Name})
	}
	logger.Debug("Fetched featured playlists page",
		zap.String("countryCode", country),
		zap.String("cursor", cursor),
		zap.Int("count", len(items)))

	return &Page[PlaylistSummary]{
		Items: items,
		Next:  nextCursor(page.Next, int(page.Offset), len(page.Playlists)),
	}, nil
}

// PlaylistItems returns one page of a playlist's items in playlist order.
func (c *Client) PlaylistItems(ctx context.Context, playlistID, cursor string) (*Page[PlaylistItem], error) {
	opts, err := pageOptions(cursor)
	if err != nil {
		return nil, err
	}

	page, err := call(ctx, c, "playlist_items", func(ctx context.Context) (*spotifyapi.PlaylistItemPage, error) {
		return c.api.GetPlaylistItems(ctx, spotifyapi.ID(playlistID), opts...)
	})
	if err != nil {
		return nil, err
	}
	if page == nil {
		return &Page[PlaylistItem]{}, nil
	}

	items := make([]PlaylistItem, 0, len(page.Items))
	for _, it := range page.Items {
		item := PlaylistItem{AddedAt: it.AddedAt, IsLocal: it.IsLocal}
		if it.Track.Track != nil {
			item.Track = convertTrack(it.Track.Track)
		}
		items = append(items, item)
	}

	return &Page[PlaylistItem]{
		Items: items,
		Next:  nextCursor(page.Next, int(page.Offset), len(page.Items)),
	}, nil
}
