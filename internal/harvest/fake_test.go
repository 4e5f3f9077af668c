package harvest

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rcong315/toptracks/internal/spotify"
)

// fakeCatalog serves fixed pages; the cursor is the page index.
type fakeCatalog struct {
	featured  map[string][][]spotify.PlaylistSummary
	playlists map[string][][]spotify.PlaylistItem
	artists   map[string]*spotify.Artist
	tracks    map[string]*spotify.Track
	features  map[string]*spotify.AudioFeatures

	featuredErr  error
	itemsErr     error
	featuresErr  error
	artistCalls  map[string]int
	featureCalls int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		featured:    make(map[string][][]spotify.PlaylistSummary),
		playlists:   make(map[string][][]spotify.PlaylistItem),
		artists:     make(map[string]*spotify.Artist),
		tracks:      make(map[string]*spotify.Track),
		features:    make(map[string]*spotify.AudioFeatures),
		artistCalls: make(map[string]int),
	}
}

func page[T any](pages [][]T, cursor string) (*spotify.Page[T], error) {
	idx := 0
	if cursor != "" {
		var err error
		if idx, err = strconv.Atoi(cursor); err != nil {
			return nil, err
		}
	}
	if idx >= len(pages) {
		return &spotify.Page[T]{}, nil
	}
	p := &spotify.Page[T]{Items: pages[idx]}
	if idx+1 < len(pages) {
		p.Next = strconv.Itoa(idx + 1)
	}
	return p, nil
}

func (f *fakeCatalog) FeaturedPlaylists(_ context.Context, country, cursor string) (*spotify.Page[spotify.PlaylistSummary], error) {
	if f.featuredErr != nil {
		return nil, f.featuredErr
	}
	return page(f.featured[country], cursor)
}

func (f *fakeCatalog) PlaylistItems(_ context.Context, playlistID, cursor string) (*spotify.Page[spotify.PlaylistItem], error) {
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	return page(f.playlists[playlistID], cursor)
}

func (f *fakeCatalog) Artist(_ context.Context, id string) (*spotify.Artist, error) {
	f.artistCalls[id]++
	a, ok := f.artists[id]
	if !ok {
		return nil, fmt.Errorf("artist %s: %w", id, spotify.ErrNotFound)
	}
	return a, nil
}

func (f *fakeCatalog) Track(_ context.Context, id string) (*spotify.Track, error) {
	t, ok := f.tracks[id]
	if !ok {
		return nil, fmt.Errorf("track %s: %w", id, spotify.ErrNotFound)
	}
	return t, nil
}

func (f *fakeCatalog) AudioFeatures(_ context.Context, ids ...string) (map[string]*spotify.AudioFeatures, error) {
	f.featureCalls++
	if f.featuresErr != nil {
		return nil, f.featuresErr
	}
	out := make(map[string]*spotify.AudioFeatures)
	for _, id := range ids {
		if v, ok := f.features[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func track(id, artistID string, popularity int) *spotify.Track {
	return &spotify.Track{
		ID:         id,
		Name:       "Song " + id,
		Artists:    []spotify.ArtistRef{{ID: artistID, Name: "Artist " + artistID}},
		Album:      spotify.AlbumRef{ID: "al-" + id, Name: "Album " + id},
		Popularity: popularity,
	}
}

func vector(id string, tempo float64) *spotify.AudioFeatures {
	return &spotify.AudioFeatures{
		ID:            id,
		Tempo:         tempo,
		Key:           5,
		Mode:          1,
		TimeSignature: 4,
		DurationMS:    210000,
		Energy:        0.7,
		Danceability:  0.6,
		Loudness:      -5.5,
	}
}
