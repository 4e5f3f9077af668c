package graph

import (
	"context"
	"errors"
	"sort"
)

// ErrCountryNotFound is returned when a country has no node in the graph.
var ErrCountryNotFound = errors.New("country not found")

// GenreCount is a genre with its distinct-track population. Tracks is the
// per-country count when the result is scoped to one country.
type GenreCount struct {
	Genre      string `json:"genre"`
	TotalSongs int64  `json:"totalSongs"`
	Tracks     int64  `json:"tracks,omitempty"`
}

// PlaylistCount is how many playlists a track or artist appears in.
type PlaylistCount struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int64  `json:"playlists"`
}

// CountryStats holds per-country averages of the numeric track properties.
// Samples counts the tracks behind each average; tracks missing a property
// are left out of it.
type CountryStats struct {
	CountryCode string             `json:"countryCode"`
	Country     string             `json:"country"`
	Tracks      int64              `json:"tracks"`
	Averages    map[string]float64 `json:"averages"`
	Samples     map[string]int64   `json:"samples"`
}

// Analyzer answers the read-side questions the loaded graph exists for.
type Analyzer interface {
	GenreCounts(ctx context.Context, limit int) ([]GenreCount, error)
	CountryGenres(ctx context.Context, countryCode string) ([]GenreCount, error)
	CountryStats(ctx context.Context) ([]CountryStats, error)
	TrackPlaylistCounts(ctx context.Context, limit int) ([]PlaylistCount, error)
	ArtistPlaylistCounts(ctx context.Context, limit int) ([]PlaylistCount, error)
}

func sortGenreCounts(out []GenreCount, byTracks bool) {
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if byTracks && a.Tracks != b.Tracks {
			return a.Tracks > b.Tracks
		}
		if a.TotalSongs != b.TotalSongs {
			return a.TotalSongs > b.TotalSongs
		}
		return a.Genre < b.Genre
	})
}

func sortPlaylistCounts(out []PlaylistCount) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	}
	return 0
}
