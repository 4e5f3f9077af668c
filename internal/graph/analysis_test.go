package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	rows := fixtureRows()
	// t1 also charts in Sweden
	rows = append(rows, track(seTop, "t1", "a1", "al1", 100, "pop", "dance pop"))
	load(t, store, Config{}, rows)
	return store
}

func TestGenreCountsOrdering(t *testing.T) {
	store := loadedStore(t)

	got, err := store.GenreCounts(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, GenreCount{Genre: "pop", TotalSongs: 4}, got[0])
	assert.Equal(t, GenreCount{Genre: "swedish pop", TotalSongs: 2}, got[1])
	assert.Equal(t, "dance pop", got[2].Genre)
	assert.Equal(t, "rap", got[3].Genre)

	top, err := store.GenreCounts(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestCountryGenres(t *testing.T) {
	store := loadedStore(t)

	got, err := store.CountryGenres(context.Background(), "us")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, GenreCount{Genre: "pop", TotalSongs: 4, Tracks: 2}, got[0])
	assert.Equal(t, "dance pop", got[1].Genre)
	assert.Equal(t, "rap", got[2].Genre)

	se, err := store.CountryGenres(context.Background(), "SE")
	require.NoError(t, err)
	assert.Equal(t, GenreCount{Genre: "pop", TotalSongs: 4, Tracks: 3}, se[0])

	_, err = store.CountryGenres(context.Background(), "XX")
	assert.ErrorIs(t, err, ErrCountryNotFound)
}

func TestCountryStats(t *testing.T) {
	store := loadedStore(t)

	got, err := store.CountryStats(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	se, us := got[0], got[1]
	assert.Equal(t, "SE", se.CountryCode)
	assert.Equal(t, "Sweden", se.Country)
	assert.Equal(t, int64(4), se.Tracks)
	assert.InDelta(t, 100.0, se.Averages["tempo"], 1e-9)

	assert.Equal(t, "US", us.CountryCode)
	assert.Equal(t, int64(3), us.Tracks)
	assert.InDelta(t, 370.0/3, us.Averages["tempo"], 1e-9)
	assert.InDelta(t, 5.0, us.Averages["key"], 1e-9)
	assert.NotContains(t, us.Averages, "valence")
	assert.Equal(t, int64(3), us.Samples["tempo"])
	assert.NotContains(t, us.Samples, "valence")
}

func TestPlaylistCounts(t *testing.T) {
	store := loadedStore(t)

	tracks, err := store.TrackPlaylistCounts(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, PlaylistCount{ID: "t1", Name: "Track t1", Count: 2}, tracks[0])
	assert.Equal(t, int64(1), tracks[1].Count)

	artists, err := store.ArtistPlaylistCounts(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, artists, 3)
	assert.Equal(t, PlaylistCount{ID: "a1", Name: "Artist a1", Count: 2}, artists[0])
	assert.Equal(t, PlaylistCount{ID: "a2", Name: "Artist a2", Count: 1}, artists[1])
}
