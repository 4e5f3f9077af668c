package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rcong315/toptracks/internal/dataset"
	"github.com/rcong315/toptracks/internal/spotify"
)

// stubCatalog resolves each country to one playlist with the given tracks.
type stubCatalog struct {
	playlists map[string]string
	tracks    map[string][]*spotify.Track
	itemsErr  map[string]error
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		playlists: make(map[string]string),
		tracks:    make(map[string][]*spotify.Track),
		itemsErr:  make(map[string]error),
	}
}

func (s *stubCatalog) add(country string, trackIDs ...string) {
	pid := "pl-" + country
	s.playlists[country] = pid
	for i, id := range trackIDs {
		s.tracks[pid] = append(s.tracks[pid], &spotify.Track{
			ID:         id,
			Name:       "Song " + id,
			Artists:    []spotify.ArtistRef{{ID: "ar-" + id, Name: "Artist " + id}},
			Album:      spotify.AlbumRef{ID: "al-" + id, Name: "Album " + id},
			Popularity: 90 - i,
		})
	}
}

func (s *stubCatalog) FeaturedPlaylists(_ context.Context, country, _ string) (*spotify.Page[spotify.PlaylistSummary], error) {
	pid, ok := s.playlists[country]
	if !ok {
		return &spotify.Page[spotify.PlaylistSummary]{}, nil
	}
	return &spotify.Page[spotify.PlaylistSummary]{Items: []spotify.PlaylistSummary{{ID: pid, Name: "Top " + country}}}, nil
}

func (s *stubCatalog) PlaylistItems(_ context.Context, playlistID, _ string) (*spotify.Page[spotify.PlaylistItem], error) {
	if err := s.itemsErr[playlistID]; err != nil {
		return nil, err
	}
	var items []spotify.PlaylistItem
	for _, t := range s.tracks[playlistID] {
		items = append(items, spotify.PlaylistItem{Track: t})
	}
	return &spotify.Page[spotify.PlaylistItem]{Items: items}, nil
}

func (s *stubCatalog) Artist(_ context.Context, id string) (*spotify.Artist, error) {
	return &spotify.Artist{ID: id, Name: "Artist", Genres: []string{"pop"}}, nil
}

func (s *stubCatalog) Track(_ context.Context, id string) (*spotify.Track, error) {
	return nil, spotify.ErrNotFound
}

func (s *stubCatalog) AudioFeatures(_ context.Context, ids ...string) (map[string]*spotify.AudioFeatures, error) {
	out := make(map[string]*spotify.AudioFeatures, len(ids))
	for i, id := range ids {
		out[id] = &spotify.AudioFeatures{ID: id, Tempo: float64(100 + 10*i), Key: 1, Mode: 1}
	}
	return out, nil
}

type memCheckpointer struct {
	saves []dataset.Snapshot
	load  *dataset.Snapshot
}

func (m *memCheckpointer) Save(_ context.Context, snap dataset.Snapshot) error {
	m.saves = append(m.saves, snap)
	return nil
}

func (m *memCheckpointer) Load(context.Context) (*dataset.Snapshot, error) {
	return m.load, nil
}

type sleepRecorder struct {
	calls  []time.Duration
	cancel context.CancelFunc
	after  int
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	if r.cancel != nil && len(r.calls) == r.after {
		r.cancel()
	}
	return ctx.Err()
}

func newTestScheduler(t *testing.T, config *Config, catalog *stubCatalog, cp Checkpointer) (*Scheduler, *Metrics, *sleepRecorder) {
	t.Helper()
	config.Logger = zaptest.NewLogger(t)
	metrics := NewMetrics(prometheus.NewRegistry())
	s := NewScheduler(config, NewWorker(catalog, metrics, config.Logger), cp, metrics)
	rec := &sleepRecorder{}
	s.sleep = rec.sleep
	return s, metrics, rec
}

func TestRunUnionsRegions(t *testing.T) {
	cat := newStubCatalog()
	cat.add("SE", "t1", "t2", "t3")
	cat.add("JP", "t4", "t5", "t6")

	s, metrics, rec := newTestScheduler(t, &Config{Regions: []string{"SE", "JP"}, Cooldown: DefaultCooldown}, cat, nil)
	rows, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 6)

	playlists := map[string]bool{}
	for _, r := range rows {
		playlists[r.PlaylistID] = true
		require.NotNil(t, r.NormTempo)
	}
	assert.Len(t, playlists, 2)
	assert.Equal(t, "SE", rows[0].CountryCode)
	assert.Equal(t, "Sweden", rows[0].Country)
	assert.Equal(t, "JP", rows[5].CountryCode)
	assert.Equal(t, "Japan", rows[5].Country)
	assert.Equal(t, []time.Duration{DefaultCooldown, DefaultCooldown}, rec.calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RegionsProcessed))
	assert.Equal(t, 6.0, testutil.ToFloat64(metrics.TracksEnriched))
}

func TestRunCoolsDownAfterFailures(t *testing.T) {
	cat := newStubCatalog()
	cat.add("SE", "t1")
	cat.add("JP", "t2")
	cat.itemsErr["pl-JP"] = errors.New("502 bad gateway")

	var failed []string
	config := &Config{
		Regions:       []string{"AF", "JP", "SE", "XX"},
		Cooldown:      time.Second,
		OnRegionError: func(code string, _ error) { failed = append(failed, code) },
	}
	s, metrics, rec := newTestScheduler(t, config, cat, nil)
	rows, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Len(t, rec.calls, 4)
	assert.Equal(t, []string{"AF", "JP", "XX"}, failed)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RegionsFailed))
}

func TestRunNoData(t *testing.T) {
	s, _, _ := newTestScheduler(t, &Config{Regions: []string{"AF", "KP"}}, newStubCatalog(), nil)
	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRunCheckpointsEveryN(t *testing.T) {
	cat := newStubCatalog()
	codes := []string{"AD", "AE", "AR", "AT", "AU"}
	for i, c := range codes {
		cat.add(c, fmt.Sprintf("t%d", i))
	}
	cp := &memCheckpointer{}
	config := &Config{Regions: codes, Cooldown: time.Second, CheckpointEvery: 2, CheckpointPause: time.Minute}

	s, metrics, rec := newTestScheduler(t, config, cat, cp)
	rows, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	require.Len(t, cp.saves, 2)
	assert.Equal(t, []string{"AD", "AE"}, cp.saves[0].Completed)
	assert.Equal(t, []string{"AD", "AE", "AR", "AT"}, cp.saves[1].Completed)
	assert.Len(t, cp.saves[1].Rows, 4)
	assert.Equal(t, cp.saves[0].RunID, cp.saves[1].RunID)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Checkpoints))
	assert.Len(t, rec.calls, 7)
	assert.Equal(t, time.Minute, rec.calls[1])
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	cat := newStubCatalog()
	cat.add("AD", "t1")
	cat.add("AE", "t2")
	cat.add("AR", "t3")
	cp := &memCheckpointer{load: &dataset.Snapshot{
		RunID:     "run-7",
		Completed: []string{"AD", "AE"},
		Rows:      []dataset.Row{{TrackID: "old1", CountryCode: "AD"}},
	}}

	s, metrics, rec := newTestScheduler(t, &Config{Regions: []string{"AD", "AE", "AR"}, Resume: true}, cat, cp)
	rows, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "old1", rows[0].TrackID)
	assert.Equal(t, "t3", rows[1].TrackID)
	assert.Len(t, rec.calls, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RegionsSkipped))
}

func TestResumeRetriesFailedRegions(t *testing.T) {
	cat := newStubCatalog()
	cat.add("AD", "t1")
	cat.add("AE", "t2")
	cat.itemsErr["pl-AE"] = errors.New("502 bad gateway")
	cp := &memCheckpointer{}

	config := &Config{Regions: []string{"AD", "AE", "XX"}, CheckpointEvery: 3}
	s, _, _ := newTestScheduler(t, config, cat, cp)
	rows, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	require.Len(t, cp.saves, 1)
	assert.Equal(t, []string{"AD", "XX"}, cp.saves[0].Completed)

	delete(cat.itemsErr, "pl-AE")
	cp.load = &cp.saves[0]
	s, metrics, _ := newTestScheduler(t, &Config{Regions: []string{"AD", "AE", "XX"}, Resume: true}, cat, cp)
	rows, err = s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "t1", rows[0].TrackID)
	assert.Equal(t, "t2", rows[1].TrackID)
	assert.Equal(t, "AE", rows[1].CountryCode)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RegionsSkipped))
}

func TestRunFlushesCheckpointOnCancel(t *testing.T) {
	cat := newStubCatalog()
	cat.add("AD", "t1")
	cat.add("AE", "t2")
	cat.add("AR", "t3")
	cp := &memCheckpointer{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _, rec := newTestScheduler(t, &Config{Regions: []string{"AD", "AE", "AR"}, Cooldown: time.Second}, cat, cp)
	rec.cancel = cancel
	rec.after = 1

	_, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, cp.saves, 1)
	assert.Equal(t, []string{"AD"}, cp.saves[0].Completed)
	assert.Len(t, cp.saves[0].Rows, 1)
}
