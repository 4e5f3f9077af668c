package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rcong315/toptracks/internal/dataset"
	"github.com/rcong315/toptracks/internal/graph"
)

func row(playlist, code, country, id, artist string, tempo float64, genres ...string) dataset.Row {
	return dataset.Row{
		Artist:       "Artist " + artist,
		ArtistID:     artist,
		Album:        "Album " + artist,
		AlbumID:      "al-" + artist,
		TrackName:    "Track " + id,
		TrackID:      id,
		Genres:       genres,
		Popularity:   60,
		Features:     dataset.Features{dataset.FeatureTempo: tempo},
		PlaylistID:   playlist,
		PlaylistName: "Top " + code,
		CountryCode:  code,
		Country:      country,
	}
}

func newRouter(t *testing.T, analyzer graph.Analyzer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	InitializeLogger(zaptest.NewLogger(t))
	router := gin.New()
	NewHandler(analyzer).Register(router)
	return router
}

func loadedAnalyzer(t *testing.T) graph.Analyzer {
	t.Helper()
	store := graph.NewMemoryStore()
	rows := []dataset.Row{
		row("p-jp", "JP", "Japan", "t1", "a1", 100, "j-pop"),
		row("p-jp", "JP", "Japan", "t2", "a2", 140, "j-pop", "anime"),
		row("p-fr", "FR", "France", "t1", "a1", 100, "j-pop"),
		row("p-fr", "FR", "France", "t3", "a3", 120, "french hip hop"),
	}
	_, err := graph.NewLoader(store, graph.Config{Logger: zaptest.NewLogger(t)}, nil).Load(context.Background(), rows)
	require.NoError(t, err)
	return store
}

func get(t *testing.T, router http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestHealthHandler(t *testing.T) {
	w, body := get(t, newRouter(t, graph.NewMemoryStore()), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestGenresHandler(t *testing.T) {
	router := newRouter(t, loadedAnalyzer(t))

	w, body := get(t, router, "/api/v1/genres?limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Version, w.Header().Get("X-API-Version"))
	genres := body["genres"].([]any)
	require.Len(t, genres, 1)
	top := genres[0].(map[string]any)
	assert.Equal(t, "j-pop", top["genre"])
	assert.Equal(t, 2.0, top["totalSongs"])

	w, _ = get(t, router, "/api/v1/genres?limit=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = get(t, router, "/api/v1/genres?limit=0")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCountryGenresHandler(t *testing.T) {
	router := newRouter(t, loadedAnalyzer(t))

	w, body := get(t, router, "/api/v1/countries/jp/genres")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "JP", body["countryCode"])
	genres := body["genres"].([]any)
	require.Len(t, genres, 2)
	assert.Equal(t, "j-pop", genres[0].(map[string]any)["genre"])
	assert.Equal(t, 2.0, genres[0].(map[string]any)["tracks"])

	w, _ = get(t, router, "/api/v1/countries/XX/genres")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCountryStatsHandlers(t *testing.T) {
	router := newRouter(t, loadedAnalyzer(t))

	w, body := get(t, router, "/api/v1/countries/stats")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["countries"], 2)

	w, body = get(t, router, "/api/v1/countries/JP/stats")
	require.Equal(t, http.StatusOK, w.Code)
	overall := body["overall"].(map[string]any)
	diff := body["difference"].(map[string]any)
	// JP averages 120, FR averages 110, both with two tracks
	assert.InDelta(t, 115.0, overall["tempo"].(float64), 1e-9)
	assert.InDelta(t, 5.0, diff["tempo"].(float64), 1e-9)

	w, _ = get(t, router, "/api/v1/countries/XX/stats")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOverallStatsWeightByTracksWithProperty(t *testing.T) {
	rows := []dataset.Row{
		row("p-jp", "JP", "Japan", "t1", "a1", 100, "j-pop"),
		row("p-jp", "JP", "Japan", "t2", "a2", 140, "j-pop"),
		row("p-fr", "FR", "France", "t3", "a3", 200, "french hip hop"),
	}
	for _, id := range []string{"t4", "t5", "t6"} {
		r := row("p-fr", "FR", "France", id, "a3", 0, "french hip hop")
		r.Features = nil
		rows = append(rows, r)
	}
	store := graph.NewMemoryStore()
	_, err := graph.NewLoader(store, graph.Config{Logger: zaptest.NewLogger(t)}, nil).Load(context.Background(), rows)
	require.NoError(t, err)

	w, body := get(t, newRouter(t, store), "/api/v1/countries/JP/stats")
	require.Equal(t, http.StatusOK, w.Code)
	overall := body["overall"].(map[string]any)
	diff := body["difference"].(map[string]any)
	// three tracks carry a tempo: 100, 140 and 200
	assert.InDelta(t, 440.0/3, overall["tempo"].(float64), 1e-9)
	assert.InDelta(t, 120.0-440.0/3, diff["tempo"].(float64), 1e-9)
	// every track has a popularity
	assert.InDelta(t, 60.0, overall["popularity"].(float64), 1e-9)
}

func TestPlaylistCountHandlers(t *testing.T) {
	router := newRouter(t, loadedAnalyzer(t))

	w, body := get(t, router, "/api/v1/tracks/playlist-counts")
	require.Equal(t, http.StatusOK, w.Code)
	tracks := body["tracks"].([]any)
	require.Len(t, tracks, 3)
	first := tracks[0].(map[string]any)
	assert.Equal(t, "t1", first["id"])
	assert.Equal(t, 2.0, first["playlists"])

	w, body = get(t, router, "/api/v1/artists/playlist-counts?limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	artists := body["artists"].([]any)
	require.Len(t, artists, 1)
	assert.Equal(t, "a1", artists[0].(map[string]any)["id"])
}

type brokenAnalyzer struct {
	graph.Analyzer
}

func (brokenAnalyzer) GenreCounts(context.Context, int) ([]graph.GenreCount, error) {
	return nil, errors.New("connection refused")
}

func TestGraphErrorIs500(t *testing.T) {
	w, body := get(t, newRouter(t, brokenAnalyzer{}), "/api/v1/genres")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Graph query failed", body["error"])
}

func TestAPIKeyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	InitializeLogger(zaptest.NewLogger(t))
	router := gin.New()
	router.Use(CORSMiddleware(), APIKeyMiddleware("s3cret-key", "/health"))
	NewHandler(graph.NewMemoryStore()).Register(router)

	w, _ := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w, body := get(t, router, "/api/v1/genres")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "API key required", body["error"])

	w, body = get(t, router, "/api/v1/genres?api_key=wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid API key", body["error"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/genres", nil)
	req.Header.Set("X-API-Key", "s3cret-key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/genres", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	InitializeLogger(zaptest.NewLogger(t))
	reg := prometheus.NewRegistry()
	router := gin.New()
	router.Use(MetricsMiddleware(reg))
	NewHandler(loadedAnalyzer(t)).Register(router)

	get(t, router, "/api/v1/genres")
	get(t, router, "/api/v1/genres")
	get(t, router, "/api/v1/countries/XX/genres")

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "toptracks_api_requests_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			counts[labels["route"]+" "+labels["status"]] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, counts["/api/v1/genres 200"])
	assert.Equal(t, 1.0, counts["/api/v1/countries/:code/genres 404"])
}
