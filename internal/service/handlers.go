// Package service serves read-only analytics over the loaded graph.
package service

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/graph"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
	Version      = "1.0.0"
)

type Handler struct {
	analyzer graph.Analyzer
}

func NewHandler(analyzer graph.Analyzer) *Handler {
	return &Handler{analyzer: analyzer}
}

// Register mounts every route on router.
func (h *Handler) Register(router gin.IRouter) {
	router.GET("/health", h.HealthHandler)

	v1 := router.Group("/api/v1")
	v1.Use(func(c *gin.Context) {
		c.Header("X-API-Version", Version)
		c.Next()
	})
	v1.GET("/genres", h.GenresHandler)
	v1.GET("/countries/stats", h.CountryStatsHandler)
	v1.GET("/countries/:code/stats", h.CountryStatsDiffHandler)
	v1.GET("/countries/:code/genres", h.CountryGenresHandler)
	v1.GET("/tracks/playlist-counts", h.TrackPlaylistCountsHandler)
	v1.GET("/artists/playlist-counts", h.ArtistPlaylistCountsHandler)
}

func (h *Handler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func parseLimit(c *gin.Context) (int, bool) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return DefaultLimit, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit: must be a positive integer"})
		return 0, false
	}
	return min(limit, MaxLimit), true
}

func serverError(c *gin.Context, handler string, err error) {
	logger.Error("Graph query failed", zap.String("handler", handler), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Graph query failed"})
}

func (h *Handler) GenresHandler(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	genres, err := h.analyzer.GenreCounts(c.Request.Context(), limit)
	if err != nil {
		serverError(c, "genres", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"genres": genres})
}

func (h *Handler) CountryGenresHandler(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	genres, err := h.analyzer.CountryGenres(c.Request.Context(), code)
	if errors.Is(err, graph.ErrCountryNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Country not found: " + code})
		return
	}
	if err != nil {
		serverError(c, "countryGenres", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"countryCode": code, "genres": genres})
}

func (h *Handler) CountryStatsHandler(c *gin.Context) {
	stats, err := h.analyzer.CountryStats(c.Request.Context())
	if err != nil {
		serverError(c, "countryStats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"countries": stats})
}

// CountryStatsDiffHandler compares one country's averages with the
// track-weighted averages over every country.
func (h *Handler) CountryStatsDiffHandler(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	stats, err := h.analyzer.CountryStats(c.Request.Context())
	if err != nil {
		serverError(c, "countryStatsDiff", err)
		return
	}

	var country *graph.CountryStats
	for i := range stats {
		if stats[i].CountryCode == code {
			country = &stats[i]
			break
		}
	}
	if country == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Country not found: " + code})
		return
	}

	overall := overallAverages(stats)
	diff := make(map[string]float64, len(country.Averages))
	for prop, v := range country.Averages {
		if o, ok := overall[prop]; ok {
			diff[prop] = v - o
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"country":    country,
		"overall":    overall,
		"difference": diff,
	})
}

// overallAverages weights each country's average by the number of tracks
// that carried the property.
func overallAverages(stats []graph.CountryStats) map[string]float64 {
	sums := make(map[string]float64)
	weights := make(map[string]float64)
	for _, s := range stats {
		for prop, v := range s.Averages {
			n := float64(s.Samples[prop])
			sums[prop] += v * n
			weights[prop] += n
		}
	}
	out := make(map[string]float64, len(sums))
	for prop, sum := range sums {
		if weights[prop] > 0 {
			out[prop] = sum / weights[prop]
		}
	}
	return out
}

func (h *Handler) TrackPlaylistCountsHandler(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	counts, err := h.analyzer.TrackPlaylistCounts(c.Request.Context(), limit)
	if err != nil {
		serverError(c, "trackPlaylistCounts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracks": counts})
}

func (h *Handler) ArtistPlaylistCountsHandler(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	counts, err := h.analyzer.ArtistPlaylistCounts(c.Request.Context(), limit)
	if err != nil {
		serverError(c, "artistPlaylistCounts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"artists": counts})
}
