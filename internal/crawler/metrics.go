package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the harvest
type Metrics struct {
	RegionsProcessed prometheus.Counter
	RegionsFailed    prometheus.Counter
	RegionsEmpty     prometheus.Counter
	RegionsSkipped   prometheus.Counter
	TracksEnriched   prometheus.Counter
	PlaceholderRows  prometheus.Counter
	MissingFeatures  prometheus.Counter
	Checkpoints      prometheus.Counter
	APICallsTotal    *prometheus.CounterVec
	APICallsErrors   *prometheus.CounterVec
	RegionDuration   prometheus.Histogram
	PlaylistSize     prometheus.Histogram
}

// NewMetrics creates the harvest metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegionsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "toptracks_regions_processed_total",
			Help: "The total number of regions processed",
		}),
		RegionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "toptracks_regions_failed_total",
			Help: "The total number of regions that failed to resolve or harvest",
		}),
		RegionsEmpty: factory.NewCounter(prometheus.CounterOpts{
			Name: "toptracks_regions_empty_total",
			Help: "The total number of regions whose playlist had nothing to contribute",
		}),
		RegionsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "toptracks_regions_resumed_total",
			Help: "The total number of regions skipped because a checkpoint already covered them",
		}),
		TracksEnriched: factory.NewCounter(prometheus.CounterOpts{
			Name: "toptracks_tracks_enriched_total",
			Help: "The total number of track rows produced",
		}),
		PlaceholderRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "toptracks_placeholder_rows_total",
			Help: "The total number of rows substituted with placeholders",
		}),
		MissingFeatures: factory.NewCounter(prometheus.CounterOpts{
			Name: "toptracks_missing_feature_vectors_total",
			Help: "The total number of tracks without an audio feature vector",
		}),
		Checkpoints: factory.NewCounter(prometheus.CounterOpts{
			Name: "toptracks_checkpoints_total",
			Help: "The total number of checkpoints written",
		}),
		APICallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "toptracks_api_calls_total",
			Help: "The total number of Spotify API calls made",
		}, []string{"op"}),
		APICallsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "toptracks_api_errors_total",
			Help: "The total number of Spotify API errors",
		}, []string{"op"}),
		RegionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "toptracks_region_duration_seconds",
			Help:    "The duration of one region's harvest in seconds, cooldown excluded",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		PlaylistSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "toptracks_playlist_size",
			Help:    "The number of items on harvested playlists",
			Buckets: []float64{10, 25, 50, 75, 100, 150, 200},
		}),
	}
}

// ObserveCall records one upstream call. It matches spotify.CallObserver.
func (m *Metrics) ObserveCall(op string, err error) {
	m.APICallsTotal.WithLabelValues(op).Inc()
	if err != nil {
		m.APICallsErrors.WithLabelValues(op).Inc()
	}
}
