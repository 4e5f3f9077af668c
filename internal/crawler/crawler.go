package crawler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/dataset"
	"github.com/rcong315/toptracks/internal/harvest"
)

// Crawler is the harvest service: a scheduler plus its metrics endpoint.
type Crawler struct {
	config    *Config
	scheduler *Scheduler
	metrics   *Metrics
	gatherer  prometheus.Gatherer
}

// New creates a new crawler instance
func New(config *Config, metrics *Metrics, gatherer prometheus.Gatherer, catalog harvest.Catalog, checkpointer Checkpointer) *Crawler {
	config = config.withDefaults()

	worker := NewWorker(catalog, metrics, config.Logger)
	worker.enricher.RefreshTracks = config.RefreshTracks

	return &Crawler{
		config:    config,
		scheduler: NewScheduler(config, worker, checkpointer, metrics),
		metrics:   metrics,
		gatherer:  gatherer,
	}
}

// Run serves metrics while the scheduler harvests, then shuts the metrics
// server down and returns the harvested rows.
func (c *Crawler) Run(ctx context.Context) ([]dataset.Row, error) {
	var server *http.Server
	if c.config.MetricsPort != "" && c.gatherer != nil {
		server = c.startMetricsServer()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}
	return c.scheduler.Run(ctx)
}

// startMetricsServer starts the Prometheus metrics HTTP server
func (c *Crawler) startMetricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    ":" + c.config.MetricsPort,
		Handler: mux,
	}

	c.config.Logger.Info("Starting metrics server", zap.String("port", c.config.MetricsPort))
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.config.Logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return server
}
