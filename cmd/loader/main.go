package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/dataset"
	"github.com/rcong315/toptracks/internal/export"
	"github.com/rcong315/toptracks/internal/graph"
	"github.com/rcong315/toptracks/internal/report"
)

func main() {
	var (
		in          = flag.String("in", "top_playlists.json", "Harvest output to load (.json or .csv)")
		reset       = flag.Bool("reset", false, "Drop constraints and delete every loaded node before loading")
		idempotent  = flag.Bool("idempotent-relationships", false, "MERGE direct relationships so a repeated load adds no edges")
		dryRun      = flag.Bool("dry-run", false, "Load into memory and report counts without touching the database")
		logLevel    = flag.String("log-level", getEnv("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
		metricsPort = flag.String("metrics-port", getEnv("METRICS_PORT", ""), "Metrics server port (empty disables)")
	)
	flag.Parse()

	if os.Getenv("DEBUG") == "true" {
		err := godotenv.Load("../../.env")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: .env file not found. Using system environment variables.\n")
		}
	}

	logger, err := setupLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	export.InitializeLogger(logger)
	graph.InitializeLogger(logger)
	report.InitializeLogger(logger)

	if err := report.Init("loader"); err != nil {
		logger.Warn("Error reporting unavailable", zap.Error(err))
	}
	defer report.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rows, err := readRows(*in)
	if err != nil {
		logger.Fatal("Failed to read harvest output", zap.String("path", *in), zap.Error(err))
	}
	logger.Info("Read harvest output", zap.String("path", *in), zap.Int("rows", len(rows)))

	registry := prometheus.NewRegistry()
	metrics := graph.NewMetrics(registry)
	if *metricsPort != "" {
		server := startMetricsServer(logger, registry, *metricsPort)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	var store graph.Store
	var memory *graph.MemoryStore
	if *dryRun {
		memory = graph.NewMemoryStore()
		store = memory
	} else {
		neo, err := graph.OpenNeo4j(ctx, graph.Neo4jConfigFromEnv())
		if err != nil {
			logger.Fatal("Failed to connect to graph database", zap.Error(err))
		}
		store = neo
	}
	defer store.Close(context.Background())

	loader := graph.NewLoader(store, graph.Config{
		IdempotentRelationships: *idempotent,
		Logger:                  logger,
	}, metrics)

	if *reset {
		if err := loader.Reset(ctx); err != nil {
			fail(logger, err)
		}
	}

	summary, err := loader.Load(ctx, rows)
	if err != nil {
		fail(logger, err)
	}

	fields := []zap.Field{zap.Bool("dryRun", *dryRun)}
	for _, spec := range graph.NodeSpecs {
		fields = append(fields, zap.Int(spec.Label, summary.Nodes[spec.Label].Created))
	}
	for _, spec := range graph.RelSpecs {
		fields = append(fields, zap.Int(spec.Type, summary.Relationships[spec.Type]))
	}
	logger.Info("Load complete", fields...)

	if memory != nil {
		for _, spec := range graph.NodeSpecs {
			fmt.Printf("%-12s %d\n", spec.Label, memory.NodeCount(spec.Label))
		}
		for _, spec := range graph.RelSpecs {
			fmt.Printf("%-17s %d\n", spec.Type, memory.EdgeCount(spec.Type))
		}
	}
}

func fail(logger *zap.Logger, err error) {
	var loadErr *graph.LoadError
	if errors.As(err, &loadErr) {
		report.CaptureLoadError(loadErr.Pass, loadErr.Err)
	} else {
		report.CaptureError("load", err)
	}
	report.Flush(2 * time.Second)
	logger.Fatal("Graph load failed", zap.Error(err))
}

func readRows(path string) ([]dataset.Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return export.ReadCSVFile(path)
	case ".json":
		return export.ReadJSONFile(path)
	}
	return nil, fmt.Errorf("unsupported input %q: want .csv or .json", path)
}

func startMetricsServer(logger *zap.Logger, gatherer prometheus.Gatherer, port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: ":" + port, Handler: mux}

	logger.Info("Starting metrics server", zap.String("port", port))
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return server
}

func setupLogger(level string) (*zap.Logger, error) {
	var config zap.Config

	if level == "debug" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return config.Build()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
