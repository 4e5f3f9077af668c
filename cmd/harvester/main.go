package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/crawler"
	"github.com/rcong315/toptracks/internal/db"
	"github.com/rcong315/toptracks/internal/export"
	"github.com/rcong315/toptracks/internal/harvest"
	"github.com/rcong315/toptracks/internal/region"
	"github.com/rcong315/toptracks/internal/report"
	"github.com/rcong315/toptracks/internal/spotify"
)

func main() {
	var (
		regions         = flag.String("regions", getEnv("REGIONS", ""), "Comma-separated region codes to harvest (default: every known resolvable region)")
		probe           = flag.Bool("probe", false, "Probe every region code, print the resolvable ones and exit")
		cooldown        = flag.Duration("cooldown", crawler.DefaultCooldown, "Pause after every region")
		checkpointEvery = flag.Int("checkpoint-every", crawler.DefaultCheckpointEvery, "Checkpoint after this many regions (0 disables)")
		checkpointPause = flag.Duration("checkpoint-pause", crawler.DefaultCheckpointPause, "Extra pause after each checkpoint")
		checkpointDir   = flag.String("checkpoint-dir", getEnv("CHECKPOINT_DIR", "checkpoints"), "Directory for checkpoint files when no database is configured")
		resume          = flag.Bool("resume", false, "Resume from the latest checkpoint")
		refreshTracks   = flag.Bool("refresh-tracks", false, "Re-fetch each track instead of using the playlist's embedded copy")
		csvOut          = flag.String("out", "top_playlists.csv", "Output CSV file")
		jsonOut         = flag.String("json", "top_playlists.json", "Output JSON file (empty to skip)")
		rateLimit       = flag.Int("rate", envInt("SPOTIFY_RATE_LIMIT", spotify.DefaultRateLimit), "Upstream calls allowed per minute")
		logLevel        = flag.String("log-level", getEnv("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
		metricsPort     = flag.String("metrics-port", getEnv("METRICS_PORT", "9090"), "Metrics server port (empty disables)")
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

	spotify.InitializeLogger(logger)
	harvest.InitializeLogger(logger)
	region.InitializeLogger(logger)
	export.InitializeLogger(logger)
	db.InitializeLogger(logger)
	report.InitializeLogger(logger)

	if err := report.Init("harvester"); err != nil {
		logger.Warn("Error reporting unavailable", zap.Error(err))
	}
	defer report.Flush(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	spotifyConfig, err := spotify.ConfigFromEnv()
	if err != nil {
		logger.Fatal("Missing catalog credentials", zap.Error(err))
	}
	spotifyConfig.RateLimit = *rateLimit

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := crawler.NewMetrics(registry)

	client := spotify.New(ctx, spotifyConfig, spotify.WithObserver(metrics.ObserveCall))

	if *probe {
		runProbe(ctx, logger, client)
		return
	}

	codes := region.DefaultResolvable()
	if *regions != "" {
		codes = region.ParseList(*regions)
	}

	checkpointer, closeCheckpointer, err := openCheckpointer(ctx, *checkpointDir)
	if err != nil {
		logger.Fatal("Failed to open checkpoint store", zap.Error(err))
	}
	defer closeCheckpointer()

	config := &crawler.Config{
		Regions:         codes,
		Cooldown:        *cooldown,
		CheckpointEvery: *checkpointEvery,
		CheckpointPause: *checkpointPause,
		Resume:          *resume,
		RefreshTracks:   *refreshTracks,
		MetricsPort:     *metricsPort,
		OnRegionError:   report.CaptureRegionError,
		Logger:          logger,
	}

	logger.Info("Starting harvester",
		zap.Int("regions", len(codes)),
		zap.Duration("cooldown", *cooldown),
		zap.Int("checkpointEvery", *checkpointEvery),
		zap.Bool("resume", *resume),
		zap.String("metricsPort", *metricsPort))

	c := crawler.New(config, metrics, registry, client, checkpointer)
	rows, err := c.Run(ctx)
	switch {
	case errors.Is(err, crawler.ErrNoData):
		logger.Error("No region produced any rows, nothing written")
		os.Exit(1)
	case errors.Is(err, context.Canceled):
		logger.Warn("Harvest interrupted, progress saved to checkpoint")
		os.Exit(1)
	case err != nil:
		report.CaptureError("harvest", err)
		report.Flush(2 * time.Second)
		logger.Fatal("Harvest failed", zap.Error(err))
	}

	if err := export.WriteCSVFile(*csvOut, rows); err != nil {
		logger.Fatal("Failed to write CSV", zap.String("path", *csvOut), zap.Error(err))
	}
	if *jsonOut != "" {
		if err := export.CSVToJSON(*csvOut, *jsonOut); err != nil {
			logger.Fatal("Failed to write JSON", zap.String("path", *jsonOut), zap.Error(err))
		}
	}
	logger.Info("Harvest written",
		zap.Int("rows", len(rows)),
		zap.String("csv", *csvOut),
		zap.String("json", *jsonOut))
}

// runProbe prints every region code whose featured playlist resolves.
func runProbe(ctx context.Context, logger *zap.Logger, client *spotify.Client) {
	resolver := harvest.NewResolver(client)
	partition, err := region.Probe(ctx, region.Codes(), resolver.Probe)
	if err != nil {
		logger.Fatal("Probe interrupted", zap.Error(err))
	}
	logger.Info("Probe complete",
		zap.Int("resolvable", len(partition.Resolvable)),
		zap.Int("unresolvable", len(partition.Unresolvable)))
	fmt.Println(strings.Join(partition.Resolvable, "\n"))
}

// openCheckpointer prefers the Postgres ledger when a database is
// configured and falls back to files in dir.
func openCheckpointer(ctx context.Context, dir string) (crawler.Checkpointer, func(), error) {
	if connString := db.ConnStringFromEnv(); connString != "" {
		store, err := db.Open(ctx, connString)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return &export.FileCheckpointer{Dir: dir}, func() {}, nil
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

func envInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}
