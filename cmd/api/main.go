package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rcong315/toptracks/internal/graph"
	"github.com/rcong315/toptracks/internal/report"
	"github.com/rcong315/toptracks/internal/service"
)

func main() {
	var (
		port        = flag.String("port", getEnv("PORT", "8081"), "API server port")
		metricsPort = flag.String("metrics-port", getEnv("METRICS_PORT", "9091"), "Metrics server port (empty disables)")
		logLevel    = flag.String("log-level", getEnv("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
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

	graph.InitializeLogger(logger)
	service.InitializeLogger(logger)
	report.InitializeLogger(logger)

	if err := report.Init("api"); err != nil {
		logger.Warn("Error reporting unavailable", zap.Error(err))
	}
	defer report.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := graph.OpenNeo4j(ctx, graph.Neo4jConfigFromEnv())
	if err != nil {
		logger.Fatal("Failed to connect to graph database", zap.Error(err))
	}
	defer store.Close(context.Background())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if os.Getenv("DEBUG") != "true" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(report.GinMiddleware())
	router.Use(service.MetricsMiddleware(registry))
	router.Use(service.CORSMiddleware())
	if apiKey := os.Getenv("TOPTRACKS_API_KEY"); apiKey != "" {
		router.Use(service.APIKeyMiddleware(apiKey, "/health"))
	} else {
		logger.Info("TOPTRACKS_API_KEY not set, API is public")
	}

	service.NewHandler(store).Register(router)

	servers := []*http.Server{{Addr: ":" + *port, Handler: router}}
	if *metricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{Addr: ":" + *metricsPort, Handler: mux})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, server := range servers {
		g.Go(func() error {
			logger.Info("Server starting", zap.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, server := range servers {
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Server shutdown failed", zap.String("addr", server.Addr), zap.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("API server failed", zap.Error(err))
	}
	logger.Info("API server stopped")
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
