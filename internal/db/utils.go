package db

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var sqlFiles embed.FS // Variable to hold embedded SQL files
const BatchSize = 100

// ConnStringFromEnv returns DATABASE_URL, or builds a URL from the DB_*
// variables. It returns "" when neither is configured.
func ConnStringFromEnv() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return ""
	}
	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), dbHost, dbPort, os.Getenv("DB_NAME"))
}

func openPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Simple protocol lets the multi-statement schema file run through Exec
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database pool: %w", err)
	}
	return pool, nil
}

func processBatchResults(br pgx.BatchResults, count int) error {
	for i := range count {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("error executing batch item %d: %w", i, err)
		}
	}
	return br.Close()
}

// queueAll queues one statement per item on tx and flushes every BatchSize.
func queueAll[T any](ctx context.Context, tx pgx.Tx, items []T, queryFilename string, paramConverter func(item T) []any) error {
	sqlQuery, err := getQueryString(queryFilename)
	if err != nil {
		return fmt.Errorf("failed to get SQL query string: %w", err)
	}

	batch := &pgx.Batch{}
	flush := func() error {
		sentCount := batch.Len()
		br := tx.SendBatch(ctx, batch)
		batch = &pgx.Batch{}
		if err := processBatchResults(br, sentCount); err != nil {
			logger.Error("Batch execution failed",
				zap.String("query", queryFilename),
				zap.Int("batchSize", sentCount),
				zap.Error(err))
			return fmt.Errorf("batch execution error (batch size %d): %w", sentCount, err)
		}
		return nil
	}

	for _, item := range items {
		batch.Queue(sqlQuery, paramConverter(item)...)
		if batch.Len() >= BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if batch.Len() > 0 {
		return flush()
	}
	return nil
}

func getQueryString(queryFilename string) (string, error) {
	sqlFilePathInEmbedFS := path.Join("sql", queryFilename+".sql")
	sqlBytes, err := sqlFiles.ReadFile(sqlFilePathInEmbedFS)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded SQL file %q: %w", sqlFilePathInEmbedFS, err)
	}
	return string(sqlBytes), nil
}
