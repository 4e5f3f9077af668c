package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/dataset"
	"github.com/rcong315/toptracks/internal/export"
)

// Store is a Postgres checkpoint ledger for harvest runs.
type Store struct {
	pool *pgxpool.Pool

	mu    sync.Mutex
	saved map[string]savedState
}

type savedState struct {
	regions int
	rows    int
}

type regionEntry struct {
	code     string
	position int
}

type rowEntry struct {
	position int
	row      dataset.Row
}

// Open connects to Postgres and makes sure the ledger tables exist.
func Open(ctx context.Context, connString string) (*Store, error) {
	pool, err := openPool(ctx, connString)
	if err != nil {
		return nil, err
	}
	s := &Store{pool: pool, saved: make(map[string]savedState)}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	schema, err := getQueryString("schema")
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating ledger schema: %w", err)
	}
	return nil
}

// encodeRow stores a row in its interchange form so the ledger and the
// export files agree on representation.
func encodeRow(r dataset.Row) (string, error) {
	b, err := json.Marshal(export.Record(r))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRow(payload string) (dataset.Row, error) {
	var rec map[string]string
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return dataset.Row{}, err
	}
	return export.RecordToRow(rec)
}

// Save appends whatever the snapshot adds beyond the last save of the same
// run, in one transaction. Re-saving is harmless.
func (s *Store) Save(ctx context.Context, snap dataset.Snapshot) error {
	s.mu.Lock()
	prev := s.saved[snap.RunID]
	s.mu.Unlock()

	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}

	var regions []regionEntry
	for i := min(prev.regions, len(snap.Completed)); i < len(snap.Completed); i++ {
		regions = append(regions, regionEntry{code: snap.Completed[i], position: i})
	}
	var rows []rowEntry
	for i := min(prev.rows, len(snap.Rows)); i < len(snap.Rows); i++ {
		rows = append(rows, rowEntry{position: i, row: snap.Rows[i]})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	// Rollback after a successful Commit is a no-op
	defer tx.Rollback(ctx)

	upsertRun, err := getQueryString("upsert_run")
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, upsertRun, snap.RunID, savedAt); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}

	err = queueAll(ctx, tx, regions, "insert_region", func(r regionEntry) []any {
		return []any{snap.RunID, r.code, r.position, savedAt}
	})
	if err != nil {
		return fmt.Errorf("error saving regions: %w", err)
	}

	var encodeErr error
	err = queueAll(ctx, tx, rows, "insert_row", func(r rowEntry) []any {
		payload, err := encodeRow(r.row)
		if err != nil && encodeErr == nil {
			encodeErr = err
		}
		return []any{snap.RunID, r.position, r.row.CountryCode, payload}
	})
	if encodeErr != nil {
		return fmt.Errorf("encoding row: %w", encodeErr)
	}
	if err != nil {
		return fmt.Errorf("error saving rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("transaction commit error: %w", err)
	}

	s.mu.Lock()
	s.saved[snap.RunID] = savedState{regions: len(snap.Completed), rows: len(snap.Rows)}
	s.mu.Unlock()

	logger.Info("Saved checkpoint to database",
		zap.String("runId", snap.RunID),
		zap.Int("newRegions", len(regions)),
		zap.Int("newRows", len(rows)))
	return nil
}

// Load returns the most recently updated run, or nil if there is none.
func (s *Store) Load(ctx context.Context) (*dataset.Snapshot, error) {
	latest, err := getQueryString("latest_run")
	if err != nil {
		return nil, err
	}
	snap := &dataset.Snapshot{}
	err = s.pool.QueryRow(ctx, latest).Scan(&snap.RunID, &snap.SavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding latest run: %w", err)
	}

	regionQuery, err := getQueryString("select_regions")
	if err != nil {
		return nil, err
	}
	codes, err := s.pool.Query(ctx, regionQuery, snap.RunID)
	if err != nil {
		return nil, fmt.Errorf("loading regions: %w", err)
	}
	snap.Completed, err = pgx.CollectRows(codes, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning regions: %w", err)
	}

	rowQuery, err := getQueryString("select_rows")
	if err != nil {
		return nil, err
	}
	payloads, err := s.pool.Query(ctx, rowQuery, snap.RunID)
	if err != nil {
		return nil, fmt.Errorf("loading rows: %w", err)
	}
	raw, err := pgx.CollectRows(payloads, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning rows: %w", err)
	}
	for i, p := range raw {
		r, err := decodeRow(p)
		if err != nil {
			return nil, fmt.Errorf("decoding row %d: %w", i, err)
		}
		snap.Rows = append(snap.Rows, r)
	}

	s.mu.Lock()
	s.saved[snap.RunID] = savedState{regions: len(snap.Completed), rows: len(snap.Rows)}
	s.mu.Unlock()

	logger.Info("Loaded checkpoint from database",
		zap.String("runId", snap.RunID),
		zap.Int("regions", len(snap.Completed)),
		zap.Int("rows", len(snap.Rows)))
	return snap, nil
}
