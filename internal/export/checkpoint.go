package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/dataset"
)

const manifestName = "checkpoint.json"

type manifest struct {
	RunID     string    `json:"run_id"`
	Completed []string  `json:"completed"`
	File      string    `json:"file"`
	Rows      int       `json:"rows"`
	SavedAt   time.Time `json:"saved_at"`
}

// FileCheckpointer keeps snapshots as CSV files in Dir, named after the
// first and last completed region, plus a manifest naming the latest one.
type FileCheckpointer struct {
	Dir string
}

// SnapshotName returns the file name used for a snapshot.
func SnapshotName(completed []string) string {
	if len(completed) == 0 {
		return "top_playlists_empty.csv"
	}
	return fmt.Sprintf("top_playlists_%sto%s.csv", completed[0], completed[len(completed)-1])
}

func (f *FileCheckpointer) Save(ctx context.Context, snap dataset.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := SnapshotName(snap.Completed)
	if err := WriteCSVFile(filepath.Join(f.Dir, name), snap.Rows); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	m := manifest{
		RunID:     snap.RunID,
		Completed: snap.Completed,
		File:      name,
		Rows:      len(snap.Rows),
		SavedAt:   snap.SavedAt,
	}
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(f.Dir, manifestName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(f.Dir, manifestName)); err != nil {
		return fmt.Errorf("replacing manifest: %w", err)
	}
	logger.Info("Saved checkpoint",
		zap.String("file", name),
		zap.Int("regions", len(snap.Completed)),
		zap.Int("rows", len(snap.Rows)))
	return nil
}

// Load returns the latest snapshot, or nil when none was saved.
func (f *FileCheckpointer) Load(ctx context.Context) (*dataset.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(f.Dir, manifestName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	rows, err := ReadCSVFile(filepath.Join(f.Dir, m.File))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", m.File, err)
	}
	return &dataset.Snapshot{
		RunID:     m.RunID,
		Completed: m.Completed,
		Rows:      rows,
		SavedAt:   m.SavedAt,
	}, nil
}
