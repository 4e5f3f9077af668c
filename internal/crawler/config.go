package crawler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/dataset"
)

// ErrNoData is returned when no region produced any rows.
var ErrNoData = errors.New("no region produced data")

// Config holds all configuration for the harvest crawler
type Config struct {
	// Regions to harvest, in order
	Regions []string

	// Pause after every region, successful or not
	Cooldown time.Duration

	// Checkpointing
	CheckpointEvery int
	CheckpointPause time.Duration
	Resume          bool

	// Enrichment
	RefreshTracks bool

	// Monitoring
	MetricsPort string

	// Called for every region that fails to resolve or harvest
	OnRegionError func(code string, err error)

	// Logging
	Logger *zap.Logger
}

// Harvest defaults, matching the upstream rate-limit window.
const (
	DefaultCooldown        = 90 * time.Second
	DefaultCheckpointEvery = 5
	DefaultCheckpointPause = 180 * time.Second
)

func (c *Config) withDefaults() *Config {
	out := *c
	if out.Cooldown < 0 {
		out.Cooldown = 0
	}
	if out.CheckpointEvery < 0 {
		out.CheckpointEvery = 0
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	if out.OnRegionError == nil {
		out.OnRegionError = func(string, error) {}
	}
	return &out
}

// Checkpointer persists harvest progress so a long run can resume.
type Checkpointer interface {
	Save(ctx context.Context, snap dataset.Snapshot) error
	// Load returns the latest snapshot, or nil if there is none.
	Load(ctx context.Context) (*dataset.Snapshot, error)
}
