package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/dataset"
	"github.com/rcong315/toptracks/internal/harvest"
)

// Scheduler walks the region list one region at a time. Regions are never
// processed concurrently; the cooldown between them is the only throttle
// on call volume beyond the catalog client's limiter.
type Scheduler struct {
	config       *Config
	worker       *Worker
	checkpointer Checkpointer
	metrics      *Metrics
	logger       *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewScheduler creates a new scheduler. checkpointer may be nil.
func NewScheduler(config *Config, worker *Worker, checkpointer Checkpointer, metrics *Metrics) *Scheduler {
	config = config.withDefaults()
	return &Scheduler{
		config:       config,
		worker:       worker,
		checkpointer: checkpointer,
		metrics:      metrics,
		logger:       config.Logger,
		sleep:        sleepCtx,
		now:          time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type runState struct {
	runID     string
	completed []string
	rows      []dataset.Row
}

func (s *Scheduler) restore(ctx context.Context) (*runState, error) {
	state := &runState{runID: uuid.NewString()}
	if !s.config.Resume || s.checkpointer == nil {
		return state, nil
	}
	snap, err := s.checkpointer.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	if snap == nil {
		s.logger.Info("No checkpoint found, starting fresh")
		return state, nil
	}
	if snap.RunID != "" {
		state.runID = snap.RunID
	}
	state.completed = append(state.completed, snap.Completed...)
	state.rows = append(state.rows, snap.Rows...)
	s.logger.Info("Resuming from checkpoint",
		zap.String("runId", state.runID),
		zap.Int("completedRegions", len(state.completed)),
		zap.Int("rows", len(state.rows)))
	return state, nil
}

func (s *Scheduler) checkpoint(ctx context.Context, state *runState) error {
	if s.checkpointer == nil {
		return nil
	}
	snap := dataset.Snapshot{
		RunID:     state.runID,
		Completed: append([]string(nil), state.completed...),
		Rows:      state.rows,
		SavedAt:   s.now().UTC(),
	}
	if err := s.checkpointer.Save(ctx, snap); err != nil {
		return err
	}
	s.metrics.Checkpoints.Inc()
	return nil
}

// Run harvests every configured region and returns the union of their rows.
// It returns ErrNoData if no region contributed. On cancellation it writes
// a final checkpoint and returns the context error.
func (s *Scheduler) Run(ctx context.Context) ([]dataset.Row, error) {
	state, err := s.restore(ctx)
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, code := range s.config.Regions {
		if contains(state.completed, code) {
			s.metrics.RegionsSkipped.Inc()
			continue
		}
		pending = append(pending, code)
	}

	s.logger.Info("Starting harvest",
		zap.String("runId", state.runID),
		zap.Int("regions", len(pending)),
		zap.Duration("cooldown", s.config.Cooldown),
		zap.Int("checkpointEvery", s.config.CheckpointEvery))

	processed := 0
	for _, code := range pending {
		if ctx.Err() != nil {
			break
		}

		rows, err := s.worker.processRegion(ctx, code)
		if err != nil && ctx.Err() != nil {
			break
		}
		switch {
		case err != nil:
			s.metrics.RegionsFailed.Inc()
			s.logger.Warn("Region failed", zap.String("countryCode", code), zap.Error(err))
			s.config.OnRegionError(code, err)
		case rows == nil:
			s.metrics.RegionsEmpty.Inc()
		default:
			state.rows = append(state.rows, rows...)
		}
		if settled(err) {
			state.completed = append(state.completed, code)
		}
		processed++
		s.metrics.RegionsProcessed.Inc()

		if s.config.CheckpointEvery > 0 && processed%s.config.CheckpointEvery == 0 {
			if err := s.checkpoint(ctx, state); err != nil {
				s.logger.Error("Checkpoint failed", zap.Error(err))
			} else if err := s.sleep(ctx, s.config.CheckpointPause); err != nil {
				break
			}
		}

		if err := s.sleep(ctx, s.config.Cooldown); err != nil {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if cpErr := s.checkpoint(flushCtx, state); cpErr != nil {
			s.logger.Error("Final checkpoint failed", zap.Error(cpErr))
		}
		return nil, err
	}

	s.logger.Info("Harvest complete",
		zap.String("runId", state.runID),
		zap.Int("regions", len(state.completed)),
		zap.Int("rows", len(state.rows)))

	if len(state.rows) == 0 {
		return nil, ErrNoData
	}
	return state.rows, nil
}

// settled reports whether a region's outcome is final. Regions that failed
// after resolving stay out of the checkpoint so a resumed run retries them.
func settled(err error) bool {
	if err == nil {
		return true
	}
	var resolveErr *harvest.ResolutionError
	return errors.As(err, &resolveErr)
}

func contains(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
