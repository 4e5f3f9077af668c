package graph

import (
	"context"

	"go.uber.org/zap"
)

var logger = zap.NewNop()

// InitializeLogger sets the logger for the graph package.
func InitializeLogger(l *zap.Logger) {
	logger = l
}

// Verb selects how a relationship pass writes edges.
type Verb string

const (
	// Create writes one edge per match, so re-running a pass duplicates.
	Create Verb = "CREATE"
	// Merge writes an edge only if the same edge is not already there.
	Merge Verb = "MERGE"
)

// NodeStats counts what a node pass did.
type NodeStats struct {
	Created int
	Matched int
}

// Store is a graph backend the Loader writes through.
type Store interface {
	EnsureConstraint(ctx context.Context, spec NodeSpec) error
	MergeNodes(ctx context.Context, spec NodeSpec, events []Event) (NodeStats, error)
	Relate(ctx context.Context, spec RelSpec, verb Verb) (int, error)
	Reset(ctx context.Context) error
	Close(ctx context.Context) error
}
