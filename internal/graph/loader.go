package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/dataset"
)

// LoadError reports which pass failed. Passes before it stay committed.
type LoadError struct {
	Pass string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("graph pass %s: %v", e.Pass, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Metrics tracks loader passes.
type Metrics struct {
	PassDuration *prometheus.HistogramVec
	NodesCreated *prometheus.CounterVec
	EdgesCreated *prometheus.CounterVec
	RowsSkipped  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PassDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "toptracks_graph_pass_duration_seconds",
			Help:    "Time taken by each graph load pass",
			Buckets: prometheus.DefBuckets,
		}, []string{"pass"}),
		NodesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "toptracks_graph_nodes_created_total",
			Help: "Nodes created per label",
		}, []string{"label"}),
		EdgesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "toptracks_graph_relationships_created_total",
			Help: "Relationships created per type",
		}, []string{"type"}),
		RowsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "toptracks_graph_rows_skipped_total",
			Help: "Rows skipped by a node pass for lacking an identity key",
		}, []string{"label"}),
	}
}

// Config controls a load.
type Config struct {
	// IdempotentRelationships makes the direct relationship passes MERGE
	// instead of CREATE, so a load can be repeated without a reset.
	IdempotentRelationships bool
	Logger                  *zap.Logger
}

// Summary is what a load did, per pass.
type Summary struct {
	Nodes         map[string]NodeStats
	Skipped       map[string]int
	Relationships map[string]int
}

type Loader struct {
	store   Store
	config  Config
	metrics *Metrics
	logger  *zap.Logger
}

// NewLoader returns a Loader writing to store. metrics may be nil.
func NewLoader(store Store, config Config, metrics *Metrics) *Loader {
	l := config.Logger
	if l == nil {
		l = logger
	}
	return &Loader{store: store, config: config, metrics: metrics, logger: l}
}

// Load runs every node pass and then every relationship pass over rows.
// The first failing pass stops the load with a *LoadError.
func (l *Loader) Load(ctx context.Context, rows []dataset.Row) (*Summary, error) {
	summary := &Summary{
		Nodes:         make(map[string]NodeStats),
		Skipped:       make(map[string]int),
		Relationships: make(map[string]int),
	}
	l.logger.Info("Starting graph load", zap.Int("rows", len(rows)))

	for _, spec := range NodeSpecs {
		if err := ctx.Err(); err != nil {
			return summary, &LoadError{Pass: spec.Label, Err: err}
		}
		start := time.Now()
		events, skipped := spec.Events(rows)
		if err := l.store.EnsureConstraint(ctx, spec); err != nil {
			return summary, &LoadError{Pass: spec.Label, Err: err}
		}
		stats, err := l.store.MergeNodes(ctx, spec, events)
		if err != nil {
			return summary, &LoadError{Pass: spec.Label, Err: err}
		}
		summary.Nodes[spec.Label] = stats
		summary.Skipped[spec.Label] = skipped
		if l.metrics != nil {
			l.metrics.PassDuration.WithLabelValues(spec.Label).Observe(time.Since(start).Seconds())
			l.metrics.NodesCreated.WithLabelValues(spec.Label).Add(float64(stats.Created))
			l.metrics.RowsSkipped.WithLabelValues(spec.Label).Add(float64(skipped))
		}
		l.logger.Info("Merged nodes",
			zap.String("label", spec.Label),
			zap.Int("created", stats.Created),
			zap.Int("matched", stats.Matched),
			zap.Int("skipped", skipped),
			zap.Duration("duration", time.Since(start)))
	}

	for _, spec := range RelSpecs {
		if err := ctx.Err(); err != nil {
			return summary, &LoadError{Pass: spec.Type, Err: err}
		}
		start := time.Now()
		verb := Create
		if spec.Shortcut() || l.config.IdempotentRelationships {
			verb = Merge
		}
		created, err := l.store.Relate(ctx, spec, verb)
		if err != nil {
			return summary, &LoadError{Pass: spec.Type, Err: err}
		}
		summary.Relationships[spec.Type] = created
		if l.metrics != nil {
			l.metrics.PassDuration.WithLabelValues(spec.Type).Observe(time.Since(start).Seconds())
			l.metrics.EdgesCreated.WithLabelValues(spec.Type).Add(float64(created))
		}
		l.logger.Info("Created relationships",
			zap.String("type", spec.Type),
			zap.String("verb", string(verb)),
			zap.Int("created", created),
			zap.Duration("duration", time.Since(start)))
	}

	l.logger.Info("Graph load complete")
	return summary, nil
}

// Reset clears the graph so the next load starts from nothing.
func (l *Loader) Reset(ctx context.Context) error {
	if err := l.store.Reset(ctx); err != nil {
		return &LoadError{Pass: "reset", Err: err}
	}
	return nil
}
