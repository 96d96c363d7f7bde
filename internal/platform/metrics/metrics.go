package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the compliance pipeline.
// Every helper is nil-safe so components run without metrics in tests.
type Metrics struct {
	// Duration of each pipeline stage by stage and outcome
	StageLatency *prometheus.HistogramVec

	// Clauses produced by segmentation
	ClausesSegmented prometheus.Counter

	// Classification outcomes by source (rule_based, external, fallback) and level
	Classifications *prometheus.CounterVec

	// External scorer call latency
	ScorerLatency prometheus.Histogram

	// Scorer cache lookups by result (hit, miss, error)
	ScorerCache *prometheus.CounterVec

	// Diff segments by type
	DiffSegments *prometheus.CounterVec

	// Checklist items by priority
	ChecklistItems *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regassist_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage", "outcome"}),

		ClausesSegmented: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regassist_clauses_segmented_total",
			Help: "Total clauses produced by segmentation",
		}),

		Classifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regassist_classifications_total",
			Help: "Clause classifications by source and risk level",
		}, []string{"source", "level"}),

		ScorerLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "regassist_scorer_duration_seconds",
			Help:    "Duration of external scorer calls including timeouts",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		}),

		ScorerCache: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regassist_scorer_cache_total",
			Help: "Scorer cache lookups by result",
		}, []string{"result"}),

		DiffSegments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regassist_diff_segments_total",
			Help: "Diff segments produced by type",
		}, []string{"type"}),

		ChecklistItems: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regassist_checklist_items_total",
			Help: "Checklist items generated by priority",
		}, []string{"priority"}),
	}
}

// ObserveStage records the duration of a pipeline stage.
func (m *Metrics) ObserveStage(stage, outcome string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage, outcome).Observe(d.Seconds())
	}
}

// AddClausesSegmented counts clauses produced by segmentation.
func (m *Metrics) AddClausesSegmented(n int) {
	if m != nil {
		m.ClausesSegmented.Add(float64(n))
	}
}

// IncrementClassification records one classification outcome.
func (m *Metrics) IncrementClassification(source, level string) {
	if m != nil {
		m.Classifications.WithLabelValues(source, level).Inc()
	}
}

// ObserveScorerLatency records one external scorer call.
func (m *Metrics) ObserveScorerLatency(d time.Duration) {
	if m != nil {
		m.ScorerLatency.Observe(d.Seconds())
	}
}

// IncrementScorerCache records a cache lookup result.
func (m *Metrics) IncrementScorerCache(result string) {
	if m != nil {
		m.ScorerCache.WithLabelValues(result).Inc()
	}
}

// AddDiffSegments counts diff segments of one type.
func (m *Metrics) AddDiffSegments(segmentType string, n int) {
	if m != nil && n > 0 {
		m.DiffSegments.WithLabelValues(segmentType).Add(float64(n))
	}
}

// IncrementChecklistItem counts one generated checklist item.
func (m *Metrics) IncrementChecklistItem(priority string) {
	if m != nil {
		m.ChecklistItems.WithLabelValues(priority).Inc()
	}
}
