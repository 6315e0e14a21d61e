package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the reconciliation pipeline.
type Metrics struct {
	// Snapshot rows produced per run, by list category
	SnapshotRows *prometheus.GaugeVec

	// Data-quality rejects by kind ("placeholder", "bad_entity_id", "bad_key")
	DataQualityErrors *prometheus.CounterVec

	// Pair transitions by kind ("added", "readded", "removed")
	PairTransitions *prometheus.CounterVec

	// Currently sanctioned (entity, country) pairs
	ActivePairs prometheus.Gauge

	// Full run latency by outcome
	RunDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance with all pipeline metrics registered.
func New() *Metrics {
	return &Metrics{
		SnapshotRows: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ofactrack_snapshot_rows",
			Help: "Rows in the latest monthly snapshot by list category",
		}, []string{"category"}), // category: "SDN", "NSDN"

		DataQualityErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ofactrack_dq_errors_total",
			Help: "Source rows rejected during decode and keying, by kind",
		}, []string{"kind"}),

		PairTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ofactrack_pair_transitions_total",
			Help: "Ledger pair status transitions per run, by kind",
		}, []string{"kind"}),

		ActivePairs: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ofactrack_active_pairs",
			Help: "Currently sanctioned entity-country pairs in the ledger",
		}),

		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ofactrack_run_duration_seconds",
			Help:    "Duration of full reconciliation runs by outcome",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"outcome"}), // outcome: "ok", "error"
	}
}

// SetSnapshotRows records the row count of the latest snapshot for a category.
func (m *Metrics) SetSnapshotRows(category string, n int) {
	if m != nil {
		m.SnapshotRows.WithLabelValues(category).Set(float64(n))
	}
}

// AddDataQualityErrors records rejected source rows of one kind.
func (m *Metrics) AddDataQualityErrors(kind string, n int) {
	if m != nil && n > 0 {
		m.DataQualityErrors.WithLabelValues(kind).Add(float64(n))
	}
}

// AddPairTransitions records pair status transitions of one kind.
func (m *Metrics) AddPairTransitions(kind string, n int) {
	if m != nil && n > 0 {
		m.PairTransitions.WithLabelValues(kind).Add(float64(n))
	}
}

// SetActivePairs records the post-run active pair count.
func (m *Metrics) SetActivePairs(n int) {
	if m != nil {
		m.ActivePairs.Set(float64(n))
	}
}

// ObserveRunDuration records a full run's duration and outcome.
func (m *Metrics) ObserveRunDuration(outcome string, d time.Duration) {
	if m != nil {
		m.RunDuration.WithLabelValues(outcome).Observe(d.Seconds())
	}
}
