package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the fraud module.
type Metrics struct {
	// Detection run outcomes by result
	RunOutcome *prometheus.CounterVec

	// Flags raised per rule
	FlagsRaised *prometheus.CounterVec

	// Clusters persisted by source
	ClustersCreated *prometheus.CounterVec

	// Full detection run latency
	RunLatency prometheus.Histogram

	// Graph analysis collaborator call latency
	GraphCallLatency prometheus.Histogram
}

// New creates a new Metrics instance with all fraud module metrics registered.
func New() *Metrics {
	return &Metrics{
		RunOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tenderwatch_fraud_runs_total",
			Help: "Total detection runs by outcome",
		}, []string{"outcome"}), // outcome: "ok", "degraded", "error"

		FlagsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tenderwatch_fraud_flags_total",
			Help: "Total fraud flags raised by rule",
		}, []string{"rule"}),

		ClustersCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tenderwatch_fraud_clusters_total",
			Help: "Total fraud clusters persisted by source",
		}, []string{"source"}), // source: "local", "community"

		RunLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tenderwatch_fraud_run_duration_seconds",
			Help:    "Duration of full detection runs including persistence",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		GraphCallLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tenderwatch_fraud_graph_call_duration_seconds",
			Help:    "Duration of graph analysis service calls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementRunOutcome records the outcome of a detection run.
func (m *Metrics) IncrementRunOutcome(outcome string) {
	if m != nil {
		m.RunOutcome.WithLabelValues(outcome).Inc()
	}
}

// AddFlags records flags raised for a rule.
func (m *Metrics) AddFlags(rule string, n int) {
	if m != nil {
		m.FlagsRaised.WithLabelValues(rule).Add(float64(n))
	}
}

// AddClusters records clusters persisted from a source.
func (m *Metrics) AddClusters(source string, n int) {
	if m != nil {
		m.ClustersCreated.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveRunLatency records the total detection run duration.
func (m *Metrics) ObserveRunLatency(d time.Duration) {
	if m != nil {
		m.RunLatency.Observe(d.Seconds())
	}
}

// ObserveGraphCallLatency records the duration of a graph service call.
func (m *Metrics) ObserveGraphCallLatency(d time.Duration) {
	if m != nil {
		m.GraphCallLatency.Observe(d.Seconds())
	}
}
