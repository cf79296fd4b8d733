package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the verification service.
type Metrics struct {
	RunsStarted   prometheus.Counter
	RunsFailed    prometheus.Counter
	RunsCompleted *prometheus.CounterVec // labels: kind={categorical,continuous,probabilistic,ensemble}
	UnitsAligned  prometheus.Counter
	UnitsDropped  prometheus.Counter
	RunDuration   prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "veripy",
			Name:      "runs_started_total",
			Help:      "Total verification runs started.",
		}),
		RunsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "veripy",
			Name:      "runs_failed_total",
			Help:      "Total verification runs that ended in error.",
		}),
		RunsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veripy",
			Name:      "runs_completed_total",
			Help:      "Total verification runs completed, by forecast kind.",
		}, []string{"kind"}),
		UnitsAligned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "veripy",
			Name:      "units_aligned_total",
			Help:      "Total verification units produced by alignment.",
		}),
		UnitsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "veripy",
			Name:      "units_dropped_total",
			Help:      "Total units dropped for missing or unmatched coordinates.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "veripy",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete align-score-aggregate run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	prometheus.MustRegister(
		m.RunsStarted,
		m.RunsFailed,
		m.RunsCompleted,
		m.UnitsAligned,
		m.UnitsDropped,
		m.RunDuration,
	)
	return m
}
