// Package metrics holds the Prometheus collectors for the optimization
// service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for optimization runs.
type Metrics struct {
	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	// Evaluation metrics
	EvaluationsTotal *prometheus.CounterVec
	IterationsTotal  prometheus.Counter

	// Result metrics
	FrontSize prometheus.Histogram
}

// New creates the collectors and registers them with the given
// registerer. Pass prometheus.DefaultRegisterer in production; tests
// use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mco_runs_total",
				Help: "Total number of optimization runs by terminal status",
			},
			[]string{"algorithm", "status"},
		),

		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mco_run_duration_seconds",
				Help:    "Wall-clock duration of optimization runs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"algorithm"},
		),

		EvaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mco_evaluations_total",
				Help: "Total number of objective evaluations",
			},
			[]string{"objective"},
		),

		IterationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mco_iterations_total",
				Help: "Total number of optimization loop iterations",
			},
		),

		FrontSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mco_front_size",
				Help:    "Number of results yielded per completed run",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
	}
}

// RecordRun records a finished run with its terminal status.
func (m *Metrics) RecordRun(algorithm, status string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(algorithm, status).Inc()
	m.RunDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
}

// RecordEvaluation records one objective evaluation.
func (m *Metrics) RecordEvaluation(objective string) {
	m.EvaluationsTotal.WithLabelValues(objective).Inc()
}

// RecordIteration records one optimization loop iteration.
func (m *Metrics) RecordIteration() {
	m.IterationsTotal.Inc()
}

// RecordFrontSize records the result count of a completed run.
func (m *Metrics) RecordFrontSize(n int) {
	m.FrontSize.Observe(float64(n))
}
