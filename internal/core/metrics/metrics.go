package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for evaluations.
const (
	OutcomeRule    = "rule"
	OutcomeDefault = "default"
	OutcomeError   = "error"
)

// Metrics provides observability for program evaluation and activation.
type Metrics struct {
	// Evaluation outcomes by strategy and outcome
	Evaluations *prometheus.CounterVec

	// Interpreter errors by error type
	EvaluationErrors *prometheus.CounterVec

	// Evaluation latency by strategy
	EvaluateLatency *prometheus.HistogramVec

	// Activation attempts by result ("activated", "rejected")
	Activations *prometheus.CounterVec

	// Analysis duration of a program activation
	AnalyzeLatency prometheus.Histogram

	// Unix time of the current program activation
	ActiveSince prometheus.Gauge
}

// New creates a Metrics instance registered with reg. A nil reg registers
// with the default prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "routekeeper_evaluations_total",
			Help: "Total program evaluations by interpreter strategy and outcome",
		}, []string{"strategy", "outcome"}),

		EvaluationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "routekeeper_evaluation_errors_total",
			Help: "Total interpreter errors by error type",
		}, []string{"type"}),

		EvaluateLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "routekeeper_evaluate_duration_seconds",
			Help:    "Duration of a single program evaluation",
			Buckets: []float64{0.000005, 0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.005},
		}, []string{"strategy"}),

		Activations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "routekeeper_activations_total",
			Help: "Program activation attempts by result",
		}, []string{"result"}),

		AnalyzeLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "routekeeper_analyze_duration_seconds",
			Help:    "Duration of static analysis during activation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		ActiveSince: f.NewGauge(prometheus.GaugeOpts{
			Name: "routekeeper_active_program_timestamp_seconds",
			Help: "Activation time of the program currently serving evaluations",
		}),
	}
}

// ObserveEvaluation records one evaluation outcome and its latency.
func (m *Metrics) ObserveEvaluation(strategy, outcome string, d time.Duration) {
	if m != nil {
		m.Evaluations.WithLabelValues(strategy, outcome).Inc()
		m.EvaluateLatency.WithLabelValues(strategy).Observe(d.Seconds())
	}
}

// IncrementError records an interpreter error.
func (m *Metrics) IncrementError(errType string) {
	if m != nil {
		m.EvaluationErrors.WithLabelValues(errType).Inc()
	}
}

// IncrementActivation records an activation attempt.
func (m *Metrics) IncrementActivation(result string) {
	if m != nil {
		m.Activations.WithLabelValues(result).Inc()
	}
}

// ObserveAnalyzeLatency records the analysis duration of an activation.
func (m *Metrics) ObserveAnalyzeLatency(d time.Duration) {
	if m != nil {
		m.AnalyzeLatency.Observe(d.Seconds())
	}
}

// SetActiveSince records the activation time of the serving program.
func (m *Metrics) SetActiveSince(t time.Time) {
	if m != nil {
		m.ActiveSince.Set(float64(t.Unix()))
	}
}
