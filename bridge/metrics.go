package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts solves and callback invocations. A nil *Metrics records nothing.
type Metrics struct {
	solves    *prometheus.CounterVec
	callbacks *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics creates the solver metrics and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Labels: solver, outcome (success, solver_error, invalid)
		solves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nlpbridge",
			Name:      "solves_total",
			Help:      "Total solves by solver and outcome",
		}, []string{"solver", "outcome"}),
		callbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nlpbridge",
			Name:      "callbacks_total",
			Help:      "Total callback invocations made by the library",
		}, []string{"solver"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nlpbridge",
			Name:      "solve_duration_seconds",
			Help:      "Time spent inside the library solve call",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"solver"}),
	}
}

const (
	outcomeSuccess     = "success"
	outcomeSolverError = "solver_error"
	outcomeInvalid     = "invalid"
)

func (m *Metrics) solved(solver, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.solves.WithLabelValues(solver, outcome).Inc()
	if outcome != outcomeInvalid {
		m.duration.WithLabelValues(solver).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) callback(solver string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(solver).Inc()
}
