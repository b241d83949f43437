// Package metrics exposes pipeline activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ryzeai/ryze/pipeline"
)

const namespace = "ryze"

// Metrics implements pipeline.Observer on top of Prometheus collectors.
type Metrics struct {
	runs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	chunks        prometheus.Counter
	inFlight      prometheus.Gauge
}

var _ pipeline.Observer = (*Metrics)(nil)

// New registers the pipeline collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"stage"}),
		stageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Failed pipeline stages.",
		}, []string{"stage"}),
		chunks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explanation_chunks_total",
			Help:      "Explanation increments delivered to clients.",
		}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Pipeline runs currently executing.",
		}),
	}
}

// StageCompleted records the stage latency and, on failure, an error.
func (m *Metrics) StageCompleted(stage pipeline.Stage, elapsed time.Duration, err error) {
	m.stageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues(string(stage)).Inc()
	}
}

// ChunkEmitted counts one delivered explanation increment.
func (m *Metrics) ChunkEmitted() {
	m.chunks.Inc()
}

// RunCompleted counts a finished run.
func (m *Metrics) RunCompleted(outcome pipeline.Outcome) {
	m.runs.WithLabelValues(string(outcome)).Inc()
}

// RunStarted marks a run as in flight. The returned func marks it done.
func (m *Metrics) RunStarted() func() {
	m.inFlight.Inc()
	return m.inFlight.Dec
}
