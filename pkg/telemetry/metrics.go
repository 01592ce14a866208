// Package telemetry exposes Prometheus metrics for unlearning experiments and jobs.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector of the service, registered on one registry
type Metrics struct {
	registry *prometheus.Registry

	// runsTotal counts experiment runs by task, method and result
	runsTotal *prometheus.CounterVec

	// phaseDuration tracks train/evaluate/unlearn latency
	phaseDuration *prometheus.HistogramVec

	// f1Score records the latest micro-F1 before and after unlearning
	f1Score *prometheus.GaugeVec

	// influenceSize tracks how many nodes an unlearning request touches
	influenceSize *prometheus.HistogramVec

	// solverIterations tracks fixed-point steps per approximation
	solverIterations *prometheus.HistogramVec

	// jobsTotal counts finished jobs by status
	jobsTotal *prometheus.CounterVec

	// jobsInFlight is the number of running jobs
	jobsInFlight prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gif_runs_total",
			Help: "Total experiment runs by task, method and result",
		}, []string{"task", "method", "result"}),
		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gif_phase_duration_seconds",
			Help:    "Duration of run phases in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
		}, []string{"phase"}),
		f1Score: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gif_micro_f1",
			Help: "Latest test micro-F1 by stage",
		}, []string{"stage"}),
		influenceSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gif_request_nodes",
			Help:    "Nodes touched by an unlearning request",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"task", "set"}),
		solverIterations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gif_solver_iterations",
			Help:    "Fixed-point iterations per influence approximation",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		}, []string{"solver"}),
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gif_jobs_total",
			Help: "Finished jobs by status",
		}, []string{"status"}),
		jobsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gif_jobs_in_flight",
			Help: "Jobs currently running",
		}),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records the outcome of one experiment run
func (m *Metrics) ObserveRun(task, method string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.runsTotal.WithLabelValues(task, method, result).Inc()
}

// ObservePhase records the duration of a named phase
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// SetF1 records the latest score of a stage
func (m *Metrics) SetF1(stage string, f1 float64) {
	m.f1Score.WithLabelValues(stage).Set(f1)
}

// ObserveRequest records the sizes of an unlearning request
func (m *Metrics) ObserveRequest(task string, sampled, influenced int) {
	m.influenceSize.WithLabelValues(task, "sampled").Observe(float64(sampled))
	m.influenceSize.WithLabelValues(task, "influenced").Observe(float64(influenced))
}

// ObserveSolver records the steps taken by a solver
func (m *Metrics) ObserveSolver(solver string, iterations int) {
	m.solverIterations.WithLabelValues(solver).Observe(float64(iterations))
}

// JobStarted marks a job as running
func (m *Metrics) JobStarted() {
	m.jobsInFlight.Inc()
}

// JobFinished marks a job as done with the given status
func (m *Metrics) JobFinished(status string) {
	m.jobsInFlight.Dec()
	m.jobsTotal.WithLabelValues(status).Inc()
}
