package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RunsInQueue         prometheus.Gauge
	RunsTotal           *prometheus.CounterVec
	RunDuration         *prometheus.HistogramVec
	InvariantChecks     *prometheus.CounterVec
	UnparseableDates    prometheus.Counter
}

// New registers the metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		RunsInQueue: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagecheck_runs_in_queue",
				Help: "Current number of verification runs waiting in the queue.",
			},
		),
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagecheck_runs_total",
				Help: "Total number of finished verification runs.",
			},
			[]string{"scenario", "status", "error_kind"},
		),
		RunDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagecheck_run_duration_seconds",
				Help:    "Duration of verification runs.",
				Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
			},
			[]string{"scenario"},
		),
		InvariantChecks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagecheck_invariant_checks_total",
				Help: "Invariant checks performed on captured snapshots.",
			},
			[]string{"invariant", "result"}, // result: pass, fail
		),
		UnparseableDates: f.NewCounter(
			prometheus.CounterOpts{
				Name: "pagecheck_unparseable_dates_total",
				Help: "Date comparisons skipped because a date could not be parsed.",
			},
		),
	}
}

func (m *Metrics) ObserveHTTP(method, path, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

func (m *Metrics) SetQueueSize(n int64) {
	if m == nil {
		return
	}
	m.RunsInQueue.Set(float64(n))
}

func (m *Metrics) ObserveRun(scenario, status, errorKind string, seconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(scenario, status, errorKind).Inc()
	m.RunDuration.WithLabelValues(scenario).Observe(seconds)
}

func (m *Metrics) IncInvariantCheck(invariant string, passed bool) {
	if m == nil {
		return
	}
	result := "pass"
	if !passed {
		result = "fail"
	}
	m.InvariantChecks.WithLabelValues(invariant, result).Inc()
}

func (m *Metrics) IncUnparseableDates() {
	if m == nil {
		return
	}
	m.UnparseableDates.Inc()
}
