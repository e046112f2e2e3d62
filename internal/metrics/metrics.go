package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the store, query runner and retry loop.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	EventsDispatched *prometheus.CounterVec
	QueriesTotal     *prometheus.CounterVec
	QueryDuration    *prometheus.HistogramVec
	PendingQueries   prometheus.Gauge
	RetryAttempts    *prometheus.CounterVec
	RetryExhausted   *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer, subsystem string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "events_dispatched_total",
			Help:      "Commands and completions reduced by the store, labeled by event type.",
		}, []string{"type"}),

		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "queries_total",
			Help:      "Queries executed by the runner, labeled by query type and outcome.",
		}, []string{"type", "outcome"}),

		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "query_duration_seconds",
			Help:      "Time spent inside a query handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),

		PendingQueries: factory.NewGauge(prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "pending_queries",
			Help:      "Queries dispatched to the runner and not yet completed.",
		}),

		RetryAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "retry_attempts_total",
			Help:      "Attempts made by retrying fetchers, labeled by operation.",
		}, []string{"operation"}),

		RetryExhausted: factory.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "retry_exhausted_total",
			Help:      "Operations that failed after their whole retry schedule.",
		}, []string{"operation"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Configuration and runtime errors, labeled by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) Dispatched(eventType string) {
	if m == nil {
		return
	}
	m.EventsDispatched.WithLabelValues(eventType).Inc()
}

func (m *Metrics) ObserveQuery(queryType string, failed bool, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.QueriesTotal.WithLabelValues(queryType, outcome).Inc()
	m.QueryDuration.WithLabelValues(queryType).Observe(took.Seconds())
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingQueries.Set(float64(n))
}

func (m *Metrics) RetryAttempt(operation string) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(operation).Inc()
}

func (m *Metrics) RetryGaveUp(operation string) {
	if m == nil {
		return
	}
	m.RetryExhausted.WithLabelValues(operation).Inc()
}

func (m *Metrics) Error(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}
