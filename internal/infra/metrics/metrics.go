// Package metrics exposes Prometheus instrumentation on a dedicated registry.
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"coursebook/internal/domain/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coursebook"

// Metrics holds every collector of one process.
type Metrics struct {
	registry *prometheus.Registry

	authEvents     *prometheus.CounterVec
	publishes      *prometheus.CounterVec
	mailDeliveries *prometheus.CounterVec
	httpInFlight   prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	sessionsPurged prometheus.Counter
}

var _ service.AuthMetrics = (*Metrics)(nil)

// New registers the collectors, plus the Go runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Identity operations by outcome.",
		}, []string{"operation", "outcome"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_publish_total",
			Help:      "Verification mail requests handed to the broker.",
		}, []string{"provider", "result"}),
		mailDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_deliveries_total",
			Help:      "Verification mail delivery attempts by the worker.",
		}, []string{"result"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_purged_total",
			Help:      "Expired sessions removed by the sweeper.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.authEvents,
		m.publishes,
		m.mailDeliveries,
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.sessionsPurged,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterPool exports database/sql pool statistics labelled with name.
func (m *Metrics) RegisterPool(name string, db *sql.DB) {
	m.registry.MustRegister(collectors.NewDBStatsCollector(db, name))
}

func (m *Metrics) ObserveAuthEvent(operation, outcome string) {
	m.authEvents.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveVerificationPublish(provider string, err error) {
	m.publishes.WithLabelValues(provider, result(err)).Inc()
}

// ObserveMailDelivery counts a worker delivery attempt; result is "sent", "dropped" or "retry".
func (m *Metrics) ObserveMailDelivery(result string) {
	m.mailDeliveries.WithLabelValues(result).Inc()
}

// ObserveSessionsPurged adds the sessions removed by one sweep.
func (m *Metrics) ObserveSessionsPurged(n int64) {
	if n > 0 {
		m.sessionsPurged.Add(float64(n))
	}
}

// RequestStarted marks a request in flight and returns the function that records its completion.
func (m *Metrics) RequestStarted(method string) func(route string, status int) {
	m.httpInFlight.Inc()
	start := time.Now()

	return func(route string, status int) {
		code := strconv.Itoa(status)
		m.httpDuration.WithLabelValues(method, route, code).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(method, route, code).Inc()
		m.httpInFlight.Dec()
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}
