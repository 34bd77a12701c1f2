// Package metrics holds the Prometheus instruments of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Enrollment and seat outcomes used as label values
const (
	OutcomeSuccess    = "success"
	OutcomeReplayed   = "replayed"
	OutcomeInProgress = "in_progress"
	OutcomeError      = "error"
	OutcomeExhausted  = "exhausted"
	OutcomeReleased   = "released"
)

// Metrics owns a registry and the instruments registered on it.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec   // http_requests_total{method,route,status}
	httpDuration       *prometheus.HistogramVec // http_request_duration_seconds{method,route}
	enrollments        *prometheus.CounterVec   // enrollments_total{outcome}
	enrollmentDuration prometheus.Histogram     // enrollment_duration_seconds
	seatReservations   *prometheus.CounterVec   // seat_reservations_total{outcome}
	chargeRequests     *prometheus.CounterVec   // charge_requests_total{operation,outcome}
}

// New registers all instruments under namespace on a fresh registry
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "enrollments_total", Help: "Enrollment transactions by outcome.",
		}, []string{"outcome"}),
		enrollmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "enrollment_duration_seconds", Help: "Enrollment transaction latency.",
			Buckets: prometheus.DefBuckets,
		}),
		seatReservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "seat_reservations_total", Help: "Seat reservations by outcome.",
		}, []string{"outcome"}),
		chargeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "charge_requests_total", Help: "Charge authority calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}

	reg.MustRegister(m.httpRequests, m.httpDuration, m.enrollments, m.enrollmentDuration, m.seatReservations, m.chargeRequests)
	return m
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveEnrollment records the outcome and latency of one enrollment transaction
func (m *Metrics) ObserveEnrollment(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(outcome).Inc()
	m.enrollmentDuration.Observe(elapsed.Seconds())
}

// IncSeatReservation counts a seat reservation attempt or release
func (m *Metrics) IncSeatReservation(outcome string) {
	if m == nil {
		return
	}
	m.seatReservations.WithLabelValues(outcome).Inc()
}

// IncChargeRequest counts a charge authority call
func (m *Metrics) IncChargeRequest(operation, outcome string) {
	if m == nil {
		return
	}
	m.chargeRequests.WithLabelValues(operation, outcome).Inc()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
