package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstruments(t *testing.T) {
	m := New("classmarket")

	m.ObserveEnrollment(OutcomeSuccess, 20*time.Millisecond)
	m.ObserveEnrollment(OutcomeSuccess, 30*time.Millisecond)
	m.ObserveEnrollment(OutcomeReplayed, time.Millisecond)
	m.IncSeatReservation(OutcomeExhausted)
	m.ObserveHTTP(http.MethodPost, "/api/v1/payments", http.StatusOK, 5*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `classmarket_enrollments_total{outcome="success"} 2`)
	assert.Contains(t, body, `classmarket_enrollments_total{outcome="replayed"} 1`)
	assert.Contains(t, body, `classmarket_enrollment_duration_seconds_count 3`)
	assert.Contains(t, body, `classmarket_seat_reservations_total{outcome="exhausted"} 1`)
	assert.Contains(t, body, `classmarket_http_requests_total{method="POST",route="/api/v1/payments",status="200"} 1`)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New("classmarket")
	m.IncChargeRequest("create_intent", OutcomeSuccess)

	assert.Contains(t, scrape(t, m), `classmarket_charge_requests_total{operation="create_intent",outcome="success"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveEnrollment(OutcomeError, time.Second)
		m.IncSeatReservation(OutcomeSuccess)
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	})
}
