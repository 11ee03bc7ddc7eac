package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.TicketTransition("paid")
	m.TicketTransition("paid")
	m.TicketTransition("refunded")
	m.SeatSold()
	m.SeatReturned()
	m.Search(true)
	m.Search(false)
	m.Search(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ticketTransitions.WithLabelValues("paid")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ticketTransitions.WithLabelValues("refunded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.seatsSold))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.seatsReturned))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.searches.WithLabelValues("miss")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/api/flights", "200", 0.01)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "skybooking_http_request_duration_seconds")
}
