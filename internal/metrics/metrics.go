package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry          *prometheus.Registry
	ticketTransitions *prometheus.CounterVec
	seatsSold         prometheus.Counter
	seatsReturned     prometheus.Counter
	searches          *prometheus.CounterVec
	httpRequests      *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ticketTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skybooking_ticket_transitions_total",
			Help: "Ticket status changes by resulting status",
		}, []string{"status"}),
		seatsSold: factory.NewCounter(prometheus.CounterOpts{
			Name: "skybooking_seats_sold_total",
			Help: "Seats taken from inventory by purchases",
		}),
		seatsReturned: factory.NewCounter(prometheus.CounterOpts{
			Name: "skybooking_seats_returned_total",
			Help: "Seats returned to inventory by refunds",
		}),
		searches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skybooking_flight_searches_total",
			Help: "Flight searches by cache outcome",
		}, []string{"cache"}),
		httpRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skybooking_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) TicketTransition(status string) {
	m.ticketTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) SeatSold() {
	m.seatsSold.Inc()
}

func (m *Metrics) SeatReturned() {
	m.seatsReturned.Inc()
}

func (m *Metrics) Search(cacheHit bool) {
	outcome := "miss"
	if cacheHit {
		outcome = "hit"
	}
	m.searches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	m.httpRequests.WithLabelValues(method, route, status).Observe(seconds)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
