package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AvailabilityMetrics implements selection.Observer and the HTTP access-log
// observer for the availability service.
type AvailabilityMetrics struct {
	quoteTotal        *prometheus.CounterVec
	staleTotal        *prometheus.CounterVec
	availabilityTotal *prometheus.CounterVec
	availableSlots    prometheus.Histogram
	eventsTotal       *prometheus.CounterVec
	activeSessions    prometheus.Gauge
	httpLatency       *prometheus.HistogramVec

	// routes bounds the path label; anything else is recorded as "other".
	routes map[string]struct{}
}

func NewAvailabilityMetrics(reg prometheus.Registerer) *AvailabilityMetrics {
	m := &AvailabilityMetrics{
		quoteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "detailbook",
			Subsystem: "availability",
			Name:      "quote_lookups_total",
			Help:      "Quote resolutions by outcome",
		}, []string{"outcome"}),
		staleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "detailbook",
			Subsystem: "availability",
			Name:      "stale_results_total",
			Help:      "Lookup results discarded because a newer selection superseded them",
		}, []string{"stage"}),
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "detailbook",
			Subsystem: "availability",
			Name:      "computations_total",
			Help:      "Rendered availability computations by booking fetch outcome",
		}, []string{"outcome"}),
		availableSlots: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "detailbook",
			Subsystem: "availability",
			Name:      "available_slots",
			Help:      "Available slots per rendered day",
			Buckets:   []float64{0, 1, 2, 4, 8, 12, 16, 24, 48},
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "detailbook",
			Subsystem: "availability",
			Name:      "events_total",
			Help:      "Availability events by publish outcome",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "detailbook",
			Subsystem: "availability",
			Name:      "active_sessions",
			Help:      "Booking sessions currently held in memory",
		}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "detailbook",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		routes: map[string]struct{}{},
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.quoteTotal,
		m.staleTotal,
		m.availabilityTotal,
		m.availableSlots,
		m.eventsTotal,
		m.activeSessions,
		m.httpLatency,
	)
	return m
}

func (m *AvailabilityMetrics) ObserveQuote(outcome string) {
	if m == nil {
		return
	}
	m.quoteTotal.WithLabelValues(outcome).Inc()
}

func (m *AvailabilityMetrics) ObserveStale(stage string) {
	if m == nil {
		return
	}
	m.staleTotal.WithLabelValues(stage).Inc()
}

func (m *AvailabilityMetrics) ObserveAvailability(outcome string, slots, available int) {
	if m == nil {
		return
	}
	m.availabilityTotal.WithLabelValues(outcome).Inc()
	m.availableSlots.Observe(float64(available))
}

func (m *AvailabilityMetrics) ObserveEvent(outcome string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(outcome).Inc()
}

func (m *AvailabilityMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// TrackRoutes registers the paths recorded verbatim in the HTTP latency
// histogram. Call it before serving traffic.
func (m *AvailabilityMetrics) TrackRoutes(paths ...string) {
	if m == nil {
		return
	}
	for _, p := range paths {
		m.routes[p] = struct{}{}
	}
}

// ObserveRequest matches httpx.RequestObserver.
func (m *AvailabilityMetrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpLatency.WithLabelValues(methodLabel(method), m.routeLabel(path), strconv.Itoa(status)).Observe(elapsed.Seconds())
}

const otherLabel = "other"

func (m *AvailabilityMetrics) routeLabel(path string) string {
	if _, ok := m.routes[path]; ok {
		return path
	}
	return otherLabel
}

func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return method
	default:
		return otherLabel
	}
}
