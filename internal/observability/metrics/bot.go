package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BotMetrics collects intake counters and the ops server's HTTP metrics
// on one registry.
type BotMetrics struct {
	registry *prometheus.Registry
	service  string

	eventsTotal        *prometheus.CounterVec
	extractionsTotal   *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	commitsTotal       *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	liveSessions       prometheus.GaugeFunc

	http *httpCollectors
}

// NewBotMetrics registers the collectors. liveSessions may be nil.
func NewBotMetrics(service string, liveSessions func() float64) *BotMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "conversation",
			Name:      "events_total",
			Help:      "Inbound events by type and session state.",
		},
		[]string{"service", "event", "state"},
	)
	extractionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "extraction",
			Name:      "requests_total",
			Help:      "Recognition calls by provider and outcome.",
		},
		[]string{"service", "provider", "outcome"},
	)
	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "extraction",
			Name:      "duration_seconds",
			Help:      "Recognition duration in seconds, retries included.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"service", "provider"},
	)
	commitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "commit",
			Name:      "total",
			Help:      "Commit attempts by outcome.",
		},
		[]string{"service", "outcome"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "conversation",
			Name:      "errors_total",
			Help:      "Errors surfaced to users by kind.",
		},
		[]string{"service", "kind"},
	)
	httpMetrics := newHTTPCollectors(service)

	registry.MustRegister(
		eventsTotal,
		extractionsTotal,
		extractionDuration,
		commitsTotal,
		errorsTotal,
		httpMetrics.requestTotal,
		httpMetrics.requestDuration,
		httpMetrics.requestInFlight,
	)

	m := &BotMetrics{
		registry:           registry,
		service:            service,
		eventsTotal:        eventsTotal,
		extractionsTotal:   extractionsTotal,
		extractionDuration: extractionDuration,
		commitsTotal:       commitsTotal,
		errorsTotal:        errorsTotal,
		http:               httpMetrics,
	}
	if liveSessions != nil {
		m.liveSessions = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   "intake",
				Subsystem:   "session",
				Name:        "live",
				Help:        "Sessions currently held in memory.",
				ConstLabels: prometheus.Labels{"service": service},
			},
			liveSessions,
		)
		registry.MustRegister(m.liveSessions)
	}
	return m
}

func (m *BotMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *BotMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *BotMetrics) ObserveEvent(event, state string) {
	if state == "" {
		state = "none"
	}
	m.eventsTotal.WithLabelValues(m.service, event, state).Inc()
}

func (m *BotMetrics) ObserveExtraction(provider, outcome string, seconds float64) {
	if provider == "" {
		provider = "unknown"
	}
	m.extractionsTotal.WithLabelValues(m.service, provider, outcome).Inc()
	m.extractionDuration.WithLabelValues(m.service, provider).Observe(seconds)
}

func (m *BotMetrics) ObserveCommit(outcome string) {
	m.commitsTotal.WithLabelValues(m.service, outcome).Inc()
}

func (m *BotMetrics) ObserveError(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.errorsTotal.WithLabelValues(m.service, kind).Inc()
}

// Middleware records request metrics for the ops server.
func (m *BotMetrics) Middleware(next http.Handler) http.Handler {
	return m.http.middleware(m.service, next)
}
