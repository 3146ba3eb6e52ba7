package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Gateway metrics
	GatewayRequestsTotal   *prometheus.CounterVec
	GatewayRequestDuration *prometheus.HistogramVec

	// Exchange-rate metrics
	RateLookupsTotal *prometheus.CounterVec

	// Webhook metrics
	WebhookEventsTotal        *prometheus.CounterVec
	WebhookVerificationsTotal *prometheus.CounterVec

	// Completion metrics
	CompletionStepsTotal *prometheus.CounterVec
}

// New creates a new Metrics instance registered on the given registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "shopstack"
	}
	factory := func(c prometheus.Collector) prometheus.Collector {
		reg.MustRegister(c)
		return c
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),
		GatewayRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total number of payment gateway API calls",
			},
			[]string{"provider", "operation", "outcome"},
		),
		GatewayRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Payment gateway API call duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider", "operation"},
		),
		RateLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rates",
				Name:      "lookups_total",
				Help:      "Exchange rate lookups by outcome (hit, refreshed, stale_fallback, unavailable)",
			},
			[]string{"pair", "outcome"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "events_total",
				Help:      "Inbound webhook events by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		WebhookVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "verifications_total",
				Help:      "Webhook signature verifications by provider and result",
			},
			[]string{"provider", "result"},
		),
		CompletionStepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "completion",
				Name:      "steps_total",
				Help:      "Order completion steps by step name and outcome",
			},
			[]string{"step", "outcome"},
		),
	}

	factory(m.HTTPRequestsTotal)
	factory(m.HTTPRequestDuration)
	factory(m.HTTPRequestsInFlight)
	factory(m.GatewayRequestsTotal)
	factory(m.GatewayRequestDuration)
	factory(m.RateLookupsTotal)
	factory(m.WebhookEventsTotal)
	factory(m.WebhookVerificationsTotal)
	factory(m.CompletionStepsTotal)

	return m
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveGatewayCall records one gateway API call.
func (m *Metrics) ObserveGatewayCall(provider, operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.GatewayRequestsTotal.WithLabelValues(provider, operation, outcome).Inc()
	m.GatewayRequestDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}
