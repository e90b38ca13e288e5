package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide transport metrics. Domain packages register
// their own collectors.
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	CommandsHandled     *prometheus.CounterVec
	OutboxPublished     prometheus.Counter
	OutboxFailures      prometheus.Counter
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_http_requests_total",
			Help: "Admin API requests by route and status class",
		}, []string{"route", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_http_request_duration_seconds",
			Help:    "Admin API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		CommandsHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_commands_total",
			Help: "Chat commands handled by name and outcome",
		}, []string{"command", "outcome"}),
		OutboxPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_audit_outbox_published_total",
			Help: "Audit outbox rows published to Kafka",
		}),
		OutboxFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_audit_outbox_failures_total",
			Help: "Failed audit outbox publish batches",
		}),
	}
}

func (m *Metrics) ObserveHTTPRequest(route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) IncrementCommand(command, outcome string) {
	if m == nil {
		return
	}
	m.CommandsHandled.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) AddOutboxPublished(n int) {
	if m == nil {
		return
	}
	m.OutboxPublished.Add(float64(n))
}

func (m *Metrics) IncrementOutboxFailure() {
	if m == nil {
		return
	}
	m.OutboxFailures.Inc()
}
