package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	GroupOutcomes  *prometheus.CounterVec
	InviteOutcomes *prometheus.CounterVec
	RunDuration    prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		GroupOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_propagation_group_outcomes_total",
			Help: "Per-group marker propagation outcomes",
		}, []string{"status"}),
		InviteOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_propagation_invite_outcomes_total",
			Help: "Primary group admission outcomes",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_propagation_duration_seconds",
			Help:    "Wall time of one propagation run",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) IncrementGroupOutcome(status string) {
	if m == nil {
		return
	}
	m.GroupOutcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementInviteOutcome(status string) {
	if m == nil {
		return
	}
	m.InviteOutcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}
