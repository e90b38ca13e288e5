package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Starts          *prometheus.CounterVec
	Resolutions     *prometheus.CounterVec
	PendingSessions prometheus.Gauge
	SessionDuration prometheus.Histogram
	StoreFailures   prometheus.Counter
	PromptFailures  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Starts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_verification_starts_total",
			Help: "Verification starts by result",
		}, []string{"result"}),
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_verification_resolutions_total",
			Help: "Pending sessions resolved by outcome",
		}, []string{"outcome"}),
		PendingSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "warden_verification_pending_sessions",
			Help: "Live pending verification sessions",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_verification_session_duration_seconds",
			Help:    "Time from start to resolution",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		StoreFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_verification_store_failures_total",
			Help: "Verification record writes that failed after retries",
		}),
		PromptFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_verification_prompt_failures_total",
			Help: "Prompts that could not be delivered by DM or channel",
		}),
	}
}

func (m *Metrics) IncrementStart(result string) {
	if m == nil {
		return
	}
	m.Starts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveResolution(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
	m.SessionDuration.Observe(d.Seconds())
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingSessions.Set(float64(n))
}

func (m *Metrics) IncrementStoreFailure() {
	if m == nil {
		return
	}
	m.StoreFailures.Inc()
}

func (m *Metrics) IncrementPromptFailure() {
	if m == nil {
		return
	}
	m.PromptFailures.Inc()
}
