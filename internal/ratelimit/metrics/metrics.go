package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Checks          *prometheus.CounterVec
	WindowsSwept    prometheus.Counter
	DegradedStorage prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Checks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_ratelimit_checks_total",
			Help: "Verification rate limit checks by outcome",
		}, []string{"outcome"}),
		WindowsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_ratelimit_windows_swept_total",
			Help: "Aged-out rate limit windows dropped by the sweeper",
		}),
		DegradedStorage: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "warden_ratelimit_degraded",
			Help: "1 while rate limit windows are served from the in-memory fallback",
		}),
	}
}

func (m *Metrics) IncrementCheck(allowed bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.Checks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddWindowsSwept(n int) {
	if m == nil {
		return
	}
	m.WindowsSwept.Add(float64(n))
}

// SetDegraded satisfies window.DegradedObserver.
func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.DegradedStorage.Set(1)
		return
	}
	m.DegradedStorage.Set(0)
}
