package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
type Metrics struct {
	// Provider call latencies by provider kind.
	ProviderLatency *prometheus.HistogramVec

	// Sections that came back unchecked (provider outage or timeout).
	Unavailable *prometheus.CounterVec
}

// New creates a Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "custos_verification_provider_duration_seconds",
			Help:    "Duration of verification provider calls by provider",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}), // provider: "number", "location", "risk"

		Unavailable: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_verification_unavailable_total",
			Help: "Verification sections that degraded to unchecked",
		}, []string{"provider"}),
	}
}

// ObserveProviderLatency records the duration of one provider call.
func (m *Metrics) ObserveProviderLatency(provider string, d time.Duration) {
	if m != nil {
		m.ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// IncrementUnavailable records a degraded verification section.
func (m *Metrics) IncrementUnavailable(provider string) {
	if m != nil {
		m.Unavailable.WithLabelValues(provider).Inc()
	}
}
