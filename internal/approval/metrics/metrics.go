// Package metrics records approval workflow counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Opened   prometheus.Counter
	Resolved *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Opened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_approvals_opened_total",
			Help: "Step-up approval requests opened.",
		}),
		Resolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_approvals_resolved_total",
			Help: "Step-up approval requests resolved, by terminal status.",
		}, []string{"status"}),
	}
}

func (m *Metrics) IncrementOpened() {
	if m == nil {
		return
	}
	m.Opened.Inc()
}

func (m *Metrics) IncrementResolved(status string) {
	if m == nil {
		return
	}
	m.Resolved.WithLabelValues(status).Inc()
}
