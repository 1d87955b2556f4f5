// Package metrics records audit ledger counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Appended      *prometheus.CounterVec
	Verifications *prometheus.CounterVec
	AnnounceDrops prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Appended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_ledger_records_appended_total",
			Help: "Records appended to the audit ledger, by event type.",
		}, []string{"event_type"}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_ledger_chain_verifications_total",
			Help: "Full chain verification passes, by result.",
		}, []string{"result"}),
		AnnounceDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_ledger_announce_drops_total",
			Help: "Ledger records dropped by the announcer instead of published.",
		}),
	}
}

func (m *Metrics) IncrementAppended(eventType string) {
	if m == nil {
		return
	}
	m.Appended.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncrementVerification(valid bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.Verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementAnnounceDrop() {
	if m == nil {
		return
	}
	m.AnnounceDrops.Inc()
}
