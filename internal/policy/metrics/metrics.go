package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the policy module.
type Metrics struct {
	// Decision outcomes by outcome and reason code.
	DecisionOutcome *prometheus.CounterVec
}

// New creates a Metrics instance with all policy metrics registered.
func New() *Metrics {
	return &Metrics{
		DecisionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_policy_decisions_total",
			Help: "Total policy decisions by outcome and reason",
		}, []string{"outcome", "reason"}),
	}
}

// IncrementOutcome records a decision outcome.
func (m *Metrics) IncrementOutcome(outcome, reason string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(outcome, reason).Inc()
	}
}
