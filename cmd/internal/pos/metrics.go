package pos

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts verification outcomes per strategy.
type Metrics struct {
	verifications *prometheus.CounterVec
}

// NewMetrics registers the verifier collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokex",
			Subsystem: "pos",
			Name:      "verifications_total",
			Help:      "POS credential verifications by strategy and verdict.",
		}, []string{"mode", "verdict"}),
	}
	if reg != nil {
		reg.MustRegister(m.verifications)
	}
	return m
}

func (m *Metrics) observe(mode Mode, v Verdict) {
	if m == nil {
		return
	}
	verdict := "invalid"
	if v.Valid {
		verdict = "valid"
	}
	m.verifications.WithLabelValues(string(mode), verdict).Inc()
}
