package gateway

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts gateway responses per route and surfaced code ("OK" on success).
type Metrics struct {
	responses *prometheus.CounterVec
}

// NewMetrics registers the gateway collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokex",
			Subsystem: "gateway",
			Name:      "responses_total",
			Help:      "Gateway responses by route and code.",
		}, []string{"route", "code"}),
	}
	if reg != nil {
		reg.MustRegister(m.responses)
	}
	return m
}

func (m *Metrics) observe(route string, code Code) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(route, string(code)).Inc()
}
