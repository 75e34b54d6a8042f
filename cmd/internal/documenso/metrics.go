package documenso

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts upstream calls per operation and outcome.
type Metrics struct {
	requests *prometheus.CounterVec
}

// NewMetrics registers the upstream collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokex",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Documenso API calls by operation and outcome.",
		}, []string{"op", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests)
	}
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case IsNetworkError(err):
		outcome = "network_error"
	default:
		outcome = "http_error"
	}
	m.requests.WithLabelValues(op, outcome).Inc()
}
