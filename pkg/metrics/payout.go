package metrics

import "github.com/prometheus/client_golang/prometheus"

// PayoutMetrics counts withdrawal lifecycle transitions.
type PayoutMetrics struct {
	requests  prometheus.Counter
	decisions *prometheus.CounterVec
}

// NewPayoutMetrics registers the payout metrics on the provided registerer.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	requests := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payout_requests_total",
		Help: "Withdrawal requests accepted.",
	})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_decisions_total",
		Help: "Withdrawal decisions by resulting status.",
	}, []string{"status"})
	reg.MustRegister(requests, decisions)
	return &PayoutMetrics{requests: requests, decisions: decisions}
}

// IncRequest increments the accepted-request counter.
func (p *PayoutMetrics) IncRequest() {
	if p == nil || p.requests == nil {
		return
	}
	p.requests.Inc()
}

// IncDecision increments the decision counter for the given status.
func (p *PayoutMetrics) IncDecision(status string) {
	if p == nil || p.decisions == nil {
		return
	}
	p.decisions.WithLabelValues(normalizeLabel(status)).Inc()
}
