package metrics

import "github.com/prometheus/client_golang/prometheus"

// CommissionMetrics records commission entry activity.
type CommissionMetrics struct {
	entries       *prometheus.CounterVec
	binaryDropped prometheus.Counter
}

// NewCommissionMetrics registers the commission metrics on the provided registerer.
func NewCommissionMetrics(reg prometheus.Registerer) *CommissionMetrics {
	if reg == nil {
		return &CommissionMetrics{}
	}
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_entries_total",
		Help: "Commission entries created, by type.",
	}, []string{"type"})
	binaryDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "commission_binary_dropped_total",
		Help: "Matching cycles where part of the binary commission exceeded the daily cap.",
	})
	reg.MustRegister(entries, binaryDropped)
	return &CommissionMetrics{
		entries:       entries,
		binaryDropped: binaryDropped,
	}
}

// IncEntry increments the entry counter for the given commission type.
func (c *CommissionMetrics) IncEntry(commissionType string) {
	if c == nil || c.entries == nil {
		return
	}
	c.entries.WithLabelValues(normalizeLabel(commissionType)).Inc()
}

// IncBinaryDropped counts a settlement that hit the daily binary cap.
func (c *CommissionMetrics) IncBinaryDropped() {
	if c == nil || c.binaryDropped == nil {
		return
	}
	c.binaryDropped.Inc()
}
