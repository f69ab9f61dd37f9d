package metrics

import "github.com/prometheus/client_golang/prometheus"

// WalletMetrics counts ledger movements by bucket.
type WalletMetrics struct {
	credits *prometheus.CounterVec
	debits  *prometheus.CounterVec
}

// NewWalletMetrics registers the wallet metrics on the provided registerer.
func NewWalletMetrics(reg prometheus.Registerer) *WalletMetrics {
	if reg == nil {
		return &WalletMetrics{}
	}
	credits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_credits_total",
		Help: "Wallet credit operations by bucket.",
	}, []string{"bucket"})
	debits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_debits_total",
		Help: "Wallet debit operations by bucket.",
	}, []string{"bucket"})
	reg.MustRegister(credits, debits)
	return &WalletMetrics{credits: credits, debits: debits}
}

// IncCredit increments the credit counter for the given bucket.
func (w *WalletMetrics) IncCredit(bucket string) {
	if w == nil || w.credits == nil {
		return
	}
	w.credits.WithLabelValues(normalizeLabel(bucket)).Inc()
}

// IncDebit increments the debit counter for the given bucket.
func (w *WalletMetrics) IncDebit(bucket string) {
	if w == nil || w.debits == nil {
		return
	}
	w.debits.WithLabelValues(normalizeLabel(bucket)).Inc()
}
