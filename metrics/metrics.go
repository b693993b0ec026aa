// Package metrics exposes the Prometheus counters and histograms the
// issuer server publishes, grounded on the teacher's use of
// prometheus/client_golang for its own subsystem metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the counters and histograms api's handlers update.
type Metrics struct {
	WithdrawTotal       prometheus.Counter
	RedeemAcceptedTotal prometheus.Counter
	RedeemRejectedTotal *prometheus.CounterVec
	RedeemDuration      prometheus.Histogram
}

// New registers and returns the ecash metrics against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry across parallel test binaries.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WithdrawTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecash_withdraw_total",
			Help: "Total number of completed withdraw requests.",
		}),
		RedeemAcceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecash_redeem_accepted_total",
			Help: "Total number of tokens accepted by redeem requests.",
		}),
		RedeemRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecash_redeem_rejected_total",
			Help: "Total number of redeem requests rejected, by reason.",
		}, []string{"reason"}),
		RedeemDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecash_redeem_duration_seconds",
			Help:    "Latency of redeem requests.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.WithdrawTotal, m.RedeemAcceptedTotal, m.RedeemRejectedTotal, m.RedeemDuration)
	return m
}

// ObserveRedeemDuration records how long a redeem request took to process.
func (m *Metrics) ObserveRedeemDuration(since time.Time) {
	m.RedeemDuration.Observe(time.Since(since).Seconds())
}
