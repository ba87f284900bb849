package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PurchasesTotal      prometheus.Counter
	PurchasedUnitsTotal prometheus.Counter
	RedeemedUnitsTotal  prometheus.Counter
	RejectionsTotal     *prometheus.CounterVec
	PaymentVolumeTotal  *prometheus.CounterVec
}

// New registers the allowance ledger metrics with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		PurchasesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "lockmint_allowance_purchases_total",
			Help: "Total number of committed allowance purchases",
		}),
		PurchasedUnitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "lockmint_allowance_purchased_units_total",
			Help: "Total allowance units sold",
		}),
		RedeemedUnitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "lockmint_allowance_redeemed_units_total",
			Help: "Total allowance units redeemed into tokens",
		}),
		RejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lockmint_allowance_rejections_total",
			Help: "Total rejected ledger operations by reason",
		}, []string{"op", "reason"}),
		PaymentVolumeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lockmint_allowance_payment_volume_total",
			Help: "Total payment units collected by asset",
		}, []string{"asset"}),
	}
}

func (m *Metrics) ObservePurchase(asset string, amount, cost uint64) {
	m.PurchasesTotal.Inc()
	m.PurchasedUnitsTotal.Add(float64(amount))
	m.PaymentVolumeTotal.WithLabelValues(asset).Add(float64(cost))
}

func (m *Metrics) ObserveRedeem(amount uint64) {
	m.RedeemedUnitsTotal.Add(float64(amount))
}

func (m *Metrics) IncrementRejection(op, reason string) {
	m.RejectionsTotal.WithLabelValues(op, reason).Inc()
}
