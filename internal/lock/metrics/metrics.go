package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TogglesTotal          *prometheus.CounterVec
	TransfersBlockedTotal prometheus.Counter
	PenaltySecondsTotal   prometheus.Counter
}

// New registers the lock metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		TogglesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lockmint_lock_toggles_total",
			Help: "Total number of lock toggles by resulting state",
		}, []string{"state"}),
		TransfersBlockedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "lockmint_lock_transfers_blocked_total",
			Help: "Total number of batch transfers rejected because a token was locked",
		}),
		PenaltySecondsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "lockmint_lock_penalty_seconds_total",
			Help: "Total lock seconds forfeited to the relock penalty",
		}),
	}
}

func (m *Metrics) IncrementToggle(locked bool) {
	state := "unlocked"
	if locked {
		state = "locked"
	}
	m.TogglesTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) IncrementTransfersBlocked() {
	m.TransfersBlockedTotal.Inc()
}

func (m *Metrics) AddPenaltySeconds(seconds uint64) {
	m.PenaltySecondsTotal.Add(float64(seconds))
}
