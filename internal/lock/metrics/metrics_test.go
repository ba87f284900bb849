package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementToggle(true)
	m.IncrementToggle(true)
	m.IncrementToggle(false)
	m.IncrementTransfersBlocked()
	m.AddPenaltySeconds(50)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TogglesTotal.WithLabelValues("locked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TogglesTotal.WithLabelValues("unlocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransfersBlockedTotal))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.PenaltySecondsTotal))
}
