package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Observations(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollector("maia", reg, nil)

	c.ObserveChain("completed", 100*time.Millisecond)
	c.ObserveStep("network", "handoff")
	c.ObserveStep("network", "completed")
	c.ObserveRetry("network")
	c.ObserveFallback("network", "backup")
	c.ObserveDispatchCost("premium", 0.05)
	c.ObserveDispatchCost("premium", 0)
	c.ObserveBudgetDemotion()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.chainsTotal.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.stepsTotal.WithLabelValues("network", "handoff"))+
		testutil.ToFloat64(c.stepsTotal.WithLabelValues("network", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.retriesTotal.WithLabelValues("network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fallbackTotal.WithLabelValues("network", "backup")))
	assert.InDelta(t, 0.05, testutil.ToFloat64(c.dispatchCost.WithLabelValues("premium")), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.budgetDemoted))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
