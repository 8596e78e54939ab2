// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates the orchestration core's Prometheus metrics.
type Collector struct {
	chainsTotal   *prometheus.CounterVec
	chainDuration *prometheus.HistogramVec
	stepsTotal    *prometheus.CounterVec
	retriesTotal  *prometheus.CounterVec
	fallbackTotal *prometheus.CounterVec
	dispatchCost  *prometheus.CounterVec
	budgetDemoted prometheus.Counter

	logger *zap.Logger
}

// NewCollector registers the core metrics under the given namespace using
// the provided registerer (prometheus.DefaultRegisterer in production, a
// fresh registry in tests).
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.chainsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chains_total",
			Help:      "Total number of executed handoff chains",
		},
		[]string{"status"},
	)
	c.chainDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chain_duration_seconds",
			Help:      "Handoff chain duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	c.stepsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Total number of handler steps",
		},
		[]string{"handler", "outcome"},
	)
	c.retriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_retries_total",
			Help:      "Total number of handler invocation retries",
		},
		[]string{"handler"},
	)
	c.fallbackTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_fallbacks_total",
			Help:      "Total number of fallback handler substitutions",
		},
		[]string{"from", "to"},
	)
	c.dispatchCost = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_cost_usd_total",
			Help:      "Cumulative dispatched model cost in USD",
		},
		[]string{"tier"},
	)
	c.budgetDemoted = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_demotions_total",
			Help:      "Total number of premium routes demoted by the budget cap",
		},
	)

	return c
}

// ObserveChain records a finished chain.
func (c *Collector) ObserveChain(status string, duration time.Duration) {
	c.chainsTotal.WithLabelValues(status).Inc()
	c.chainDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveStep records one handler step.
func (c *Collector) ObserveStep(handler, outcome string) {
	c.stepsTotal.WithLabelValues(handler, outcome).Inc()
}

// ObserveRetry records a handler retry.
func (c *Collector) ObserveRetry(handler string) {
	c.retriesTotal.WithLabelValues(handler).Inc()
}

// ObserveFallback records a fallback substitution.
func (c *Collector) ObserveFallback(from, to string) {
	c.fallbackTotal.WithLabelValues(from, to).Inc()
}

// ObserveDispatchCost records realized model spend.
func (c *Collector) ObserveDispatchCost(tier string, cost float64) {
	if cost > 0 {
		c.dispatchCost.WithLabelValues(tier).Add(cost)
	}
}

// ObserveBudgetDemotion records a budget-cap demotion.
func (c *Collector) ObserveBudgetDemotion() {
	c.budgetDemoted.Inc()
}
