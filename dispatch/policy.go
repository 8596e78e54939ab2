package dispatch

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/maiahq/maia/types"
)

// Warning is non-fatal policy feedback attached to a successful result, never
// raised as an error.
type Warning struct {
	Code    types.ErrorCode `json:"code"`
	Message string          `json:"message"`
}

// routineMarkers are phrases that flag work as routine generation, eligible
// for the lowest-cost tier regardless of the requested quality.
var routineMarkers = []string{
	"reformat", "rename", "boilerplate", "fix typo", "fix typos",
	"translate", "lint", "regenerate",
}

// Observer receives dispatch events for metrics. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObserveDispatchCost(tier string, cost float64)
	ObserveBudgetDemotion()
}

// PolicyOptions configures a Policy.
type PolicyOptions struct {
	// SessionCostCap is the per-session budget in USD. Zero means uncapped.
	SessionCostCap float64
	// RequestsPerSecond throttles dispatch; zero disables throttling.
	RequestsPerSecond float64
	Table             *PriceTable
	Logger            *zap.Logger
	Observer          Observer
}

// Policy decides which model tier executes a unit of work. The decision is
// stateless per call: it reads the shared ledger but never mutates it, so
// identical inputs against an unchanged ledger yield identical routes.
type Policy struct {
	table    *PriceTable
	ledger   *Ledger
	cap      float64
	limiter  *rate.Limiter
	tokens   *tokenCounter
	logger   *zap.Logger
	observer Observer
}

// NewPolicy creates a dispatch policy bound to a session ledger.
func NewPolicy(ledger *Ledger, opts PolicyOptions) *Policy {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Table == nil {
		opts.Table = NewPriceTable()
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	logger := opts.Logger.With(zap.String("component", "dispatch"))
	return &Policy{
		table:    opts.Table,
		ledger:   ledger,
		cap:      opts.SessionCostCap,
		limiter:  limiter,
		tokens:   newTokenCounter(logger),
		logger:   logger,
		observer: opts.Observer,
	}
}

// Ledger exposes the session ledger so callers can record realized costs.
func (p *Policy) Ledger() *Ledger { return p.ledger }

// RecordCost books the realized cost of a completed dispatch on the session
// ledger and reports it to the observer under the route's tier.
func (p *Policy) RecordCost(route *ModelRoute, cost float64) {
	p.ledger.Record(cost)
	if p.observer != nil {
		p.observer.ObserveDispatchCost(string(route.Tier), cost)
	}
}

// Route selects a model route for the described work at the required quality.
//
// Routine work and fast requests take the lowest-cost tier. Premium requests
// pass a cost-guard first: when the projected spend would break the session
// cap, the route is demoted to standard and a BUDGET_EXCEEDED warning is
// returned alongside it.
func (p *Policy) Route(description string, required Tier) (*ModelRoute, *Warning, error) {
	tier := required
	if tier == "" {
		tier = TierStandard
	}
	if tier == TierFast || isRoutine(description) {
		tier = TierFast
	}

	promptTokens := p.tokens.Count(description)

	var warning *Warning
	if tier == TierPremium {
		price, ok := p.table.Price(TierPremium)
		if !ok {
			return nil, nil, types.NewError(types.ErrDispatch, "no premium model configured")
		}
		estimated := estimateCost(price, promptTokens)
		if p.ledger.WouldExceed(estimated, p.cap) {
			warning = &Warning{
				Code: types.ErrBudgetExceeded,
				Message: fmt.Sprintf(
					"session cost %.4f + estimated %.4f exceeds cap %.4f, demoting to standard",
					p.ledger.Total(), estimated, p.cap),
			}
			tier = TierStandard
			if p.observer != nil {
				p.observer.ObserveBudgetDemotion()
			}
			p.logger.Warn("budget cap reached, demoting route",
				zap.Float64("session_cost", p.ledger.Total()),
				zap.Float64("estimated", estimated),
				zap.Float64("cap", p.cap),
			)
		}
	}

	price, ok := p.table.Price(tier)
	if !ok {
		return nil, nil, types.NewError(types.ErrDispatch,
			fmt.Sprintf("no model configured for tier %s", tier))
	}

	route := &ModelRoute{
		Model:         price.Model,
		Tier:          tier,
		EstimatedCost: estimateCost(price, promptTokens),
	}
	p.logger.Debug("routed dispatch",
		zap.String("model", route.Model),
		zap.String("tier", string(route.Tier)),
		zap.Float64("estimated_cost", route.EstimatedCost),
	)
	return route, warning, nil
}

// Acquire blocks until the rate limiter admits one more dispatch, or the
// context is cancelled. No-op when throttling is disabled.
func (p *Policy) Acquire(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

func estimateCost(price ModelPrice, promptTokens int) float64 {
	return float64(promptTokens) / 1000 * price.PricePer1K
}

func isRoutine(description string) bool {
	d := strings.ToLower(description)
	for _, m := range routineMarkers {
		if strings.Contains(d, m) {
			return true
		}
	}
	return false
}
