package dispatch

import "sync"

// Tier is the quality tier of a model route.
type Tier string

const (
	TierFast     Tier = "fast"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// ModelRoute is a routing decision: which model runs a unit of work and at
// what estimated cost. Routes are selected fresh for every dispatch call and
// never persisted.
type ModelRoute struct {
	Model         string  `json:"model"`
	Tier          Tier    `json:"tier"`
	EstimatedCost float64 `json:"estimated_cost"` // USD per invocation
}

// ModelPrice describes one model's pricing inside a tier.
type ModelPrice struct {
	Model      string  `json:"model"`
	Tier       Tier    `json:"tier"`
	PricePer1K float64 `json:"price_per_1k"` // USD per 1K prompt tokens
}

// PriceTable maps quality tiers to concrete models. Lookups are read-mostly;
// SetPrice exists for deployments that override defaults from config.
type PriceTable struct {
	mu     sync.RWMutex
	byTier map[Tier]ModelPrice
}

// NewPriceTable returns a table preloaded with one model per tier: a local
// small model for fast work, a mid remote model for standard, and a frontier
// remote model for premium.
func NewPriceTable() *PriceTable {
	t := &PriceTable{byTier: make(map[Tier]ModelPrice)}
	for _, p := range []ModelPrice{
		{Model: "local/qwen2.5-7b", Tier: TierFast, PricePer1K: 0.00005},
		{Model: "gpt-4o-mini", Tier: TierStandard, PricePer1K: 0.00015},
		{Model: "claude-3-5-sonnet", Tier: TierPremium, PricePer1K: 0.003},
	} {
		t.byTier[p.Tier] = p
	}
	return t
}

// SetPrice overrides the model serving a tier.
func (t *PriceTable) SetPrice(p ModelPrice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byTier[p.Tier] = p
}

// Price returns the model serving a tier.
func (t *PriceTable) Price(tier Tier) (ModelPrice, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.byTier[tier]
	return p, ok
}
