package dispatch

import "sync/atomic"

// microUSD is the ledger's fixed-point unit: costs are stored as integer
// millionths of a dollar so concurrent updates stay atomic.
const microUSD = 1_000_000

// Ledger is the append-only running-cost counter shared by every chain in a
// session. It replaces any ambient global: callers pass the ledger they are
// scoped to.
type Ledger struct {
	total atomic.Int64 // micro-dollars
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Record adds a realized invocation cost to the session total.
func (l *Ledger) Record(cost float64) {
	if cost <= 0 {
		return
	}
	l.total.Add(int64(cost * microUSD))
}

// Total returns the running session cost in USD.
func (l *Ledger) Total() float64 {
	return float64(l.total.Load()) / microUSD
}

// WouldExceed reports whether spending extra on top of the running total
// would break the cap. A zero or negative cap means uncapped.
func (l *Ledger) WouldExceed(extra, cap float64) bool {
	if cap <= 0 {
		return false
	}
	projected := l.total.Load() + int64(extra*microUSD)
	return projected > int64(cap*microUSD)
}
