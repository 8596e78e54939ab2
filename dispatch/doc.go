// Package dispatch implements the cost-aware model routing policy: quality
// tiers, a per-model price table, token-count based cost estimation, and an
// atomically updated session cost ledger that enforces the budget cap by
// demoting premium routes instead of failing them.
package dispatch
