// Package state implements the execution context that flows through a handoff
// chain: an attribute map seeded from the task, an append-only list of step
// summaries, deep-copy snapshots for rollback, and the retention verification
// that guards against context loss across handoffs.
package state
