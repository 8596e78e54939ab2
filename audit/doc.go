// Package audit exposes the orchestrator's sole observable side effect
// besides the final result: an append-only stream of step records. The
// stream sink emits newline-delimited JSON for external observability
// tooling; the store sink persists records to sqlite through GORM for
// post-hoc diagnosis.
package audit
