// Package orchestrator executes bounded handler handoff chains. Each chain
// is a strict sequential state machine: invoke the current handler, follow
// its handoff request or finish on its final output, with cycle prevention
// via a visited set, a hard handoff ceiling, retry with exponential backoff
// and one fallback substitution for transient failures, and snapshot
// rollback when a handoff violates the context retention invariant.
package orchestrator
