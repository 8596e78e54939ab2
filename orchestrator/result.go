package orchestrator

import (
	"github.com/maiahq/maia/dispatch"
	"github.com/maiahq/maia/types"
)

// Status is the terminal outcome of a chain.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusMaxHandoffs Status = "max_handoffs_exceeded"
	StatusFailed      Status = "failed"
)

// Step outcomes recorded in the audit trail.
const (
	OutcomeCompleted   = "completed"
	OutcomeHandoff     = "handoff"
	OutcomeFailed      = "failed"
	OutcomeContextLoss = "context_loss"
)

// Step is one recorded handler turn.
type Step struct {
	Handler    string `json:"handler"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason,omitempty"` // handoff reason, for audit
	DurationMS int64  `json:"duration_ms"`
	KeysIn     int    `json:"keys_in"`
	KeysOut    int    `json:"keys_out"`
}

// ChainResult is the terminal outcome of an execution: the final output, the
// ordered step history, and any policy warnings gathered along the way.
// Callers always receive the full step history up to the point of failure.
type ChainResult struct {
	TaskID   string             `json:"task_id"`
	Status   Status             `json:"status"`
	Output   any                `json:"output,omitempty"`
	Cause    *types.Error       `json:"cause,omitempty"`
	Steps    []Step             `json:"steps"`
	Warnings []dispatch.Warning `json:"warnings,omitempty"`
}

// Failed reports whether the chain ended without a final output.
func (r *ChainResult) Failed() bool {
	return r.Status != StatusCompleted
}
