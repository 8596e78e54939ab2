package state

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/maiahq/maia/types"
)

// RetentionThreshold is the minimum fraction of pre-handoff keys that must
// survive a handoff unchanged for the transition to be considered sound.
const RetentionThreshold = 0.95

// overwritableKeys are exempt from the retention check: they are rewritten
// at each step on purpose.
var overwritableKeys = map[string]struct{}{
	"summary": {},
}

// StepSummary records one completed handler turn inside the context.
type StepSummary struct {
	Handler   string    `json:"handler"`
	Outcome   string    `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionContext is the state propagated across a handoff chain. It is
// owned exclusively by the orchestrator during a chain's lifetime, so it is
// deliberately unsynchronized; handlers only ever see read copies produced
// by View.
type ExecutionContext struct {
	taskID string
	attrs  map[string]any
	steps  []StepSummary
}

// New creates an ExecutionContext seeded from the task's attribute map.
func New(task *types.Task) *ExecutionContext {
	ec := &ExecutionContext{
		taskID: task.ID,
		attrs:  make(map[string]any, len(task.Attributes)+2),
	}
	for k, v := range task.Attributes {
		ec.attrs[k] = cloneValue(v)
	}
	ec.attrs["request"] = task.Request
	return ec
}

// TaskID returns the owning task's identifier.
func (ec *ExecutionContext) TaskID() string { return ec.taskID }

// Get returns the value stored under key.
func (ec *ExecutionContext) Get(key string) (any, bool) {
	v, ok := ec.attrs[key]
	return v, ok
}

// Set writes a value. Keys are append/overwrite only; there is no delete.
func (ec *ExecutionContext) Set(key string, value any) {
	ec.attrs[key] = value
}

// Len returns the number of attribute keys.
func (ec *ExecutionContext) Len() int { return len(ec.attrs) }

// Keys returns the attribute keys in sorted order.
func (ec *ExecutionContext) Keys() []string {
	keys := make([]string, 0, len(ec.attrs))
	for k := range ec.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// View returns a deep copy of the attribute map for handler consumption.
// Handlers must not be able to mutate the orchestrator-owned state in place.
func (ec *ExecutionContext) View() map[string]any {
	out := make(map[string]any, len(ec.attrs))
	for k, v := range ec.attrs {
		out[k] = cloneValue(v)
	}
	return out
}

// AppendStep records a completed handler turn.
func (ec *ExecutionContext) AppendStep(s StepSummary) {
	ec.steps = append(ec.steps, s)
}

// Steps returns a copy of the recorded step summaries, oldest first.
func (ec *ExecutionContext) Steps() []StepSummary {
	out := make([]StepSummary, len(ec.steps))
	copy(out, ec.steps)
	return out
}

// Enrich merges a handoff delta into a new context whose key set is a
// superset of the receiver's. The receiver is left untouched.
func (ec *ExecutionContext) Enrich(delta map[string]any) *ExecutionContext {
	next := &ExecutionContext{
		taskID: ec.taskID,
		attrs:  make(map[string]any, len(ec.attrs)+len(delta)),
		steps:  append([]StepSummary(nil), ec.steps...),
	}
	for k, v := range ec.attrs {
		next.attrs[k] = cloneValue(v)
	}
	for k, v := range delta {
		next.attrs[k] = cloneValue(v)
	}
	return next
}

// Snapshot is a deep copy of an ExecutionContext taken before a handoff,
// used both for rollback and for the retention check.
type Snapshot struct {
	taskID string
	attrs  map[string]any
	steps  []StepSummary
}

// Snapshot produces a deep copy of the current state.
func (ec *ExecutionContext) Snapshot() *Snapshot {
	snap := &Snapshot{
		taskID: ec.taskID,
		attrs:  make(map[string]any, len(ec.attrs)),
		steps:  append([]StepSummary(nil), ec.steps...),
	}
	for k, v := range ec.attrs {
		snap.attrs[k] = cloneValue(v)
	}
	return snap
}

// Restore materializes a fresh ExecutionContext from the snapshot.
func (s *Snapshot) Restore() *ExecutionContext {
	ec := &ExecutionContext{
		taskID: s.taskID,
		attrs:  make(map[string]any, len(s.attrs)),
		steps:  append([]StepSummary(nil), s.steps...),
	}
	for k, v := range s.attrs {
		ec.attrs[k] = cloneValue(v)
	}
	return ec
}

// KeyCount returns the number of attribute keys captured in the snapshot.
func (s *Snapshot) KeyCount() int { return len(s.attrs) }

// Retention measures the fraction of snapshot keys still present and
// value-unchanged in after, excluding keys intended for overwrite. An empty
// snapshot retains trivially.
func Retention(before *Snapshot, after *ExecutionContext) float64 {
	total, retained := 0, 0
	for k, v := range before.attrs {
		if _, overwritable := overwritableKeys[k]; overwritable {
			continue
		}
		total++
		if cur, ok := after.attrs[k]; ok && reflect.DeepEqual(cur, v) {
			retained++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(retained) / float64(total)
}

// VerifyRetention enforces the retention invariant for one handoff. It
// returns a CONTEXT_LOSS error when the measured retention drops below
// RetentionThreshold.
func VerifyRetention(before *Snapshot, after *ExecutionContext) error {
	if r := Retention(before, after); r < RetentionThreshold {
		return types.NewError(types.ErrContextLoss,
			fmt.Sprintf("context retention %.2f below threshold %.2f", r, RetentionThreshold))
	}
	return nil
}

// cloneValue deep-copies the JSON-ish value shapes handlers exchange. Scalars
// and unknown types are returned as-is.
func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, vv := range tv {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, vv := range tv {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}
