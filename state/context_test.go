package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maiahq/maia/types"
)

func newTestContext(t *testing.T) *ExecutionContext {
	t.Helper()
	task := types.NewTask("draft a status report")
	task.SetAttribute("audience", "team")
	task.SetAttribute("format", "markdown")
	return New(task)
}

func TestNew_SeedsTaskAttributes(t *testing.T) {
	t.Parallel()

	ec := newTestContext(t)

	v, ok := ec.Get("audience")
	require.True(t, ok)
	assert.Equal(t, "team", v)

	v, ok = ec.Get("request")
	require.True(t, ok)
	assert.Equal(t, "draft a status report", v)
}

func TestView_IsolatedFromOwner(t *testing.T) {
	t.Parallel()

	ec := newTestContext(t)
	ec.Set("nested", map[string]any{"a": "b"})

	view := ec.View()
	view["audience"] = "tampered"
	view["nested"].(map[string]any)["a"] = "tampered"

	v, _ := ec.Get("audience")
	assert.Equal(t, "team", v)
	nested, _ := ec.Get("nested")
	assert.Equal(t, "b", nested.(map[string]any)["a"])
}

func TestEnrich_SupersetAndImmutability(t *testing.T) {
	t.Parallel()

	ec := newTestContext(t)
	next := ec.Enrich(map[string]any{"draft": "v1", "format": "html"})

	// Every original key survives.
	for _, k := range ec.Keys() {
		_, ok := next.Get(k)
		assert.True(t, ok, "key %q lost in enrichment", k)
	}
	// Delta overwrites win in the new context only.
	v, _ := next.Get("format")
	assert.Equal(t, "html", v)
	v, _ = ec.Get("format")
	assert.Equal(t, "markdown", v)
}

func TestSnapshotRestore_Rollback(t *testing.T) {
	t.Parallel()

	ec := newTestContext(t)
	ec.AppendStep(StepSummary{Handler: "writer", Outcome: "handoff", Timestamp: time.Now()})

	snap := ec.Snapshot()
	ec.Set("audience", "board")
	ec.Set("extra", 42)

	restored := snap.Restore()
	v, _ := restored.Get("audience")
	assert.Equal(t, "team", v)
	_, ok := restored.Get("extra")
	assert.False(t, ok)
	assert.Len(t, restored.Steps(), 1)
}

func TestRetention_Measurement(t *testing.T) {
	t.Parallel()

	ec := newTestContext(t)
	snap := ec.Snapshot()

	// Unchanged context retains fully.
	assert.Equal(t, 1.0, Retention(snap, ec))
	require.NoError(t, VerifyRetention(snap, ec))

	// The summary key is excluded from the check.
	ec.Set("summary", "step one done")
	snap = ec.Snapshot()
	next := ec.Enrich(map[string]any{"summary": "step two done"})
	assert.Equal(t, 1.0, Retention(snap, next))

	// A mutated retained key counts as loss.
	lossy := ec.Enrich(nil)
	lossy.Set("audience", "rewritten")
	r := Retention(snap, lossy)
	assert.Less(t, r, 1.0)
}

func TestVerifyRetention_ReportsContextLoss(t *testing.T) {
	t.Parallel()

	ec := newTestContext(t)
	snap := ec.Snapshot()

	lossy := ec.Enrich(nil)
	lossy.Set("audience", "x")
	lossy.Set("format", "x")
	lossy.Set("request", "x")

	err := VerifyRetention(snap, lossy)
	require.Error(t, err)
	assert.Equal(t, types.ErrContextLoss, types.GetErrorCode(err))
}
