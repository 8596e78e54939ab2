package state

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/maiahq/maia/types"
)

// Property: enrichment never loses a key, whatever the delta contains.
func TestProperty_EnrichKeySetSuperset(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		task := types.NewTask("property run")
		seed := rapid.MapOf(
			rapid.StringMatching(`[a-z]{1,8}`),
			rapid.String(),
		).Draw(rt, "seed")
		for k, v := range seed {
			task.SetAttribute(k, v)
		}
		ec := New(task)

		delta := rapid.MapOf(
			rapid.StringMatching(`[a-z]{1,8}`),
			rapid.String().AsAny(),
		).Draw(rt, "delta")

		next := ec.Enrich(delta)
		for _, k := range ec.Keys() {
			_, ok := next.Get(k)
			require.True(rt, ok, "key %q dropped by Enrich", k)
		}
		for k := range delta {
			_, ok := next.Get(k)
			require.True(rt, ok, "delta key %q missing after Enrich", k)
		}
	})
}

// Property: a delta that only adds keys always passes the retention check.
func TestProperty_AdditiveDeltaRetainsFully(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		task := types.NewTask("property run")
		seed := rapid.MapOf(
			rapid.StringMatching(`[a-g]{1,6}`),
			rapid.String(),
		).Draw(rt, "seed")
		for k, v := range seed {
			task.SetAttribute(k, v)
		}
		ec := New(task)
		snap := ec.Snapshot()

		// New keys only: prefix guarantees no collision with seed or "request".
		delta := map[string]any{}
		adds := rapid.MapOf(
			rapid.StringMatching(`[h-z]{1,6}`),
			rapid.String(),
		).Draw(rt, "adds")
		for k, v := range adds {
			delta["new_"+k] = v
		}

		next := ec.Enrich(delta)
		require.Equal(rt, 1.0, Retention(snap, next))
		require.NoError(rt, VerifyRetention(snap, next))
	})
}

// Property: snapshot/restore round-trips the full attribute map.
func TestProperty_SnapshotRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		task := types.NewTask("property run")
		seed := rapid.MapOf(
			rapid.StringMatching(`[a-z]{1,8}`),
			rapid.String(),
		).Draw(rt, "seed")
		for k, v := range seed {
			task.SetAttribute(k, v)
		}
		ec := New(task)

		restored := ec.Snapshot().Restore()
		require.ElementsMatch(rt, ec.Keys(), restored.Keys())
		for _, k := range ec.Keys() {
			want, _ := ec.Get(k)
			got, _ := restored.Get(k)
			require.Equal(rt, want, got)
		}
	})
}
