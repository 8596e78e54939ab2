package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maiahq/maia/registry"
	"github.com/maiahq/maia/types"
)

type fakeHandler struct {
	name string
	caps []string
}

func (f *fakeHandler) Name() string           { return f.name }
func (f *fakeHandler) Capabilities() []string { return f.caps }
func (f *fakeHandler) Invoke(context.Context, map[string]any) (*registry.Outcome, error) {
	return registry.Final("ok"), nil
}

func newTestRegistry(t *testing.T, handlers ...*fakeHandler) *registry.Registry {
	t.Helper()
	reg := registry.New(nil)
	for _, h := range handlers {
		require.NoError(t, reg.Register(h))
	}
	return reg
}

func TestClassify_EmptyRegistryFails(t *testing.T) {
	t.Parallel()

	c := NewClassifier(registry.New(nil), nil, nil)
	_, err := c.Classify("anything")
	require.Error(t, err)
	assert.Equal(t, types.ErrClassification, types.GetErrorCode(err))
}

func TestClassify_RanksMatchingDomainFirst(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t,
		&fakeHandler{name: "alpha", caps: []string{"network"}},
		&fakeHandler{name: "bravo", caps: []string{"storage"}},
	)
	c := NewClassifier(reg, nil, nil)

	cls, err := c.Classify("check the network latency")
	require.NoError(t, err)

	assert.Equal(t, "alpha", cls.Candidates[0].Handler)
	assert.Equal(t, "network", cls.Intent)
	assert.Less(t, cls.Complexity, 3)
	assert.GreaterOrEqual(t, cls.Confidence, 0.4)
	assert.Equal(t, []string{"network", "storage"}, cls.Domains())
}

func TestClassify_Deterministic(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t,
		&fakeHandler{name: "alpha", caps: []string{"network"}},
		&fakeHandler{name: "bravo", caps: []string{"storage"}},
	)
	c := NewClassifier(reg, nil, nil)

	first, err := c.Classify("diagnose the storage cluster and then check the network")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := c.Classify("diagnose the storage cluster and then check the network")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestClassify_AmbiguousInputStillClassifies(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t,
		&fakeHandler{name: "alpha", caps: []string{"network"}},
		&fakeHandler{name: "bravo", caps: []string{"storage"}},
	)
	c := NewClassifier(reg, nil, nil)

	cls, err := c.Classify("hello there")
	require.NoError(t, err)
	assert.Equal(t, "general", cls.Intent)
	assert.Equal(t, 0.0, cls.Confidence)
	// Zero-score candidates fall back to name order.
	assert.Equal(t, "alpha", cls.Candidates[0].Handler)
}

func TestClassify_TieBreakLexicographic(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t,
		&fakeHandler{name: "zulu", caps: []string{"report"}},
		&fakeHandler{name: "mike", caps: []string{"report"}},
	)
	c := NewClassifier(reg, nil, nil)

	cls, err := c.Classify("prepare the weekly report")
	require.NoError(t, err)
	assert.Equal(t, "mike", cls.Candidates[0].Handler)
}

func TestClassify_TieBreakPrefersLowerFailureRate(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t,
		&fakeHandler{name: "zulu", caps: []string{"report"}},
		&fakeHandler{name: "mike", caps: []string{"report"}},
	)
	stats := NewStats()
	stats.RecordFailure("mike")
	stats.RecordSuccess("zulu")

	c := NewClassifier(reg, stats, nil)
	cls, err := c.Classify("prepare the weekly report")
	require.NoError(t, err)
	assert.Equal(t, "zulu", cls.Candidates[0].Handler)
}

func TestClassify_MultiStepRaisesComplexity(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t,
		&fakeHandler{name: "alpha", caps: []string{"network"}},
		&fakeHandler{name: "bravo", caps: []string{"storage"}},
	)
	c := NewClassifier(reg, nil, nil)

	flat, err := c.Classify("check network latency")
	require.NoError(t, err)
	stepped, err := c.Classify("check the network latency and then archive the storage metrics")
	require.NoError(t, err)

	assert.Greater(t, stepped.Complexity, flat.Complexity)
}

func TestStats_FailureRate(t *testing.T) {
	t.Parallel()

	s := NewStats()
	assert.Equal(t, 0.0, s.FailureRate("unknown"))

	s.RecordSuccess("h")
	s.RecordFailure("h")
	assert.Equal(t, 0.5, s.FailureRate("h"))
}
