package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubHandler is a minimal Handler for registry tests.
type stubHandler struct {
	name string
	caps []string
}

func (s *stubHandler) Name() string           { return s.name }
func (s *stubHandler) Capabilities() []string { return s.caps }
func (s *stubHandler) Invoke(context.Context, map[string]any) (*Outcome, error) {
	return Final("ok"), nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()

	r := New(zap.NewNop())
	require.NoError(t, r.Register(&stubHandler{name: "network", caps: []string{"network"}}))

	h, ok := r.Get("network")
	require.True(t, ok)
	assert.Equal(t, "network", h.Name())
	assert.Equal(t, 1, r.Len())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicatesAndEmptyNames(t *testing.T) {
	t.Parallel()

	r := New(nil)
	require.NoError(t, r.Register(&stubHandler{name: "a", caps: []string{"x"}}))
	assert.Error(t, r.Register(&stubHandler{name: "a", caps: []string{"y"}}))
	assert.Error(t, r.Register(&stubHandler{name: ""}))
}

func TestRegistry_DescriptorsSorted(t *testing.T) {
	t.Parallel()

	r := New(nil)
	require.NoError(t, r.Register(&stubHandler{name: "c", caps: []string{"x"}}))
	require.NoError(t, r.Register(&stubHandler{name: "a", caps: []string{"y"}}))
	require.NoError(t, r.Register(&stubHandler{name: "b", caps: []string{"z"}}))

	descs := r.Descriptors()
	require.Len(t, descs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{descs[0].Name, descs[1].Name, descs[2].Name})
}

func TestRegistry_Fallback(t *testing.T) {
	t.Parallel()

	r := New(nil)
	require.NoError(t, r.Register(&stubHandler{name: "writer", caps: []string{"writing", "docs"}}))
	require.NoError(t, r.Register(&stubHandler{name: "editor", caps: []string{"writing"}}))
	require.NoError(t, r.Register(&stubHandler{name: "coder", caps: []string{"code"}}))

	// Shares the writing tag.
	h, ok := r.Fallback("writer", nil)
	require.True(t, ok)
	assert.Equal(t, "editor", h.Name())

	// Excluded candidates are skipped.
	_, ok = r.Fallback("writer", map[string]struct{}{"editor": {}})
	assert.False(t, ok)

	// No shared tag anywhere.
	_, ok = r.Fallback("coder", nil)
	assert.False(t, ok)

	// Unknown source handler.
	_, ok = r.Fallback("ghost", nil)
	assert.False(t, ok)
}
