package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestAdaptive(t *testing.T, opts Options) Strategy {
	t.Helper()
	s, err := New(ModeAdaptive, opts)
	require.NoError(t, err)
	return s
}

func TestAdaptivePlanIsAlphabet(t *testing.T) {
	t.Parallel()

	s := newTestAdaptive(t, Options{})
	plan := s.Plan(nil)
	require.Len(t, plan, 26)
	require.Equal(t, "A", plan[0].Key())
	require.Equal(t, "Z", plan[25].Key())
}

func TestAdaptivePlanSkipsCompleted(t *testing.T) {
	t.Parallel()

	s := newTestAdaptive(t, Options{})
	completed := map[string]struct{}{"A": {}, "B": {}}
	plan := s.Plan(completed)
	require.Len(t, plan, 24)
	require.Equal(t, "C", plan[0].Key())
}

func TestAdaptivePlanTestPrefix(t *testing.T) {
	t.Parallel()

	s := newTestAdaptive(t, Options{TestPrefix: "Q"})
	plan := s.Plan(nil)
	require.Len(t, plan, 1)
	require.Equal(t, "Q", plan[0].Key())
}

func TestAdaptiveExpandOnFullPage(t *testing.T) {
	t.Parallel()

	s := newTestAdaptive(t, Options{})
	children := s.Expand(Unit{Prefix: "X"}, DefaultPageLimit, nil)
	require.Len(t, children, 26)
	require.Equal(t, "XA", children[0].Key())
	require.Equal(t, "XZ", children[25].Key())
}

func TestAdaptiveNoExpandBelowPageLimit(t *testing.T) {
	t.Parallel()

	s := newTestAdaptive(t, Options{})
	require.Nil(t, s.Expand(Unit{Prefix: "X"}, DefaultPageLimit-1, nil))
}

func TestAdaptiveExpandHighVolumeRegardlessOfCount(t *testing.T) {
	t.Parallel()

	// SM is in the default high-volume list, so even a small count splits it.
	s := newTestAdaptive(t, Options{})
	children := s.Expand(Unit{Prefix: "SM"}, 5, nil)
	require.Len(t, children, 26)
	require.Equal(t, "SMA", children[0].Key())
}

func TestAdaptiveExpandStopsAtMaxDepth(t *testing.T) {
	t.Parallel()

	s := newTestAdaptive(t, Options{MaxDepth: 2})
	require.Nil(t, s.Expand(Unit{Prefix: "AB"}, DefaultPageLimit, nil))
	require.NotNil(t, s.Expand(Unit{Prefix: "A"}, DefaultPageLimit, nil))
}

func TestAdaptiveExpandFiltersCompletedChildren(t *testing.T) {
	t.Parallel()

	s := newTestAdaptive(t, Options{})
	completed := map[string]struct{}{"XA": {}, "XM": {}}
	children := s.Expand(Unit{Prefix: "X"}, DefaultPageLimit, completed)
	require.Len(t, children, 24)
	require.Equal(t, "XB", children[0].Key())
}
