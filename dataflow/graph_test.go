package dataflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/sensgraph/dataflow"
)

// TestNew_RootPresent verifies every fresh graph carries the root system node.
func TestNew_RootPresent(t *testing.T) {
	g := dataflow.New()
	n, ok := g.Node(dataflow.Root)
	require.True(t, ok)
	assert.Equal(t, dataflow.KindSystem, n.Kind)
	assert.True(t, n.Local)
	assert.Equal(t, 1, g.Len())
}

// TestAddVariable_Validation covers the empty-name and bad-kind rejections.
func TestAddVariable_Validation(t *testing.T) {
	g := dataflow.New()
	assert.ErrorIs(t, g.AddVariable("", dataflow.KindInput, true), dataflow.ErrEmptyName)
	assert.ErrorIs(t, g.AddVariable("c.x", dataflow.KindSystem, true), dataflow.ErrBadKind)
	assert.NoError(t, g.AddVariable("c.x", dataflow.KindInput, true))
}

// TestAddNode_Idempotence checks identical re-adds are no-ops while
// attribute changes are rejected with ErrNodeConflict.
func TestAddNode_Idempotence(t *testing.T) {
	g := dataflow.New()
	require.NoError(t, g.AddVariable("c.y", dataflow.KindOutput, true))
	assert.NoError(t, g.AddVariable("c.y", dataflow.KindOutput, true))
	assert.ErrorIs(t, g.AddVariable("c.y", dataflow.KindInput, true), dataflow.ErrNodeConflict)
	assert.ErrorIs(t, g.AddVariable("c.y", dataflow.KindOutput, false), dataflow.ErrNodeConflict)

	require.NoError(t, g.AddSystem("c"))
	assert.NoError(t, g.AddSystem("c"))
	// Re-adding the root system is also a no-op.
	assert.NoError(t, g.AddSystem(dataflow.Root))
	assert.Equal(t, 3, g.Len())
}

// TestAddEdge_Endpoints verifies both endpoints must pre-exist.
func TestAddEdge_Endpoints(t *testing.T) {
	g := dataflow.New()
	require.NoError(t, g.AddVariable("a.x", dataflow.KindOutput, true))

	err := g.AddEdge("a.x", "missing")
	assert.ErrorIs(t, err, dataflow.ErrNodeNotFound)
	assert.Contains(t, err.Error(), "missing")

	err = g.AddEdge("ghost", "a.x")
	assert.ErrorIs(t, err, dataflow.ErrNodeNotFound)
	assert.Contains(t, err.Error(), "ghost")
}

// TestAddEdge_SelfAndDuplicate checks self-edges and duplicates vanish
// without changing the edge count.
func TestAddEdge_SelfAndDuplicate(t *testing.T) {
	g := dataflow.New()
	require.NoError(t, g.AddVariable("a.x", dataflow.KindOutput, true))
	require.NoError(t, g.AddVariable("b.y", dataflow.KindInput, true))

	assert.NoError(t, g.AddEdge("a.x", "a.x"))
	assert.Equal(t, 0, g.NumEdges())

	require.NoError(t, g.AddEdge("a.x", "b.y"))
	assert.NoError(t, g.AddEdge("a.x", "b.y"))
	assert.Equal(t, 1, g.NumEdges())
}

// TestAdjacency_SortedDeterministic checks successor and predecessor
// snapshots come back sorted regardless of insertion order.
func TestAdjacency_SortedDeterministic(t *testing.T) {
	g := dataflow.New()
	for _, name := range []string{"c.z", "a.x", "b.y", "hub"} {
		require.NoError(t, g.AddVariable(name, dataflow.KindOutput, true))
	}
	require.NoError(t, g.AddEdge("hub", "c.z"))
	require.NoError(t, g.AddEdge("hub", "a.x"))
	require.NoError(t, g.AddEdge("hub", "b.y"))
	require.NoError(t, g.AddEdge("c.z", "hub"))
	require.NoError(t, g.AddEdge("a.x", "hub"))

	succ, err := g.Successors("hub")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.x", "b.y", "c.z"}, succ)

	pred, err := g.Predecessors("hub")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.x", "c.z"}, pred)

	_, err = g.Successors("nope")
	assert.ErrorIs(t, err, dataflow.ErrNodeNotFound)
}

// TestCollect_Filters verifies the Variables/Systems split and sort order.
func TestCollect_Filters(t *testing.T) {
	g := dataflow.New()
	require.NoError(t, g.AddSystem("comp"))
	require.NoError(t, g.AddVariable("comp.x", dataflow.KindInput, true))
	require.NoError(t, g.AddVariable("comp.y", dataflow.KindOutput, false))

	vars := g.Variables()
	require.Len(t, vars, 2)
	assert.Equal(t, "comp.x", vars[0].Name)
	assert.Equal(t, "comp.y", vars[1].Name)
	assert.False(t, vars[1].Local)

	sys := g.Systems()
	require.Len(t, sys, 2)
	assert.Equal(t, dataflow.Root, sys[0].Name)
	assert.Equal(t, "comp", sys[1].Name)
}

// TestClone_Independence checks mutations on the clone never leak back.
func TestClone_Independence(t *testing.T) {
	g := dataflow.New()
	require.NoError(t, g.AddVariable("a.x", dataflow.KindOutput, true))
	require.NoError(t, g.AddVariable("b.y", dataflow.KindInput, true))
	require.NoError(t, g.AddEdge("a.x", "b.y"))

	c := g.Clone()
	require.NoError(t, c.AddVariable("c.z", dataflow.KindOutput, true))
	require.NoError(t, c.AddEdge("b.y", "c.z"))

	assert.False(t, g.HasNode("c.z"))
	assert.Equal(t, 1, g.NumEdges())
	assert.Equal(t, 2, c.NumEdges())

	succ, err := c.Successors("a.x")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.y"}, succ)
}

// TestOwnerAncestors exercises the dotted-path helpers.
func TestOwnerAncestors(t *testing.T) {
	assert.Equal(t, "a.b", dataflow.Owner("a.b.x"))
	assert.Equal(t, dataflow.Root, dataflow.Owner("x"))

	assert.Equal(t, []string{"a.b.c", "a.b", "a"}, dataflow.Ancestors("a.b.c"))
	assert.Equal(t, []string{"solo"}, dataflow.Ancestors("solo"))
	assert.Nil(t, dataflow.Ancestors(dataflow.Root))
}

// TestKindString pins the diagnostic names.
func TestKindString(t *testing.T) {
	assert.Equal(t, "input", dataflow.KindInput.String())
	assert.Equal(t, "output", dataflow.KindOutput.String())
	assert.Equal(t, "system", dataflow.KindSystem.String())
	assert.Equal(t, "unknown", dataflow.Kind(99).String())
}
