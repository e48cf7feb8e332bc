package relevance_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/sensgraph/dataflow"
	"github.com/katalvlaran/sensgraph/relevance"
)

// buildPrePost assembles a model with work on both sides of the
// optimization loop:
//
//	_auto_ivc.v1 → precomp → comp1            (pre: no design influence)
//	_auto_ivc.v0 → comp1 → comp2              (iterated: dv to response)
//	comp2.y → postcomp                        (post: downstream of response)
func buildPrePost(t *testing.T) *testModel {
	t.Helper()
	g, cg := dataflow.New(), dataflow.New()
	require.NoError(t, g.AddSystem("_auto_ivc"))
	require.NoError(t, cg.AddSystem("_auto_ivc"))
	for _, v := range []string{"_auto_ivc.v0", "_auto_ivc.v1"} {
		require.NoError(t, g.AddVariable(v, dataflow.KindOutput, true))
		require.NoError(t, g.AddEdge("_auto_ivc", v))
	}
	addComp(t, g, "precomp", []string{"precomp.x"}, []string{"precomp.y"})
	addComp(t, g, "comp1", []string{"comp1.x", "comp1.x2"}, []string{"comp1.y"})
	addComp(t, g, "comp2", []string{"comp2.x"}, []string{"comp2.y"})
	addComp(t, g, "postcomp", []string{"postcomp.x"}, []string{"postcomp.y"})
	for _, comp := range []string{"precomp", "comp1", "comp2", "postcomp"} {
		require.NoError(t, cg.AddSystem(comp))
	}
	conns := map[string][]string{
		"_auto_ivc.v0": {"comp1.x"},
		"_auto_ivc.v1": {"precomp.x"},
		"precomp.y":    {"comp1.x2"},
		"comp1.y":      {"comp2.x"},
		"comp2.y":      {"postcomp.x"},
	}
	connect(t, g, cg, conns)

	return &testModel{
		graph:     g,
		compGraph: cg,
		mode:      relevance.ModeAuto,
		groupBy:   true,
		autoOuts:  []string{"_auto_ivc.v0", "_auto_ivc.v1"},
		conns:     conns,
	}
}

// buildNested assembles two components inside one group:
//
//	_auto_ivc.v1 → sub.a → sub.b ← _auto_ivc.v0
func buildNested(t *testing.T) *testModel {
	t.Helper()
	g, cg := dataflow.New(), dataflow.New()
	require.NoError(t, g.AddSystem("_auto_ivc"))
	require.NoError(t, cg.AddSystem("_auto_ivc"))
	for _, v := range []string{"_auto_ivc.v0", "_auto_ivc.v1"} {
		require.NoError(t, g.AddVariable(v, dataflow.KindOutput, true))
		require.NoError(t, g.AddEdge("_auto_ivc", v))
	}
	addComp(t, g, "sub.a", []string{"sub.a.x"}, []string{"sub.a.y"})
	addComp(t, g, "sub.b", []string{"sub.b.x", "sub.b.x2"}, []string{"sub.b.y"})
	require.NoError(t, cg.AddSystem("sub.a"))
	require.NoError(t, cg.AddSystem("sub.b"))
	conns := map[string][]string{
		"_auto_ivc.v0": {"sub.b.x"},
		"_auto_ivc.v1": {"sub.a.x"},
		"sub.a.y":      {"sub.b.x2"},
	}
	connect(t, g, cg, conns)

	return &testModel{
		graph:     g,
		compGraph: cg,
		mode:      relevance.ModeAuto,
		groupBy:   true,
		autoOuts:  []string{"_auto_ivc.v0", "_auto_ivc.v1"},
		conns:     conns,
	}
}

// TestPartition_PrePostSplit verifies the three-way component split and the
// system arrays swapped in by PushNonlinear.
func TestPartition_PrePostSplit(t *testing.T) {
	rel, err := relevance.New(buildPrePost(t), seeds("_auto_ivc.v0"), seeds("comp2.y"))
	require.NoError(t, err)

	part := rel.Partition()
	assert.False(t, part.IteratesAll)
	assert.Equal(t, []string{"_auto_ivc", "precomp"}, part.Pre)
	assert.Equal(t, []string{"_auto_ivc", "comp1", "comp2"}, part.Iterated)
	assert.Equal(t, []string{"postcomp"}, part.Post)

	restore := rel.PushNonlinear(relevance.SetPre, true)
	assert.True(t, rel.Active())
	assert.True(t, rel.IsRelevantSystem("precomp"))
	assert.True(t, rel.IsRelevantSystem("_auto_ivc"))
	assert.True(t, rel.IsRelevantSystem(dataflow.Root))
	assert.False(t, rel.IsRelevantSystem("comp1"))
	assert.False(t, rel.IsRelevantSystem("postcomp"))
	restore()
	assert.False(t, rel.Active())

	restore = rel.PushNonlinear(relevance.SetPost, true)
	assert.True(t, rel.IsRelevantSystem("postcomp"))
	assert.False(t, rel.IsRelevantSystem("precomp"))
	restore()

	// The iterated set is the complement of pre and post, so systems
	// claimed by either side drop out even when they also iterate.
	restore = rel.PushNonlinear(relevance.SetIter, true)
	assert.True(t, rel.IsRelevantSystem("comp1"))
	assert.True(t, rel.IsRelevantSystem("comp2"))
	assert.False(t, rel.IsRelevantSystem("precomp"))
	assert.False(t, rel.IsRelevantSystem("postcomp"))
	assert.False(t, rel.IsRelevantSystem("_auto_ivc"))
	restore()
}

// TestPartition_ScopeIsNoOpWhenDisabled verifies PushNonlinear does nothing
// when the scope is disabled or the set name is unknown.
func TestPartition_ScopeIsNoOpWhenDisabled(t *testing.T) {
	rel, err := relevance.New(buildPrePost(t), seeds("_auto_ivc.v0"), seeds("comp2.y"))
	require.NoError(t, err)

	restore := rel.PushNonlinear(relevance.SetPre, false)
	assert.False(t, rel.Active())
	restore()

	restore = rel.PushNonlinear("bogus", true)
	assert.False(t, rel.Active())
	restore()
}

// TestPartition_TrivialWithoutGrouping verifies the whole model iterates
// when the split is not requested.
func TestPartition_TrivialWithoutGrouping(t *testing.T) {
	m := buildPrePost(t)
	m.groupBy = false
	rel, err := relevance.New(m, seeds("_auto_ivc.v0"), seeds("comp2.y"))
	require.NoError(t, err)

	part := rel.Partition()
	assert.True(t, part.IteratesAll)
	assert.Empty(t, part.Pre)
	assert.Empty(t, part.Iterated)
	assert.Empty(t, part.Post)

	restore := rel.PushNonlinear(relevance.SetPre, true)
	assert.False(t, rel.Active())
	restore()
}

// TestPartition_RootGradSolver verifies a gradient solver on the root group
// forces everything into the loop, with a warning.
func TestPartition_RootGradSolver(t *testing.T) {
	var buf bytes.Buffer
	m := buildPrePost(t)
	m.gradGroups = []string{dataflow.Root}

	rel, err := relevance.New(m, seeds("_auto_ivc.v0"), seeds("comp2.y"),
		relevance.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, err)

	assert.True(t, rel.Partition().IteratesAll)
	assert.Contains(t, buf.String(), "entire model")
}

// TestPartition_GradGroupAtomic verifies a group with a gradient solver is
// welded into one unit: members split together or not at all.
func TestPartition_GradGroupAtomic(t *testing.T) {
	// Without the modifier, sub.a runs before the loop.
	rel, err := relevance.New(buildNested(t), seeds("_auto_ivc.v0"), seeds("sub.b.y"))
	require.NoError(t, err)
	part := rel.Partition()
	assert.Equal(t, []string{"_auto_ivc", "sub.a"}, part.Pre)
	assert.Equal(t, []string{"_auto_ivc", "sub.b"}, part.Iterated)
	assert.Empty(t, part.Post)

	// With it, sub.a is pulled into the loop alongside sub.b, and a pre set
	// reduced to the automatic IVC alone is dropped entirely.
	var buf bytes.Buffer
	m := buildNested(t)
	m.gradGroups = []string{"sub"}
	rel, err = relevance.New(m, seeds("_auto_ivc.v0"), seeds("sub.b.y"),
		relevance.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, err)

	part = rel.Partition()
	assert.False(t, part.IteratesAll)
	assert.Empty(t, part.Pre)
	assert.Equal(t, []string{"_auto_ivc", "sub.a", "sub.b"}, part.Iterated)
	assert.Empty(t, part.Post)
	assert.Contains(t, buf.String(), "atomic")
	assert.Contains(t, buf.String(), "sub")

	restore := rel.PushNonlinear(relevance.SetPre, true)
	assert.False(t, rel.Active()) // no pre/post sets were built
	restore()
}

// TestPartition_AlwaysOpt verifies always-opt systems are welded into the
// iterated block even when dataflow would put them after it.
func TestPartition_AlwaysOpt(t *testing.T) {
	m := buildPrePost(t)
	m.alwaysOpt = []string{"postcomp"}

	rel, err := relevance.New(m, seeds("_auto_ivc.v0"), seeds("comp2.y"))
	require.NoError(t, err)

	part := rel.Partition()
	assert.Equal(t, []string{"_auto_ivc", "precomp"}, part.Pre)
	assert.Equal(t, []string{"_auto_ivc", "comp1", "comp2", "postcomp"}, part.Iterated)
	assert.Empty(t, part.Post)
}

// TestPartition_AutoIVCFold verifies the automatic IVC joins the pre set
// when it is absent from the component graph but feeds a pre component.
func TestPartition_AutoIVCFold(t *testing.T) {
	g, cg := dataflow.New(), dataflow.New()
	require.NoError(t, g.AddSystem("_auto_ivc"))
	require.NoError(t, g.AddVariable("_auto_ivc.v1", dataflow.KindOutput, true))
	require.NoError(t, g.AddEdge("_auto_ivc", "_auto_ivc.v1"))
	addComp(t, g, "ivccomp", nil, []string{"ivccomp.y"})
	addComp(t, g, "precomp", []string{"precomp.x"}, []string{"precomp.y"})
	addComp(t, g, "comp1", []string{"comp1.x", "comp1.x2"}, []string{"comp1.y"})
	addComp(t, g, "comp2", []string{"comp2.x"}, []string{"comp2.y"})
	conns := map[string][]string{
		"_auto_ivc.v1": {"precomp.x"},
		"ivccomp.y":    {"comp1.x"},
		"precomp.y":    {"comp1.x2"},
		"comp1.y":      {"comp2.x"},
	}
	for out, ins := range conns {
		for _, in := range ins {
			require.NoError(t, g.AddEdge(out, in))
		}
	}
	// Component graph deliberately omits the automatic IVC.
	for _, comp := range []string{"ivccomp", "precomp", "comp1", "comp2"} {
		require.NoError(t, cg.AddSystem(comp))
	}
	require.NoError(t, cg.AddEdge("ivccomp", "comp1"))
	require.NoError(t, cg.AddEdge("precomp", "comp1"))
	require.NoError(t, cg.AddEdge("comp1", "comp2"))
	m := &testModel{
		graph:     g,
		compGraph: cg,
		mode:      relevance.ModeAuto,
		groupBy:   true,
		autoOuts:  []string{"_auto_ivc.v1"},
		conns:     conns,
	}

	rel, err := relevance.New(m, seeds("ivccomp.y"), seeds("comp2.y"))
	require.NoError(t, err)

	part := rel.Partition()
	assert.Equal(t, []string{"_auto_ivc", "precomp"}, part.Pre)
	assert.Equal(t, []string{"comp1", "comp2", "ivccomp"}, part.Iterated)
	assert.Empty(t, part.Post)
}
