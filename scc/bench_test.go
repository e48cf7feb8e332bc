package scc_test

import (
	"fmt"
	"testing"

	"github.com/katalvlaran/sensgraph/dataflow"
	"github.com/katalvlaran/sensgraph/scc"
)

// BenchmarkComponents_Ring1000 measures Components on a single 1,000-node
// cycle: one giant component, the worst case for stack churn.
func BenchmarkComponents_Ring1000(b *testing.B) {
	const n = 1000
	g := dataflow.New()
	for i := 0; i < n; i++ {
		_ = g.AddVariable(fmt.Sprintf("n%04d", i), dataflow.KindOutput, true)
	}
	for i := 0; i < n; i++ {
		_ = g.AddEdge(fmt.Sprintf("n%04d", i), fmt.Sprintf("n%04d", (i+1)%n))
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = scc.Components(g)
	}
}

// BenchmarkComponents_Chain1000 measures Components on a 1,000-node chain:
// all singleton components, the deep-recursion case the explicit frames
// exist for.
func BenchmarkComponents_Chain1000(b *testing.B) {
	const n = 1000
	g := dataflow.New()
	for i := 0; i <= n; i++ {
		_ = g.AddVariable(fmt.Sprintf("n%04d", i), dataflow.KindOutput, true)
	}
	for i := 0; i < n; i++ {
		_ = g.AddEdge(fmt.Sprintf("n%04d", i), fmt.Sprintf("n%04d", i+1))
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = scc.Components(g)
	}
}
