package dataflow_test

import (
	"fmt"

	"github.com/katalvlaran/sensgraph/dataflow"
)

// ExampleGraph builds the dependency graph of a two-component chain
//
//	comp1.x → comp1.y → comp2.x → comp2.y
//
// and prints the sorted successor snapshot of the connection point.
func ExampleGraph() {
	g := dataflow.New()

	// Register the systems and their variables.
	for _, sys := range []string{"comp1", "comp2"} {
		_ = g.AddSystem(sys)
		_ = g.AddVariable(sys+".x", dataflow.KindInput, true)
		_ = g.AddVariable(sys+".y", dataflow.KindOutput, true)
	}

	// Wire the dataflow: inputs feed their system, systems feed outputs,
	// and comp1's output is connected to comp2's input.
	_ = g.AddEdge("comp1.x", "comp1")
	_ = g.AddEdge("comp1", "comp1.y")
	_ = g.AddEdge("comp1.y", "comp2.x")
	_ = g.AddEdge("comp2.x", "comp2")
	_ = g.AddEdge("comp2", "comp2.y")

	succ, _ := g.Successors("comp1.y")
	fmt.Println(succ)
	// Output: [comp2.x]
}
