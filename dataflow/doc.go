// Package dataflow provides the typed, directed dependency graph that the
// relevance and approximation engines operate on.
//
// What
//
//   - A Graph holds two classes of nodes: variables (KindInput, KindOutput)
//     and systems (KindSystem), all addressed by dotted absolute paths such
//     as "sub.comp.x".
//   - Every Graph carries an implicit root system node named Root (the empty
//     string); constructing a model anywhere but the root is a caller error
//     that higher layers reject.
//   - Edges are directed dependencies: an edge u→v states that v is computed
//     from u. Duplicate edges collapse silently and self-edges are ignored,
//     since neither adds dependency information.
//   - Variables may be marked non-local to describe ranks that do not hold
//     the variable's storage; system nodes are always local.
//
// Why
//
//   - Relevance analysis is reachability over this graph: walking successors
//     answers "what does a seed influence", walking predecessors answers
//     "what influences a seed".
//   - The nonlinear-partition analysis runs strongly-connected-component
//     detection over a coarsened (system-level) variant of the same graph.
//
// Determinism
//
//	Nodes(), Variables(), Systems(), Successors() and Predecessors() return
//	results sorted lexicographically ascending, so every traversal built on
//	top of them is fully reproducible.
//
// Concurrency
//
//	A single sync.RWMutex guards all state. Graphs are built once and then
//	read by many traversals; mutation during traversal is not supported.
//
// Complexity (V = |nodes|, E = |edges|)
//
//   - AddVariable / AddSystem / AddEdge: O(1) amortized
//   - Successors / Predecessors: O(d log d) for node degree d (sorted copy)
//   - Nodes / Variables / Systems: O(V log V)
//   - Clone: O(V + E)
package dataflow
