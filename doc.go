// Package sensgraph computes sensitivity structure for hierarchically
// composed simulation and optimization models: which variables and systems
// actually influence which outputs, and how to approximate the model's
// sparse Jacobian with as few perturbation runs as possible.
//
// 🚀 What is sensgraph?
//
//	A library of composable building blocks for derivative bookkeeping:
//		• Dataflow graphs: typed variable & system nodes, deterministic adjacency
//		• Relevance analysis: per-seed reachability, seed-pair combination,
//		  scoped activation, pre/iterated/post partitioning
//		• Strongly connected components in topological order
//		• Jacobian assembly: finite-difference & complex-step schemes,
//		  request batching, simultaneous-perturbation coloring
//		• Parallel FD: probes round-robined over replicas, rank-ordered gathers
//
// ✨ Why sensgraph?
//
//   - Deterministic – sorted index tables, stable probe schedules, identical
//     results on every rank
//   - Frugal – content-addressed relevance arrays, one perturbation run per
//     color instead of per column
//   - Explicit – sentinel errors, context cancellation, no hidden globals
//
// The packages, leaf first:
//
//	dataflow/  — directed dataflow graph of variable and system nodes
//	scc/       — strongly connected components, topologically ordered
//	vecs/      — named flat float vectors with complex-step shadows
//	jacobian/  — (of, wrt) block store: dense, pattern and triplet formats
//	coloring/  — simultaneous-perturbation column groups
//	comm/      — in-process rank groups with an AllGather collective
//	relevance/ — seed-based relevance engine and nonlinear partitioner
//	approx/    — perturbation schemes, grouping, executor, conversion
//
// Quick ASCII example:
//
//	    dv ──→ comp1 ──→ comp2 ──→ resp        comp3 (irrelevant)
//
//	relevance tells you comp3 never matters; approx differences the rest.
//
// See examples/ for runnable end-to-end programs.
//
//	go get github.com/katalvlaran/sensgraph
package sensgraph
