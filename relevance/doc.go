// Package relevance answers reachability questions for derivative
// computations over a dataflow graph: given forward seeds (design variable
// sources) and reverse seeds (response sources), which variables and
// systems can actually carry influence between them, and which parts of the
// model need to iterate inside an optimization loop at all.
//
// What
//
//   - Per-seed boolean relevance arrays over stable, sorted variable and
//     system index tables, built by one graph walk per seed.
//   - Pair relevance is the intersection of a forward union and a reverse
//     union; every distinct array is canonicalized through a content cache
//     so repeated combinations share one instance.
//   - Scoped activation: PushActive, PushSeeds, PushAllSeeds and
//     PushNonlinear mutate the current view and return a restore function
//     for use with defer.
//   - A pre/iterated/post partition of the model's components, read off the
//     strongly connected components of a doctored component graph in
//     topological order.
//   - Parallel-derivative color validation: seeds sharing a color must not
//     reach a common variable on any single rank; findings are exchanged
//     over the model's rank group so every rank fails identically.
//
// Why
//
//   - Skipping irrelevant systems during derivative solves saves the bulk
//     of the work on sparsely coupled models.
//   - Components that no design variable influences, or that influence no
//     response, can run once outside the optimization loop.
//
// Determinism
//
//	Index tables are sorted, graph adjacency is sorted, and every returned
//	name list is sorted, so identical models and seeds produce identical
//	arrays, partitions and error messages on every run and every rank.
//
// Complexity (V = |nodes|, E = |edges|, S = #seeds)
//
//   - Construction: O(S*(V+E)) for the walks plus O(S^2 * V) for the
//     prepopulated pair cache.
//   - Queries: O(1) per name; O(V) per listing.
//
// Usage
//
//	rel, err := relevance.New(model, fwdMeta, revMeta)
//	if err != nil {
//	    // handle ErrNilModel, ErrNotRoot, or a *ColorOverlapError
//	}
//	restore, err := rel.PushSeeds([]string{"_auto_ivc.v0"}, nil)
//	if err != nil {
//	    // handle ErrUnknownSeed
//	}
//	defer restore()
//	if rel.IsRelevant("comp2.x") {
//	    // comp2.x sits between the active seeds
//	}
//
// Errors
//
//   - ErrNilModel      if the model handle is nil.
//   - ErrNotRoot       if the model is not the root of its hierarchy.
//   - ErrBadDirection  if a direction is neither Forward nor Reverse.
//   - ErrUnknownSeed   if a seed was never registered.
//   - ErrColorOverlap  (via *ColorOverlapError) if same-colored seeds
//     overlap on one rank.
package relevance
