// Package comm provides in-process rank groups and the all-gather
// collective the parallel finite-difference machinery synchronizes on.
//
// What
//
//   - A Group is a fixed-size set of ranks; each rank holds a Comm handle.
//   - AllGather blocks until every rank of the group has contributed a
//     value, then returns the contributions ordered by rank, identically on
//     every rank.
//   - Run launches one goroutine per rank via errgroup and hands each a
//     context that is canceled as soon as any sibling fails, so no rank can
//     hang waiting on a collective a failed sibling will never issue.
//
// Collective discipline
//
//	Workers of one group must issue collectives in the same order; one
//	collective is in flight per group at a time. That mirrors the engine's
//	execution model: identical control flow per rank, with collectives as
//	the only suspension points. A rank that calls AllGather twice inside
//	one round gets ErrRankReuse, and a round mixing value types surfaces
//	ErrGatherType on every rank that decodes it.
//
// Why
//
//	Parallel perturbation splits probe evaluations round-robin across
//	ranks; each rank assembles a partial result and the group exchanges
//	partials exactly once per assembly. An in-process collective keeps that
//	exchange deterministic and testable without any message transport.
package comm
