// Package jacobian stores assembled derivative blocks keyed by
// (of, wrt) variable pairs.
//
// What
//
//   - Key identifies one subjacobian: the derivative of output Of with
//     respect to input Wrt.
//   - Meta describes how a block is declared: its dense shape, an optional
//     sparsity pattern (Rows/Cols), and the Format the owner wants values
//     delivered in.
//   - Dict is the in-memory Store: metadata registered up front, values
//     written by the approximation executor, read back by solvers.
//   - Triplets accumulates (row, col, value) entries; duplicate coordinates
//     sum on densification, matching conventional sparse assembly.
//
// Formats
//
//	FormatDense    - *mat.Dense holding the full block.
//	FormatPattern  - []float64 holding values at the declared (Rows, Cols)
//	                 positions, in declaration order.
//	FormatTriplets - *Triplets carrying explicit coordinates.
//
// Blocks without registered metadata default to dense delivery.
//
// Concurrency
//
//	A Dict is owned by one assembly at a time; parallel workers merge
//	results before anything is written here.
package jacobian
