// Package vecs provides the named, flat float64 vectors that models expose
// to the approximation engine.
//
// What
//
//   - A Vector concatenates named variables into one contiguous []float64
//     in registration order; each variable owns a half-open index range.
//   - Slice(name) returns a live sub-slice, so perturbing a variable in
//     place is a plain write through the returned slice.
//   - SetComplexStep(true) attaches a same-length imaginary shadow buffer.
//     Models that propagate imaginary parts through their Run function give
//     the complex-step scheme machine-precision derivatives without any
//     complex128 storage: real and imaginary parts travel as two parallel
//     float64 slices.
//   - Values() snapshots both parts for hand-off across goroutines.
//
// Why
//
//   - Perturbation schemes address flat column indices; the name→range
//     table translates between variable names and those indices once, at
//     registration.
//
// Concurrency
//
//	Vectors are owned by a single model evaluation at a time. The engine
//	serializes access: the only cross-goroutine hand-off is the immutable
//	Values snapshot.
//
// Complexity
//
//   - New: O(total size); Slice/Range: O(1); Copy/SetData/Values: O(n).
package vecs
