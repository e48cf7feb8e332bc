// Package approx assembles sparse and dense Jacobian blocks from
// finite-difference or complex-step perturbations of a model.
//
// What
//
//   - Requests name one (of, wrt) derivative block plus perturbation
//     options. The engine stable-sorts them by (wrt, step-affecting
//     options) and batches adjacent equals, so one perturbation run feeds
//     every output depending on that input.
//   - ApplyColoring consolidates requests covered by a simultaneous
//     perturbation coloring into a single colored entry: one model run per
//     color instead of one per column.
//   - Compute perturbs, runs the model, differences against a saved
//     baseline and converts each staged dense block into the target
//     store's declared format (dense, pattern values, or triplets).
//   - Parallel FD round-robins probes across replicas by probe index and
//     reconciles the partial columns through a rank-ordered gather.
//
// Schemes
//
//	FiniteDifference  forward, backward or central stencils over the real
//	                  values; default step 1e-6.
//	ComplexStep       a single run per probe with an imaginary offset;
//	                  default step 1e-40, no subtractive cancellation.
//
// Both implement Scheme: AddApproximation, RunPoint, TransformResult and
// Multiplier, plus the shared ApplyColoring and Compute.
//
// Determinism
//
//	Probes execute in group order then column order, groups sort by an
//	exact textual key, and the parallel work split is a pure function of
//	probe index and replica count, so identical request lists produce
//	identical probe schedules on every run and every rank.
//
// Errors
//
//   - ErrNilModel, ErrNilStore   on nil collaborators.
//   - ErrBadKey, ErrBadForm, ErrBadStep, ErrBadIndices on registration or
//     grouping.
//   - ErrColoringShape           if a coloring disagrees with the absorbed
//     variables' extent.
//   - ErrParallelColoring        for colored runs over parallel models in
//     any shape but one serial replica per rank.
//   - ErrUnsupportedFormat       for target formats conversion does not
//     recognize.
//   - ErrComplexUnsupported      for models that drop imaginary values.
package approx
