package approx

import (
	"context"
	"fmt"

	"github.com/katalvlaran/sensgraph/jacobian"
	"github.com/katalvlaran/sensgraph/vecs"
)

// csForm is the complex-step group-key discriminator. The scheme has a
// single stencil, so unlike finite differencing the form never splits
// groups.
const csForm = "cs"

// ComplexStep approximates derivative blocks by perturbing the imaginary
// shadow of the probed positions and reading the imaginary part of the
// result. The step can sit far below float64 precision because no
// subtraction of nearby values occurs.
//
// The model must propagate imaginary parts through Run; a model that drops
// them fails with ErrComplexUnsupported rather than silently returning
// zero derivatives.
type ComplexStep struct {
	engine
}

// compile-time interface check
var _ Scheme = (*ComplexStep)(nil)

// NewComplexStep returns an empty complex-step scheme.
func NewComplexStep(options ...Option) *ComplexStep {
	c := &ComplexStep{engine: newEngine(DefaultCSStep, options...)}
	c.self = c

	return c
}

// AddApproximation registers the request to approximate d(key.Of)/d(key.Wrt)
// with opts. A zero step selects DefaultCSStep; Options.Form is ignored.
// Returns ErrBadKey or ErrBadStep.
func (c *ComplexStep) AddApproximation(key jacobian.Key, opts Options) error {
	return c.add(key, opts)
}

// groupKey batches requests sharing wrt, step, directional flag and index
// subset.
func (c *ComplexStep) groupKey(req Request) string {
	o := req.Options

	return buildKey(req.Key.Wrt, csForm, o.Step, o.Directional, o.Indices)
}

// prepare attaches the imaginary shadow buffers to the model's vectors and
// returns the step dropping them again.
func (c *ComplexStep) prepare(m Model) (restore func(), err error) {
	if m == nil {
		return nil, ErrNilModel
	}
	vectors := []*vecs.Vector{m.InputVector(), m.OutputVector(), m.ResidualVector()}
	for _, v := range vectors {
		if v != nil {
			v.SetComplexStep(true)
		}
	}

	return func() {
		for _, v := range vectors {
			if v != nil {
				v.SetComplexStep(false)
			}
		}
	}, nil
}

// RunPoint restores the result vector to baseline with a zeroed imaginary
// shadow, offsets the probed positions' imaginary parts by h, runs the
// model once and snapshots the result. The probed shadows are restored
// after the run.
func (c *ComplexStep) RunPoint(ctx context.Context, m Model, probes []Probe, baseline []float64, total bool) (vecs.Values, error) {
	if m == nil {
		return vecs.Values{}, ErrNilModel
	}
	if err := ctx.Err(); err != nil {
		return vecs.Values{}, err
	}
	h := c.curStep
	res := resultVector(m, total)
	if err := res.SetData(baseline); err != nil {
		return vecs.Values{}, err
	}
	// Re-attaching zeroes the shadow, discarding the previous probe's
	// imaginary residue.
	res.SetComplexStep(true)

	for _, p := range probes {
		im := p.Vec.ImagData()
		if im == nil {
			return vecs.Values{}, fmt.Errorf("%w: probe vector has no imaginary storage", ErrComplexUnsupported)
		}
		for _, i := range p.Indices {
			im[i] += h
		}
	}
	runErr := m.Run(ctx)
	for _, p := range probes {
		im := p.Vec.ImagData()
		if im == nil {
			continue
		}
		for _, i := range p.Indices {
			im[i] -= h
		}
	}
	if runErr != nil {
		return vecs.Values{}, fmt.Errorf("approx: model run failed: %w", runErr)
	}
	if !res.UnderComplexStep() {
		return vecs.Values{}, fmt.Errorf("%w: result vector dropped its imaginary storage", ErrComplexUnsupported)
	}

	return res.Values(), nil
}

// TransformResult extracts the imaginary part of a RunPoint snapshot.
func (c *ComplexStep) TransformResult(v vecs.Values) []float64 { return v.Im }

// Multiplier returns 1/h for the active group.
func (c *ComplexStep) Multiplier() float64 { return 1 / c.curStep }
