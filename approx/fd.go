package approx

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/katalvlaran/sensgraph/jacobian"
	"github.com/katalvlaran/sensgraph/vecs"
)

// stencilPoint is one evaluation of a difference formula: the model runs at
// x + loc*h and contributes coeff times its result.
type stencilPoint struct {
	loc   float64
	coeff float64
}

// formula is a difference stencil plus the weight of the unperturbed
// baseline. A nonzero current weight lets the forward and backward forms
// reuse the saved baseline instead of spending a model run on it.
// Coefficients are expressed for a unit step; Multiplier supplies the 1/h.
type formula struct {
	stencil []stencilPoint
	current float64
}

var (
	forwardFormula  = formula{stencil: []stencilPoint{{loc: 1, coeff: 1}}, current: -1}
	backwardFormula = formula{stencil: []stencilPoint{{loc: -1, coeff: -1}}, current: 1}
	centralFormula  = formula{stencil: []stencilPoint{{loc: 1, coeff: 0.5}, {loc: -1, coeff: -0.5}}}
)

// formulaFor maps a validated Form to its stencil.
func formulaFor(f Form) formula {
	switch f {
	case FormBackward:
		return backwardFormula
	case FormCentral:
		return centralFormula
	default:
		return forwardFormula
	}
}

// FiniteDifference approximates derivative blocks by perturbing real input
// values and differencing the model's outputs or residuals.
//
// Registration, coloring consolidation and execution are shared engine
// behavior; see AddApproximation, ApplyColoring and Compute.
type FiniteDifference struct {
	engine
}

// compile-time interface check
var _ Scheme = (*FiniteDifference)(nil)

// NewFiniteDifference returns an empty finite-difference scheme.
func NewFiniteDifference(options ...Option) *FiniteDifference {
	f := &FiniteDifference{engine: newEngine(DefaultFDStep, options...)}
	f.self = f

	return f
}

// AddApproximation registers the request to approximate d(key.Of)/d(key.Wrt)
// with opts. A zero step selects DefaultFDStep.
// Returns ErrBadKey, ErrBadForm or ErrBadStep.
func (f *FiniteDifference) AddApproximation(key jacobian.Key, opts Options) error {
	if opts.Form > FormCentral {
		return fmt.Errorf("%w: %d for %s", ErrBadForm, opts.Form, key)
	}

	return f.add(key, opts)
}

// groupKey batches requests sharing wrt, form, step, directional flag and
// index subset: they difference identical perturbation runs.
func (f *FiniteDifference) groupKey(req Request) string {
	o := req.Options

	return buildKey(req.Key.Wrt, o.Form.String(), o.Step, o.Directional, o.Indices)
}

// prepare is a no-op: finite differencing runs the model as-is.
func (f *FiniteDifference) prepare(Model) (restore func(), err error) {
	return func() {}, nil
}

// RunPoint evaluates the active group's stencil around the current point:
// for each stencil point it restores the result vector to baseline, offsets
// the probed positions by loc*h, runs the model and accumulates the
// coefficient-weighted result. The probed positions are restored after
// every run.
func (f *FiniteDifference) RunPoint(ctx context.Context, m Model, probes []Probe, baseline []float64, total bool) (vecs.Values, error) {
	if m == nil {
		return vecs.Values{}, ErrNilModel
	}
	fm := formulaFor(f.cur.Form)
	h := f.curStep
	res := resultVector(m, total)

	acc := make([]float64, len(baseline))
	if fm.current != 0 {
		floats.AddScaled(acc, fm.current, baseline)
	}
	for _, pt := range fm.stencil {
		if err := ctx.Err(); err != nil {
			return vecs.Values{}, err
		}
		if err := res.SetData(baseline); err != nil {
			return vecs.Values{}, err
		}
		nudge(probes, pt.loc*h)
		runErr := m.Run(ctx)
		nudge(probes, -pt.loc*h)
		if runErr != nil {
			return vecs.Values{}, fmt.Errorf("approx: model run failed: %w", runErr)
		}
		floats.AddScaled(acc, pt.coeff, res.Data())
	}

	return vecs.Values{Re: acc}, nil
}

// TransformResult returns the accumulated real deltas unchanged; the
// stencil coefficients were applied during RunPoint.
func (f *FiniteDifference) TransformResult(v vecs.Values) []float64 { return v.Re }

// Multiplier returns 1/h for the active group.
func (f *FiniteDifference) Multiplier() float64 { return 1 / f.curStep }

// nudge offsets every probed position by delta.
func nudge(probes []Probe, delta float64) {
	if delta == 0 {
		return
	}
	for _, p := range probes {
		data := p.Vec.Data()
		for _, i := range p.Indices {
			data[i] += delta
		}
	}
}
