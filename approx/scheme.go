package approx

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/katalvlaran/sensgraph/coloring"
	"github.com/katalvlaran/sensgraph/jacobian"
	"github.com/katalvlaran/sensgraph/vecs"
)

// keySep joins group-key fields. An ASCII unit separator never collides
// with variable names.
const keySep = "\x1f"

// variant extends the public Scheme surface with the engine-internal hooks
// each concrete scheme supplies.
type variant interface {
	Scheme

	// groupKey renders the request's batching key: requests with equal
	// keys share perturbation runs.
	groupKey(req Request) string

	// prepare readies the model's vectors for this scheme's probes and
	// returns the matching restore step.
	prepare(m Model) (restore func(), err error)
}

// engine is the scheme-independent half of an approximation scheme: the
// ordered request list, the group cache and the executor state.
type engine struct {
	self   variant
	logger *slog.Logger

	reqs        []Request
	ofIdx       map[string][]int
	groups      []*approxGroup
	defaultStep float64 // scheme default replacing a zero Options.Step
	cur         Options // options of the group being executed
	curStep     float64 // normalized step of the current group
}

// newEngine applies options and returns the shared engine state.
func newEngine(defaultStep float64, options ...Option) engine {
	o := defaultEngineOptions()
	for _, opt := range options {
		opt(&o)
	}

	return engine{
		logger:      o.logger,
		ofIdx:       o.ofIndices,
		defaultStep: defaultStep,
		curStep:     defaultStep,
	}
}

// add validates and appends one request, invalidating the group cache.
// The scheme default replaces a zero step so stored requests are always
// complete.
func (e *engine) add(key jacobian.Key, opts Options) error {
	if key.Of == "" || key.Wrt == "" {
		return fmt.Errorf("%w: %s", ErrBadKey, key)
	}
	if opts.Step < 0 {
		return fmt.Errorf("%w: got %v for %s", ErrBadStep, opts.Step, key)
	}
	if opts.Step == 0 {
		opts.Step = e.defaultStep
	}
	// Coloring placement is the engine's job; see ApplyColoring.
	opts.Coloring = nil
	opts.absorbed = nil
	e.reqs = append(e.reqs, Request{Key: key, Options: opts})
	e.groups = nil

	return nil
}

// ApplyColoring consolidates every request whose wrt is held locally in m
// and belongs to c's recorded wrt set (see coloring.SetWrts; an empty set
// matches every wrt) into a single synthetic colored entry carrying c and
// the absorbed originals. Duplicate-keyed eligible requests collapse
// either way; a nil c only deduplicates. Requests whose wrt is not locally
// resolvable, or falls outside c's wrt set, are left untouched as plain
// groups. Invalidates the group cache.
func (e *engine) ApplyColoring(m Model, c *coloring.Coloring) {
	if m == nil {
		return
	}
	matched := make(map[jacobian.Key]bool)
	kept := make([]Request, 0, len(e.reqs))
	colorAt := -1
	fold := func(req Request) {
		if matched[req.Key] {
			return
		}
		matched[req.Key] = true
		kept, colorAt = appendEligible(kept, colorAt, req, c)
	}
	for _, req := range e.reqs {
		// A previous consolidation is rebuilt from scratch.
		if req.Options.Coloring != nil {
			for _, abs := range req.Options.absorbed {
				fold(abs)
			}

			continue
		}
		if !wrtLocal(m, req.Key.Wrt) {
			continue
		}
		fold(req)
	}
	if len(matched) == 0 {
		return
	}
	for _, req := range e.reqs {
		if req.Options.Coloring == nil && !matched[req.Key] {
			kept = append(kept, req)
		}
	}
	e.reqs = kept
	e.groups = nil
}

// appendEligible folds one locally-resolvable request into the rebuilt
// list: merged into the synthetic colored entry when it matches c's wrt
// set, appended as a plain request otherwise or when only deduplicating.
func appendEligible(kept []Request, colorAt int, req Request, c *coloring.Coloring) ([]Request, int) {
	if c == nil || !c.MatchesWrt(req.Key.Wrt) {
		req.Options.Coloring = nil
		req.Options.absorbed = nil

		return append(kept, req), colorAt
	}
	if colorAt < 0 {
		opts := req.Options
		opts.Indices = nil
		opts.Coloring = c
		opts.absorbed = []Request{req}
		kept = append(kept, Request{
			Key:     jacobian.Key{Wrt: ColoredWrt},
			Options: opts,
		})

		return kept, len(kept) - 1
	}
	kept[colorAt].Options.absorbed = append(kept[colorAt].Options.absorbed, req)

	return kept, colorAt
}

// wrtLocal reports whether wrt is held in m's input or output vector.
func wrtLocal(m Model, wrt string) bool {
	if in := m.InputVector(); in != nil && in.Contains(wrt) {
		return true
	}
	if out := m.OutputVector(); out != nil && out.Contains(wrt) {
		return true
	}

	return false
}

// setCurrent installs the active group's options for RunPoint and
// Multiplier. Compute is single-threaded per rank, so plain fields suffice.
func (e *engine) setCurrent(opts Options) {
	e.cur = opts
	e.curStep = opts.Step
	if e.curStep <= 0 {
		e.curStep = e.defaultStep
	}
}

// buildKey renders the shared group-key fields. Step is encoded exactly
// (hex float) so distinct steps never alias.
func buildKey(wrt string, form string, step float64, directional bool, indices []int) string {
	var b strings.Builder
	b.WriteString(wrt)
	b.WriteString(keySep)
	b.WriteString(form)
	b.WriteString(keySep)
	b.WriteString(strconv.FormatFloat(step, 'x', -1, 64))
	b.WriteString(keySep)
	b.WriteString(strconv.FormatBool(directional))
	for _, i := range indices {
		b.WriteString(keySep)
		b.WriteString(strconv.Itoa(i))
	}

	return b.String()
}

// resultVector selects the vector probes read results from: outputs for
// total derivatives, residuals for partials.
func resultVector(m Model, total bool) *vecs.Vector {
	if total {
		return m.OutputVector()
	}

	return m.ResidualVector()
}
