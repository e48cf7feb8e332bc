package relevance

import "fmt"

// PushActive overrides the active flag for the duration of a scope and
// returns the restore function. It is a no-op while the engine is not
// already active, so a dormant or permanently inactive engine stays that
// way:
//
//	restore := rel.PushActive(false)
//	defer restore()
func (r *Relevance) PushActive(on bool) func() {
	if !r.active {
		return func() {}
	}
	saved := r.active
	r.active = on

	return func() { r.active = saved }
}

// PushSeeds activates the engine with a subset of the registered seeds and
// returns the restore function. Nil or empty seed slices select the full
// registered side. Unknown seeds are rejected. On a permanently inactive
// engine the scope is a no-op.
//
// The restore function reinstates both the previous seed pair and the
// previous active flag, refreshing the combined view from the pair cache.
func (r *Relevance) PushSeeds(fwdSeeds, revSeeds []string) (func(), error) {
	if r.inactive {
		return func() {}, nil
	}
	fwd := r.allSeeds[Forward]
	if len(fwdSeeds) > 0 {
		for _, s := range fwdSeeds {
			if _, ok := r.singleVar[Forward][s]; !ok {
				return nil, fmt.Errorf("%w: %q (fwd)", ErrUnknownSeed, s)
			}
		}
		fwd = NewSeedSet(fwdSeeds...)
	}
	rev := r.allSeeds[Reverse]
	if len(revSeeds) > 0 {
		for _, s := range revSeeds {
			if _, ok := r.singleVar[Reverse][s]; !ok {
				return nil, fmt.Errorf("%w: %q (rev)", ErrUnknownSeed, s)
			}
		}
		rev = NewSeedSet(revSeeds...)
	}

	savedFwd, savedRev := r.seeds[Forward], r.seeds[Reverse]
	savedActive := r.active
	r.active = true
	r.setSeeds(fwd, rev)

	return func() {
		r.setSeeds(savedFwd, savedRev)
		r.active = savedActive
	}, nil
}

// PushAllSeeds activates the engine with every registered seed on both
// sides and returns the restore function. On a permanently inactive engine
// the scope is a no-op.
func (r *Relevance) PushAllSeeds() func() {
	if r.inactive {
		return func() {}
	}
	savedFwd, savedRev := r.seeds[Forward], r.seeds[Reverse]
	savedActive := r.active
	r.active = true
	r.setSeeds(r.allSeeds[Forward], r.allSeeds[Reverse])

	return func() {
		r.setSeeds(savedFwd, savedRev)
		r.active = savedActive
	}
}

// PushNonlinear swaps in the precomputed system relevance for one nonlinear
// partition set (SetPre, SetIter or SetPost) and returns the restore
// function. Variable relevance is untouched. The scope is a no-op when on
// is false, when the engine is permanently inactive, or when no such set
// was computed.
func (r *Relevance) PushNonlinear(name string, on bool) func() {
	if !on || r.inactive {
		return func() {}
	}
	arr, ok := r.nonlinearSets[name]
	if !ok {
		return func() {}
	}
	savedActive := r.active
	savedSys := r.curSys
	r.active = true
	r.curSys = arr

	return func() {
		r.curSys = savedSys
		r.active = savedActive
	}
}
