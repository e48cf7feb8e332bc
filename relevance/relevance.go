package relevance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/katalvlaran/sensgraph/dataflow"
)

// Relevance answers, for the currently active seed pair, whether a variable
// or system can influence the computation between the seeds. It is built
// once per derivative setup from the model's dataflow graph and the seed
// metadata (design variables forward, responses reverse).
//
// All state is single-owner: one goroutine constructs and queries an
// instance. Scope methods (PushActive, PushSeeds, PushAllSeeds,
// PushNonlinear) mutate the current view and hand back a restore function.
type Relevance struct {
	graph  *dataflow.Graph
	logger *slog.Logger
	cache  *arrayCache

	// Stable enumerations and their index tables. allVars holds every
	// variable node; allSystems holds every system that owns one plus all
	// ancestors, root included.
	allVars    []string
	allSystems []string
	varIdx     map[string]int
	sysIdx     map[string]int

	// Per-direction single-seed relevance arrays, one per registered seed.
	singleVar [2]map[string]array
	singleSys [2]map[string]array

	// Pair caches keyed by (forward SeedSet key, reverse SeedSet key),
	// prepopulated for all single and whole-side combinations and extended
	// lazily for any other subset pair.
	seedVarMap map[string]map[string]array
	seedSysMap map[string]map[string]array

	// Current and registered seed sets per direction.
	seeds    [2]SeedSet
	allSeeds [2]SeedSet

	// Current combined relevance view.
	curVar array
	curSys array

	// Nonlinear partition and its precomputed system arrays.
	part          Partition
	nonlinearSets map[string]array

	// Responses unreachable from every design variable.
	noDVResponses []string

	active   bool // queries consult the arrays only while true
	inactive bool // permanently inactive: constructed without both seed sides
}

// New builds the relevance engine for model with the given seed metadata.
// fwdMeta describes design variables, revMeta responses. If either side is
// empty the engine is permanently inactive: every query answers true and
// every scope is a no-op.
//
// Construction walks the graph once per seed, prepopulates the pair caches,
// validates parallel-derivative colors across the model's rank group and
// computes the pre/iterated/post partition.
func New(model Model, fwdMeta, revMeta []SeedMeta, options ...Option) (*Relevance, error) {
	// 1. Validate the model handle.
	if model == nil {
		return nil, ErrNilModel
	}
	if model.Pathname() != dataflow.Root {
		return nil, fmt.Errorf("%w: got %q", ErrNotRoot, model.Pathname())
	}
	// 2. Apply optional settings.
	opts := defaultOptions()
	for _, opt := range options {
		opt(&opts)
	}
	// 3. Allocate the engine shell.
	r := &Relevance{
		graph:         model.Graph(),
		logger:        opts.logger,
		cache:         newArrayCache(),
		singleVar:     [2]map[string]array{make(map[string]array), make(map[string]array)},
		singleSys:     [2]map[string]array{make(map[string]array), make(map[string]array)},
		seedVarMap:    make(map[string]map[string]array),
		seedSysMap:    make(map[string]map[string]array),
		nonlinearSets: make(map[string]array),
	}
	// 4. Seed arrays, pair caches, color validation, diagnostics.
	if err := r.setAllSeeds(opts.ctx, model, fwdMeta, revMeta); err != nil {
		return nil, err
	}
	// 5. The pre/iterated/post partition and its system arrays.
	if err := r.setupPartition(model, fwdMeta, revMeta); err != nil {
		return nil, err
	}
	r.setupNonlinearSets()
	// 6. Without both seed sides the engine can never activate.
	if len(fwdMeta) == 0 || len(revMeta) == 0 {
		r.inactive = true
	}

	return r, nil
}

// setAllSeeds registers the full seed population and precomputes every
// single-seed array plus the pair-cache entries for single and whole-side
// combinations. Called once, from New.
func (r *Relevance) setAllSeeds(ctx context.Context, model Model, fwdMeta, revMeta []SeedMeta) error {
	fwd := NewSeedSet(metaSources(fwdMeta)...)
	rev := NewSeedSet(metaSources(revMeta)...)
	r.allSeeds[Forward], r.allSeeds[Reverse] = fwd, rev
	r.seeds[Forward], r.seeds[Reverse] = SeedSet{}, SeedSet{}

	// A one-sided engine keeps empty tables; it can never activate.
	if fwd.Empty() || rev.Empty() {
		return nil
	}

	r.buildIndexTables()

	// 1. Single-seed arrays. Colored seeds on multi-rank groups walk in
	//    rank-local mode so same-colored seeds can be checked for overlap
	//    on this rank alone.
	nprocs := model.Comm().Size()
	colored := make(map[string]Direction)
	sides := []struct {
		dir   Direction
		metas []SeedMeta
	}{{Forward, fwdMeta}, {Reverse, revMeta}}
	for _, side := range sides {
		for _, m := range side.metas {
			if _, done := r.singleVar[side.dir][m.Source]; done {
				continue
			}
			local := nprocs > 1 && m.ParallelDerivColor != ""
			varr, sarr, err := r.singleSeedArrays(m.Source, side.dir, local)
			if err != nil {
				return err
			}
			r.singleVar[side.dir][m.Source] = r.cache.canonical(varr)
			r.singleSys[side.dir][m.Source] = r.cache.canonical(sarr)
			if local {
				colored[m.Source] = side.dir
			}
		}
	}

	// 2. Prepopulate the pair caches. A singleton SeedSet keys to its bare
	//    name, so the single-name and one-element-set forms share entries.
	allFV := r.unionOf(r.singleVar[Forward], fwd)
	allFS := r.unionOf(r.singleSys[Forward], fwd)
	allRV := r.unionOf(r.singleVar[Reverse], rev)
	allRS := r.unionOf(r.singleSys[Reverse], rev)

	for _, fsrc := range fwd.Names() {
		fv, fs := r.singleVar[Forward][fsrc], r.singleSys[Forward][fsrc]
		vsub := ensureSub(r.seedVarMap, fsrc)
		ssub := ensureSub(r.seedSysMap, fsrc)
		for _, rsrc := range rev.Names() {
			vsub[rsrc] = r.cache.canonical(andOf(fv, r.singleVar[Reverse][rsrc]))
			ssub[rsrc] = r.cache.canonical(andOf(fs, r.singleSys[Reverse][rsrc]))
		}
		// (single forward, all reverse)
		vsub[rev.Key()] = r.cache.canonical(andOf(fv, allRV))
		ssub[rev.Key()] = r.cache.canonical(andOf(fs, allRS))
	}
	// (all forward, single reverse) and (all forward, all reverse)
	vsub := ensureSub(r.seedVarMap, fwd.Key())
	ssub := ensureSub(r.seedSysMap, fwd.Key())
	for _, rsrc := range rev.Names() {
		vsub[rsrc] = r.cache.canonical(andOf(allFV, r.singleVar[Reverse][rsrc]))
		ssub[rsrc] = r.cache.canonical(andOf(allFS, r.singleSys[Reverse][rsrc]))
	}
	vsub[rev.Key()] = r.cache.canonical(andOf(allFV, allRV))
	ssub[rev.Key()] = r.cache.canonical(andOf(allFS, allRS))

	// 3. Start with every seed active.
	r.setSeeds(fwd, rev)

	// 4. Same-colored seeds must not overlap on any rank.
	if len(colored) > 0 {
		if err := r.parDerivErrCheck(ctx, model, fwdMeta, revMeta); err != nil {
			return err
		}
	}

	// 5. Flag responses no design variable can reach.
	return r.findNoDVResponses(colored, fwd, rev)
}

// buildIndexTables enumerates variables and systems into stable sorted
// tables. Systems cover every variable owner, every system node, and all of
// their ancestors up to the root.
func (r *Relevance) buildIndexTables() {
	sysSet := map[string]struct{}{dataflow.Root: {}}
	var vars []string
	for _, n := range r.graph.Nodes() {
		if n.Kind.IsVariable() {
			vars = append(vars, n.Name)
			owner := dataflow.Owner(n.Name)
			if _, ok := sysSet[owner]; !ok {
				for _, a := range dataflow.Ancestors(owner) {
					sysSet[a] = struct{}{}
				}
			}

			continue
		}
		if _, ok := sysSet[n.Name]; !ok {
			for _, a := range dataflow.Ancestors(n.Name) {
				sysSet[a] = struct{}{}
			}
		}
	}
	r.allVars = vars // Nodes() is sorted already
	r.allSystems = make([]string, 0, len(sysSet))
	for s := range sysSet {
		r.allSystems = append(r.allSystems, s)
	}
	sort.Strings(r.allSystems)
	r.varIdx = indexOf(r.allVars)
	r.sysIdx = indexOf(r.allSystems)
}

// singleSeedArrays walks from src and renders the visited set as a variable
// array and a system array.
func (r *Relevance) singleSeedArrays(src string, dir Direction, local bool) (array, array, error) {
	depnodes, err := r.dependentNodes(src, dir, local)
	if err != nil {
		return nil, nil, err
	}

	return r.namesToVarArray(depnodes), r.namesToSysArray(varsToSystems(depnodes)), nil
}

// namesToVarArray renders names as a variable relevance array; non-variable
// names are skipped.
func (r *Relevance) namesToVarArray(names map[string]bool) array {
	arr := make(array, len(r.allVars))
	for name := range names {
		if idx, ok := r.varIdx[name]; ok {
			arr[idx] = true
		}
	}

	return arr
}

// namesToSysArray renders names as a system relevance array; unknown names
// are skipped.
func (r *Relevance) namesToSysArray(names map[string]bool) array {
	arr := make(array, len(r.allSystems))
	for name := range names {
		if idx, ok := r.sysIdx[name]; ok {
			arr[idx] = true
		}
	}

	return arr
}

// varsToSystems returns every system containing any of the given variables
// or components: each name's owner and all of its ancestors, root included.
func varsToSystems(names map[string]bool) map[string]bool {
	systems := map[string]bool{dataflow.Root: true}
	for name := range names {
		owner := dataflow.Owner(name)
		if !systems[owner] {
			for _, a := range dataflow.Ancestors(owner) {
				systems[a] = true
			}
		}
	}

	return systems
}

// unionOf returns the union of the seeds' arrays; an empty seed set yields
// an empty array.
func (r *Relevance) unionOf(m map[string]array, seeds SeedSet) array {
	var out array
	for i, seed := range seeds.names {
		arr := m[seed]
		if i == 0 {
			out = arr.clone()

			continue
		}
		orInto(out, arr)
	}
	if out == nil {
		out = array{}
	}

	return out
}

// andOf returns a fresh intersection of a and b.
func andOf(a, b array) array {
	out := a.clone()
	andInto(out, b)

	return out
}

// relArrayFor returns the combined relevance array for the seed pair,
// consulting the pair cache first and memoizing misses.
func (r *Relevance) relArrayFor(cache map[string]map[string]array, singles *[2]map[string]array, fwd, rev SeedSet) array {
	if sub, ok := cache[fwd.Key()]; ok {
		if arr, hit := sub[rev.Key()]; hit {
			return arr
		}
	}
	combined := r.unionOf(singles[Forward], fwd)
	andInto(combined, r.unionOf(singles[Reverse], rev))
	arr := r.cache.canonical(combined)
	ensureSub(cache, fwd.Key())[rev.Key()] = arr

	return arr
}

// setSeeds installs the current seed pair and refreshes the combined view.
func (r *Relevance) setSeeds(fwd, rev SeedSet) {
	r.seeds[Forward], r.seeds[Reverse] = fwd, rev
	if !fwd.Empty() && !rev.Empty() {
		r.curVar = r.relArrayFor(r.seedVarMap, &r.singleVar, fwd, rev)
		r.curSys = r.relArrayFor(r.seedSysMap, &r.singleSys, fwd, rev)
	}
}

// findNoDVResponses records responses that no design variable can reach.
// Colored seeds are re-walked without the rank-local restriction so a
// response served entirely by another rank is not misreported.
func (r *Relevance) findNoDVResponses(colored map[string]Direction, fwd, rev SeedSet) error {
	farrs := make(map[string]array, fwd.Len())
	for _, fsrc := range fwd.Names() {
		arr := r.singleVar[Forward][fsrc]
		if dir, ok := colored[fsrc]; ok {
			dep, err := r.dependentNodes(fsrc, dir, false)
			if err != nil {
				return err
			}
			arr = r.namesToVarArray(dep)
		}
		farrs[fsrc] = arr
	}
	rarrs := make(map[string]array, rev.Len())
	for _, rsrc := range rev.Names() {
		arr := r.singleVar[Reverse][rsrc]
		if dir, ok := colored[rsrc]; ok {
			dep, err := r.dependentNodes(rsrc, dir, false)
			if err != nil {
				return err
			}
			arr = r.namesToVarArray(dep)
		}
		rarrs[rsrc] = arr
	}

	allf := r.unionOf(farrs, fwd)
	r.noDVResponses = nil
	for _, rsrc := range rev.Names() {
		idx, ok := r.varIdx[rsrc]
		if !ok || !(allf[idx] && rarrs[rsrc][idx]) {
			r.noDVResponses = append(r.noDVResponses, rsrc)
		}
	}
	if len(r.noDVResponses) > 0 {
		r.logger.Warn("responses unreachable from any design variable",
			"responses", r.noDVResponses)
	}

	return nil
}

// Active reports whether queries currently consult the relevance arrays.
// A freshly constructed engine is dormant until a seed scope activates it;
// engines built without both seed sides stay inactive forever.
func (r *Relevance) Active() bool { return r.active }

// SeedVars returns the currently active seed set for the direction.
func (r *Relevance) SeedVars(direction Direction) SeedSet {
	if direction != Forward && direction != Reverse {
		return SeedSet{}
	}

	return r.seeds[direction]
}

// AllSeedVars returns the full registered seed set for the direction.
func (r *Relevance) AllSeedVars(direction Direction) SeedSet {
	if direction != Forward && direction != Reverse {
		return SeedSet{}
	}

	return r.allSeeds[direction]
}

// IsRelevant reports whether the named variable is relevant to the current
// seed pair. A dormant or inactive engine answers true for every name;
// an active engine answers false for names absent from the graph.
func (r *Relevance) IsRelevant(name string) bool {
	if !r.active {
		return true
	}
	idx, ok := r.varIdx[name]
	if !ok {
		return false
	}

	return r.curVar[idx]
}

// IsRelevantSystem reports whether the named system is relevant to the
// current seed pair, with the same dormant and absent-name semantics as
// IsRelevant.
func (r *Relevance) IsRelevantSystem(name string) bool {
	if !r.active {
		return true
	}
	idx, ok := r.sysIdx[name]
	if !ok {
		return false
	}

	return r.curSys[idx]
}

// Filter returns the systems whose relevance matches relevant. While the
// engine is not active, relevant=true passes everything through and
// relevant=false passes nothing.
func (r *Relevance) Filter(systems []string, relevant bool) []string {
	if r.active {
		out := make([]string, 0, len(systems))
		for _, s := range systems {
			if r.IsRelevantSystem(s) == relevant {
				out = append(out, s)
			}
		}

		return out
	}
	if relevant {
		return append([]string(nil), systems...)
	}

	return nil
}

// ListRelevance returns the names whose current relevance matches relevant,
// for the chosen class. The order follows the stable enumeration.
func (r *Relevance) ListRelevance(relevant bool, class NodeClass) []string {
	names, arr := r.allVars, r.curVar
	if class == ClassSystem {
		names, arr = r.allSystems, r.curSys
	}
	out := make([]string, 0, len(arr))
	for i := 0; i < len(names) && i < len(arr); i++ {
		if arr[i] == relevant {
			out = append(out, names[i])
		}
	}

	return out
}

// RelevantVars returns the variables relevant to the single seed in the
// given direction, filtered by class, sorted ascending.
func (r *Relevance) RelevantVars(seed string, direction Direction, filter IOFilter) ([]string, error) {
	if direction != Forward && direction != Reverse {
		return nil, fmt.Errorf("%w: got %d", ErrBadDirection, direction)
	}
	arr, ok := r.singleVar[direction][seed]
	if !ok {
		return nil, fmt.Errorf("%w: %q (%s)", ErrUnknownSeed, seed, direction)
	}

	return r.filterVarArray(arr, filter), nil
}

// SeedPairRelevance returns, for every (forward, reverse) seed pair with a
// nonempty intersection, the variables relevant to both. Nil seed slices
// default to the currently active seeds.
func (r *Relevance) SeedPairRelevance(fwdSeeds, revSeeds []string, filter IOFilter) ([]SeedPair, error) {
	if fwdSeeds == nil {
		fwdSeeds = r.seeds[Forward].Names()
	}
	if revSeeds == nil {
		revSeeds = r.seeds[Reverse].Names()
	}
	out := make([]SeedPair, 0, len(fwdSeeds)*len(revSeeds))
	for _, fsrc := range fwdSeeds {
		if _, ok := r.singleVar[Forward][fsrc]; !ok {
			return nil, fmt.Errorf("%w: %q (fwd)", ErrUnknownSeed, fsrc)
		}
		for _, rsrc := range revSeeds {
			if _, ok := r.singleVar[Reverse][rsrc]; !ok {
				return nil, fmt.Errorf("%w: %q (rev)", ErrUnknownSeed, rsrc)
			}
			arr := r.relArrayFor(r.seedVarMap, &r.singleVar, NewSeedSet(fsrc), NewSeedSet(rsrc))
			if !arr.anyTrue() {
				continue
			}
			out = append(out, SeedPair{Forward: fsrc, Reverse: rsrc, Vars: r.filterVarArray(arr, filter)})
		}
	}

	return out, nil
}

// AllRelevant unions the pairwise relevance of the given seeds and splits
// it into inputs, outputs and containing systems. Nil seed slices default
// to the currently active seeds.
func (r *Relevance) AllRelevant(fwdSeeds, revSeeds []string) (inputs, outputs, systems []string, err error) {
	pairs, err := r.SeedPairRelevance(fwdSeeds, revSeeds, AllVars)
	if err != nil {
		return nil, nil, nil, err
	}
	varSet := make(map[string]bool)
	for _, p := range pairs {
		for _, v := range p.Vars {
			varSet[v] = true
		}
	}
	sysSet := varsToSystems(varSet)
	for name := range varSet {
		if node, ok := r.graph.Node(name); ok {
			switch node.Kind {
			case dataflow.KindInput:
				inputs = append(inputs, name)
			case dataflow.KindOutput:
				outputs = append(outputs, name)
			}
		}
	}
	systems = make([]string, 0, len(sysSet))
	for s := range sysSet {
		systems = append(systems, s)
	}
	sort.Strings(inputs)
	sort.Strings(outputs)
	sort.Strings(systems)

	return inputs, outputs, systems, nil
}

// NoDVResponses returns the responses no design variable can reach, sorted
// ascending.
func (r *Relevance) NoDVResponses() []string {
	out := append([]string(nil), r.noDVResponses...)
	sort.Strings(out)

	return out
}

// Partition returns a copy of the pre/iterated/post component split.
func (r *Relevance) Partition() Partition {
	return Partition{
		Pre:         append([]string(nil), r.part.Pre...),
		Iterated:    append([]string(nil), r.part.Iterated...),
		Post:        append([]string(nil), r.part.Post...),
		IteratesAll: r.part.IteratesAll,
	}
}

// String renders the current seed state for diagnostics.
func (r *Relevance) String() string {
	return fmt.Sprintf("Relevance(fwd=%s, rev=%s, active=%t)",
		r.seeds[Forward], r.seeds[Reverse], r.active)
}

// filterVarArray lists the names set in arr that pass the class filter.
func (r *Relevance) filterVarArray(arr array, filter IOFilter) []string {
	out := make([]string, 0, len(arr))
	for i, on := range arr {
		if on && r.passesFilter(r.allVars[i], filter) {
			out = append(out, r.allVars[i])
		}
	}

	return out
}

// passesFilter applies the variable-class filter to one name.
func (r *Relevance) passesFilter(name string, filter IOFilter) bool {
	if filter == AllVars {
		return true
	}
	node, ok := r.graph.Node(name)
	if !ok {
		return false
	}
	if filter == InputsOnly {
		return node.Kind == dataflow.KindInput
	}

	return node.Kind == dataflow.KindOutput
}

// metaSources extracts the seed source names from metas, in order.
func metaSources(metas []SeedMeta) []string {
	out := make([]string, 0, len(metas))
	for _, m := range metas {
		out = append(out, m.Source)
	}

	return out
}

// ensureSub returns cache[key], allocating the nested map on first use.
func ensureSub(cache map[string]map[string]array, key string) map[string]array {
	sub, ok := cache[key]
	if !ok {
		sub = make(map[string]array)
		cache[key] = sub
	}

	return sub
}

// indexOf builds the name→position table of a sorted enumeration.
func indexOf(names []string) map[string]int {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}

	return idx
}
