package approx

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/sensgraph/coloring"
	"github.com/katalvlaran/sensgraph/jacobian"
	"github.com/katalvlaran/sensgraph/vecs"
)

// ofBlock is one output's contiguous row band inside a staging buffer.
type ofBlock struct {
	name string

	// r0, r1 is the half-open staging row range.
	r0, r1 int

	// flat maps each staging row to its flat position in the result
	// vector.
	flat []int
}

// rect is one absorbed key's rectangle inside the colored dense matrix.
type rect struct {
	r0, r1, c0, c1 int
}

// colRef resolves one colored column to a perturbable storage slot.
type colRef struct {
	vec *vecs.Vector
	idx int
}

// approxGroup is one batch of requests sharing a perturbation run.
type approxGroup struct {
	opts    Options
	colored bool

	// Uncolored state: one staging buffer per wrt spanning every
	// dependent output contiguously.
	wrt       string
	wrtVec    *vecs.Vector
	probeCols [][]int // flat wrt positions stepped per probe
	ofs       []ofBlock
	stage     *mat.Dense

	// Colored state.
	coloring *coloring.Coloring
	colMap   []colRef // colored column -> storage slot
	rowMap   []int    // colored row -> result vector flat position
	rects    map[jacobian.Key]rect
}

// groupsFor returns the cached groups, rebuilding them when registration or
// coloring changed since the last build.
func (e *engine) groupsFor(m Model) ([]*approxGroup, error) {
	if e.groups != nil {
		return e.groups, nil
	}
	groups, err := e.buildGroups(m)
	if err != nil {
		return nil, err
	}
	e.groups = groups
	e.logger.Debug("built approximation groups",
		"requests", len(e.reqs), "groups", len(groups))

	return groups, nil
}

// buildGroups stable-sorts the request list by group key, batches adjacent
// equal-keyed requests and resolves each batch's storage.
func (e *engine) buildGroups(m Model) ([]*approxGroup, error) {
	// 1. Sort a copy so registration order stays intact for reruns.
	reqs := make([]Request, len(e.reqs))
	copy(reqs, e.reqs)
	sort.SliceStable(reqs, func(i, j int) bool {
		return e.self.groupKey(reqs[i]) < e.self.groupKey(reqs[j])
	})

	// 2. Batch adjacent requests sharing a key.
	var groups []*approxGroup
	for lo := 0; lo < len(reqs); {
		hi := lo + 1
		key := e.self.groupKey(reqs[lo])
		for hi < len(reqs) && e.self.groupKey(reqs[hi]) == key {
			hi++
		}
		batch := reqs[lo:hi]
		var (
			g   *approxGroup
			err error
		)
		if batch[0].Key.Wrt == ColoredWrt {
			g, err = e.buildColoredGroup(m, batch[0])
		} else {
			g, err = e.buildPlainGroup(m, batch)
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
		lo = hi
	}

	return groups, nil
}

// buildPlainGroup resolves an uncolored batch: wrt storage, probe columns
// and the staging buffer spanning the batch's outputs.
func (e *engine) buildPlainGroup(m Model, batch []Request) (*approxGroup, error) {
	opts := batch[0].Options
	wrt := batch[0].Key.Wrt

	// 1. Locate the wrt storage: inputs first, outputs for source
	// variables perturbed during total derivatives.
	vec, start, width, err := locate(m, wrt)
	if err != nil {
		return nil, err
	}

	// 2. Resolve the probed flat positions, honoring the index subset.
	cols, err := subsetFlat(wrt, start, width, opts.Indices)
	if err != nil {
		return nil, err
	}

	// 3. Directional mode collapses every column into one probe.
	var probeCols [][]int
	if opts.Directional {
		probeCols = [][]int{cols}
	} else {
		probeCols = make([][]int, len(cols))
		for i, c := range cols {
			probeCols[i] = []int{c}
		}
	}

	// 4. Stack the batch's outputs into one staging buffer, ordered by
	// their offsets so probe scatter is deterministic.
	ofs, rows, err := e.stackOutputs(m, batch)
	if err != nil {
		return nil, err
	}

	return &approxGroup{
		opts:      opts,
		wrt:       wrt,
		wrtVec:    vec,
		probeCols: probeCols,
		ofs:       ofs,
		stage:     mat.NewDense(rows, len(probeCols), nil),
	}, nil
}

// stackOutputs builds the ordered row bands of a staging buffer from the
// batch's distinct of names, applying any registered row subsets.
func (e *engine) stackOutputs(m Model, batch []Request) ([]ofBlock, int, error) {
	out := m.OutputVector()
	seen := make(map[string]bool, len(batch))
	names := make([]string, 0, len(batch))
	for _, req := range batch {
		if !seen[req.Key.Of] {
			seen[req.Key.Of] = true
			names = append(names, req.Key.Of)
		}
	}
	starts := make(map[string]int, len(names))
	for _, name := range names {
		s, _, ok := out.Range(name)
		if !ok {
			return nil, 0, fmt.Errorf("approx: of %q: %w", name, vecs.ErrUnknownVariable)
		}
		starts[name] = s
	}
	sort.Slice(names, func(i, j int) bool {
		if starts[names[i]] != starts[names[j]] {
			return starts[names[i]] < starts[names[j]]
		}

		return names[i] < names[j]
	})

	blocks := make([]ofBlock, 0, len(names))
	rows := 0
	for _, name := range names {
		start, end, _ := out.Range(name)
		flat, err := subsetFlat(name, start, end-start, e.ofIdx[name])
		if err != nil {
			return nil, 0, err
		}
		b := ofBlock{name: name, r0: rows, r1: rows + len(flat), flat: flat}
		blocks = append(blocks, b)
		rows = b.r1
	}

	return blocks, rows, nil
}

// buildColoredGroup resolves the synthetic colored entry: the column and
// row translation tables plus each absorbed key's rectangle in the colored
// dense matrix. Column order follows the absorbed wrts' first appearance,
// row order the absorbed ofs' first appearance.
func (e *engine) buildColoredGroup(m Model, req Request) (*approxGroup, error) {
	c := req.Options.Coloring
	absorbed := req.Options.absorbed

	// 1. Column table: one slot per colored column, concatenating the
	// absorbed wrts' (possibly subset) flat ranges.
	var (
		colMap    []colRef
		colStarts = make(map[string]int)
		colWidths = make(map[string]int)
	)
	for _, a := range absorbed {
		wrt := a.Key.Wrt
		if _, done := colStarts[wrt]; done {
			continue
		}
		vec, start, width, err := locate(m, wrt)
		if err != nil {
			return nil, err
		}
		flat, err := subsetFlat(wrt, start, width, a.Options.Indices)
		if err != nil {
			return nil, err
		}
		colStarts[wrt] = len(colMap)
		colWidths[wrt] = len(flat)
		for _, f := range flat {
			colMap = append(colMap, colRef{vec: vec, idx: f})
		}
	}

	// 2. Row table: absorbed ofs concatenated over the result vector.
	var (
		rowMap    []int
		rowStarts = make(map[string]int)
		rowEnds   = make(map[string]int)
	)
	out := m.OutputVector()
	for _, a := range absorbed {
		of := a.Key.Of
		if _, done := rowStarts[of]; done {
			continue
		}
		start, end, ok := out.Range(of)
		if !ok {
			return nil, fmt.Errorf("approx: of %q: %w", of, vecs.ErrUnknownVariable)
		}
		rowStarts[of] = len(rowMap)
		rowEnds[of] = len(rowMap) + (end - start)
		for f := start; f < end; f++ {
			rowMap = append(rowMap, f)
		}
	}

	// 3. The coloring must cover exactly the concatenated extent.
	nrows, ncols := c.Shape()
	if nrows != len(rowMap) || ncols != len(colMap) {
		return nil, fmt.Errorf("%w: coloring is %dx%d, absorbed extent is %dx%d",
			ErrColoringShape, nrows, ncols, len(rowMap), len(colMap))
	}

	// 4. Rectangles for per-key extraction after assembly.
	rects := make(map[jacobian.Key]rect, len(absorbed))
	for _, a := range absorbed {
		rects[a.Key] = rect{
			r0: rowStarts[a.Key.Of],
			r1: rowEnds[a.Key.Of],
			c0: colStarts[a.Key.Wrt],
			c1: colStarts[a.Key.Wrt] + colWidths[a.Key.Wrt],
		}
	}

	return &approxGroup{
		opts:     req.Options,
		colored:  true,
		coloring: c,
		colMap:   colMap,
		rowMap:   rowMap,
		rects:    rects,
	}, nil
}

// probesFor turns one color's column set into per-vector probes.
func (g *approxGroup) probesFor(cols []int) []Probe {
	byVec := make(map[*vecs.Vector][]int)
	order := make([]*vecs.Vector, 0, 2)
	for _, col := range cols {
		ref := g.colMap[col]
		if _, ok := byVec[ref.vec]; !ok {
			order = append(order, ref.vec)
		}
		byVec[ref.vec] = append(byVec[ref.vec], ref.idx)
	}
	probes := make([]Probe, 0, len(order))
	for _, v := range order {
		probes = append(probes, Probe{Vec: v, Indices: byVec[v]})
	}

	return probes
}

// locate finds name's flat range, preferring the input vector and falling
// back to outputs for total-derivative source variables.
func locate(m Model, name string) (vec *vecs.Vector, start, width int, err error) {
	if in := m.InputVector(); in != nil {
		if s, e, ok := in.Range(name); ok {
			return in, s, e - s, nil
		}
	}
	if out := m.OutputVector(); out != nil {
		if s, e, ok := out.Range(name); ok {
			return out, s, e - s, nil
		}
	}

	return nil, 0, 0, fmt.Errorf("approx: wrt %q not held in the input or output vector: %w",
		name, vecs.ErrUnknownVariable)
}

// subsetFlat maps an optional index subset of a width-wide variable at
// start into flat positions, validating ranges.
func subsetFlat(name string, start, width int, sub []int) ([]int, error) {
	if sub == nil {
		flat := make([]int, width)
		for i := range flat {
			flat[i] = start + i
		}

		return flat, nil
	}
	flat := make([]int, len(sub))
	for i, s := range sub {
		if s < 0 || s >= width {
			return nil, fmt.Errorf("%w: %d outside [0, %d) of %q", ErrBadIndices, s, width, name)
		}
		flat[i] = start + s
	}

	return flat, nil
}
