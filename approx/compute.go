package approx

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/sensgraph/coloring"
	"github.com/katalvlaran/sensgraph/comm"
	"github.com/katalvlaran/sensgraph/jacobian"
)

// colSeg is one probe column's extracted output slice, staged for exchange
// when the output is owned by another rank.
type colSeg struct {
	Col  int
	Data []float64
}

// Compute runs every registered approximation and writes the assembled
// blocks into jac. total selects the result vector: outputs for total
// derivatives, residuals for partials.
//
// Probes execute strictly in group order then column order. Under parallel
// FD, probe i runs only on the rank with ParFDID() == i mod NumParFD();
// the skipped probes' columns arrive through the rank-ordered gather, so
// every rank assembles identical blocks. The result vector is restored to
// its pre-call state before every probe and again after the last one.
//
// Errors: ErrNilModel, ErrNilStore, ErrParallelColoring for a colored run
// over a parallel model that is not one serial replica per rank,
// ErrUnsupportedFormat from conversion, and any model run failure.
func (e *engine) Compute(ctx context.Context, m Model, jac jacobian.Store, total bool) error {
	if m == nil {
		return ErrNilModel
	}
	if jac == nil {
		return ErrNilStore
	}
	if ctx == nil {
		ctx = context.Background()
	}
	groups, err := e.groupsFor(m)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return nil
	}

	// 1. Scheme-specific vector preparation (complex-step shadows).
	restore, err := e.self.prepare(m)
	if err != nil {
		return err
	}
	defer restore()

	// 2. Snapshot the result vector once; every probe differences against
	// this baseline and the model is put back when Compute returns.
	res := resultVector(m, total)
	baseline := res.Copy()
	defer func() { _ = res.SetData(baseline) }()

	// 3. Parallel configuration. Parallel FD needs the communicator that
	// spans every replica; plain parallel models exchange over their own.
	numParFD := m.NumParFD()
	full := m.FullComm()
	useParFD := numParFD > 1 && full != nil && full.Size() > 1
	if !useParFD {
		numParFD = 1
	}
	parFDSerial := useParFD && numParFD == full.Size()
	isParallel := useParFD || m.Comm().Size() > 1
	exchange := m.Comm()
	if useParFD {
		exchange = full
	}
	parFDID := m.ParFDID()

	// 4. Probe loop: group order, then color/column order within a group.
	fdCount := 0
	trips := make(map[*approxGroup]*jacobian.Triplets)
	parts := make(map[jacobian.Key][]colSeg)
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.setCurrent(g.opts)
		if g.colored {
			if isParallel && !parFDSerial {
				return fmt.Errorf("%w: comm size %d, parallel-FD width %d",
					ErrParallelColoring, m.Comm().Size(), m.NumParFD())
			}
			t := &jacobian.Triplets{}
			trips[g] = t
			nrows, _ := g.coloring.Shape()
			for _, color := range g.coloring.Groups() {
				mine := fdCount%numParFD == parFDID
				fdCount++
				if !mine {
					continue
				}
				v, err := e.self.RunPoint(ctx, m, g.probesFor(color.Cols), baseline, total)
				if err != nil {
					return err
				}
				scatterColor(t, g, color, e.self.TransformResult(v), nrows)
			}

			continue
		}
		for pi, cols := range g.probeCols {
			mine := fdCount%numParFD == parFDID
			fdCount++
			if !mine {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := e.self.RunPoint(ctx, m, []Probe{{Vec: g.wrtVec, Indices: cols}}, baseline, total)
			if err != nil {
				return err
			}
			delta := e.self.TransformResult(v)
			if isParallel {
				// Stage per owned output for the gather below.
				rank := m.Comm().Rank()
				for _, b := range g.ofs {
					if m.OwningRank(b.name) != rank {
						continue
					}
					seg := colSeg{Col: pi, Data: make([]float64, len(b.flat))}
					for i, f := range b.flat {
						seg.Data[i] = delta[f]
					}
					key := jacobian.Key{Of: b.name, Wrt: g.wrt}
					parts[key] = append(parts[key], seg)
				}

				continue
			}
			for _, b := range g.ofs {
				for i, f := range b.flat {
					g.stage.Set(b.r0+i, pi, delta[f])
				}
			}
		}
	}

	// 5. Reconcile remotely computed uncolored columns. Every rank reaches
	// this gather or none does: probe failures return on all ranks alike.
	if isParallel {
		gathered, err := comm.AllGather(ctx, exchange, parts)
		if err != nil {
			return err
		}
		merged := make(map[jacobian.Key][]colSeg)
		for _, rankParts := range gathered {
			for key, segs := range rankParts {
				merged[key] = append(merged[key], segs...)
			}
		}
		parts = merged
	}

	// 6. Assembly: gather colored triplets, apply the scheme multiplier
	// and convert every block into the target store's format.
	for _, g := range groups {
		e.setCurrent(g.opts)
		mult := e.self.Multiplier()
		if g.colored {
			if err := e.assembleColored(ctx, g, trips[g], exchange, parFDSerial, mult, jac); err != nil {
				return err
			}

			continue
		}
		_, ncols := g.stage.Dims()
		for _, b := range g.ofs {
			key := jacobian.Key{Of: b.name, Wrt: g.wrt}
			for _, seg := range parts[key] {
				for i, val := range seg.Data {
					g.stage.Set(b.r0+i, seg.Col, val)
				}
			}
			block := mat.NewDense(b.r1-b.r0, ncols, nil)
			block.Scale(mult, g.stage.Slice(b.r0, b.r1, 0, ncols))
			if err := fromDense(jac, key, block); err != nil {
				return err
			}
		}
	}

	return nil
}

// scatterColor appends one color's deltas as (row, col, value) triplets.
// A column without a recorded row list scatters the full column. Advisory
// rows outside the coloring's row count are clipped.
func scatterColor(t *jacobian.Triplets, g *approxGroup, color coloring.Group, delta []float64, nrows int) {
	for i, col := range color.Cols {
		var rows []int
		if color.Rows != nil {
			rows = color.Rows[i]
		}
		if rows == nil {
			for r := 0; r < nrows; r++ {
				t.Append(r, col, delta[g.rowMap[r]])
			}

			continue
		}
		for _, r := range rows {
			if r < 0 || r >= nrows {
				continue
			}
			t.Append(r, col, delta[g.rowMap[r]])
		}
	}
}

// assembleColored merges the colored triplets (across replicas under
// parallel FD), densifies them and slices each absorbed key's rectangle
// into the target store.
func (e *engine) assembleColored(ctx context.Context, g *approxGroup, t *jacobian.Triplets,
	exchange *comm.Comm, parFDSerial bool, mult float64, jac jacobian.Store) error {
	if parFDSerial {
		gathered, err := comm.AllGather(ctx, exchange, t)
		if err != nil {
			return err
		}
		t = &jacobian.Triplets{}
		for _, part := range gathered {
			t.Merge(part)
		}
	}
	if mult != 1 {
		floats.Scale(mult, t.Data)
	}
	nrows, ncols := g.coloring.Shape()
	dense, err := t.ToDense(nrows, ncols)
	if err != nil {
		return err
	}
	keys := make([]jacobian.Key, 0, len(g.rects))
	for key := range g.rects {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Of != keys[j].Of {
			return keys[i].Of < keys[j].Of
		}

		return keys[i].Wrt < keys[j].Wrt
	})
	for _, key := range keys {
		rc := g.rects[key]
		if err := fromDense(jac, key, dense.Slice(rc.r0, rc.r1, rc.c0, rc.c1)); err != nil {
			return err
		}
	}

	return nil
}

// fromDense converts one assembled dense block into the format the store
// declared for key: dense pass-through for undeclared or dense keys, value
// extraction at the declared pattern positions, or triplet extraction.
// Declared metadata addresses the same index space the engine staged, so
// blocks built under of/wrt index subsets convert without remapping.
func fromDense(store jacobian.Store, key jacobian.Key, block mat.Matrix) error {
	meta, declared := store.Meta(key)
	if !declared {
		return store.Set(key, mat.DenseCopyOf(block))
	}
	br, bc := block.Dims()
	if br != meta.Shape[0] || bc != meta.Shape[1] {
		return fmt.Errorf("%w: %s staged %dx%d, declared %dx%d",
			jacobian.ErrValueShape, key, br, bc, meta.Shape[0], meta.Shape[1])
	}
	switch meta.Format {
	case jacobian.FormatDense:
		return store.Set(key, mat.DenseCopyOf(block))
	case jacobian.FormatPattern:
		vals := make([]float64, len(meta.Rows))
		for i := range meta.Rows {
			vals[i] = block.At(meta.Rows[i], meta.Cols[i])
		}

		return store.Set(key, vals)
	case jacobian.FormatTriplets:
		t := &jacobian.Triplets{}
		if meta.Rows == nil {
			// No declared pattern: every position becomes a triplet.
			for r := 0; r < br; r++ {
				for c := 0; c < bc; c++ {
					t.Append(r, c, block.At(r, c))
				}
			}
		}
		for i := range meta.Rows {
			t.Append(meta.Rows[i], meta.Cols[i], block.At(meta.Rows[i], meta.Cols[i]))
		}

		return store.Set(key, t)
	default:
		return fmt.Errorf("%w: %s declares format %d", ErrUnsupportedFormat, key, meta.Format)
	}
}
