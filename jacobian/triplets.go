package jacobian

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Triplets accumulates (row, col, value) coordinate entries.
// Entries are kept in append order; duplicate coordinates are legal and sum
// on densification.
type Triplets struct {
	Rows []int
	Cols []int
	Data []float64
}

// Append records one coordinate entry.
func (t *Triplets) Append(row, col int, v float64) {
	t.Rows = append(t.Rows, row)
	t.Cols = append(t.Cols, col)
	t.Data = append(t.Data, v)
}

// Merge appends every entry of o to t, preserving order.
func (t *Triplets) Merge(o *Triplets) {
	if o == nil {
		return
	}
	t.Rows = append(t.Rows, o.Rows...)
	t.Cols = append(t.Cols, o.Cols...)
	t.Data = append(t.Data, o.Data...)
}

// Len returns the number of stored entries.
func (t *Triplets) Len() int { return len(t.Data) }

// Reset drops all entries, keeping capacity.
func (t *Triplets) Reset() {
	t.Rows = t.Rows[:0]
	t.Cols = t.Cols[:0]
	t.Data = t.Data[:0]
}

// ToDense scatters the entries into a fresh rows×cols dense matrix,
// summing duplicates. Returns ErrBadShape for non-positive dimensions,
// ErrPatternShape for internally inconsistent lengths and ErrIndexRange for
// out-of-range coordinates.
func (t *Triplets) ToDense(rows, cols int) (*mat.Dense, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrBadShape, rows, cols)
	}
	if len(t.Rows) != len(t.Cols) || len(t.Rows) != len(t.Data) {
		return nil, fmt.Errorf("%w: %d rows, %d cols, %d values",
			ErrPatternShape, len(t.Rows), len(t.Cols), len(t.Data))
	}
	d := mat.NewDense(rows, cols, nil)
	for i, v := range t.Data {
		r, c := t.Rows[i], t.Cols[i]
		if r < 0 || r >= rows || c < 0 || c >= cols {
			return nil, fmt.Errorf("%w: entry %d at (%d, %d) outside %dx%d",
				ErrIndexRange, i, r, c, rows, cols)
		}
		d.Set(r, c, d.At(r, c)+v)
	}

	return d, nil
}
