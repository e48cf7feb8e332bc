// Package coloring describes simultaneous-perturbation column groups for
// sparse Jacobian assembly.
//
// A Coloring partitions (a subset of) the columns of an nrows×ncols
// Jacobian into colors. All columns of one color can be perturbed in a
// single model evaluation because no row is touched by more than one of
// them. Each colored column may carry the list of rows it excites; a nil
// row list means the rows are unknown and the consumer must fall back to
// scattering the full column.
//
// Row lists are advisory: they originate outside this package (typically a
// sparsity analysis over an earlier model revision) and are not range
// checked here. Consumers clip out-of-range rows instead of failing the
// whole assembly.
//
// A coloring may record the wrt variable names whose columns it covers
// (SetWrts); consumers use MatchesWrt to leave derivative requests for
// other wrts uncolored. An empty set matches every wrt.
//
// Determinism:
//
//	Groups() preserves insertion order and Columns() returns the colored
//	columns sorted ascending.
package coloring

import (
	"errors"
	"fmt"
	"sort"
)

// Sentinel errors for coloring construction.
var (
	// ErrBadShape indicates a non-positive row or column count.
	ErrBadShape = errors.New("coloring: shape dimensions must be positive")

	// ErrEmptyColor indicates AddColor was called with no columns.
	ErrEmptyColor = errors.New("coloring: color has no columns")

	// ErrColumnRange indicates a column index outside [0, ncols).
	ErrColumnRange = errors.New("coloring: column index out of range")

	// ErrColumnReuse indicates a column assigned to more than one color.
	ErrColumnReuse = errors.New("coloring: column already colored")

	// ErrRowsMismatch indicates a row-list count different from the column
	// count of its color.
	ErrRowsMismatch = errors.New("coloring: rows list count mismatch")
)

// Group is one color: the columns perturbed together and, per column, the
// rows that column excites (nil when unknown).
type Group struct {
	Cols []int
	Rows [][]int
}

// Coloring is an immutable-after-build set of column groups over an
// nrows×ncols Jacobian.
type Coloring struct {
	nrows, ncols int
	groups       []Group
	used         []bool // per-column assignment guard
	wrts         map[string]bool
}

// New returns an empty Coloring over an nrows×ncols Jacobian.
// Returns ErrBadShape for non-positive dimensions.
func New(nrows, ncols int) (*Coloring, error) {
	if nrows < 1 || ncols < 1 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrBadShape, nrows, ncols)
	}

	return &Coloring{nrows: nrows, ncols: ncols, used: make([]bool, ncols)}, nil
}

// Shape returns the Jacobian extent the coloring was built for.
func (c *Coloring) Shape() (rows, cols int) { return c.nrows, c.ncols }

// SetWrts records the names of the wrt variables whose columns this
// coloring covers. Consumers leave requests for other wrts uncolored.
// An empty set (the default) matches every wrt.
func (c *Coloring) SetWrts(names ...string) {
	if len(names) == 0 {
		c.wrts = nil

		return
	}
	c.wrts = make(map[string]bool, len(names))
	for _, n := range names {
		c.wrts[n] = true
	}
}

// MatchesWrt reports whether name's columns belong to this coloring.
func (c *Coloring) MatchesWrt(name string) bool {
	return c.wrts == nil || c.wrts[name]
}

// Wrts returns the recorded wrt names sorted ascending; nil when the
// coloring matches every wrt.
func (c *Coloring) Wrts() []string {
	if c.wrts == nil {
		return nil
	}
	out := make([]string, 0, len(c.wrts))
	for n := range c.wrts {
		out = append(out, n)
	}
	sort.Strings(out)

	return out
}

// NumColors returns the number of groups added so far.
func (c *Coloring) NumColors() int { return len(c.groups) }

// AddColor adds a group whose row lists are unknown; consumers scatter the
// full column for each of its columns.
func (c *Coloring) AddColor(cols []int) error {
	return c.AddColorWithRows(cols, nil)
}

// AddColorWithRows adds a group with per-column row lists.
// rows must be nil or hold exactly one list per column (individual lists
// may be nil to mark that single column as unknown).
// Returns ErrEmptyColor, ErrColumnRange, ErrColumnReuse or ErrRowsMismatch.
func (c *Coloring) AddColorWithRows(cols []int, rows [][]int) error {
	// 1. Validate the group before mutating any assignment state.
	if len(cols) == 0 {
		return ErrEmptyColor
	}
	if rows != nil && len(rows) != len(cols) {
		return fmt.Errorf("%w: %d columns, %d row lists", ErrRowsMismatch, len(cols), len(rows))
	}
	for _, col := range cols {
		if col < 0 || col >= c.ncols {
			return fmt.Errorf("%w: %d outside [0, %d)", ErrColumnRange, col, c.ncols)
		}
		if c.used[col] {
			return fmt.Errorf("%w: %d", ErrColumnReuse, col)
		}
	}
	// 2. Commit: mark columns and store private copies.
	g := Group{Cols: append([]int(nil), cols...)}
	if rows != nil {
		g.Rows = make([][]int, len(rows))
		for i, r := range rows {
			if r != nil {
				g.Rows[i] = append([]int(nil), r...)
			}
		}
	}
	for _, col := range cols {
		c.used[col] = true
	}
	c.groups = append(c.groups, g)

	return nil
}

// Groups returns a deep copy of the color groups in insertion order.
func (c *Coloring) Groups() []Group {
	out := make([]Group, len(c.groups))
	for i, g := range c.groups {
		cp := Group{Cols: append([]int(nil), g.Cols...)}
		if g.Rows != nil {
			cp.Rows = make([][]int, len(g.Rows))
			for j, r := range g.Rows {
				if r != nil {
					cp.Rows[j] = append([]int(nil), r...)
				}
			}
		}
		out[i] = cp
	}

	return out
}

// Columns returns every colored column sorted ascending.
func (c *Coloring) Columns() []int {
	out := make([]int, 0, len(c.used))
	for col, on := range c.used {
		if on {
			out = append(out, col)
		}
	}
	sort.Ints(out)

	return out
}
