// Package jacobian declares Key, Format, Meta, the Store interface and the
// Dict implementation.
//
// Errors:
//
//	ErrBadShape     - declared shape has a non-positive dimension.
//	ErrPatternShape - sparsity pattern arrays disagree in length.
//	ErrIndexRange   - a pattern or triplet index falls outside the shape.
//	ErrBadFormat    - unrecognized Format value.
//	ErrValueShape   - stored value does not match the declared format/shape.
package jacobian

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Sentinel errors for jacobian declaration and storage.
var (
	// ErrBadShape indicates a declared shape with a non-positive dimension.
	ErrBadShape = errors.New("jacobian: shape dimensions must be positive")

	// ErrPatternShape indicates Rows and Cols of a sparsity pattern differ
	// in length.
	ErrPatternShape = errors.New("jacobian: pattern rows/cols length mismatch")

	// ErrIndexRange indicates a pattern or triplet index outside the
	// declared shape.
	ErrIndexRange = errors.New("jacobian: index out of range")

	// ErrBadFormat indicates an unrecognized Format value.
	ErrBadFormat = errors.New("jacobian: unrecognized format")

	// ErrValueShape indicates a stored value inconsistent with the block's
	// declared format or shape.
	ErrValueShape = errors.New("jacobian: value shape mismatch")
)

// Key identifies the derivative block d(Of)/d(Wrt).
type Key struct {
	// Of is the responding (output) variable.
	Of string

	// Wrt is the perturbed (input) variable.
	Wrt string
}

// String renders the key for diagnostics.
func (k Key) String() string { return fmt.Sprintf("(%s, %s)", k.Of, k.Wrt) }

// Format selects how a block's values are delivered to its owner.
type Format uint8

const (
	// FormatDense delivers the full block as *mat.Dense.
	FormatDense Format = iota

	// FormatPattern delivers values at the declared pattern positions as
	// []float64.
	FormatPattern

	// FormatTriplets delivers explicit coordinates as *Triplets.
	FormatTriplets
)

// String returns the lowercase name of the format.
func (f Format) String() string {
	switch f {
	case FormatDense:
		return "dense"
	case FormatPattern:
		return "pattern"
	case FormatTriplets:
		return "triplets"
	default:
		return "unknown"
	}
}

// Meta describes one declared block.
type Meta struct {
	// Shape is the dense (rows, cols) extent of the block.
	Shape [2]int

	// Rows and Cols list the nonzero positions for sparse delivery.
	// Both nil means the block is structurally dense.
	Rows, Cols []int

	// Format selects the delivery representation.
	Format Format
}

// validate checks internal consistency of m.
func (m Meta) validate() error {
	if m.Shape[0] < 1 || m.Shape[1] < 1 {
		return fmt.Errorf("%w: got %dx%d", ErrBadShape, m.Shape[0], m.Shape[1])
	}
	if m.Format > FormatTriplets {
		return fmt.Errorf("%w: %d", ErrBadFormat, m.Format)
	}
	if len(m.Rows) != len(m.Cols) {
		return fmt.Errorf("%w: %d rows, %d cols", ErrPatternShape, len(m.Rows), len(m.Cols))
	}
	for i := range m.Rows {
		if m.Rows[i] < 0 || m.Rows[i] >= m.Shape[0] || m.Cols[i] < 0 || m.Cols[i] >= m.Shape[1] {
			return fmt.Errorf("%w: pattern entry %d at (%d, %d) outside %dx%d",
				ErrIndexRange, i, m.Rows[i], m.Cols[i], m.Shape[0], m.Shape[1])
		}
	}

	return nil
}

// Store is the write surface the approximation executor assembles into.
type Store interface {
	// Meta returns the declared metadata for key, if any.
	Meta(key Key) (Meta, bool)

	// Set stores the assembled value for key.
	Set(key Key, value any) error

	// Get returns the stored value for key, if any.
	Get(key Key) (any, bool)
}

// Dict is the map-backed Store.
// The zero value is not usable; call NewDict.
type Dict struct {
	metas map[Key]Meta
	vals  map[Key]any
}

// compile-time interface check
var _ Store = (*Dict)(nil)

// NewDict returns an empty Dict.
func NewDict() *Dict {
	return &Dict{
		metas: make(map[Key]Meta),
		vals:  make(map[Key]any),
	}
}

// Register declares key's metadata. Re-registering replaces the previous
// declaration. Returns a validation error for inconsistent metadata.
func (d *Dict) Register(key Key, m Meta) error {
	if err := m.validate(); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	d.metas[key] = m

	return nil
}

// Meta returns the declared metadata for key.
func (d *Dict) Meta(key Key) (Meta, bool) {
	m, ok := d.metas[key]

	return m, ok
}

// Set stores value for key after checking it against the declared format.
// Undeclared keys accept *mat.Dense only.
func (d *Dict) Set(key Key, value any) error {
	m, declared := d.metas[key]
	format := FormatDense
	if declared {
		format = m.Format
	}
	switch format {
	case FormatDense:
		dense, ok := value.(*mat.Dense)
		if !ok {
			return fmt.Errorf("%w: %s wants *mat.Dense, got %T", ErrValueShape, key, value)
		}
		if declared {
			r, c := dense.Dims()
			if r != m.Shape[0] || c != m.Shape[1] {
				return fmt.Errorf("%w: %s wants %dx%d, got %dx%d",
					ErrValueShape, key, m.Shape[0], m.Shape[1], r, c)
			}
		}
	case FormatPattern:
		flat, ok := value.([]float64)
		if !ok {
			return fmt.Errorf("%w: %s wants []float64, got %T", ErrValueShape, key, value)
		}
		if len(flat) != len(m.Rows) {
			return fmt.Errorf("%w: %s wants %d pattern values, got %d",
				ErrValueShape, key, len(m.Rows), len(flat))
		}
	case FormatTriplets:
		if _, ok := value.(*Triplets); !ok {
			return fmt.Errorf("%w: %s wants *Triplets, got %T", ErrValueShape, key, value)
		}
	default:
		return fmt.Errorf("%w: %d", ErrBadFormat, format)
	}
	d.vals[key] = value

	return nil
}

// Get returns the stored value for key.
func (d *Dict) Get(key Key) (any, bool) {
	v, ok := d.vals[key]

	return v, ok
}

// Keys returns every key with either metadata or a stored value, sorted by
// Of then Wrt.
func (d *Dict) Keys() []Key {
	seen := make(map[Key]struct{}, len(d.metas)+len(d.vals))
	for k := range d.metas {
		seen[k] = struct{}{}
	}
	for k := range d.vals {
		seen[k] = struct{}{}
	}
	out := make([]Key, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Of != out[j].Of {
			return out[i].Of < out[j].Of
		}

		return out[i].Wrt < out[j].Wrt
	})

	return out
}
