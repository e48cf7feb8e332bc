// Package vecs declares the Vector type, its VarSpec descriptor and the
// Values snapshot.
//
// Errors:
//
//	ErrEmptyVarName      - variable declared with an empty name.
//	ErrBadSize           - variable declared with size < 1.
//	ErrDuplicateVariable - variable name declared twice.
//	ErrUnknownVariable   - lookup referenced an undeclared variable.
//	ErrSizeMismatch      - bulk write length differs from the vector length.
package vecs

import (
	"errors"
	"fmt"
)

// Sentinel errors for vector construction and access.
var (
	// ErrEmptyVarName indicates a VarSpec carried an empty name.
	ErrEmptyVarName = errors.New("vecs: variable name is empty")

	// ErrBadSize indicates a VarSpec carried a non-positive size.
	ErrBadSize = errors.New("vecs: variable size must be positive")

	// ErrDuplicateVariable indicates the same name was declared twice.
	ErrDuplicateVariable = errors.New("vecs: duplicate variable")

	// ErrUnknownVariable indicates a lookup referenced an undeclared name.
	ErrUnknownVariable = errors.New("vecs: unknown variable")

	// ErrSizeMismatch indicates a bulk write whose length differs from the
	// vector's length.
	ErrSizeMismatch = errors.New("vecs: data length mismatch")

	// ErrNoComplexStep indicates imaginary storage was requested while the
	// vector is not under complex step.
	ErrNoComplexStep = errors.New("vecs: vector is not under complex step")
)

// VarSpec declares one named variable and its flat size.
type VarSpec struct {
	// Name is the variable's dotted absolute path.
	Name string

	// Size is the number of float64 entries the variable occupies.
	Size int
}

// span is a variable's half-open [start, end) range in the flat buffer.
type span struct {
	start, end int
}

// Values is an immutable snapshot of a Vector's contents.
// Im is nil unless the vector was under complex step when snapshotted.
type Values struct {
	Re []float64
	Im []float64
}

// Vector concatenates named variables into one flat float64 buffer, with an
// optional imaginary shadow buffer for complex-step propagation.
type Vector struct {
	names []string        // registration order
	spans map[string]span // name → flat range
	data  []float64       // real storage
	imag  []float64       // imaginary shadow; nil unless under complex step
}

// New builds a Vector from specs in the given order.
// Returns ErrEmptyVarName, ErrBadSize or ErrDuplicateVariable on invalid
// specs.
func New(specs ...VarSpec) (*Vector, error) {
	v := &Vector{
		names: make([]string, 0, len(specs)),
		spans: make(map[string]span, len(specs)),
	}
	total := 0
	for _, s := range specs {
		if s.Name == "" {
			return nil, ErrEmptyVarName
		}
		if s.Size < 1 {
			return nil, fmt.Errorf("%w: %q has size %d", ErrBadSize, s.Name, s.Size)
		}
		if _, dup := v.spans[s.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateVariable, s.Name)
		}
		v.names = append(v.names, s.Name)
		v.spans[s.Name] = span{start: total, end: total + s.Size}
		total += s.Size
	}
	v.data = make([]float64, total)

	return v, nil
}

// Len returns the total flat length.
func (v *Vector) Len() int { return len(v.data) }

// Names returns the variable names in registration order.
func (v *Vector) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)

	return out
}

// Contains reports whether name is declared in v.
func (v *Vector) Contains(name string) bool {
	_, ok := v.spans[name]

	return ok
}

// Range returns the half-open [start, end) flat range of name.
func (v *Vector) Range(name string) (start, end int, ok bool) {
	sp, ok := v.spans[name]

	return sp.start, sp.end, ok
}

// Slice returns the live sub-slice holding name's real values.
// Writes through the slice mutate the vector directly.
func (v *Vector) Slice(name string) ([]float64, error) {
	sp, ok := v.spans[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}

	return v.data[sp.start:sp.end], nil
}

// Data returns the live flat real buffer.
func (v *Vector) Data() []float64 { return v.data }

// Copy returns a fresh copy of the flat real buffer.
func (v *Vector) Copy() []float64 {
	out := make([]float64, len(v.data))
	copy(out, v.data)

	return out
}

// SetData overwrites the flat real buffer from src.
// Returns ErrSizeMismatch unless len(src) == Len().
func (v *Vector) SetData(src []float64) error {
	if len(src) != len(v.data) {
		return fmt.Errorf("%w: got %d, want %d", ErrSizeMismatch, len(src), len(v.data))
	}
	copy(v.data, src)

	return nil
}

// SetComplexStep attaches (true) or drops (false) the imaginary shadow
// buffer. Attaching zeroes the shadow; re-attaching while already under
// complex step re-zeroes it.
func (v *Vector) SetComplexStep(on bool) {
	if !on {
		v.imag = nil

		return
	}
	if v.imag == nil || len(v.imag) != len(v.data) {
		v.imag = make([]float64, len(v.data))

		return
	}
	for i := range v.imag {
		v.imag[i] = 0
	}
}

// UnderComplexStep reports whether the imaginary shadow buffer is attached.
func (v *Vector) UnderComplexStep() bool { return v.imag != nil }

// ImagData returns the live imaginary shadow buffer, or nil when the vector
// is not under complex step.
func (v *Vector) ImagData() []float64 { return v.imag }

// ImagSlice returns the live imaginary sub-slice of name.
// Returns ErrUnknownVariable for undeclared names and ErrNoComplexStep when
// the vector has no imaginary storage attached.
func (v *Vector) ImagSlice(name string) ([]float64, error) {
	sp, ok := v.spans[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}
	if v.imag == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoComplexStep, name)
	}

	return v.imag[sp.start:sp.end], nil
}

// Values snapshots the vector. Re is always a copy; Im is a copy when the
// vector is under complex step and nil otherwise.
func (v *Vector) Values() Values {
	snap := Values{Re: v.Copy()}
	if v.imag != nil {
		snap.Im = make([]float64, len(v.imag))
		copy(snap.Im, v.imag)
	}

	return snap
}
