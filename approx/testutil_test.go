package approx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/sensgraph/comm"
	"github.com/katalvlaran/sensgraph/vecs"
)

// linModel is a linear test model: result = coef * inputs, with the
// residual vector mirroring the outputs. Imaginary parts propagate through
// the same matrix when the vectors carry complex-step shadows.
type linModel struct {
	in, out, resid *vecs.Vector
	coef           *mat.Dense

	comm     *comm.Comm
	full     *comm.Comm
	numParFD int
	parFDID  int

	runs int // model evaluations so far
}

func (m *linModel) InputVector() *vecs.Vector    { return m.in }
func (m *linModel) OutputVector() *vecs.Vector   { return m.out }
func (m *linModel) ResidualVector() *vecs.Vector { return m.resid }
func (m *linModel) OwningRank(string) int        { return 0 }
func (m *linModel) NumParFD() int                { return m.numParFD }
func (m *linModel) ParFDID() int                 { return m.parFDID }
func (m *linModel) FullComm() *comm.Comm         { return m.full }

func (m *linModel) Comm() *comm.Comm {
	if m.comm == nil {
		return comm.Serial()
	}

	return m.comm
}

func (m *linModel) Run(context.Context) error {
	m.runs++
	rows, cols := m.coef.Dims()
	x, y := m.in.Data(), m.out.Data()
	for r := 0; r < rows; r++ {
		sum := 0.0
		for c := 0; c < cols; c++ {
			sum += m.coef.At(r, c) * x[c]
		}
		y[r] = sum
	}
	if m.in.UnderComplexStep() && m.out.UnderComplexStep() {
		xi, yi := m.in.ImagData(), m.out.ImagData()
		for r := 0; r < rows; r++ {
			sum := 0.0
			for c := 0; c < cols; c++ {
				sum += m.coef.At(r, c) * xi[c]
			}
			yi[r] = sum
		}
	}
	copy(m.resid.Data(), y)
	if m.out.UnderComplexStep() && m.resid.UnderComplexStep() {
		copy(m.resid.ImagData(), m.out.ImagData())
	}

	return nil
}

// testCoef is the canonical 3x3 coefficient block shared by the tests:
// rows are (f0, f1, g), columns are (x0, x1, z). Column 0 excites row 0,
// column 1 rows 1 and 2, column 2 rows 0 and 2, so columns 0 and 1 can
// share a color.
func testCoef() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 2,
		0, 3, 0,
		0, 4, 5,
	})
}

// buildLin assembles a linModel with inputs x (size 2) and z (size 1) and
// outputs f (size 2) and g (size 1) over coef.
func buildLin(t testing.TB, coef *mat.Dense) *linModel {
	t.Helper()
	in, err := vecs.New(vecs.VarSpec{Name: "x", Size: 2}, vecs.VarSpec{Name: "z", Size: 1})
	require.NoError(t, err)
	out, err := vecs.New(vecs.VarSpec{Name: "f", Size: 2}, vecs.VarSpec{Name: "g", Size: 1})
	require.NoError(t, err)
	resid, err := vecs.New(vecs.VarSpec{Name: "f", Size: 2}, vecs.VarSpec{Name: "g", Size: 1})
	require.NoError(t, err)

	return &linModel{in: in, out: out, resid: resid, coef: coef}
}

// quadModel is a scalar nonlinear test model: y = x*x, evaluated in
// complex arithmetic so complex-step probes see the exact derivative.
type quadModel struct {
	in, out, resid *vecs.Vector
}

func (m *quadModel) InputVector() *vecs.Vector    { return m.in }
func (m *quadModel) OutputVector() *vecs.Vector   { return m.out }
func (m *quadModel) ResidualVector() *vecs.Vector { return m.resid }
func (m *quadModel) Comm() *comm.Comm             { return comm.Serial() }
func (m *quadModel) OwningRank(string) int        { return 0 }
func (m *quadModel) NumParFD() int                { return 1 }
func (m *quadModel) ParFDID() int                 { return 0 }
func (m *quadModel) FullComm() *comm.Comm         { return nil }

func (m *quadModel) Run(context.Context) error {
	x := complex(m.in.Data()[0], 0)
	if m.in.UnderComplexStep() {
		x = complex(real(x), m.in.ImagData()[0])
	}
	y := x * x
	m.out.Data()[0] = real(y)
	if m.out.UnderComplexStep() {
		m.out.ImagData()[0] = imag(y)
	}
	m.resid.Data()[0] = real(y)
	if m.resid.UnderComplexStep() {
		m.resid.ImagData()[0] = imag(y)
	}

	return nil
}

// buildQuad assembles a quadModel holding input x = at.
func buildQuad(t testing.TB, at float64) *quadModel {
	t.Helper()
	in, err := vecs.New(vecs.VarSpec{Name: "x", Size: 1})
	require.NoError(t, err)
	out, err := vecs.New(vecs.VarSpec{Name: "y", Size: 1})
	require.NoError(t, err)
	resid, err := vecs.New(vecs.VarSpec{Name: "y", Size: 1})
	require.NoError(t, err)
	in.Data()[0] = at

	return &quadModel{in: in, out: out, resid: resid}
}
