package approx

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/katalvlaran/sensgraph/coloring"
	"github.com/katalvlaran/sensgraph/comm"
	"github.com/katalvlaran/sensgraph/jacobian"
	"github.com/katalvlaran/sensgraph/vecs"
)

// Default perturbation sizes applied when Options.Step is zero.
const (
	// DefaultFDStep is the finite-difference step size.
	DefaultFDStep = 1e-6

	// DefaultCSStep is the complex-step size. Far below float64 precision
	// on purpose: the imaginary axis carries no subtractive cancellation.
	DefaultCSStep = 1e-40
)

// ColoredWrt is the sentinel wrt name marking a consolidated colored-group
// request produced by ApplyColoring. It is never a valid variable name.
const ColoredWrt = "@color"

// Sentinel errors for registration, group building and execution.
var (
	// ErrNilModel indicates a nil Model passed to an engine operation.
	ErrNilModel = errors.New("approx: nil model")

	// ErrNilStore indicates a nil jacobian store passed to Compute.
	ErrNilStore = errors.New("approx: nil jacobian store")

	// ErrBadKey indicates a registration key with an empty of or wrt name.
	ErrBadKey = errors.New("approx: request key has empty of or wrt")

	// ErrBadForm indicates an unrecognized finite-difference form.
	ErrBadForm = errors.New("approx: unknown finite difference form")

	// ErrBadStep indicates a negative perturbation step.
	ErrBadStep = errors.New("approx: step must be positive")

	// ErrBadIndices indicates a partial-index subset entry outside the
	// variable's flat range.
	ErrBadIndices = errors.New("approx: index subset out of range")

	// ErrColoringShape indicates a coloring whose extent disagrees with the
	// concatenated sizes of the absorbed variables.
	ErrColoringShape = errors.New("approx: coloring shape does not match the absorbed variables")

	// ErrParallelColoring indicates a colored run over a parallel model in
	// any configuration other than one serial model replica per rank.
	ErrParallelColoring = errors.New("approx: colored approximation over a parallel model requires one serial model per rank")

	// ErrUnsupportedFormat indicates a target block format the conversion
	// step does not recognize.
	ErrUnsupportedFormat = errors.New("approx: unsupported jacobian format")

	// ErrComplexUnsupported indicates a model whose vectors dropped their
	// imaginary shadow while a complex-step probe was in flight.
	ErrComplexUnsupported = errors.New("approx: model does not support complex step")
)

// Form selects the finite-difference stencil.
type Form uint8

const (
	// FormForward is the first-order forward difference.
	FormForward Form = iota

	// FormBackward is the first-order backward difference.
	FormBackward

	// FormCentral is the second-order central difference.
	FormCentral
)

// String returns the lowercase name of the form.
func (f Form) String() string {
	switch f {
	case FormForward:
		return "forward"
	case FormBackward:
		return "backward"
	case FormCentral:
		return "central"
	default:
		return "unknown"
	}
}

// Options carries the per-request perturbation settings. The zero value
// selects the scheme's defaults. Step, Form, Directional and Indices
// participate in the group key: requests agreeing on all of them (and on
// wrt) share perturbation runs.
type Options struct {
	// Step is the perturbation size. Zero selects the scheme default.
	Step float64

	// Form selects the finite-difference stencil. Ignored by ComplexStep.
	Form Form

	// Directional collapses the request to a single probe stepping every
	// column at once, producing a rows x 1 directional derivative block.
	Directional bool

	// Indices restricts perturbation to a subset of the wrt variable's
	// flat positions. Nil means all of them.
	Indices []int

	// Coloring is populated by ApplyColoring on the synthetic colored
	// entry. It is cleared on registration; callers never set it.
	Coloring *coloring.Coloring

	// absorbed lists the original requests replaced by a colored entry.
	absorbed []Request
}

// Request pairs a derivative block key with its perturbation options.
type Request struct {
	Key     jacobian.Key
	Options Options
}

// Probe addresses the flat positions of one vector stepped together during
// a single perturbation run.
type Probe struct {
	Vec     *vecs.Vector
	Indices []int
}

// Model is the evaluation collaborator the engine perturbs and runs.
//
// The input, output and residual vectors are replicated flat storage: every
// rank declares every variable, and OwningRank reports which rank's values
// are authoritative for an output. The residual vector must mirror the
// output vector's layout.
type Model interface {
	// InputVector returns the flat input storage.
	InputVector() *vecs.Vector

	// OutputVector returns the flat output storage.
	OutputVector() *vecs.Vector

	// ResidualVector returns the flat residual storage.
	ResidualVector() *vecs.Vector

	// Run evaluates the model at the currently stored inputs and outputs,
	// refreshing the output and residual vectors.
	Run(ctx context.Context) error

	// Comm returns the rank's communicator.
	Comm() *comm.Comm

	// OwningRank reports the rank whose values are authoritative for of.
	OwningRank(of string) int

	// NumParFD returns the requested parallel-FD width; 1 disables
	// probe distribution.
	NumParFD() int

	// ParFDID returns this rank's round-robin slot in [0, NumParFD).
	ParFDID() int

	// FullComm returns the communicator spanning every parallel-FD
	// replica, or nil when the model is not under parallel FD.
	FullComm() *comm.Comm
}

// Scheme is the perturbation capability set shared by FiniteDifference and
// ComplexStep.
type Scheme interface {
	// AddApproximation appends one (of, wrt) request to the ordered
	// request list.
	AddApproximation(key jacobian.Key, opts Options) error

	// RunPoint executes one perturbed model evaluation over probes and
	// returns the raw result snapshot.
	RunPoint(ctx context.Context, m Model, probes []Probe, baseline []float64, total bool) (vecs.Values, error)

	// TransformResult extracts the derivative estimate from a RunPoint
	// snapshot.
	TransformResult(v vecs.Values) []float64

	// Multiplier returns the scalar applied to assembled blocks for the
	// most recently prepared group.
	Multiplier() float64
}

// Option adjusts engine construction.
type Option func(*engineOptions)

// engineOptions collects the optional knobs shared by both schemes.
type engineOptions struct {
	logger    *slog.Logger
	ofIndices map[string][]int
}

// defaultEngineOptions returns the baseline configuration: logging off.
func defaultEngineOptions() engineOptions {
	return engineOptions{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		ofIndices: make(map[string][]int),
	}
}

// WithLogger routes engine diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithOfIndices restricts the staged rows of output of to the given subset
// of its flat positions. Applies to uncolored staging only.
func WithOfIndices(of string, indices []int) Option {
	return func(o *engineOptions) {
		o.ofIndices[of] = append([]int(nil), indices...)
	}
}
