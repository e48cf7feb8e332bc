// Package relevance defines the types, options and sentinel errors of the
// relevance engine.
//
// Errors:
//
//	ErrNilModel     - nil Model passed to New.
//	ErrNotRoot      - model with a non-empty pathname passed to New.
//	ErrBadDirection - direction other than Forward or Reverse.
//	ErrUnknownSeed  - seed name that was never registered.
//	ErrColorOverlap - same-colored parallel-derivative seeds overlap.
package relevance

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/katalvlaran/sensgraph/comm"
	"github.com/katalvlaran/sensgraph/dataflow"
)

// Sentinel errors for relevance construction and queries.
var (
	// ErrNilModel indicates a nil Model was passed to New.
	ErrNilModel = errors.New("relevance: model is nil")

	// ErrNotRoot indicates relevance was constructed below the model root.
	ErrNotRoot = errors.New("relevance: model must be the root group")

	// ErrBadDirection indicates a Direction other than Forward or Reverse.
	ErrBadDirection = errors.New("relevance: direction must be Forward or Reverse")

	// ErrUnknownSeed indicates a seed name that was never registered.
	ErrUnknownSeed = errors.New("relevance: unknown seed")

	// ErrColorOverlap indicates same-colored parallel-derivative seeds with
	// overlapping dependencies. Returned wrapped in a *ColorOverlapError.
	ErrColorOverlap = errors.New("relevance: parallel derivative color overlap")
)

// Direction selects which way a reachability walk travels.
type Direction uint8

const (
	// Forward walks successors: everything influenced by the seed.
	Forward Direction = iota

	// Reverse walks predecessors: everything influencing the seed.
	Reverse
)

// String returns "fwd" or "rev".
func (d Direction) String() string {
	switch d {
	case Forward:
		return "fwd"
	case Reverse:
		return "rev"
	default:
		return "unknown"
	}
}

// Mode is the derivative mode the surrounding model was set up for.
// It decides which side's parallel-derivative colors are checked.
type Mode uint8

const (
	// ModeAuto checks colors on both sides.
	ModeAuto Mode = iota

	// ModeForward checks forward (design variable) colors only.
	ModeForward

	// ModeReverse checks reverse (response) colors only.
	ModeReverse
)

// String returns "auto", "fwd" or "rev".
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeForward:
		return "fwd"
	case ModeReverse:
		return "rev"
	default:
		return "unknown"
	}
}

// IOFilter restricts which variable classes a relevance listing reports.
type IOFilter uint8

const (
	// AllVars reports inputs and outputs.
	AllVars IOFilter = iota

	// InputsOnly reports input variables.
	InputsOnly

	// OutputsOnly reports output variables.
	OutputsOnly
)

// NodeClass selects variables or systems in ListRelevance.
type NodeClass uint8

const (
	// ClassVariable lists variable names.
	ClassVariable NodeClass = iota

	// ClassSystem lists system names.
	ClassSystem
)

// SeedMeta describes one registered seed: a design variable (forward) or a
// response (reverse).
type SeedMeta struct {
	// Source is the seed's source variable name in the dataflow graph.
	Source string

	// ParallelDerivColor groups seeds whose derivatives are solved
	// simultaneously on different ranks. Empty means uncolored.
	ParallelDerivColor string
}

// SeedPair is the relevance of one (forward seed, reverse seed) pair.
type SeedPair struct {
	// Forward and Reverse are the seed source names.
	Forward, Reverse string

	// Vars are the variables relevant to both seeds, sorted ascending.
	Vars []string
}

// Partition is the pre/iterated/post split of components around the
// iterated (optimization) loop. Names are component paths, sorted.
type Partition struct {
	// Pre are components that can run once before iteration starts.
	Pre []string

	// Iterated are components inside the iteration loop.
	Iterated []string

	// Post are components that can run once after iteration completes.
	Post []string

	// IteratesAll reports that no split was computed and every component
	// iterates.
	IteratesAll bool
}

// Names of the precomputed nonlinear system sets usable with PushNonlinear.
const (
	SetPre  = "pre"
	SetIter = "iter"
	SetPost = "post"
)

// Model is what the relevance engine needs to know about the surrounding
// model. Implementations are read-only snapshots of a configured model.
type Model interface {
	// Pathname locates the model in a larger hierarchy; only the root
	// model (empty pathname) may drive relevance.
	Pathname() string

	// Graph returns the variable-level dataflow graph.
	Graph() *dataflow.Graph

	// ComponentGraph returns the component-level coarsening of Graph:
	// system nodes connected wherever any of their variables connect.
	ComponentGraph() *dataflow.Graph

	// Comm returns this rank's handle for the overlap error exchange.
	Comm() *comm.Comm

	// Mode returns the derivative mode the model was set up for.
	Mode() Mode

	// GroupByPreOptPost reports whether the nonlinear partition is wanted.
	GroupByPreOptPost() bool

	// RelevanceModifiers returns the groups whose nonlinear solvers compute
	// gradients (treated as atomic during partitioning) and the systems
	// that must always be part of the iterated set.
	RelevanceModifiers() (gradGroups, alwaysOpt []string)

	// AutoIVCName returns the name of the automatic independent-variable
	// component that owns unconnected design variable sources.
	AutoIVCName() string

	// AutoIVCOutputs returns the automatic component's output names.
	AutoIVCOutputs() []string

	// Connections maps each connected output to its input targets.
	Connections() map[string][]string
}

// Option configures optional behavior of New.
type Option func(*options)

// options holds construction settings: cancellation and logging.
type options struct {
	ctx    context.Context // used for the overlap error exchange
	logger *slog.Logger    // partition and diagnostics warnings
}

// defaultOptions returns the default options (Background context, discarded
// logs).
func defaultOptions() options {
	return options{
		ctx:    context.Background(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithContext returns an Option that sets the cancellation context used by
// the construction-time collective exchange. Passing nil has no effect.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithLogger returns an Option that installs the logger used for partition
// and diagnostic warnings. Passing nil has no effect.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
