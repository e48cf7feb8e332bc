// Package scc computes strongly connected components of a dataflow graph,
// emitted in topological order.
//
// Components partitions the node set into maximal groups in which every
// node reaches every other. The groups come back topologically ordered:
// for every edge u→v with u and v in different groups, u's group appears
// before v's group. Members inside a group are sorted ascending, so the
// full result is reproducible.
//
// The nonlinear-partition analysis relies on that ordering: everything
// emitted before the group holding the first design variable can run once
// before iteration starts, and everything after it can run once afterward.
//
// Complexity:
//
//   - Time:   O(V + E) (Tarjan, each node and edge visited once)
//   - Memory: O(V)     (index maps, component stack, explicit frames)
package scc

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/katalvlaran/sensgraph/dataflow"
)

var (
	// ErrGraphNil is returned when a nil *dataflow.Graph is passed to
	// Components.
	ErrGraphNil = errors.New("scc: graph is nil")

	// ErrNeighborFetch indicates a failure to retrieve successors from the
	// graph mid-walk.
	ErrNeighborFetch = errors.New("scc: failed to fetch successors")
)

// Option configures optional behavior for Components.
type Option func(*options)

// options holds settings for Components, currently only cancellation.
type options struct {
	ctx context.Context // allows cancellation; defaults to Background
}

// defaultOptions returns the default options (Background context).
func defaultOptions() options {
	return options{ctx: context.Background()}
}

// WithContext returns an Option that sets the cancellation context.
// Passing a nil context has no effect.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// solver encapsulates state for one Tarjan run.
type solver struct {
	graph   *dataflow.Graph // the graph being partitioned
	opts    options         // traversal options (cancellation)
	index   map[string]int  // discovery index per node
	low     map[string]int  // lowest index reachable per node
	onStack map[string]bool // membership in the component stack
	stack   []string        // component stack
	next    int             // next discovery index
	comps   [][]string      // components in reverse topological order
}

// frame is one explicit DFS frame; successors are snapshotted at push time.
type frame struct {
	id   string   // node under exploration
	succ []string // sorted successor snapshot
	pos  int      // next successor to examine
}

// Components returns the strongly connected components of g in topological
// order, each component sorted ascending.
// If g is nil, returns ErrGraphNil.
// You may pass WithContext(ctx) to enable cancellation.
func Components(g *dataflow.Graph, options ...Option) ([][]string, error) {
	// 1. Validate graph pointer
	if g == nil {
		return nil, ErrGraphNil
	}
	// 2. Apply optional settings
	opts := defaultOptions()
	for _, opt := range options {
		opt(&opts)
	}
	// 3. Initialize solver state
	nodes := g.Nodes() // sorted node snapshot drives deterministic roots
	s := &solver{
		graph:   g,
		opts:    opts,
		index:   make(map[string]int, len(nodes)),
		low:     make(map[string]int, len(nodes)),
		onStack: make(map[string]bool, len(nodes)),
		comps:   make([][]string, 0, len(nodes)),
	}
	// 4. Drive Tarjan from every undiscovered node
	for _, n := range nodes {
		if _, seen := s.index[n.Name]; !seen {
			if err := s.visit(n.Name); err != nil {
				return nil, err
			}
		}
	}
	// 5. Tarjan emits components in reverse topological order; flip them.
	for i, j := 0, len(s.comps)-1; i < j; i, j = i+1, j-1 {
		s.comps[i], s.comps[j] = s.comps[j], s.comps[i]
	}

	return s.comps, nil
}

// visit runs an iterative Tarjan descent rooted at root.
// Explicit frames replace recursion so deep graphs cannot overflow the
// goroutine stack.
func (s *solver) visit(root string) error {
	// 1. Discover the root and push its frame.
	frames := []frame{{id: root}}
	if err := s.discover(root, &frames[0]); err != nil {
		return err
	}
	for len(frames) > 0 {
		// 2. Cancellation check once per frame step.
		select {
		case <-s.opts.ctx.Done():
			return s.opts.ctx.Err()
		default:
		}
		f := &frames[len(frames)-1]
		// 3. Advance through the frame's remaining successors.
		descended := false
		for f.pos < len(f.succ) {
			w := f.succ[f.pos]
			f.pos++
			if _, seen := s.index[w]; !seen {
				// 3a. Undiscovered: push a child frame and descend.
				frames = append(frames, frame{id: w})
				if err := s.discover(w, &frames[len(frames)-1]); err != nil {
					return err
				}
				descended = true

				break
			}
			if s.onStack[w] && s.index[w] < s.low[f.id] {
				// 3b. Back-edge into the current stack lowers our low-link.
				s.low[f.id] = s.index[w]
			}
		}
		if descended {
			continue
		}
		// 4. Frame exhausted: pop it and maybe emit a component.
		frames = frames[:len(frames)-1]
		if s.low[f.id] == s.index[f.id] {
			var comp []string
			for {
				w := s.stack[len(s.stack)-1]
				s.stack = s.stack[:len(s.stack)-1]
				s.onStack[w] = false
				comp = append(comp, w)
				if w == f.id {
					break
				}
			}
			sort.Strings(comp)
			s.comps = append(s.comps, comp)
		}
		// 5. Propagate the child's low-link into its parent.
		if len(frames) > 0 {
			parent := &frames[len(frames)-1]
			if s.low[f.id] < s.low[parent.id] {
				s.low[parent.id] = s.low[f.id]
			}
		}
	}

	return nil
}

// discover assigns discovery state to id and snapshots its successors into f.
func (s *solver) discover(id string, f *frame) error {
	succ, err := s.graph.Successors(id)
	if err != nil {
		// Wrap in sentinel ErrNeighborFetch so callers can check via errors.Is
		return fmt.Errorf("%w: %v", ErrNeighborFetch, err)
	}
	s.index[id] = s.next
	s.low[id] = s.next
	s.next++
	s.stack = append(s.stack, id)
	s.onStack[id] = true
	f.succ = succ

	return nil
}
