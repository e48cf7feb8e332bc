package dataflow

import (
	"fmt"
	"sort"
	"sync"
)

// Graph is a directed dependency graph over variable and system nodes.
//
// All reads return sorted, freshly allocated slices so callers can iterate
// deterministically and never alias internal state. A single mu guards the
// node catalog and both adjacency maps; graphs are build-once, read-many.
type Graph struct {
	mu sync.RWMutex

	// Storage
	nodes map[string]Node                // node name → attributes
	succ  map[string]map[string]struct{} // from → set of to
	pred  map[string]map[string]struct{} // to → set of from
	edges int                            // distinct directed edges
}

// New creates an empty Graph holding only the root system node.
// Complexity: O(1)
func New() *Graph {
	g := &Graph{
		nodes: make(map[string]Node),
		succ:  make(map[string]map[string]struct{}),
		pred:  make(map[string]map[string]struct{}),
	}
	// The root system is always present so AddEdge may target it directly.
	g.nodes[Root] = Node{Name: Root, Kind: KindSystem, Local: true}

	return g
}

// AddVariable registers a variable node.
// Re-adding a node with identical attributes is a no-op.
// Returns ErrEmptyName for the empty name, ErrBadKind for a non-variable
// kind, ErrNodeConflict when the name is taken with different attributes.
func (g *Graph) AddVariable(name string, kind Kind, local bool) error {
	// 1. Validate inputs before touching state.
	if name == Root {
		return ErrEmptyName
	}
	if !kind.IsVariable() {
		return fmt.Errorf("%w: got %s", ErrBadKind, kind)
	}

	// 2. Insert under the write lock.
	return g.addNode(Node{Name: name, Kind: kind, Local: local})
}

// AddSystem registers a system node. System nodes are always local.
// Re-adding an existing system is a no-op (including Root).
func (g *Graph) AddSystem(name string) error {
	return g.addNode(Node{Name: name, Kind: KindSystem, Local: true})
}

// addNode inserts n if absent; identical re-insertion is a no-op.
func (g *Graph) addNode(n Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.nodes[n.Name]; ok {
		if prev == n {
			return nil
		}

		return fmt.Errorf("%w: %q", ErrNodeConflict, n.Name)
	}
	g.nodes[n.Name] = n

	return nil
}

// AddEdge records the directed dependency from→to.
// Both endpoints must already exist (ErrNodeNotFound names the missing one).
// Self-edges and duplicate edges are silently ignored: neither carries
// dependency information.
func (g *Graph) AddEdge(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// 1. Both endpoints must be registered.
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, from)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, to)
	}
	// 2. A node never depends on itself.
	if from == to {
		return nil
	}
	// 3. Insert into both adjacency directions; collapse duplicates.
	if g.succ[from] == nil {
		g.succ[from] = make(map[string]struct{})
	}
	if _, dup := g.succ[from][to]; dup {
		return nil
	}
	g.succ[from][to] = struct{}{}
	if g.pred[to] == nil {
		g.pred[to] = make(map[string]struct{})
	}
	g.pred[to][from] = struct{}{}
	g.edges++

	return nil
}

// Node returns the attributes registered under name.
func (g *Graph) Node(name string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[name]

	return n, ok
}

// HasNode reports whether name is registered.
func (g *Graph) HasNode(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.nodes[name]

	return ok
}

// Len returns the number of nodes, including the root system node.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes)
}

// NumEdges returns the number of distinct directed edges.
func (g *Graph) NumEdges() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.edges
}

// Nodes returns every node sorted by name.
// Complexity: O(V log V)
func (g *Graph) Nodes() []Node {
	return g.collect(func(Node) bool { return true })
}

// Variables returns every variable node (KindInput or KindOutput) sorted by
// name.
func (g *Graph) Variables() []Node {
	return g.collect(func(n Node) bool { return n.Kind.IsVariable() })
}

// Systems returns every system node sorted by name, root first.
func (g *Graph) Systems() []Node {
	return g.collect(func(n Node) bool { return n.Kind == KindSystem })
}

// collect copies nodes matching keep, sorted by name.
func (g *Graph) collect(keep func(Node) bool) []Node {
	g.mu.RLock()
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if keep(n) {
			out = append(out, n)
		}
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// Successors returns the names reachable from name across one directed edge,
// sorted ascending. Returns ErrNodeNotFound for unregistered names.
// Complexity: O(d log d) for out-degree d.
func (g *Graph) Successors(name string) ([]string, error) {
	return g.adjacent(name, g.succ)
}

// Predecessors returns the names with a directed edge into name, sorted
// ascending. Returns ErrNodeNotFound for unregistered names.
// Complexity: O(d log d) for in-degree d.
func (g *Graph) Predecessors(name string) ([]string, error) {
	return g.adjacent(name, g.pred)
}

// adjacent snapshots one adjacency direction for name, sorted.
func (g *Graph) adjacent(name string, adj map[string]map[string]struct{}) ([]string, error) {
	g.mu.RLock()
	if _, ok := g.nodes[name]; !ok {
		g.mu.RUnlock()

		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, name)
	}
	set := adj[name]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	g.mu.RUnlock()
	sort.Strings(out)

	return out, nil
}

// Clone returns a deep copy of g. The copy shares no state with the
// original, so either side may keep mutating safely.
// Complexity: O(V + E)
func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c := &Graph{
		nodes: make(map[string]Node, len(g.nodes)),
		succ:  make(map[string]map[string]struct{}, len(g.succ)),
		pred:  make(map[string]map[string]struct{}, len(g.pred)),
		edges: g.edges,
	}
	for name, n := range g.nodes {
		c.nodes[name] = n
	}
	for from, tos := range g.succ {
		dst := make(map[string]struct{}, len(tos))
		for to := range tos {
			dst[to] = struct{}{}
		}
		c.succ[from] = dst
	}
	for to, froms := range g.pred {
		dst := make(map[string]struct{}, len(froms))
		for from := range froms {
			dst[from] = struct{}{}
		}
		c.pred[to] = dst
	}

	return c
}
