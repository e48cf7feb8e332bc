package relevance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/katalvlaran/sensgraph/dataflow"
	"github.com/katalvlaran/sensgraph/scc"
)

// setupPartition splits the model's components into pre, iterated and post
// subsets. Components that no design variable influences and that influence
// no response need not sit inside the optimization loop: everything upstream
// of every seed runs once before the loop, everything strictly downstream
// runs once after.
//
// The split works on a clone of the component graph. Bidirectional edges are
// added between every response component and every design variable node,
// which welds the whole optimization into one strongly connected component.
// The SCCs of the doctored graph, taken in topological order, then read off
// as pre (before the welded SCC), iterated (the welded SCC itself) and post
// (after it).
func (r *Relevance) setupPartition(model Model, fwdMeta, revMeta []SeedMeta) error {
	r.part = Partition{IteratesAll: true}
	if len(fwdMeta) == 0 || len(revMeta) == 0 || !model.GroupByPreOptPost() {
		return nil
	}

	gradGroups, alwaysOpt := model.RelevanceModifiers()
	for _, grp := range gradGroups {
		if grp == dataflow.Root {
			r.logger.Warn("the top level group has a nonlinear solver that computes gradients; " +
				"the entire model iterates in the optimization loop")

			return nil
		}
	}

	dvs := metaSources(fwdMeta)
	resps := dedupSorted(metaSources(revMeta)) // response aliases duplicate sources

	g := model.ComponentGraph().Clone()

	// 1. Design variables owned by the automatic IVC enter the graph as
	//    variable nodes wired to the components they feed. Using the shared
	//    component node instead would weld unrelated design variables
	//    together through it.
	autoName := model.AutoIVCName()
	autoPrefix := autoName + "."
	conns := model.Connections()
	autoDVs := make(map[string]bool)
	dv0 := ""
	for _, dv := range dvs {
		if !strings.HasPrefix(dv, autoPrefix) {
			continue
		}
		if dv0 == "" {
			dv0 = dv
		}
		if autoDVs[dv] {
			continue
		}
		autoDVs[dv] = true
		if err := g.AddVariable(dv, dataflow.KindOutput, true); err != nil {
			return fmt.Errorf("relevance: partition: %w", err)
		}
		for _, inp := range conns[dv] {
			if err := linkOne(g, dv, dataflow.Owner(inp)); err != nil {
				return fmt.Errorf("relevance: partition: %w", err)
			}
		}
	}
	if dv0 == "" {
		dv0 = dataflow.Owner(dvs[0])
	}

	// 2. Weld responses and design variables into one SCC.
	for _, res := range resps {
		resnode := dataflow.Owner(res)
		for _, dv := range dvs {
			dvnode := dataflow.Owner(dv)
			if dvnode == autoName {
				dvnode = dv // the variable node added above
			}
			if err := linkBoth(g, resnode, dvnode); err != nil {
				return fmt.Errorf("relevance: partition: %w", err)
			}
		}
	}

	// 3. Always-opt systems iterate regardless of dataflow.
	for _, optSys := range alwaysOpt {
		for _, res := range resps {
			if err := linkBoth(g, optSys, dataflow.Owner(res)); err != nil {
				return fmt.Errorf("relevance: partition: %w", err)
			}
		}
	}

	// 4. Groups with gradient-computing nonlinear solvers are atomic: every
	//    contained node is welded to the group node, so the whole group
	//    lands in whichever subset any member lands in. Only outermost such
	//    groups matter.
	groupsAdded := make(map[string]bool)
	if len(gradGroups) > 0 {
		remaining := outermostGroups(gradGroups)
		r.logger.Warn("groups with a nonlinear solver that computes gradients are treated "+
			"as atomic when splitting the optimization iteration", "groups", remaining)
		nodes := g.Nodes()
		for _, grp := range remaining {
			prefix := grp + "."
			for _, node := range nodes {
				if !strings.HasPrefix(node.Name, prefix) {
					continue
				}
				groupsAdded[grp] = true
				if err := linkBoth(g, grp, node.Name); err != nil {
					return fmt.Errorf("relevance: partition: %w", err)
				}
			}
		}
	}

	// 5. Classify the SCCs in topological order. Everything before the SCC
	//    holding dv0 is pre, the SCC itself is iterated, everything after
	//    is post. Variable nodes map to their owning component.
	comps, err := scc.Components(g)
	if err != nil {
		return fmt.Errorf("relevance: partition: %w", err)
	}
	pre := make(map[string]bool)
	post := make(map[string]bool)
	iterated := make(map[string]bool)
	addto := pre
	for _, comp := range comps {
		into := addto
		if hasMember(comp, dv0) {
			into = iterated
			addto = post
		}
		for _, member := range comp {
			name := member
			if node, ok := g.Node(member); ok && node.Kind.IsVariable() {
				name = dataflow.Owner(member)
			}
			if name == dataflow.Root {
				continue
			}
			into[name] = true
		}
	}

	// 6. The automatic IVC follows its consumers: if any non-design output
	//    of it feeds a pre component, the component itself is pre.
	if !pre[autoName] {
		inPre := false
		for _, vname := range model.AutoIVCOutputs() {
			if autoDVs[vname] {
				continue
			}
			for _, tgt := range conns[vname] {
				if pre[dataflow.Owner(tgt)] {
					inPre = true

					break
				}
			}
			if inPre {
				break
			}
		}
		if inPre {
			pre[autoName] = true
		}
	}
	// A pre set holding nothing but the automatic IVC is no pre set at all.
	if len(pre) == 1 && pre[autoName] {
		delete(pre, autoName)
	}

	r.part = Partition{
		Pre:      setMinusSorted(pre, groupsAdded),
		Iterated: setMinusSorted(iterated, groupsAdded),
		Post:     setMinusSorted(post, groupsAdded),
	}

	return nil
}

// setupNonlinearSets precomputes the system relevance arrays swapped in by
// PushNonlinear. Nothing is built when the partition has no pre and no post
// subset; PushNonlinear is then a no-op.
func (r *Relevance) setupNonlinearSets() {
	if len(r.part.Pre) == 0 && len(r.part.Post) == 0 {
		return
	}

	preArr := r.namesToSysArray(ancestorClosure(r.part.Pre))
	postArr := r.namesToSysArray(ancestorClosure(r.part.Post))

	iterArr := make(array, len(r.allSystems))
	if r.part.IteratesAll {
		for i := range iterArr {
			iterArr[i] = true
		}
	} else {
		for i := range iterArr {
			iterArr[i] = !(preArr[i] || postArr[i])
		}
	}

	r.nonlinearSets = map[string]array{
		SetPre:  r.cache.canonical(preArr),
		SetIter: r.cache.canonical(iterArr),
		SetPost: r.cache.canonical(postArr),
	}
}

// ancestorClosure expands component names to the set of all containing
// systems, root included when the input is nonempty.
func ancestorClosure(comps []string) map[string]bool {
	out := make(map[string]bool)
	for _, comp := range comps {
		for _, a := range dataflow.Ancestors(comp) {
			out[a] = true
		}
	}
	if len(out) > 0 {
		out[dataflow.Root] = true
	}

	return out
}

// outermostGroups drops groups nested inside other listed groups and
// returns the survivors sorted ascending.
func outermostGroups(groups []string) []string {
	remaining := make(map[string]bool, len(groups))
	for _, g := range groups {
		remaining[g] = true
	}
	byDepth := append([]string(nil), groups...)
	sort.Slice(byDepth, func(i, j int) bool {
		di, dj := strings.Count(byDepth[i], "."), strings.Count(byDepth[j], ".")
		if di != dj {
			return di < dj
		}

		return byDepth[i] < byDepth[j]
	})
	for _, name := range byDepth {
		if !remaining[name] {
			continue
		}
		prefix := name + "."
		for other := range remaining {
			if strings.HasPrefix(other, prefix) {
				delete(remaining, other)
			}
		}
	}
	out := make([]string, 0, len(remaining))
	for name := range remaining {
		out = append(out, name)
	}
	sort.Strings(out)

	return out
}

// linkOne ensures dst exists as a system node and adds the src→dst edge.
func linkOne(g *dataflow.Graph, src, dst string) error {
	if err := ensureSystem(g, dst); err != nil {
		return err
	}

	return g.AddEdge(src, dst)
}

// linkBoth ensures both endpoints exist as system nodes and connects them
// in both directions.
func linkBoth(g *dataflow.Graph, a, b string) error {
	if err := ensureSystem(g, a); err != nil {
		return err
	}
	if err := ensureSystem(g, b); err != nil {
		return err
	}
	if err := g.AddEdge(a, b); err != nil {
		return err
	}

	return g.AddEdge(b, a)
}

// ensureSystem registers name as a system node unless the graph already has
// a node by that name.
func ensureSystem(g *dataflow.Graph, name string) error {
	if g.HasNode(name) {
		return nil
	}

	return g.AddSystem(name)
}

// hasMember reports whether the sorted member list contains name.
func hasMember(comp []string, name string) bool {
	i := sort.SearchStrings(comp, name)

	return i < len(comp) && comp[i] == name
}

// setMinusSorted returns the members of set not in minus, sorted ascending.
func setMinusSorted(set, minus map[string]bool) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		if !minus[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)

	return out
}
