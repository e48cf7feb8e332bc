package relevance

import "fmt"

// DependentNodes returns every node connected to start in the given
// direction, including start itself. Unknown start names yield an empty
// set rather than an error, mirroring query semantics: an absent node
// depends on nothing.
//
// With local true, the walk is restricted to this rank: a non-local start
// yields an empty set, and the walk returns the nodes visited so far the
// moment it reaches the first non-local variable. That truncated set is
// exactly what parallel-derivative coloring needs: the portion of a seed's
// influence that lives on this rank.
// Complexity: O(V + E) over the reached subgraph.
func (r *Relevance) DependentNodes(start string, direction Direction, local bool) (map[string]bool, error) {
	if direction != Forward && direction != Reverse {
		return nil, fmt.Errorf("%w: got %d", ErrBadDirection, direction)
	}

	return r.dependentNodes(start, direction, local)
}

// dependentNodes assumes direction is already validated.
func (r *Relevance) dependentNodes(start string, direction Direction, local bool) (map[string]bool, error) {
	startNode, ok := r.graph.Node(start)
	if !ok {
		return map[string]bool{}, nil
	}
	if local && !startNode.Local {
		return map[string]bool{}, nil
	}

	// next picks the walk direction: successors flow influence forward,
	// predecessors trace it back.
	next := r.graph.Successors
	if direction == Reverse {
		next = r.graph.Predecessors
	}

	stack := []string{start}
	visited := map[string]bool{start: true}
	for len(stack) > 0 {
		src := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		targets, err := next(src)
		if err != nil {
			return nil, fmt.Errorf("relevance: walk at %q: %w", src, err)
		}
		for _, tgt := range targets {
			if visited[tgt] {
				continue
			}
			if local {
				node, _ := r.graph.Node(tgt)
				// Local traversal ends at the first off-rank variable.
				if node.Kind.IsVariable() && !node.Local {
					return visited, nil
				}
			}
			visited[tgt] = true
			stack = append(stack, tgt)
		}
	}

	return visited, nil
}
