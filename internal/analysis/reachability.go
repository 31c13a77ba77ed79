// Package analysis answers topological questions about a funnel snapshot:
// which node combinations can co-occur on a path, and which intermediate
// nodes compete as alternative routes between two endpoints.
package analysis

import (
	"sort"

	"github.com/gyaneshwarpardhi/funnelquery/internal/funnel"
)

// DefaultBudget caps the number of individual reachability checks one
// analyzer instance may run.
const DefaultBudget = 200

type pairKey struct {
	from, to string
}

// Reachability runs bounded reachability checks over one graph snapshot.
// Each uncached check is one O(V+E) BFS and spends one unit of budget;
// once the budget is gone the analyzer stops deterministically and flags
// its results as capped instead of silently truncating.
type Reachability struct {
	g      *funnel.Graph
	budget int
	spent  int
	capped bool
	memo   map[pairKey]bool
	topo   map[string]int
}

// NewReachability creates an analyzer with the given check budget
// (DefaultBudget if budget <= 0). The topological index is computed once
// up front and does not count against the budget.
func NewReachability(g *funnel.Graph, budget int) *Reachability {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Reachability{
		g:      g,
		budget: budget,
		memo:   make(map[pairKey]bool),
		topo:   topoIndex(g),
	}
}

// Spent returns how many budgeted checks have run.
func (r *Reachability) Spent() int { return r.spent }

// Capped reports whether any query was refused for lack of budget.
func (r *Reachability) Capped() bool { return r.capped }

// Reachable reports whether a from→to path exists. ok is false when the
// budget was exhausted before the answer was known; the boolean result is
// meaningless in that case.
func (r *Reachability) Reachable(from, to string) (reachable, ok bool) {
	if from == to {
		return true, true
	}
	key := pairKey{from, to}
	if v, hit := r.memo[key]; hit {
		return v, true
	}
	if r.spent >= r.budget {
		r.capped = true
		return false, false
	}
	r.spent++
	v := bfsReaches(r.g, from, to, "")
	r.memo[key] = v
	return v, true
}

// Combinations filters candidate "must visit all of these" node sets down
// to those realizable on at least one from→to path. Candidates are
// processed in the order given; when the budget runs out the sets found so
// far are returned with Capped set.
func (r *Reachability) Combinations(from, to string, candidates [][]string) Combinations {
	out := Combinations{}
	for _, set := range candidates {
		viable, ok := r.pathVisitingAll(from, to, set)
		if !ok {
			out.Capped = true
			break
		}
		if viable {
			out.Sets = append(out.Sets, append([]string(nil), set...))
		}
	}
	if r.capped {
		out.Capped = true
	}
	return out
}

// Combinations is the (possibly incomplete) result of candidate filtering.
type Combinations struct {
	Sets   [][]string
	Capped bool
}

// pathVisitingAll reports whether one journey can pass through every node
// of set as well as from and to. On a DAG such a journey must visit the
// nodes in topological order, so it suffices to chain pairwise
// reachability checks along that order; set members may lie upstream of
// from (visited before the edge) or between from and to. Incomparable
// nodes (parallel branches) can never share a journey.
func (r *Reachability) pathVisitingAll(from, to string, set []string) (viable, ok bool) {
	seen := map[string]struct{}{from: {}, to: {}}
	chain := []string{from, to}
	for _, n := range set {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		chain = append(chain, n)
	}
	sort.Slice(chain, func(i, j int) bool { return r.topo[chain[i]] < r.topo[chain[j]] })

	for i := 1; i < len(chain); i++ {
		reach, ok := r.Reachable(chain[i-1], chain[i])
		if !ok {
			return false, false
		}
		if !reach {
			return false, true
		}
	}
	return true, true
}

// bfsReaches is one iterative O(V+E) reachability check, optionally
// treating one node as removed from the graph.
func bfsReaches(g *funnel.Graph, from, to, avoid string) bool {
	if from == avoid || to == avoid {
		return false
	}
	if from == to {
		return true
	}
	seen := map[string]struct{}{from: {}}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.Children(cur) {
			if next == avoid {
				continue
			}
			if next == to {
				return true
			}
			if _, dup := seen[next]; dup {
				continue
			}
			seen[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return false
}

// topoIndex assigns each node its position in a deterministic topological
// order (Kahn's algorithm with sorted tie-breaking).
func topoIndex(g *funnel.Graph) map[string]int {
	inDegree := make(map[string]int, g.NodeCount())
	var queue []string
	for _, n := range g.Nodes() {
		inDegree[n.ID] = len(g.Parents(n.ID))
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	sort.Strings(queue)
	idx := make(map[string]int, len(inDegree))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		idx[id] = len(idx)
		var freed []string
		for _, child := range g.Children(id) {
			inDegree[child]--
			if inDegree[child] == 0 {
				freed = append(freed, child)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}
	return idx
}
