package analysis

import (
	"sort"

	"github.com/gyaneshwarpardhi/funnelquery/internal/funnel"
)

// SiblingRoutes finds the intermediates that make a from→to condition
// ambiguous: every node that lies on some from→to path while another
// from→to path avoids it. An empty result means the route is unique and
// no disambiguation is needed.
func SiblingRoutes(g *funnel.Graph, from, to string) []string {
	var out []string
	for _, n := range g.Nodes() {
		id := n.ID
		if id == from || id == to {
			continue
		}
		onPath := bfsReaches(g, from, id, "") && bfsReaches(g, id, to, "")
		if !onPath {
			continue
		}
		if bfsReaches(g, from, to, id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// CoversAvoidance reports whether every from→to journey that avoids all
// of `avoid` necessarily passes at least one node of `via`. A journey is
// any source-rooted path through from and then to, so both the upstream
// segment and the from→to segment are checked. This is the soundness
// condition for substituting exclude(avoid) with visitedAny(via) and for
// the dual substitution.
func CoversAvoidance(g *funnel.Graph, from, to string, avoid, via []string) bool {
	blocked := make(map[string]struct{}, len(avoid)+len(via))
	for _, id := range avoid {
		blocked[id] = struct{}{}
	}
	for _, id := range via {
		blocked[id] = struct{}{}
	}
	if !reachesAvoiding(g, from, to, blocked) {
		return true
	}
	for _, n := range g.Nodes() {
		if len(g.Parents(n.ID)) > 0 {
			continue
		}
		if reachesAvoiding(g, n.ID, from, blocked) {
			// A journey exists that dodges both sets entirely.
			return false
		}
	}
	return true
}

// reachesAvoiding is bfsReaches with a set of removed nodes.
func reachesAvoiding(g *funnel.Graph, from, to string, blocked map[string]struct{}) bool {
	if _, bad := blocked[from]; bad {
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
			if _, bad := blocked[next]; bad {
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

// Alternatives finds the sibling branches of node x with respect to
// reaching target: co-children of x's parents that still reach target on a
// route of their own. Only branches incomparable with x qualify — a node
// upstream or downstream of x is on the same route, not an alternative to
// it.
func Alternatives(g *funnel.Graph, x, target string) []string {
	seen := make(map[string]struct{})
	for _, p := range g.Parents(x) {
		for _, y := range g.Children(p) {
			if y == x || y == target {
				continue
			}
			if _, dup := seen[y]; dup {
				continue
			}
			if bfsReaches(g, x, y, "") || bfsReaches(g, y, x, "") {
				continue
			}
			if bfsReaches(g, y, target, "") {
				seen[y] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
