package compile

import (
	"github.com/gyaneshwarpardhi/funnelquery/internal/analysis"
	"github.com/gyaneshwarpardhi/funnelquery/internal/dsl"
)

// maxExpandSet bounds subset enumeration; larger exclusion sets fall back
// to singleton terms and a capped flag rather than enumerating 2^n sets.
const maxExpandSet = 10

// expandExclusion rewrites an exclusion set into inclusion–exclusion
// form: counting journeys that avoid every node of E is the base query
// minus journeys through each member, corrected by alternating-sign terms
// for every combination of members that can co-occur on one journey.
// Combinations the graph cannot realize are pruned so the output carries
// no redundant terms. Returns true when the reachability budget capped
// the analysis and the expansion may be incomplete.
func expandExclusion(r *analysis.Reachability, cond *dsl.Condition) bool {
	exclude := cond.Exclude
	cond.Exclude = nil

	capped := false
	if len(exclude) > maxExpandSet {
		exclude = exclude[:maxExpandSet]
		capped = true
	}

	candidates := subsets(exclude)
	combos := r.Combinations(cond.From, cond.To, candidates)
	for _, set := range combos.Sets {
		if len(set)%2 == 1 {
			cond.Minus = append(cond.Minus, set)
		} else {
			cond.Plus = append(cond.Plus, set)
		}
	}
	return capped || combos.Capped
}

// subsets enumerates the non-empty subsets of a sorted id list in
// deterministic order: by size, then lexicographically.
func subsets(ids []string) [][]string {
	var out [][]string
	n := len(ids)
	var build func(start int, cur []string, size int)
	build = func(start int, cur []string, size int) {
		if len(cur) == size {
			out = append(out, append([]string(nil), cur...))
			return
		}
		for i := start; i < n; i++ {
			build(i+1, append(cur, ids[i]), size)
		}
	}
	for size := 1; size <= n; size++ {
		build(0, nil, size)
	}
	return out
}
