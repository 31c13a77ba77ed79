package compile

import (
	"sort"

	"github.com/gyaneshwarpardhi/funnelquery/internal/analysis"
	"github.com/gyaneshwarpardhi/funnelquery/internal/dsl"
	"github.com/gyaneshwarpardhi/funnelquery/internal/funnel"
)

// Weights prices one literal of each kind; used only to choose between
// dual-equivalent rewrites.
type Weights struct {
	VisitedCost float64 `json:"visited_cost"`
	ExcludeCost float64 `json:"exclude_cost"`
}

// Rewrite kinds reported in compilation results.
const (
	RewriteNone               = ""
	RewriteExcludeToAny       = "exclude_to_visited_any"
	RewriteVisitedToExclude   = "visited_to_exclude"
	RewriteInclusionExclusion = "inclusion_exclusion"
)

// dualRewrite substitutes the cheaper of two semantically-equivalent
// literal forms in place:
//
//	exclude(x)  ⇄  visitedAny(siblings of x)
//	visited(x)  ⇄  exclude(siblings of x)
//
// Ties go to the exclude form: it names exactly the nodes the author
// wrote, so on equal cost the intent-preserving literal wins. When the
// edge cannot execute exclude() natively the visitedAny form is taken
// whenever it exists, regardless of cost, because the alternative is a
// multi-term expansion.
func dualRewrite(g *funnel.Graph, cond *dsl.Condition, nativeExclude bool, w Weights) string {
	if len(cond.Exclude) > 0 {
		alt := siblingComplement(g, cond, cond.Exclude, true)
		if len(alt) > 0 {
			excludeCost := w.ExcludeCost * float64(len(cond.Exclude))
			anyCost := w.VisitedCost * float64(len(alt))
			if !nativeExclude || anyCost < excludeCost {
				cond.AnyGroups = append(cond.AnyGroups, alt)
				cond.Exclude = nil
				return RewriteExcludeToAny
			}
		}
		return RewriteNone
	}

	if nativeExclude && len(cond.Visited) == 1 {
		alt := siblingComplement(g, cond, cond.Visited, false)
		if len(alt) > 0 {
			visitedCost := w.VisitedCost * float64(len(cond.Visited))
			excludeCost := w.ExcludeCost * float64(len(alt))
			if excludeCost <= visitedCost {
				cond.Exclude = alt
				cond.Visited = nil
				return RewriteVisitedToExclude
			}
		}
	}
	return RewriteNone
}

// siblingComplement names the branches that stand in for avoiding (or
// requiring) every node of set: the intersection over set members of
// their alternative branches, minus the set itself. Candidates are tried
// against the condition's from endpoint first (constraints upstream of
// the edge), then its to endpoint (constraints between the endpoints),
// and accepted only when the substitution is sound: for an exclude
// rewrite every journey avoiding set must pass an alternative, for a
// visited rewrite every journey avoiding the alternatives must pass set.
// Empty when no sound complement exists, in which case the
// inclusion–exclusion expansion applies instead.
func siblingComplement(g *funnel.Graph, cond *dsl.Condition, set []string, excluding bool) []string {
	for _, target := range []string{cond.From, cond.To} {
		alt := complementAt(g, set, target)
		if len(alt) == 0 {
			continue
		}
		if excluding {
			if analysis.CoversAvoidance(g, cond.From, cond.To, set, alt) {
				return alt
			}
		} else {
			if analysis.CoversAvoidance(g, cond.From, cond.To, alt, set) {
				return alt
			}
		}
	}
	return nil
}

// complementAt is the raw candidate computation for one target endpoint.
func complementAt(g *funnel.Graph, set []string, target string) []string {
	if target == "" {
		return nil
	}
	var out map[string]struct{}
	for _, x := range set {
		alts := analysis.Alternatives(g, x, target)
		members := make(map[string]struct{}, len(alts))
		for _, y := range alts {
			if !contains(set, y) {
				members[y] = struct{}{}
			}
		}
		if len(members) == 0 {
			return nil
		}
		if out == nil {
			out = members
			continue
		}
		for y := range out {
			if _, ok := members[y]; !ok {
				delete(out, y)
			}
		}
		if len(out) == 0 {
			return nil
		}
	}
	ids := make([]string, 0, len(out))
	for y := range out {
		ids = append(ids, y)
	}
	sort.Strings(ids)
	return ids
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
