package compile

import (
	"fmt"

	"github.com/gyaneshwarpardhi/funnelquery/internal/analysis"
	"github.com/gyaneshwarpardhi/funnelquery/internal/dsl"
	"github.com/gyaneshwarpardhi/funnelquery/internal/funnel"
)

// UnknownNodeError marks a condition referencing a node absent from the
// graph snapshot.
type UnknownNodeError struct {
	Node string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("condition references unknown node %q", e.Node)
}

// UnknownEdgeError marks a compilation request against an edge absent
// from the graph snapshot.
type UnknownEdgeError struct {
	Edge string
}

func (e *UnknownEdgeError) Error() string {
	return fmt.Sprintf("edge %q not found in funnel", e.Edge)
}

// Request carries everything one edge compilation depends on. Compilation
// is a pure function of these inputs: identical requests produce
// identical results, so callers can diff before/after a topology edit.
type Request struct {
	Graph     *funnel.Graph
	Edge      *funnel.Edge
	Condition string // DSL text; empty compiles the plain transition
	Table     *Table
	Weights   Weights
	Budget    int // reachability checks, <=0 means analysis.DefaultBudget
}

// Result is one compiled query plus how it was derived.
type Result struct {
	Query         string            `json:"query"`
	Terms         []funnel.SubQuery `json:"terms,omitempty"`
	Condition     *dsl.Condition    `json:"-"`
	NativeExclude bool              `json:"native_exclude"`
	Rewrite       string            `json:"rewrite,omitempty"`
	Fallbacks     []string          `json:"fallbacks,omitempty"`
	BudgetCapped  bool              `json:"budget_capped,omitempty"`
	ChecksSpent   int               `json:"checks_spent"`
}

// Degraded reports whether the result rests on fallback capabilities or a
// capped reachability analysis.
func (r *Result) Degraded() bool {
	return r.BudgetCapped || len(r.Fallbacks) > 0
}

// CompileEdge compiles one condition for one edge: parse, resolve the
// edge-level capability verdict, rewrite between dual literal forms, and
// expand exclusions the providers cannot execute natively.
func CompileEdge(req Request) (*Result, error) {
	cond, err := dsl.Parse(req.Condition)
	if err != nil {
		return nil, err
	}
	if cond.From == "" {
		cond.From = req.Edge.From
	}
	if cond.To == "" {
		cond.To = req.Edge.To
	}
	for _, id := range cond.Nodes() {
		if !req.Graph.HasNode(id) {
			return nil, &UnknownNodeError{Node: id}
		}
	}

	verdict := EdgeCapability(req.Edge, req.Table)
	res := &Result{
		NativeExclude: verdict.NativeExclude,
		Fallbacks:     verdict.Fallbacks,
	}

	r := analysis.NewReachability(req.Graph, req.Budget)
	pruneVacuousExcludes(r, cond, res)

	res.Rewrite = dualRewrite(req.Graph, cond, verdict.NativeExclude, req.Weights)
	if len(cond.Exclude) > 0 && !verdict.NativeExclude {
		if expandExclusion(r, cond) {
			res.BudgetCapped = true
		}
		res.Rewrite = RewriteInclusionExclusion
	}
	if r.Capped() {
		res.BudgetCapped = true
	}

	res.Condition = cond
	res.Query = cond.String()
	res.Terms = subQueries(cond)
	res.ChecksSpent = r.Spent()
	return res, nil
}

// pruneVacuousExcludes drops excluded nodes that can never co-occur with
// the from→to transition anyway; keeping them would only inflate the
// compiled form. Pruning is skipped once the budget is capped.
func pruneVacuousExcludes(r *analysis.Reachability, cond *dsl.Condition, res *Result) {
	if len(cond.Exclude) == 0 {
		return
	}
	var kept []string
	for _, x := range cond.Exclude {
		combos := r.Combinations(cond.From, cond.To, [][]string{{x}})
		if combos.Capped {
			// Unknown: keep the literal rather than guessing.
			kept = append(kept, x)
			res.BudgetCapped = true
			continue
		}
		if len(combos.Sets) > 0 {
			kept = append(kept, x)
		}
	}
	cond.Exclude = kept
}

// subQueries lists the additive/subtractive sub-fetches a term-expanded
// query decomposes into: the base transition plus one signed sub-query
// per minus/plus term, each term's nodes folded into visited().
func subQueries(cond *dsl.Condition) []funnel.SubQuery {
	if len(cond.Minus) == 0 && len(cond.Plus) == 0 {
		return nil
	}
	base := cond.Clone()
	base.Minus = nil
	base.Plus = nil

	out := []funnel.SubQuery{{Sign: +1, Query: base.String()}}
	for _, set := range cond.Minus {
		sub := base.Clone()
		sub.Visited = append(sub.Visited, set...)
		out = append(out, funnel.SubQuery{Sign: -1, Query: sub.String()})
	}
	for _, set := range cond.Plus {
		sub := base.Clone()
		sub.Visited = append(sub.Visited, set...)
		out = append(out, funnel.SubQuery{Sign: +1, Query: sub.String()})
	}
	return out
}
