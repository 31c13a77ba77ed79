package compile

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/funnelquery/internal/dsl"
	"github.com/gyaneshwarpardhi/funnelquery/internal/funnel"
	"github.com/gyaneshwarpardhi/funnelquery/internal/metrics"
)

// SlotResult records one successfully compiled parameter slot.
type SlotResult struct {
	EdgeID       string            `json:"edge_id"`
	Slot         string            `json:"slot"`
	Query        string            `json:"query"`
	Terms        []funnel.SubQuery `json:"terms,omitempty"`
	Rewrite      string            `json:"rewrite,omitempty"`
	Degraded     bool              `json:"degraded,omitempty"`
	BudgetCapped bool              `json:"budget_capped,omitempty"`
}

// SlotError records one failed slot; the pass continues past it.
type SlotError struct {
	EdgeID string `json:"edge_id"`
	Slot   string `json:"slot"`
	Error  string `json:"error"`
}

// BatchReport is the outcome of one whole-graph pass. Graph is a clone of
// the input with every compiled query written back onto its owning slot;
// the input snapshot is never touched.
type BatchReport struct {
	PassID   string        `json:"pass_id"`
	FunnelID string        `json:"funnel_id,omitempty"`
	Graph    *funnel.Graph `json:"-"`
	Compiled []SlotResult  `json:"compiled"`
	Errors   []SlotError   `json:"errors,omitempty"`
}

// CompileAll walks every edge and every parameter slot, compiles each
// slot's condition, and writes the result back onto a cloned graph.
// Slots fail independently: a parse error or unknown node on one slot is
// reported and the pass moves on. Running the pass twice on an unchanged
// graph produces byte-identical query strings (the pass id is the only
// varying field).
func CompileAll(g *funnel.Graph, table *Table, w Weights, budget int) *BatchReport {
	report := &BatchReport{
		PassID:   uuid.NewString(),
		FunnelID: g.ID(),
		Graph:    g.Clone(),
	}
	metrics.BatchPasses.Inc()

	for _, edge := range report.Graph.Edges() {
		for i := range edge.Params {
			slot := &edge.Params[i]
			res, err := CompileEdge(Request{
				Graph:     g,
				Edge:      edge,
				Condition: slot.Condition,
				Table:     table,
				Weights:   w,
				Budget:    budget,
			})
			if err != nil {
				var perr *dsl.ParseError
				if errors.As(err, &perr) {
					metrics.ParseErrors.Inc()
				}
				metrics.SlotsCompiled.WithLabelValues("error").Inc()
				slog.Warn("slot compilation failed",
					"edge", edge.ID, "slot", slot.Slot, "err", err)
				report.Errors = append(report.Errors, SlotError{
					EdgeID: edge.ID, Slot: slot.Slot, Error: err.Error(),
				})
				continue
			}

			slot.Compiled = &funnel.CompiledQuery{Query: res.Query, Terms: res.Terms}
			metrics.SlotsCompiled.WithLabelValues("ok").Inc()
			if res.Rewrite != RewriteNone {
				metrics.Rewrites.WithLabelValues(res.Rewrite).Inc()
			}
			if res.BudgetCapped {
				metrics.BudgetExhausted.Inc()
			}
			if len(res.Fallbacks) > 0 {
				metrics.CapabilityFallbacks.Add(float64(len(res.Fallbacks)))
			}
			report.Compiled = append(report.Compiled, SlotResult{
				EdgeID:       edge.ID,
				Slot:         slot.Slot,
				Query:        res.Query,
				Terms:        res.Terms,
				Rewrite:      res.Rewrite,
				Degraded:     res.Degraded(),
				BudgetCapped: res.BudgetCapped,
			})
		}
	}
	return report
}
