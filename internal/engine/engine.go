// Package engine serves compilations against the latest graph snapshot.
// Hot-reload swaps the snapshot and capability table atomically; in-flight
// work keeps the snapshot it started with.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/funnelquery/internal/compile"
	"github.com/gyaneshwarpardhi/funnelquery/internal/config"
	"github.com/gyaneshwarpardhi/funnelquery/internal/funnel"
	"github.com/gyaneshwarpardhi/funnelquery/internal/metrics"
)

// settings bundles everything besides the graph that a compilation
// depends on, swapped as one unit so a reload can never mix old weights
// with a new table.
type settings struct {
	table   *compile.Table
	weights compile.Weights
	budget  int
}

// Engine dispatches compile requests over a worker pool.
type Engine struct {
	graph    atomic.Pointer[funnel.Graph]
	settings atomic.Pointer[settings]
	pool     *compilePool
	timeout  time.Duration
}

// New creates an Engine and starts its worker pool.
func New(ctx context.Context, cfg *config.Config, g *funnel.Graph) *Engine {
	e := &Engine{
		timeout: time.Duration(cfg.Engine.CompileTimeoutMs) * time.Millisecond,
	}
	e.graph.Store(g)
	e.settings.Store(settingsFrom(cfg))
	e.pool = newCompilePool(ctx, cfg.Engine.CompileWorkers, cfg.Engine.QueueDepth)
	return e
}

func settingsFrom(cfg *config.Config) *settings {
	return &settings{
		table:   compile.NewTable(cfg.Connections),
		weights: compile.Weights{VisitedCost: cfg.Weights.VisitedCost, ExcludeCost: cfg.Weights.ExcludeCost},
		budget:  cfg.Budget.MaxReachabilityChecks,
	}
}

// Swap atomically replaces the graph snapshot and settings (hot reload).
func (e *Engine) Swap(cfg *config.Config, g *funnel.Graph) {
	e.settings.Store(settingsFrom(cfg))
	e.graph.Store(g)
}

// Graph returns the current snapshot.
func (e *Engine) Graph() *funnel.Graph { return e.graph.Load() }

// Table returns the current capability table.
func (e *Engine) Table() *compile.Table { return e.settings.Load().table }

// CompileSync compiles one condition against one edge of the current
// snapshot, waiting up to the configured timeout.
func (e *Engine) CompileSync(ctx context.Context, edgeID, condition string) (*compile.Result, error) {
	g := e.graph.Load()
	edge, ok := g.Edge(edgeID)
	if !ok {
		return nil, &compile.UnknownEdgeError{Edge: edgeID}
	}
	s := e.settings.Load()

	resultC := make(chan compileOutcome, 1)
	j := compileJob{
		req: compile.Request{
			Graph:     g,
			Edge:      edge,
			Condition: condition,
			Table:     s.table,
			Weights:   s.weights,
			Budget:    s.budget,
		},
		resultC: resultC,
	}
	if !e.pool.submit(j) {
		return nil, fmt.Errorf("compile queue full (capacity %d)", e.pool.queueCap())
	}

	start := time.Now()
	select {
	case out := <-resultC:
		metrics.CompileDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
		return out.res, out.err
	case <-time.After(e.timeout):
		return nil, fmt.Errorf("compilation timeout after %v", e.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CompileGraph runs a whole-graph batch pass against the current
// snapshot and returns the report with a written-back clone.
func (e *Engine) CompileGraph() *compile.BatchReport {
	g := e.graph.Load()
	s := e.settings.Load()
	start := time.Now()
	report := compile.CompileAll(g, s.table, s.weights, s.budget)
	metrics.BatchDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	return report
}

// QueueUtilization returns queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	if e.pool.queueCap() == 0 {
		return 0
	}
	return float64(e.pool.queueLen()) / float64(e.pool.queueCap())
}

// Shutdown drains the pool gracefully.
func (e *Engine) Shutdown() {
	e.pool.drain()
}
