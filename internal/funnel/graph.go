// Package funnel holds the read-only graph snapshot the compiler works on.
// The external editor owns and mutates the funnel; this package only builds
// an immutable view from a config snapshot and validates its preconditions.
package funnel

import (
	"fmt"
	"sort"

	"github.com/gyaneshwarpardhi/funnelquery/internal/config"
)

// Node is one funnel step.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// SubQuery is one additive or subtractive term of an expanded query.
type SubQuery struct {
	Sign  int    `json:"sign"` // +1 or -1
	Query string `json:"query"`
}

// CompiledQuery is the write-back value for a parameter slot. It is
// computed fresh on every compilation pass and replaces any prior value.
type CompiledQuery struct {
	Query string     `json:"query"`
	Terms []SubQuery `json:"terms,omitempty"`
}

// ParamSlot is one parameter attached to an edge: the base rate, a
// conditional-probability entry, or a cost dimension.
type ParamSlot struct {
	Slot       string         `json:"slot"`
	Connection string         `json:"connection"`
	Condition  string         `json:"condition,omitempty"`
	Compiled   *CompiledQuery `json:"compiled,omitempty"`
}

// Edge is one transition with its parameter slots.
type Edge struct {
	ID     string      `json:"id"`
	From   string      `json:"from"`
	To     string      `json:"to"`
	Params []ParamSlot `json:"params,omitempty"`
}

// Graph is an immutable DAG snapshot. Hot-reload builds a new Graph and
// swaps it atomically; callers must not mutate what accessors return.
type Graph struct {
	id       string
	nodes    map[string]Node
	edges    []*Edge
	edgeByID map[string]*Edge
	children map[string][]string
	parents  map[string][]string
}

// Build constructs a Graph from a validated config snapshot. Acyclicity is
// a hard precondition of the whole compiler, so a cyclic input fails here
// rather than sending a traversal into a loop.
func Build(cfg *config.Config) (*Graph, error) {
	g := &Graph{
		id:       cfg.Funnel.ID,
		nodes:    make(map[string]Node, len(cfg.Funnel.Nodes)),
		edgeByID: make(map[string]*Edge, len(cfg.Funnel.Edges)),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
	for _, n := range cfg.Funnel.Nodes {
		if _, ok := g.nodes[n.ID]; ok {
			return nil, fmt.Errorf("funnel: duplicate node %q", n.ID)
		}
		g.nodes[n.ID] = Node{ID: n.ID, Label: n.Label}
	}
	for _, e := range cfg.Funnel.Edges {
		if _, ok := g.nodes[e.From]; !ok {
			return nil, fmt.Errorf("funnel: edge %s: unknown node %q", e.ID, e.From)
		}
		if _, ok := g.nodes[e.To]; !ok {
			return nil, fmt.Errorf("funnel: edge %s: unknown node %q", e.ID, e.To)
		}
		if _, ok := g.edgeByID[e.ID]; ok {
			return nil, fmt.Errorf("funnel: duplicate edge %q", e.ID)
		}
		edge := &Edge{ID: e.ID, From: e.From, To: e.To}
		for _, p := range e.Params {
			edge.Params = append(edge.Params, ParamSlot{
				Slot:       p.Slot,
				Connection: p.Connection,
				Condition:  p.Condition,
			})
		}
		g.edges = append(g.edges, edge)
		g.edgeByID[e.ID] = edge
		g.addAdjacency(e.From, e.To)
	}
	for id := range g.children {
		sort.Strings(g.children[id])
	}
	for id := range g.parents {
		sort.Strings(g.parents[id])
	}
	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) addAdjacency(from, to string) {
	for _, c := range g.children[from] {
		if c == to {
			return // parallel edge, adjacency already recorded
		}
	}
	g.children[from] = append(g.children[from], to)
	g.parents[to] = append(g.parents[to], from)
}

// validateAcyclic runs Kahn's algorithm and fails if any node survives.
func (g *Graph) validateAcyclic() error {
	inDegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = len(g.parents[id])
	}
	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, child := range g.children[id] {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	if processed != len(g.nodes) {
		var stuck []string
		for id, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return fmt.Errorf("funnel: cycle detected involving %v", stuck)
	}
	return nil
}

// ID returns the funnel identifier from the config snapshot.
func (g *Graph) ID() string { return g.id }

// HasNode reports whether id is a known node.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns a node by id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes sorted by id.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns the edges in config order.
func (g *Graph) Edges() []*Edge { return g.edges }

// Edge returns an edge by id.
func (g *Graph) Edge(id string) (*Edge, bool) {
	e, ok := g.edgeByID[id]
	return e, ok
}

// Children returns the direct successors of a node, sorted.
func (g *Graph) Children(id string) []string { return g.children[id] }

// Parents returns the direct predecessors of a node, sorted.
func (g *Graph) Parents(id string) []string { return g.parents[id] }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Clone deep-copies the graph so a compilation pass can write compiled
// queries back without touching the caller's snapshot.
func (g *Graph) Clone() *Graph {
	cc := &Graph{
		id:       g.id,
		nodes:    make(map[string]Node, len(g.nodes)),
		edgeByID: make(map[string]*Edge, len(g.edgeByID)),
		children: make(map[string][]string, len(g.children)),
		parents:  make(map[string][]string, len(g.parents)),
	}
	for id, n := range g.nodes {
		cc.nodes[id] = n
	}
	for _, e := range g.edges {
		edge := &Edge{ID: e.ID, From: e.From, To: e.To}
		for _, p := range e.Params {
			ps := p
			if p.Compiled != nil {
				q := *p.Compiled
				q.Terms = append([]SubQuery(nil), p.Compiled.Terms...)
				ps.Compiled = &q
			}
			edge.Params = append(edge.Params, ps)
		}
		cc.edges = append(cc.edges, edge)
		cc.edgeByID[edge.ID] = edge
	}
	for id, c := range g.children {
		cc.children[id] = append([]string(nil), c...)
	}
	for id, p := range g.parents {
		cc.parents[id] = append([]string(nil), p...)
	}
	return cc
}
