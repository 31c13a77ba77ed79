package funnel_test

import (
	"strings"
	"testing"

	"github.com/gyaneshwarpardhi/funnelquery/internal/config"
	"github.com/gyaneshwarpardhi/funnelquery/internal/funnel"
)

func diamondConfig() *config.Config {
	return &config.Config{
		Version: "v1",
		Funnel: config.FunnelDef{
			ID: "fn_diamond",
			Nodes: []config.NodeDef{
				{ID: "a", Label: "Landing"},
				{ID: "b", Label: "Signup"},
				{ID: "c", Label: "Purchase"},
				{ID: "d", Label: "Trial"},
			},
			Edges: []config.EdgeDef{
				{ID: "e_ab", From: "a", To: "b"},
				{ID: "e_bc", From: "b", To: "c", Params: []config.ParamDef{
					{Slot: "base_rate", Connection: "events-prod"},
				}},
				{ID: "e_ad", From: "a", To: "d"},
				{ID: "e_dc", From: "d", To: "c"},
			},
		},
	}
}

func TestBuildDiamond(t *testing.T) {
	g, err := funnel.Build(diamondConfig())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if g.ID() != "fn_diamond" {
		t.Errorf("ID = %q, want fn_diamond", g.ID())
	}
	if g.NodeCount() != 4 || g.EdgeCount() != 4 {
		t.Errorf("counts = (%d, %d), want (4, 4)", g.NodeCount(), g.EdgeCount())
	}
	if got := g.Children("a"); len(got) != 2 || got[0] != "b" || got[1] != "d" {
		t.Errorf("Children(a) = %v, want [b d]", got)
	}
	if got := g.Parents("c"); len(got) != 2 || got[0] != "b" || got[1] != "d" {
		t.Errorf("Parents(c) = %v, want [b d]", got)
	}
	e, ok := g.Edge("e_bc")
	if !ok {
		t.Fatal("Edge(e_bc) not found")
	}
	if len(e.Params) != 1 || e.Params[0].Slot != "base_rate" {
		t.Errorf("e_bc params = %+v", e.Params)
	}
}

func TestBuildRejectsCycle(t *testing.T) {
	cfg := diamondConfig()
	cfg.Funnel.Edges = append(cfg.Funnel.Edges, config.EdgeDef{ID: "e_ca", From: "c", To: "a"})
	_, err := funnel.Build(cfg)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error %q does not mention cycle", err)
	}
}

func TestBuildRejectsUnknownEndpoint(t *testing.T) {
	cfg := diamondConfig()
	cfg.Funnel.Edges = append(cfg.Funnel.Edges, config.EdgeDef{ID: "e_bad", From: "a", To: "ghost"})
	if _, err := funnel.Build(cfg); err == nil {
		t.Fatal("expected unknown-endpoint error")
	}
}

func TestParallelEdgesShareAdjacency(t *testing.T) {
	cfg := diamondConfig()
	cfg.Funnel.Edges = append(cfg.Funnel.Edges, config.EdgeDef{ID: "e_ab2", From: "a", To: "b"})
	g, err := funnel.Build(cfg)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if got := g.Children("a"); len(got) != 2 {
		t.Errorf("Children(a) = %v, want deduped [b d]", got)
	}
	if g.EdgeCount() != 5 {
		t.Errorf("EdgeCount = %d, want 5", g.EdgeCount())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g, err := funnel.Build(diamondConfig())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	c := g.Clone()

	e, _ := c.Edge("e_bc")
	e.Params[0].Compiled = &funnel.CompiledQuery{Query: "from(b).to(c)"}

	orig, _ := g.Edge("e_bc")
	if orig.Params[0].Compiled != nil {
		t.Error("mutating clone leaked into original")
	}
}
