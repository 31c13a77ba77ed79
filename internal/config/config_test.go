package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gyaneshwarpardhi/funnelquery/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Version: "v1",
		Connections: []config.ConnectionDef{
			{Name: "events-prod", Provider: "warehouse", Capabilities: config.CapabilityDef{
				SupportsNativeExclude: true,
				SupportsVisited:       true,
			}},
		},
		Funnel: config.FunnelDef{
			ID: "fn_checkout",
			Nodes: []config.NodeDef{
				{ID: "a"}, {ID: "b"},
			},
			Edges: []config.EdgeDef{
				{ID: "e_ab", From: "a", To: "b", Params: []config.ParamDef{
					{Slot: "base_rate", Connection: "events-prod"},
				}},
			},
		},
	}
}

func TestValidateOK(t *testing.T) {
	if err := config.Validate(validConfig()); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantSub string
	}{
		{
			"missing version",
			func(c *config.Config) { c.Version = "" },
			"version is required",
		},
		{
			"duplicate connection",
			func(c *config.Config) { c.Connections = append(c.Connections, c.Connections[0]) },
			`duplicate connection name "events-prod"`,
		},
		{
			"duplicate node",
			func(c *config.Config) { c.Funnel.Nodes = append(c.Funnel.Nodes, config.NodeDef{ID: "a"}) },
			`duplicate node id "a"`,
		},
		{
			"unknown endpoint",
			func(c *config.Config) { c.Funnel.Edges[0].To = "ghost" },
			`to node "ghost" not found`,
		},
		{
			"self-loop",
			func(c *config.Config) { c.Funnel.Edges[0].To = "a" },
			"self-loop",
		},
		{
			"duplicate slot",
			func(c *config.Config) {
				c.Funnel.Edges[0].Params = append(c.Funnel.Edges[0].Params, config.ParamDef{
					Slot: "base_rate", Connection: "events-prod",
				})
			},
			`duplicate slot "base_rate"`,
		},
		{
			"slot without connection",
			func(c *config.Config) { c.Funnel.Edges[0].Params[0].Connection = "" },
			"connection is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q missing %q", err, tt.wantSub)
			}
		})
	}
}

// Slots may name connections the config does not declare; the compiler
// falls back to provider defaults for those, so validation passes them.
func TestValidateToleratesUnknownConnection(t *testing.T) {
	cfg := validConfig()
	cfg.Funnel.Edges[0].Params[0].Connection = "mixpanel-staging"
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Funnel.Nodes = append(cfg.Funnel.Nodes, config.NodeDef{ID: "a"})
	cfg.Funnel.Edges[0].To = "ghost"
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, sub := range []string{`duplicate node id "a"`, `to node "ghost" not found`} {
		if !strings.Contains(err.Error(), sub) {
			t.Errorf("error %q missing %q", err, sub)
		}
	}
}

func TestLoaderAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "funnel.yaml")
	doc := `
version: v1
connections:
  - name: events-prod
    provider: warehouse
    capabilities:
      supports_native_exclude: true
      supports_visited: true
funnel:
  id: fn_checkout
  nodes:
    - id: a
    - id: b
  edges:
    - id: e_ab
      from: a
      to: b
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	loader, err := config.NewLoader(path)
	if err != nil {
		t.Fatalf("NewLoader error: %v", err)
	}
	cfg := loader.Config()
	if cfg.Engine.CompileWorkers != 8 || cfg.Engine.QueueDepth != 256 || cfg.Engine.CompileTimeoutMs != 5000 {
		t.Errorf("engine defaults = %+v", cfg.Engine)
	}
	if cfg.Weights.VisitedCost != 1 || cfg.Weights.ExcludeCost != 1 {
		t.Errorf("weight defaults = %+v", cfg.Weights)
	}
	if cfg.Budget.MaxReachabilityChecks != 200 {
		t.Errorf("budget default = %+v", cfg.Budget)
	}
}

func TestLoaderReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "funnel.yaml")
	write := func(version string) {
		t.Helper()
		doc := "version: " + version + "\nfunnel:\n  id: fn\n  nodes:\n    - id: a\n"
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	write("v1")
	loader, err := config.NewLoader(path)
	if err != nil {
		t.Fatalf("NewLoader error: %v", err)
	}
	write("v2")
	cfg, err := loader.Reload()
	if err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	if cfg.Version != "v2" {
		t.Errorf("Version = %q, want v2", cfg.Version)
	}
	if loader.Config().Version != "v2" {
		t.Errorf("Config() = %q after reload, want v2", loader.Config().Version)
	}
}
