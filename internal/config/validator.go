package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for:
//   - Duplicate node, edge, and connection ids
//   - Edge endpoints referencing unknown nodes
//   - Duplicate parameter slot names on one edge
//   - Required fields
//
// Unknown connection names on parameter slots are NOT an error here: the
// compiler resolves them via provider-level defaults at compile time.
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	conns := make(map[string]struct{}, len(cfg.Connections))
	for i, cn := range cfg.Connections {
		if cn.Name == "" {
			errs = append(errs, fmt.Sprintf("connections[%d]: name is required", i))
			continue
		}
		if cn.Provider == "" {
			errs = append(errs, fmt.Sprintf("connection %s: provider is required", cn.Name))
		}
		if _, ok := conns[cn.Name]; ok {
			errs = append(errs, fmt.Sprintf("duplicate connection name %q", cn.Name))
		}
		conns[cn.Name] = struct{}{}
	}

	if len(cfg.Funnel.Nodes) == 0 {
		errs = append(errs, "funnel: nodes must not be empty")
	}
	nodes := make(map[string]struct{}, len(cfg.Funnel.Nodes))
	for i, n := range cfg.Funnel.Nodes {
		if n.ID == "" {
			errs = append(errs, fmt.Sprintf("funnel.nodes[%d]: id is required", i))
			continue
		}
		if _, ok := nodes[n.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		nodes[n.ID] = struct{}{}
	}

	edges := make(map[string]struct{}, len(cfg.Funnel.Edges))
	for i, e := range cfg.Funnel.Edges {
		if e.ID == "" {
			errs = append(errs, fmt.Sprintf("funnel.edges[%d]: id is required", i))
			continue
		}
		loc := fmt.Sprintf("edge %s", e.ID)
		if _, ok := edges[e.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate edge id %q", e.ID))
		}
		edges[e.ID] = struct{}{}
		if _, ok := nodes[e.From]; !ok {
			errs = append(errs, fmt.Sprintf("%s: from node %q not found", loc, e.From))
		}
		if _, ok := nodes[e.To]; !ok {
			errs = append(errs, fmt.Sprintf("%s: to node %q not found", loc, e.To))
		}
		if e.From != "" && e.From == e.To {
			errs = append(errs, fmt.Sprintf("%s: self-loop %s→%s", loc, e.From, e.To))
		}
		slots := make(map[string]struct{}, len(e.Params))
		for j, p := range e.Params {
			if p.Slot == "" {
				errs = append(errs, fmt.Sprintf("%s.params[%d]: slot is required", loc, j))
				continue
			}
			if _, ok := slots[p.Slot]; ok {
				errs = append(errs, fmt.Sprintf("%s: duplicate slot %q", loc, p.Slot))
			}
			slots[p.Slot] = struct{}{}
			if p.Connection == "" {
				errs = append(errs, fmt.Sprintf("%s.%s: connection is required", loc, p.Slot))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
