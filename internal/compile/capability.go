// Package compile turns parsed path conditions into provider-correct
// query strings: it decides whether native exclusion is usable per edge,
// rewrites between dual-equivalent literal forms by cost, and expands
// unsupported exclusions into inclusion–exclusion sub-query terms.
package compile

import (
	"log/slog"
	"strings"

	"github.com/gyaneshwarpardhi/funnelquery/internal/config"
	"github.com/gyaneshwarpardhi/funnelquery/internal/funnel"
)

// Capability is the flat flag record the rewriter consults. Policy logic
// never branches on the provider name, only on these flags.
type Capability struct {
	Connection            string `json:"connection,omitempty"`
	Provider              string `json:"provider"`
	SupportsNativeExclude bool   `json:"supports_native_exclude"`
	SupportsVisited       bool   `json:"supports_visited"`
	SupportsOrdered       bool   `json:"supports_ordered"`
	MaxPathLength         int    `json:"max_path_length,omitempty"`
}

// defaultCapabilities is the provider-level fallback consulted when a
// connection name is not in the configured table. Conservative entries:
// a provider is only marked exclude-capable when its query language has a
// first-class negative step condition.
var defaultCapabilities = map[string]Capability{
	"warehouse": {Provider: "warehouse", SupportsNativeExclude: true, SupportsVisited: true, SupportsOrdered: true},
	"mixpanel":  {Provider: "mixpanel", SupportsNativeExclude: true, SupportsVisited: true, SupportsOrdered: true, MaxPathLength: 10},
	"amplitude": {Provider: "amplitude", SupportsNativeExclude: true, SupportsVisited: true, SupportsOrdered: true, MaxPathLength: 10},
	"ga4":       {Provider: "ga4", SupportsVisited: true, SupportsOrdered: true, MaxPathLength: 10},
	"snowplow":  {Provider: "snowplow", SupportsVisited: true, SupportsOrdered: true},
	"matomo":    {Provider: "matomo", SupportsVisited: true},
}

// unknownProviderDefault is the verdict of last resort.
var unknownProviderDefault = Capability{Provider: "unknown", SupportsVisited: true}

// Table maps connection names to capabilities. Loaded once from config
// and treated as read-only for the duration of a compilation pass.
type Table struct {
	byName map[string]Capability
}

// NewTable builds a Table from the configured connections.
func NewTable(defs []config.ConnectionDef) *Table {
	t := &Table{byName: make(map[string]Capability, len(defs))}
	for _, d := range defs {
		t.byName[d.Name] = Capability{
			Connection:            d.Name,
			Provider:              d.Provider,
			SupportsNativeExclude: d.Capabilities.SupportsNativeExclude,
			SupportsVisited:       d.Capabilities.SupportsVisited,
			SupportsOrdered:       d.Capabilities.SupportsOrdered,
			MaxPathLength:         d.Capabilities.MaxPathLength,
		}
	}
	return t
}

// Connections returns the configured capability records, keyed by name.
func (t *Table) Connections() map[string]Capability {
	out := make(map[string]Capability, len(t.byName))
	for k, v := range t.byName {
		out[k] = v
	}
	return out
}

// Resolve looks up a connection by name. An unknown name is not fatal: it
// falls back to the provider-level default table, matched by the leading
// segment of the connection name (connections are conventionally named
// "<provider>-<env>"), and finally to a conservative unknown-provider
// record. exact is false on any fallback so callers can flag the result
// as degraded.
func (t *Table) Resolve(name string) (Capability, bool) {
	if c, ok := t.byName[name]; ok {
		return c, true
	}
	provider, _, _ := strings.Cut(name, "-")
	if c, ok := defaultCapabilities[provider]; ok {
		c.Connection = name
		slog.Warn("unknown connection, using provider defaults",
			"connection", name, "provider", provider)
		return c, false
	}
	c := unknownProviderDefault
	c.Connection = name
	slog.Warn("unknown connection and provider, using conservative defaults",
		"connection", name)
	return c, false
}

// EdgeVerdict is the single capability decision shared by every parameter
// slot on one edge.
type EdgeVerdict struct {
	NativeExclude bool     // false if any slot's provider lacks support
	Fallbacks     []string // connections resolved via provider defaults
}

// EdgeCapability aggregates pessimistically over the distinct connections
// referenced by an edge's parameter slots: one compiled query string is
// shared by all slots, so it must be correct for the least-capable one.
func EdgeCapability(edge *funnel.Edge, table *Table) EdgeVerdict {
	verdict := EdgeVerdict{NativeExclude: true}
	seen := make(map[string]struct{}, len(edge.Params))
	for _, p := range edge.Params {
		if _, dup := seen[p.Connection]; dup {
			continue
		}
		seen[p.Connection] = struct{}{}
		c, exact := table.Resolve(p.Connection)
		if !exact {
			verdict.Fallbacks = append(verdict.Fallbacks, p.Connection)
		}
		if !c.SupportsNativeExclude {
			verdict.NativeExclude = false
		}
	}
	if len(edge.Params) == 0 {
		// No data sources at all: nothing constrains the form.
		verdict.NativeExclude = true
	}
	return verdict
}
