package config

// Config is the top-level YAML structure.
type Config struct {
	Version     string          `yaml:"version"`
	Engine      EngineConf      `yaml:"engine"`
	Connections []ConnectionDef `yaml:"connections"`
	Weights     WeightsConf     `yaml:"weights"`
	Budget      BudgetConf      `yaml:"budget"`
	Funnel      FunnelDef       `yaml:"funnel"`
}

// EngineConf holds tunable compilation settings.
type EngineConf struct {
	CompileWorkers   int `yaml:"compile_workers"`
	QueueDepth       int `yaml:"queue_depth"`
	CompileTimeoutMs int `yaml:"compile_timeout_ms"`
}

// ConnectionDef declares one data-source connection and what its provider
// can execute natively.
type ConnectionDef struct {
	Name         string        `yaml:"name"`
	Provider     string        `yaml:"provider"`
	Capabilities CapabilityDef `yaml:"capabilities"`
}

// CapabilityDef is the flat boolean-flag record consulted by the rewriter.
type CapabilityDef struct {
	SupportsNativeExclude bool `yaml:"supports_native_exclude"`
	SupportsVisited       bool `yaml:"supports_visited"`
	SupportsOrdered       bool `yaml:"supports_ordered"`
	MaxPathLength         int  `yaml:"max_path_length,omitempty"`
}

// WeightsConf breaks ties between dual-equivalent rewrites.
type WeightsConf struct {
	VisitedCost float64 `yaml:"visited_cost"`
	ExcludeCost float64 `yaml:"exclude_cost"`
}

// BudgetConf caps the reachability analyzer's search.
type BudgetConf struct {
	MaxReachabilityChecks int `yaml:"max_reachability_checks"`
}

// FunnelDef is the graph snapshot supplied by the editor.
type FunnelDef struct {
	ID    string    `yaml:"id"`
	Nodes []NodeDef `yaml:"nodes"`
	Edges []EdgeDef `yaml:"edges"`
}

// NodeDef is one funnel step.
type NodeDef struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label,omitempty"`
}

// EdgeDef is one transition with its parameter slots.
type EdgeDef struct {
	ID     string     `yaml:"id"`
	From   string     `yaml:"from"`
	To     string     `yaml:"to"`
	Params []ParamDef `yaml:"params,omitempty"`
}

// ParamDef is one parameter slot on an edge: the base rate, one
// conditional-probability entry (slot "cond_prob:<name>"), or one cost
// dimension (slot "cost:<dim>"). Condition is a DSL string; empty means
// the slot queries the plain from→to transition.
type ParamDef struct {
	Slot       string `yaml:"slot"`
	Connection string `yaml:"connection"`
	Condition  string `yaml:"condition,omitempty"`
}
