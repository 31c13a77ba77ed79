package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SlotsCompiled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funnelquery_slots_compiled_total",
		Help: "Total number of parameter-slot compilations, labelled by status.",
	}, []string{"status"})

	ParseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funnelquery_parse_errors_total",
		Help: "Total number of condition strings rejected by the DSL parser.",
	})

	Rewrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funnelquery_rewrites_total",
		Help: "Total number of literal rewrites applied, labelled by kind.",
	}, []string{"kind"})

	BudgetExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funnelquery_reachability_budget_exhausted_total",
		Help: "Total number of compilations whose reachability analysis was capped.",
	})

	CapabilityFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funnelquery_capability_fallbacks_total",
		Help: "Total number of connections resolved via provider-level defaults.",
	})

	BatchPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funnelquery_batch_passes_total",
		Help: "Total number of whole-graph compilation passes.",
	})

	CompileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "funnelquery_compile_duration_ms",
		Help:    "Single-condition compilation latency in milliseconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
	})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "funnelquery_batch_pass_duration_ms",
		Help:    "Whole-graph compilation pass latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "funnelquery_queue_utilization_ratio",
		Help: "Current compile queue utilization (0–1).",
	})
)
