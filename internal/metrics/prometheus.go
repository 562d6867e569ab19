package metrics

import "github.com/prometheus/client_golang/prometheus"

// PromExporter mirrors a Collector's rollups as process Prometheus
// gauges/counters, so a host process can scrape the same numbers the
// in-process session summary reports, matching haasonsaas-nexus's own use
// of prometheus/client_golang for runtime observability.
type PromExporter struct {
	promptsTotal   prometheus.Counter
	toolCallsTotal *prometheus.CounterVec
	tokensTotal    *prometheus.CounterVec
	costUSDTotal   prometheus.Counter
}

// NewPromExporter creates and registers the exporter's metrics against reg.
// Pass prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer for process-wide scraping.
func NewPromExporter(reg prometheus.Registerer) *PromExporter {
	e := &PromExporter{
		promptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentcore",
			Name:      "prompts_total",
			Help:      "Total number of user prompts processed in this session.",
		}),
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Name:      "tool_calls_total",
			Help:      "Total tool calls executed, labeled by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Name:      "tokens_total",
			Help:      "Total tokens consumed, labeled by category (input/output/cache_read/cache_write).",
		}, []string{"category"}),
		costUSDTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentcore",
			Name:      "cost_usd_total",
			Help:      "Estimated total USD cost across all API calls in this session (with-cache pricing).",
		}),
	}
	reg.MustRegister(e.promptsTotal, e.toolCallsTotal, e.tokensTotal, e.costUSDTotal)
	return e
}

// ObservePrompt records one completed prompt's rollup.
func (e *PromExporter) ObservePrompt(p *Prompt) {
	e.promptsTotal.Inc()
	for _, call := range p.ToolCalls {
		outcome := "ok"
		if call.IsError {
			outcome = "error"
		}
		e.toolCallsTotal.WithLabelValues(call.Name, outcome).Inc()
	}
	for _, call := range p.APICalls {
		e.tokensTotal.WithLabelValues("input").Add(float64(call.Usage.InputTokens))
		e.tokensTotal.WithLabelValues("output").Add(float64(call.Usage.OutputTokens))
		e.tokensTotal.WithLabelValues("cache_read").Add(float64(call.Usage.CacheReadTokens))
		e.tokensTotal.WithLabelValues("cache_write").Add(float64(call.Usage.CacheWriteTokens))

		cost := CalculateCost(call.Model, call.Usage)
		if cost.ModelFound {
			e.costUSDTotal.Add(cost.WithCacheUSD)
		}
	}
}
