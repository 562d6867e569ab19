package metrics

import "strings"

// ModelPricing is USD-per-million-token pricing for one model.
type ModelPricing struct {
	Input       float64
	Output      float64
	CacheWrite5m float64
	CacheWrite1h float64
	CacheRead   float64
}

// modelAliases maps shorthand/legacy model identifiers to the canonical
// name used as a pricingTable key, grounded on
// codefuse/observability/metrics/collector.py::MODEL_ALIASES.
var modelAliases = map[string]string{
	"claude_opus4_5":   "claude-opus-4-5",
	"claude_opus4_1":   "claude-opus-4-1",
	"claude_opus4":     "claude-opus-4",
	"claude_sonnet4_5": "claude-sonnet-4-5",
	"claude_sonnet4":   "claude-sonnet-4",
	"claude_haiku4_5":  "claude-haiku-4-5",
}

// pricingTable is USD-per-million-token pricing keyed by canonical model
// name, grounded on
// codefuse/observability/metrics/collector.py::ANTHROPIC_PRICING.
var pricingTable = map[string]ModelPricing{
	"claude-opus-4-5":   {Input: 5.00, Output: 25.00, CacheWrite5m: 6.25, CacheWrite1h: 10.00, CacheRead: 0.50},
	"claude-opus-4-1":   {Input: 15.00, Output: 75.00, CacheWrite5m: 18.75, CacheWrite1h: 30.00, CacheRead: 1.50},
	"claude-opus-4":     {Input: 15.00, Output: 75.00, CacheWrite5m: 18.75, CacheWrite1h: 30.00, CacheRead: 1.50},
	"claude-sonnet-4-5": {Input: 3.00, Output: 15.00, CacheWrite5m: 3.75, CacheWrite1h: 6.00, CacheRead: 0.30},
	"claude-sonnet-4":   {Input: 3.00, Output: 15.00, CacheWrite5m: 3.75, CacheWrite1h: 6.00, CacheRead: 0.30},
	"claude-haiku-4-5":  {Input: 0.80, Output: 4.00, CacheWrite5m: 1.00, CacheWrite1h: 1.60, CacheRead: 0.08},
}

// resolvePricing looks up model in three steps: alias exact match,
// normalized (lowercased) exact match, then substring fallback (among the
// table keys contained in, or containing, the normalized name, the longest
// wins; equal lengths are broken alphabetically).
func resolvePricing(model string) (ModelPricing, bool) {
	if canonical, ok := modelAliases[model]; ok {
		if p, ok := pricingTable[canonical]; ok {
			return p, true
		}
	}
	normalized := strings.ToLower(strings.TrimSpace(model))
	if p, ok := pricingTable[normalized]; ok {
		return p, true
	}
	bestKey := ""
	for key := range pricingTable {
		if !strings.Contains(normalized, key) && !strings.Contains(key, normalized) {
			continue
		}
		if len(key) > len(bestKey) || (len(key) == len(bestKey) && key < bestKey) {
			bestKey = key
		}
	}
	if bestKey != "" {
		return pricingTable[bestKey], true
	}
	return ModelPricing{}, false
}

// CostBreakdown is the result of CalculateCost: with-cache and
// without-cache totals plus the savings cache bought, grounded on
// codefuse/observability/metrics/collector.py::calculate_cost.
type CostBreakdown struct {
	ModelFound       bool
	WithCacheUSD     float64
	WithoutCacheUSD  float64
	SavingsUSD       float64
	SavingsPercent   float64
	InputCost        float64
	OutputCost       float64
	CacheReadCost    float64
	CacheWriteCost   float64
}

// CalculateCost prices usage under model, reporting both what it actually
// cost (with cache discounts applied) and what it would have cost had every
// cache token been priced as ordinary input — the "savings" a cache hit
// bought. Cache-write cost uses the 5-minute TTL rate; the 1-hour rate is
// exposed on ModelPricing for callers that need it but isn't used here,
// since the agent loop only ever requests the default (5m) cache TTL.
func CalculateCost(model string, usage Usage) CostBreakdown {
	pricing, found := resolvePricing(model)
	if !found {
		return CostBreakdown{ModelFound: false}
	}

	inputCost := float64(usage.InputTokens) * pricing.Input / 1_000_000
	outputCost := float64(usage.OutputTokens) * pricing.Output / 1_000_000
	cacheReadCost := float64(usage.CacheReadTokens) * pricing.CacheRead / 1_000_000
	cacheWriteCost := float64(usage.CacheWriteTokens) * pricing.CacheWrite5m / 1_000_000

	withCache := inputCost + outputCost + cacheReadCost + cacheWriteCost

	// Without cache: re-price every cache token (read and write) as plain
	// input tokens at the standard input rate.
	cacheTokensAsInput := float64(usage.CacheReadTokens+usage.CacheWriteTokens) * pricing.Input / 1_000_000
	withoutCache := inputCost + outputCost + cacheTokensAsInput

	savings := withoutCache - withCache
	savingsPercent := 0.0
	if withoutCache > 0 {
		savingsPercent = (savings / withoutCache) * 100
	}

	return CostBreakdown{
		ModelFound:      true,
		WithCacheUSD:    withCache,
		WithoutCacheUSD: withoutCache,
		SavingsUSD:      savings,
		SavingsPercent:  savingsPercent,
		InputCost:       inputCost,
		OutputCost:      outputCost,
		CacheReadCost:   cacheReadCost,
		CacheWriteCost:  cacheWriteCost,
	}
}
