package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollectorRollup(t *testing.T) {
	c := New()
	p := c.StartPrompt("prompt_001")
	c.RecordAPICall(p, APICall{Model: "claude-sonnet-4-5", Usage: Usage{InputTokens: 1000, OutputTokens: 200}})
	c.RecordToolCall(p, ToolCall{Name: "read_file", DurationMs: 5})

	total := c.SessionUsage()
	if total.InputTokens != 1000 || total.OutputTokens != 200 {
		t.Fatalf("unexpected session usage: %+v", total)
	}
}

func TestCalculateCostKnownModel(t *testing.T) {
	cost := CalculateCost("claude-sonnet-4-5", Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000, CacheReadTokens: 1_000_000})
	if !cost.ModelFound {
		t.Fatal("expected model to be found")
	}
	if cost.WithCacheUSD >= cost.WithoutCacheUSD {
		t.Fatalf("expected cache to reduce cost: with=%f without=%f", cost.WithCacheUSD, cost.WithoutCacheUSD)
	}
	if cost.SavingsPercent <= 0 {
		t.Fatalf("expected positive savings percent, got %f", cost.SavingsPercent)
	}
}

func TestCalculateCostUnknownModel(t *testing.T) {
	cost := CalculateCost("some-unlisted-model-xyz", Usage{InputTokens: 100})
	if cost.ModelFound {
		t.Fatal("expected unknown model to report ModelFound=false")
	}
	if cost.WithCacheUSD != 0 {
		t.Fatalf("expected zero cost for unresolved model, got %f", cost.WithCacheUSD)
	}
}

func TestResolvePricingAlias(t *testing.T) {
	p, ok := resolvePricing("claude_sonnet4_5")
	if !ok {
		t.Fatal("expected alias to resolve")
	}
	if p.Input <= 0 {
		t.Fatal("expected positive input pricing")
	}
}

func TestPromExporterObservePrompt(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter := NewPromExporter(reg)
	c := New()
	p := c.StartPrompt("prompt_001")
	c.RecordAPICall(p, APICall{Model: "claude-haiku-4-5", Usage: Usage{InputTokens: 10, OutputTokens: 5}})
	c.RecordToolCall(p, ToolCall{Name: "bash", IsError: true})

	exporter.ObservePrompt(p)

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "agentcore_prompts_total" {
			found = true
			if mf.Metric[0].GetCounter().GetValue() != 1 {
				t.Fatalf("expected 1 prompt recorded, got %v", mf.Metric[0].GetCounter().GetValue())
			}
		}
	}
	if !found {
		t.Fatal("expected agentcore_prompts_total metric to be registered")
	}
}
