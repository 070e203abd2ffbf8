package observer

import (
	"math"
	"testing"
)

func TestCalculateKnownModel(t *testing.T) {
	c := NewCostCalculator(nil)
	// gpt-4o-mini: $0.15/M input, $0.60/M output.
	got := c.Calculate("gpt-4o-mini", 1_000_000, 500_000)
	want := 0.15 + 0.30
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("cost = %v, want %v", got, want)
	}
}

func TestCalculateUnknownModel(t *testing.T) {
	c := NewCostCalculator(nil)
	if got := c.Calculate("in-house-13b", 1000, 1000); got != 0 {
		t.Errorf("cost = %v, want 0 for unknown model", got)
	}
}

func TestCalculateOverrides(t *testing.T) {
	c := NewCostCalculator(map[string]ModelPricing{
		"gpt-4o-mini":  {1.00, 2.00}, // replace a default
		"in-house-13b": {0.01, 0.02}, // add a new model
	})
	if got := c.Calculate("gpt-4o-mini", 1_000_000, 0); math.Abs(got-1.00) > 1e-9 {
		t.Errorf("override not applied: %v", got)
	}
	if got := c.Calculate("in-house-13b", 0, 1_000_000); math.Abs(got-0.02) > 1e-9 {
		t.Errorf("added model not priced: %v", got)
	}
	// Untouched defaults survive the merge.
	if got := c.Calculate("deepseek-chat", 1_000_000, 0); math.Abs(got-0.27) > 1e-9 {
		t.Errorf("default pricing lost: %v", got)
	}
}
