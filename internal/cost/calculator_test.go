package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"haiku": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		OpenAI: map[string]ModelRate{
			"mini": {Input: 0.15, Output: 0.60, CacheReadMul: 0.5},
		},
	}
}

func TestEstimate(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name       string
		provider   string
		model      string
		input      int
		output     int
		cacheWrite int
		cacheRead  int
		want       float64
	}{
		{
			name:     "haiku simple",
			provider: "anthropic", model: "haiku",
			input: 1000000, output: 100000,
			want: 0.80 + 0.40,
		},
		{
			name:     "haiku with cache",
			provider: "anthropic", model: "haiku",
			input: 500000, output: 50000,
			cacheWrite: 200000, cacheRead: 300000,
			// 0.40 + 0.20 + 0.20 + 0.024
			want: 0.824,
		},
		{
			name:     "openai mini",
			provider: "openai", model: "mini",
			input: 2000000, output: 1000000,
			want: 0.30 + 0.60,
		},
		{
			name:     "unknown model",
			provider: "anthropic", model: "nope",
			input: 1000000,
			want: 0,
		},
		{
			name:     "unknown provider",
			provider: "mistral", model: "haiku",
			input: 1000000,
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calc.Estimate(tt.provider, tt.model, tt.input, tt.output, tt.cacheWrite, tt.cacheRead)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestDefaultRates(t *testing.T) {
	r := DefaultRates()
	assert.Contains(t, r.Anthropic, "claude-haiku-4-5-20251001")
	assert.Contains(t, r.OpenAI, "gpt-4o-mini")
}
