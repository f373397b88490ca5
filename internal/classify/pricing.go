package classify

import (
	"strings"

	"github.com/demoforge/mirror/internal/llm"
)

// modelPricing holds USD prices per million tokens.
type modelPricing struct {
	promptPerM float64
	outputPerM float64
}

// pricingTable is keyed by model name prefix; longest prefix wins.
var pricingTable = map[string]modelPricing{
	"gpt-4o-mini":   {promptPerM: 0.15, outputPerM: 0.60},
	"gpt-4o":        {promptPerM: 2.50, outputPerM: 10.00},
	"gpt-4-turbo":   {promptPerM: 10.00, outputPerM: 30.00},
	"gpt-3.5-turbo": {promptPerM: 0.50, outputPerM: 1.50},
}

// EstimateCost estimates the cost of one completion in USD. Unknown
// models cost zero.
func EstimateCost(model string, usage llm.Usage) float64 {
	var best string
	for prefix := range pricingTable {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return 0
	}
	p := pricingTable[best]
	return float64(usage.PromptTokens)/1e6*p.promptPerM +
		float64(usage.CompletionTokens)/1e6*p.outputPerM
}
