package cost

import (
	"math"
	"strings"
	"sync"
	"unicode/utf8"
)

// GeminiPricing represents the pricing of one Gemini model
type GeminiPricing struct {
	Model                 string
	InputCostPer1MTokens  float64 // Cost per 1M input tokens in USD
	OutputCostPer1MTokens float64 // Cost per 1M output tokens in USD
}

// DefaultModel is the pricing used for models missing from PricingTable
const DefaultModel = "gemini-2.0-flash"

// PricingTable contains Gemini API pricing (paid tier, prompts up to 128k tokens)
var PricingTable = map[string]GeminiPricing{
	"gemini-2.0-flash": {
		Model:                 "gemini-2.0-flash",
		InputCostPer1MTokens:  0.10,
		OutputCostPer1MTokens: 0.40,
	},
	"gemini-2.0-flash-lite": {
		Model:                 "gemini-2.0-flash-lite",
		InputCostPer1MTokens:  0.075,
		OutputCostPer1MTokens: 0.30,
	},
	"gemini-2.5-flash": {
		Model:                 "gemini-2.5-flash",
		InputCostPer1MTokens:  0.30,
		OutputCostPer1MTokens: 2.50,
	},
	"gemini-2.5-pro": {
		Model:                 "gemini-2.5-pro",
		InputCostPer1MTokens:  1.25,
		OutputCostPer1MTokens: 10.00,
	},
	"gemini-1.5-flash": {
		Model:                 "gemini-1.5-flash",
		InputCostPer1MTokens:  0.075,
		OutputCostPer1MTokens: 0.30,
	},
	"gemini-1.5-pro": {
		Model:                 "gemini-1.5-pro",
		InputCostPer1MTokens:  1.25,
		OutputCostPer1MTokens: 5.00,
	},
}

// Pricing returns the pricing of model, falling back to DefaultModel.
// Version suffixes such as "-001" or "-latest" are ignored.
func Pricing(model string) GeminiPricing {
	name := strings.TrimPrefix(model, "models/")
	for {
		if p, ok := PricingTable[name]; ok {
			return p
		}
		i := strings.LastIndex(name, "-")
		if i <= 0 {
			return PricingTable[DefaultModel]
		}
		name = name[:i]
	}
}

// EstimateTokenCount provides a rough estimation of token count for text
// This is a simplified approximation: typically 1 token ≈ 0.75 words ≈ 4 characters
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	// Count characters (more accurate than word count for mixed content)
	charCount := utf8.RuneCountInString(text)

	// Add some buffer for special tokens, formatting, etc.
	return int(math.Ceil(float64(charCount) / 3.5))
}

// Usage is the estimated token usage and cost of one or more calls
type Usage struct {
	Calls        int
	InputTokens  int
	OutputTokens int
	Cost         float64 // USD
}

// Estimate returns the estimated usage of a single call.
func Estimate(model, prompt, completion string) Usage {
	pricing := Pricing(model)
	in := EstimateTokenCount(prompt)
	out := EstimateTokenCount(completion)
	return Usage{
		Calls:        1,
		InputTokens:  in,
		OutputTokens: out,
		Cost: float64(in)*pricing.InputCostPer1MTokens/1000000 +
			float64(out)*pricing.OutputCostPer1MTokens/1000000,
	}
}

// Tally accumulates usage across calls. It is safe for concurrent use.
type Tally struct {
	mu    sync.Mutex
	total Usage
}

// Add records u and returns the running total.
func (t *Tally) Add(u Usage) Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total.Calls += u.Calls
	t.total.InputTokens += u.InputTokens
	t.total.OutputTokens += u.OutputTokens
	t.total.Cost += u.Cost
	return t.total
}

// Total returns the accumulated usage.
func (t *Tally) Total() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
