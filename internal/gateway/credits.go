package gateway

import (
	"math"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
)

// TopUpCredits converts a USD payment into credits granted:
// floor(P × 1000 / (1 + markup)). The markup share is retained revenue and
// never appears on the ledger.
func TopUpCredits(paymentUSD, markupRate float64) int64 {
	if paymentUSD <= 0 {
		return 0
	}
	if markupRate < 0 {
		markupRate = 0
	}
	return int64(math.Floor(paymentUSD * constants.CreditsPerUSD / (1 + markupRate)))
}

// DebitCredits converts a provider's raw USD cost into the credits debited:
// ceil(raw_cost_usd × 1000). Markup is never applied to usage; a zero-cost
// call debits zero.
func DebitCredits(rawCostUSD float64) int64 {
	if rawCostUSD <= 0 {
		return 0
	}
	return int64(math.Ceil(rawCostUSD * constants.CreditsPerUSD))
}

// TopUpRevenueUSD returns the margin retained on a top-up: the payment minus
// the USD value of the credits granted.
func TopUpRevenueUSD(paymentUSD float64, credits int64) float64 {
	return paymentUSD - float64(credits)/constants.CreditsPerUSD
}

// estimateInputTokens approximates prompt size from character count. The
// heuristic overcounts short prompts slightly, which keeps the pre-flight
// estimate conservative.
func estimateInputTokens(promptChars int) int64 {
	if promptChars <= 0 {
		return 0
	}
	tokens := int64(promptChars) / constants.EstimateCharsPerToken
	if int64(promptChars)%constants.EstimateCharsPerToken != 0 {
		tokens++
	}
	return tokens
}

// estimateCostUSD prices a call against one routing row:
// input_tokens × price_in + expected_output_tokens × price_out, with prices
// quoted per 1K tokens.
func estimateCostUSD(route *Route, inputTokens, expectedOutputTokens int64) float64 {
	return float64(inputTokens)*route.PriceInPer1K/1000 +
		float64(expectedOutputTokens)*route.PriceOutPer1K/1000
}

// usageCostUSD prices reported token usage against one routing row. Used when
// the provider adapter does not report its own raw cost.
func usageCostUSD(route *Route, usage domain.TokenUsage) float64 {
	return float64(usage.InputTokens)*route.PriceInPer1K/1000 +
		float64(usage.OutputTokens)*route.PriceOutPer1K/1000
}
