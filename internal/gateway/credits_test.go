package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrz1836/smartspec/internal/domain"
)

func TestTopUpCredits(t *testing.T) {
	tests := []struct {
		name       string
		paymentUSD float64
		markupRate float64
		want       int64
	}{
		{name: "hundred dollars at default markup", paymentUSD: 100, markupRate: 0.15, want: 86956},
		{name: "ten dollars at default markup", paymentUSD: 10, markupRate: 0.15, want: 8695},
		{name: "zero markup grants face value", paymentUSD: 5, markupRate: 0, want: 5000},
		{name: "fractional payment floors", paymentUSD: 0.01, markupRate: 0.15, want: 8},
		{name: "zero payment grants nothing", paymentUSD: 0, markupRate: 0.15, want: 0},
		{name: "negative payment grants nothing", paymentUSD: -10, markupRate: 0.15, want: 0},
		{name: "negative markup treated as zero", paymentUSD: 1, markupRate: -0.5, want: 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TopUpCredits(tt.paymentUSD, tt.markupRate))
		})
	}
}

func TestDebitCredits(t *testing.T) {
	tests := []struct {
		name       string
		rawCostUSD float64
		want       int64
	}{
		{name: "ten cents is one hundred credits", rawCostUSD: 0.10, want: 100},
		{name: "fractional cost rounds up", rawCostUSD: 0.1234, want: 124},
		{name: "tiny cost still debits one credit", rawCostUSD: 0.0001, want: 1},
		{name: "exact credit boundary", rawCostUSD: 0.001, want: 1},
		{name: "zero cost debits nothing", rawCostUSD: 0, want: 0},
		{name: "negative cost debits nothing", rawCostUSD: -1, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DebitCredits(tt.rawCostUSD))
		})
	}
}

func TestTopUpRevenueUSD(t *testing.T) {
	credits := TopUpCredits(100, 0.15)
	assert.InDelta(t, 13.044, TopUpRevenueUSD(100, credits), 0.001)
}

func TestEstimateInputTokens(t *testing.T) {
	assert.Equal(t, int64(0), estimateInputTokens(0))
	assert.Equal(t, int64(1), estimateInputTokens(4))
	assert.Equal(t, int64(2), estimateInputTokens(5))
	assert.Equal(t, int64(100), estimateInputTokens(400))
}

func TestEstimateCostUSD(t *testing.T) {
	route := &Route{PriceInPer1K: 1.0, PriceOutPer1K: 0.1}

	// 100 input tokens at $1/1k plus 1000 expected output at $0.1/1k.
	assert.InDelta(t, 0.2, estimateCostUSD(route, 100, 1000), 1e-9)
	assert.InDelta(t, 0, estimateCostUSD(route, 0, 0), 1e-9)
}

func TestUsageCostUSD(t *testing.T) {
	route := &Route{PriceInPer1K: 0.003, PriceOutPer1K: 0.015}
	usage := domain.TokenUsage{InputTokens: 1000, OutputTokens: 500}

	assert.InDelta(t, 0.0105, usageCostUSD(route, usage), 1e-9)
}
