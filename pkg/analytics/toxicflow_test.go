package analytics

import (
	"testing"

	"github.com/joripage/microbook/pkg/book"
	"github.com/stretchr/testify/assert"
)

func TestToxicFlowUnknownSymbol(t *testing.T) {
	d := NewToxicFlowDetector(0, 0, 0)

	status := d.Status("AAPL")
	assert.Equal(t, "AAPL", status.Symbol)
	assert.False(t, status.IsToxic)
	assert.Zero(t, status.Confidence)
}

func TestToxicFlowBenignFlow(t *testing.T) {
	d := NewToxicFlowDetector(100, 1, 0.6)

	// Balanced small orders on both sides, no cancels.
	for i := 0; i < 20; i++ {
		side := book.Buy
		if i%2 == 0 {
			side = book.Sell
		}
		d.ProcessOrder("AAPL", int64(i), "o", 10.0, 10, side)
	}

	status := d.Status("AAPL")
	assert.False(t, status.IsToxic)
	assert.Greater(t, status.Confidence, 0.5)
	assert.Len(t, status.Factors, 5)
}

func TestToxicFlowOneSidedChurn(t *testing.T) {
	d := NewToxicFlowDetector(100, 1, 0.6)

	// One-sided flow, heavy cancels against a single print, hot metrics.
	for i := 0; i < 50; i++ {
		d.ProcessOrder("AAPL", int64(i), "o", 10.0, 100, book.Buy)
		d.ProcessCancel("AAPL", int64(i), "o")
	}
	d.ProcessTrade("AAPL", 100, 10.0, 1, book.Buy)
	d.ProcessMetrics(Metrics{
		Symbol:             "AAPL",
		Timestamp:          101,
		OrderImbalance:     0.9,
		PriceImpact:        0.01,
		RealizedVolatility: 0.05,
	})

	status := d.Status("AAPL")
	assert.True(t, status.IsToxic)
	assert.Greater(t, status.Confidence, 0.6)
}

func TestToxicFlowFactorContributionsBounded(t *testing.T) {
	d := NewToxicFlowDetector(100, 1, 0.6)
	for i := 0; i < 10; i++ {
		d.ProcessCancel("AAPL", int64(i), "o")
	}
	d.ProcessMetrics(Metrics{Symbol: "AAPL", Timestamp: 11, PriceImpact: 1, RealizedVolatility: 1})

	for _, f := range d.Status("AAPL").Factors {
		assert.GreaterOrEqual(t, f.Contribution, 0.0)
		assert.LessOrEqual(t, f.Contribution, 1.0)
	}
}
