// Package backtest replays market data through a strategy against a
// simulated portfolio with configurable execution frictions.
package backtest

import (
	"math"
	"math/rand"

	"github.com/joripage/microbook/pkg/book"
)

type SlippageModel string

const (
	SlippageFixed      SlippageModel = "fixed"
	SlippagePercentage SlippageModel = "percentage"
	SlippageImpact     SlippageModel = "impact"
)

// ExecutionModel turns a desired trade into an execution price, or a
// miss when the fill probability lottery fails.
type ExecutionModel struct {
	Model           SlippageModel
	SlippageFactor  float64
	ImpactFactor    float64
	FillProbability float64

	rng *rand.Rand
}

func NewExecutionModel(model SlippageModel, slippageFactor float64) *ExecutionModel {
	return &ExecutionModel{
		Model:           model,
		SlippageFactor:  slippageFactor,
		ImpactFactor:    0.1,
		FillProbability: 1.0,
		rng:             rand.New(rand.NewSource(rand.Int63())),
	}
}

// WithSeed pins the fill lottery for reproducible runs.
func (m *ExecutionModel) WithSeed(seed int64) *ExecutionModel {
	m.rng = rand.New(rand.NewSource(seed))
	return m
}

// ExecutionPrice returns the simulated fill price for a trade at the
// given reference price. The second return is false when the order
// goes unfilled.
func (m *ExecutionModel) ExecutionPrice(price, qty float64, side book.Side, bar BarData) (float64, bool) {
	if m.FillProbability < 1.0 && m.rng.Float64() > m.FillProbability {
		return price, false
	}

	var slippage float64
	switch m.Model {
	case SlippagePercentage:
		slippage = price * m.SlippageFactor * (1.0 + math.Log(1+qty/100))
	case SlippageImpact:
		slippage = m.depthImpact(price, qty, side, bar)
	default:
		slippage = price * m.SlippageFactor
	}

	if side == book.Sell {
		return price - slippage, true
	}
	return price + slippage, true
}

// depthImpact walks the opposing depth the way a market order would
// and charges the distance between the volume weighted fill and the
// reference price, scaled by ImpactFactor. Falls back to fixed
// slippage when no depth is available.
func (m *ExecutionModel) depthImpact(price, qty float64, side book.Side, bar BarData) float64 {
	levels := bar.Asks
	if side == book.Sell {
		levels = bar.Bids
	}
	if len(levels) == 0 {
		return price * m.SlippageFactor
	}

	remaining := qty
	var cost, filled float64
	for _, l := range levels {
		fill := math.Min(remaining, l.Volume)
		cost += fill * l.Price
		filled += fill
		remaining -= fill
		if remaining <= 0 {
			break
		}
	}
	if filled <= 0 {
		return price * m.SlippageFactor
	}

	avg := cost / filled
	impact := (avg - price) * m.ImpactFactor
	if side == book.Sell {
		impact = (price - avg) * m.ImpactFactor
	}
	if impact < 0 {
		impact = 0
	}
	return impact
}
