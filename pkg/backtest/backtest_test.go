package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joripage/microbook/pkg/book"
)

func barWithDepth(mid float64) BarData {
	return BarData{
		Symbol:   "AAPL",
		MidPrice: mid,
		Bids: []book.Level{
			{Price: mid - 0.05, Volume: 100},
			{Price: mid - 0.10, Volume: 200},
		},
		Asks: []book.Level{
			{Price: mid + 0.05, Volume: 100},
			{Price: mid + 0.10, Volume: 200},
		},
	}
}

func TestExecutionFixedSlippage(t *testing.T) {
	m := NewExecutionModel(SlippageFixed, 0.001)

	buy, filled := m.ExecutionPrice(100, 10, book.Buy, BarData{})
	require.True(t, filled)
	assert.InDelta(t, 100.1, buy, 1e-9)

	sell, filled := m.ExecutionPrice(100, 10, book.Sell, BarData{})
	require.True(t, filled)
	assert.InDelta(t, 99.9, sell, 1e-9)
}

func TestExecutionPercentageSlippageGrowsWithSize(t *testing.T) {
	m := NewExecutionModel(SlippagePercentage, 0.001)

	small, _ := m.ExecutionPrice(100, 10, book.Buy, BarData{})
	large, _ := m.ExecutionPrice(100, 1000, book.Buy, BarData{})

	assert.Greater(t, large, small)
}

func TestExecutionImpactWalksDepth(t *testing.T) {
	m := NewExecutionModel(SlippageImpact, 0.001)
	bar := barWithDepth(100)

	// 150 takes the full first ask level and half the second.
	price, filled := m.ExecutionPrice(100, 150, book.Buy, bar)
	require.True(t, filled)
	// avg fill = (100*100.05 + 50*100.10)/150, charged at ImpactFactor.
	avg := (100*100.05 + 50*100.10) / 150
	assert.InDelta(t, 100+(avg-100)*0.1, price, 1e-9)

	// No depth falls back to fixed slippage.
	fallback, _ := m.ExecutionPrice(100, 150, book.Buy, BarData{})
	assert.InDelta(t, 100.1, fallback, 1e-9)
}

func TestExecutionFillProbabilityZeroNeverFills(t *testing.T) {
	m := NewExecutionModel(SlippageFixed, 0).WithSeed(1)
	m.FillProbability = 0

	for i := 0; i < 20; i++ {
		_, filled := m.ExecutionPrice(100, 10, book.Buy, BarData{})
		assert.False(t, filled)
	}
}

func TestPortfolioBuySellRoundTrip(t *testing.T) {
	exec := NewExecutionModel(SlippageFixed, 0)
	p := NewPortfolio(10000, exec)
	bar := barWithDepth(100)

	require.True(t, p.Buy("AAPL", 10, bar, 1))
	assert.InDelta(t, 9000, p.Cash(), 1e-9)
	assert.InDelta(t, 10, p.Position("AAPL"), 1e-9)

	require.True(t, p.Sell("AAPL", 10, barWithDepth(110), 2))
	assert.InDelta(t, 10100, p.Cash(), 1e-9)
	assert.Zero(t, p.Position("AAPL"))
	assert.Len(t, p.Trades(), 2)
}

func TestPortfolioRejectsUnaffordableBuy(t *testing.T) {
	p := NewPortfolio(100, NewExecutionModel(SlippageFixed, 0))

	assert.False(t, p.Buy("AAPL", 10, barWithDepth(100), 1))
	assert.InDelta(t, 100, p.Cash(), 1e-9)
	assert.Empty(t, p.Trades())
}

func TestPortfolioPerformance(t *testing.T) {
	p := NewPortfolio(10000, NewExecutionModel(SlippageFixed, 0))
	bar := barWithDepth(100)

	require.True(t, p.Buy("AAPL", 50, bar, 1))
	p.MarkToMarket(map[string]float64{"AAPL": 100}, 1)
	p.MarkToMarket(map[string]float64{"AAPL": 120}, 2)
	p.MarkToMarket(map[string]float64{"AAPL": 90}, 3)

	perf := p.Performance()
	assert.InDelta(t, 9500+50*90, perf.FinalEquity, 1e-9)
	assert.InDelta(t, perf.FinalEquity/10000-1, perf.TotalReturn, 1e-9)
	assert.Equal(t, 1, perf.TotalTrades)

	// Peak equity was 11000 at the second mark.
	assert.InDelta(t, 1-10000.0/11000.0, perf.MaxDrawdown, 1e-9)
	assert.Greater(t, perf.Volatility, 0.0)
}

func TestImbalanceStrategyEntersWithTheFlow(t *testing.T) {
	strat := NewImbalanceStrategy([]string{"AAPL"}, ImbalanceStrategyConfig{
		LookbackWindow: 5,
		EntryThreshold: 1.0,
	})
	p := NewPortfolio(100000, NewExecutionModel(SlippageFixed, 0))
	strat.Initialize()

	bar := func(imb float64) map[string]BarData {
		return map[string]BarData{"AAPL": {Symbol: "AAPL", MidPrice: 100, Imbalance: imb, HasImbalance: true}}
	}

	for ts := int64(1); ts <= 4; ts++ {
		strat.OnBar(ts, bar(0), p)
	}
	assert.Zero(t, p.Position("AAPL"))

	// A spike two standard deviations above the window mean enters long.
	strat.OnBar(5, bar(0.9), p)
	assert.Greater(t, p.Position("AAPL"), 0.0)
	require.Len(t, p.Trades(), 1)
	assert.Equal(t, book.Buy, p.Trades()[0].Side)
}

func TestImbalanceStrategyStopLoss(t *testing.T) {
	strat := NewImbalanceStrategy([]string{"AAPL"}, ImbalanceStrategyConfig{
		LookbackWindow: 5,
		EntryThreshold: 1.0,
		StopLoss:       0.02,
	})
	p := NewPortfolio(100000, NewExecutionModel(SlippageFixed, 0))
	strat.Initialize()

	bar := func(imb, mid float64) map[string]BarData {
		return map[string]BarData{"AAPL": {Symbol: "AAPL", MidPrice: mid, Imbalance: imb, HasImbalance: true}}
	}

	for ts := int64(1); ts <= 4; ts++ {
		strat.OnBar(ts, bar(0, 100), p)
	}
	strat.OnBar(5, bar(0.9, 100), p)
	require.Greater(t, p.Position("AAPL"), 0.0)

	// A 3% drop breaches the 2% stop and flattens the position.
	strat.OnBar(6, bar(0.9, 97), p)
	assert.Zero(t, p.Position("AAPL"))
}

func TestEngineRun(t *testing.T) {
	strat := NewImbalanceStrategy([]string{"AAPL"}, ImbalanceStrategyConfig{
		LookbackWindow: 3,
		EntryThreshold: 1.0,
	})
	p := NewPortfolio(100000, NewExecutionModel(SlippageFixed, 0))
	engine := NewEngine(strat, p)

	slice := func(ts int64, imb, mid float64) Slice {
		return Slice{Timestamp: ts, Data: map[string]BarData{
			"AAPL": {Symbol: "AAPL", MidPrice: mid, Imbalance: imb, HasImbalance: true},
		}}
	}
	// Out of order on purpose.
	slices := []Slice{
		slice(3, 0.9, 100),
		slice(1, 0, 100),
		slice(2, 0, 100),
		slice(4, 0, 105),
	}

	// The spike at ts=3 enters long; the reversal at ts=4 exits at a
	// higher mid, so the run closes flat and profitable.
	perf, err := engine.Run(context.Background(), slices)
	require.NoError(t, err)
	assert.Equal(t, 2, perf.TotalTrades)
	assert.Zero(t, p.Position("AAPL"))
	assert.Greater(t, perf.TotalReturn, 0.0)
	assert.Len(t, p.EquityCurve(), 4)
}

func TestEngineUninitialized(t *testing.T) {
	_, err := (&Engine{}).Run(context.Background(), nil)
	assert.Error(t, err)
}
