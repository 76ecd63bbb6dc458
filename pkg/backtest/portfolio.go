package backtest

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/joripage/microbook/pkg/book"
)

const tradingDaysPerYear = 252

// Trade is one executed portfolio transaction.
type Trade struct {
	Timestamp int64
	Symbol    string
	Side      book.Side
	Qty       float64
	Price     float64
	Cash      float64
}

// EquityPoint is one mark-to-market sample of total portfolio value.
type EquityPoint struct {
	Timestamp int64
	Equity    float64
}

// Portfolio tracks cash, signed positions, and the equity curve of a
// backtest run.
type Portfolio struct {
	initialCapital float64
	cash           float64
	positions      map[string]float64
	exec           *ExecutionModel

	equityCurve []EquityPoint
	trades      []Trade
}

func NewPortfolio(initialCapital float64, exec *ExecutionModel) *Portfolio {
	if exec == nil {
		exec = NewExecutionModel(SlippageFixed, 0.0001)
	}
	return &Portfolio{
		initialCapital: initialCapital,
		cash:           initialCapital,
		positions:      make(map[string]float64),
		exec:           exec,
	}
}

// Buy executes a market buy at the bar's reference price. Returns
// false when cash is insufficient or the fill lottery misses.
func (p *Portfolio) Buy(symbol string, qty float64, bar BarData, timestamp int64) bool {
	price := bar.MidPrice
	if price <= 0 || qty <= 0 {
		return false
	}
	if p.cash < qty*price {
		return false
	}
	execPrice, filled := p.exec.ExecutionPrice(price, qty, book.Buy, bar)
	if !filled {
		return false
	}

	p.positions[symbol] += qty
	p.cash -= qty * execPrice
	p.trades = append(p.trades, Trade{Timestamp: timestamp, Symbol: symbol, Side: book.Buy, Qty: qty, Price: execPrice, Cash: p.cash})
	return true
}

// Sell executes a market sell at the bar's reference price. Short
// positions are allowed.
func (p *Portfolio) Sell(symbol string, qty float64, bar BarData, timestamp int64) bool {
	price := bar.MidPrice
	if price <= 0 || qty <= 0 {
		return false
	}
	execPrice, filled := p.exec.ExecutionPrice(price, qty, book.Sell, bar)
	if !filled {
		return false
	}

	p.positions[symbol] -= qty
	p.cash += qty * execPrice
	p.trades = append(p.trades, Trade{Timestamp: timestamp, Symbol: symbol, Side: book.Sell, Qty: qty, Price: execPrice, Cash: p.cash})
	return true
}

// Position returns the signed position for a symbol.
func (p *Portfolio) Position(symbol string) float64 {
	return p.positions[symbol]
}

func (p *Portfolio) Cash() float64 {
	return p.cash
}

func (p *Portfolio) Trades() []Trade {
	return p.trades
}

func (p *Portfolio) EquityCurve() []EquityPoint {
	return p.equityCurve
}

// MarkToMarket values all positions at the given prices and appends
// the sample to the equity curve.
func (p *Portfolio) MarkToMarket(prices map[string]float64, timestamp int64) float64 {
	equity := p.cash
	for symbol, qty := range p.positions {
		if price, ok := prices[symbol]; ok {
			equity += qty * price
		}
	}
	p.equityCurve = append(p.equityCurve, EquityPoint{Timestamp: timestamp, Equity: equity})
	return equity
}

// Equity returns the latest marked equity, or the initial capital
// before the first mark.
func (p *Portfolio) Equity() float64 {
	if len(p.equityCurve) == 0 {
		return p.initialCapital
	}
	return p.equityCurve[len(p.equityCurve)-1].Equity
}

// Performance summarizes a completed run.
type Performance struct {
	TotalReturn      float64
	AnnualizedReturn float64
	Volatility       float64
	SharpeRatio      float64
	MaxDrawdown      float64
	TotalTrades      int
	FinalEquity      float64
}

// Performance computes run statistics off the equity curve. Bars are
// treated as daily for annualization.
func (p *Portfolio) Performance() Performance {
	perf := Performance{
		TotalTrades: len(p.trades),
		FinalEquity: p.Equity(),
	}
	if len(p.equityCurve) == 0 || p.initialCapital <= 0 {
		return perf
	}

	perf.TotalReturn = p.Equity()/p.initialCapital - 1

	returns := make([]float64, 0, len(p.equityCurve)-1)
	for i := 1; i < len(p.equityCurve); i++ {
		prev := p.equityCurve[i-1].Equity
		if prev > 0 {
			returns = append(returns, p.equityCurve[i].Equity/prev-1)
		}
	}
	if len(returns) > 0 {
		perf.AnnualizedReturn = math.Pow(1+perf.TotalReturn, float64(tradingDaysPerYear)/float64(len(returns))) - 1
		if sd, err := stats.StandardDeviation(stats.Float64Data(returns)); err == nil {
			perf.Volatility = sd * math.Sqrt(tradingDaysPerYear)
		}
		if perf.Volatility > 0 {
			perf.SharpeRatio = perf.AnnualizedReturn / perf.Volatility
		}
	}

	peak := p.equityCurve[0].Equity
	for _, pt := range p.equityCurve {
		if pt.Equity > peak {
			peak = pt.Equity
		}
		if peak > 0 {
			dd := 1 - pt.Equity/peak
			if dd > perf.MaxDrawdown {
				perf.MaxDrawdown = dd
			}
		}
	}
	return perf
}
