// Package analytics derives rolling market-microstructure metrics from
// order book depth and trade prints: mid, spread, order imbalance,
// price impact of a standard probe size, realized volatility, VWAP and
// flow-quality ratios. State is windowed per symbol; the windows are
// bounded analytic state, not an event log of the book.
package analytics

import (
	"math"
	"time"

	"github.com/joripage/microbook/pkg/book"
	"github.com/montanaflynn/stats"
)

const (
	DefaultWindowSize = 100

	// probeSize is the standard hypothetical order size used for the
	// price impact column of Metrics.
	probeSize = 100.0

	// Trading seconds in a year of 252 sessions of 6.5 hours, used to
	// annualize the realized volatility of per-update log returns.
	annualizationSeconds = 252 * 6.5 * 60 * 60
)

type Metrics struct {
	Symbol             string  `json:"symbol"`
	Timestamp          int64   `json:"timestamp"`
	MidPrice           float64 `json:"mid_price"`
	Spread             float64 `json:"spread"`
	OrderImbalance     float64 `json:"order_imbalance"`
	PriceImpact        float64 `json:"price_impact"`
	RealizedVolatility float64 `json:"realized_volatility"`
}

// Point is one (timestamp, value) sample of a metric history.
type Point struct {
	Timestamp int64
	Value     float64
}

type OrderAction string

const (
	OrderActionAdd    OrderAction = "add"
	OrderActionModify OrderAction = "modify"
	OrderActionCancel OrderAction = "cancel"
)

type orderRecord struct {
	Timestamp int64
	OrderID   string
	Action    OrderAction
	Price     float64
	Qty       float64
	Side      book.Side
}

type tradeRecord struct {
	Timestamp int64
	Price     float64
	Qty       float64
	Side      book.Side
}

// Analyzer keeps rolling per-symbol windows of metrics, order events
// and trades. Not safe for concurrent use; it is owned by whoever owns
// the event stream (the feed handler in this repo).
type Analyzer struct {
	windowSize int
	metrics    map[string][]Metrics
	orders     map[string][]orderRecord
	trades     map[string][]tradeRecord
}

func NewAnalyzer(windowSize int) *Analyzer {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Analyzer{
		windowSize: windowSize,
		metrics:    make(map[string][]Metrics),
		orders:     make(map[string][]orderRecord),
		trades:     make(map[string][]tradeRecord),
	}
}

// ProcessBook folds a depth snapshot into the symbol's window and
// returns the metrics derived from it. Bids and asks must be in
// priority order (best first), which is what book depth queries return.
func (a *Analyzer) ProcessBook(symbol string, timestamp int64, bids, asks []book.Level) Metrics {
	var mid, spread float64
	if len(bids) > 0 && len(asks) > 0 {
		mid = (bids[0].Price + asks[0].Price) / 2
		spread = asks[0].Price - bids[0].Price
	}

	bidVolume := sumVolume(bids, book.DefaultImbalanceDepth)
	askVolume := sumVolume(asks, book.DefaultImbalanceDepth)
	imbalance := 0.0
	if total := bidVolume + askVolume; total > 0 {
		imbalance = (bidVolume - askVolume) / total
	}

	m := Metrics{
		Symbol:             symbol,
		Timestamp:          timestamp,
		MidPrice:           mid,
		Spread:             spread,
		OrderImbalance:     imbalance,
		PriceImpact:        priceImpact(bids, asks),
		RealizedVolatility: a.realizedVolatility(symbol, mid),
	}

	a.metrics[symbol] = appendBounded(a.metrics[symbol], m, a.windowSize)
	return m
}

// ProcessTrade records a trade print for VWAP and flow ratios.
func (a *Analyzer) ProcessTrade(symbol string, timestamp int64, price, qty float64, side book.Side) {
	a.trades[symbol] = appendBounded(a.trades[symbol], tradeRecord{
		Timestamp: timestamp,
		Price:     price,
		Qty:       qty,
		Side:      side,
	}, a.windowSize)
}

// ProcessOrder records an order event (add/modify/cancel).
func (a *Analyzer) ProcessOrder(symbol string, timestamp int64, orderID string, action OrderAction, price, qty float64, side book.Side) {
	a.orders[symbol] = appendBounded(a.orders[symbol], orderRecord{
		Timestamp: timestamp,
		OrderID:   orderID,
		Action:    action,
		Price:     price,
		Qty:       qty,
		Side:      side,
	}, a.windowSize)
}

// VWAP returns the volume-weighted average trade price over the
// inclusive [start, end] nanosecond range, or 0 without trades.
func (a *Analyzer) VWAP(symbol string, start, end int64) float64 {
	var volume, weighted float64
	for _, t := range a.trades[symbol] {
		if t.Timestamp < start || t.Timestamp > end {
			continue
		}
		volume += t.Qty
		weighted += t.Price * t.Qty
	}
	if volume == 0 {
		return 0
	}
	return weighted / volume
}

// TradeToCancelRatio compares trade prints against cancels inside the
// trailing window ending at the most recent event. A ratio below 1
// suggests quote churn; +Inf means no cancels were seen at all.
func (a *Analyzer) TradeToCancelRatio(symbol string, window time.Duration) float64 {
	trades := a.trades[symbol]
	orders := a.orders[symbol]
	if len(trades) == 0 || len(orders) == 0 {
		return 0
	}

	latest := trades[len(trades)-1].Timestamp
	if ts := orders[len(orders)-1].Timestamp; ts > latest {
		latest = ts
	}
	cutoff := latest - window.Nanoseconds()

	tradeCount, cancelCount := 0, 0
	for _, t := range trades {
		if t.Timestamp >= cutoff {
			tradeCount++
		}
	}
	for _, o := range orders {
		if o.Timestamp >= cutoff && o.Action == OrderActionCancel {
			cancelCount++
		}
	}

	if cancelCount == 0 {
		return math.Inf(1)
	}
	return float64(tradeCount) / float64(cancelCount)
}

// DetectToxicFlow scores the last ten metric samples. The score grows
// with sustained one-sided imbalance, high impact, volatility, and
// imbalance variance.
func (a *Analyzer) DetectToxicFlow(symbol string, threshold float64) bool {
	window := a.metrics[symbol]
	if len(window) < 10 {
		return false
	}
	window = window[len(window)-10:]

	imbalances := make([]float64, len(window))
	impacts := make([]float64, len(window))
	vols := make([]float64, len(window))
	for i, m := range window {
		imbalances[i] = m.OrderImbalance
		impacts[i] = m.PriceImpact
		vols[i] = m.RealizedVolatility
	}

	meanImbalance, _ := stats.Mean(imbalances)
	meanImpact, _ := stats.Mean(impacts)
	meanVol, _ := stats.Mean(vols)
	stdImbalance, _ := stats.StandardDeviation(imbalances)

	score := math.Abs(meanImbalance) * meanImpact * (1 + meanVol) * (1 + stdImbalance)
	return score > threshold
}

// History returns the windowed samples of one metric by name:
// mid_price, spread, order_imbalance, price_impact, realized_volatility.
func (a *Analyzer) History(symbol, metric string) []Point {
	window := a.metrics[symbol]
	points := make([]Point, 0, len(window))
	for _, m := range window {
		p := Point{Timestamp: m.Timestamp}
		switch metric {
		case "mid_price":
			p.Value = m.MidPrice
		case "spread":
			p.Value = m.Spread
		case "order_imbalance":
			p.Value = m.OrderImbalance
		case "price_impact":
			p.Value = m.PriceImpact
		case "realized_volatility":
			p.Value = m.RealizedVolatility
		default:
			return nil
		}
		points = append(points, p)
	}
	return points
}

// priceImpact walks both sides with the standard probe size and returns
// the average adverse move relative to mid, normalized by mid.
// Unfilled remainder is penalized at 5% beyond the touch.
func priceImpact(bids, asks []book.Level) float64 {
	if len(bids) == 0 || len(asks) == 0 {
		return 0
	}

	bestBid := bids[0].Price
	bestAsk := asks[0].Price
	mid := (bestBid + bestAsk) / 2
	if mid <= 0 {
		return 0
	}

	bidImpact := probeSide(bids, bestBid*0.95)
	askImpact := probeSide(asks, bestAsk*1.05)

	return ((askImpact - mid) + (mid - bidImpact)) / 2 / mid
}

// probeSide fills probeSize against the levels, pricing any remainder
// at the penalty price, and returns the average fill price.
func probeSide(levels []book.Level, penaltyPrice float64) float64 {
	remaining := probeSize
	var notional float64
	for _, l := range levels {
		fill := min(remaining, l.Volume)
		notional += fill * l.Price
		remaining -= fill
		if remaining <= 0 {
			break
		}
	}
	if remaining > 0 {
		notional += remaining * penaltyPrice
	}
	return notional / probeSize
}

// realizedVolatility computes the annualized standard deviation of log
// returns over the windowed mids plus the incoming one.
func (a *Analyzer) realizedVolatility(symbol string, currentMid float64) float64 {
	window := a.metrics[symbol]
	if len(window) < 1 || currentMid <= 0 {
		return 0
	}

	prices := make([]float64, 0, len(window)+1)
	for _, m := range window {
		if m.MidPrice > 0 {
			prices = append(prices, m.MidPrice)
		}
	}
	prices = append(prices, currentMid)
	if len(prices) < 2 {
		return 0
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns[i-1] = math.Log(prices[i] / prices[i-1])
	}

	std, err := stats.StandardDeviation(returns)
	if err != nil {
		return 0
	}
	return std * math.Sqrt(annualizationSeconds)
}

func sumVolume(levels []book.Level, depth int) float64 {
	var total float64
	for i, l := range levels {
		if i >= depth {
			break
		}
		total += l.Volume
	}
	return total
}

func appendBounded[T any](window []T, item T, size int) []T {
	window = append(window, item)
	if len(window) > size {
		window = window[len(window)-size:]
	}
	return window
}
