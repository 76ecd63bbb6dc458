package analytics

import (
	"math"

	"github.com/joripage/microbook/pkg/book"
	"github.com/montanaflynn/stats"
)

// Default toxicity decision threshold for the weighted factor score.
const DefaultToxicThreshold = 0.6

// FlowFactor is one named contribution to a toxicity score, each
// normalized into [0, 1].
type FlowFactor struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
}

// FlowStatus is the latest toxicity verdict for a symbol.
type FlowStatus struct {
	Symbol     string       `json:"symbol"`
	Timestamp  int64        `json:"timestamp"`
	IsToxic    bool         `json:"is_toxic"`
	Confidence float64      `json:"confidence"`
	Factors    []FlowFactor `json:"factors"`
}

type flowValue struct {
	Timestamp int64
	Value     float64
}

// ToxicFlowDetector scores order flow for toxicity from windowed order,
// cancel, trade and book-metric histories. Scores refresh every
// updateFrequency order or trade events. Not safe for concurrent use.
type ToxicFlowDetector struct {
	windowSize      int
	updateFrequency int
	threshold       float64

	orders    map[string][]orderRecord
	cancels   map[string][]flowValue
	trades    map[string][]tradeRecord
	imbalance map[string][]flowValue
	impact    map[string][]flowValue
	vol       map[string][]flowValue

	status map[string]FlowStatus
}

func NewToxicFlowDetector(windowSize, updateFrequency int, threshold float64) *ToxicFlowDetector {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if updateFrequency <= 0 {
		updateFrequency = 10
	}
	if threshold <= 0 {
		threshold = DefaultToxicThreshold
	}
	return &ToxicFlowDetector{
		windowSize:      windowSize,
		updateFrequency: updateFrequency,
		threshold:       threshold,
		orders:          make(map[string][]orderRecord),
		cancels:         make(map[string][]flowValue),
		trades:          make(map[string][]tradeRecord),
		imbalance:       make(map[string][]flowValue),
		impact:          make(map[string][]flowValue),
		vol:             make(map[string][]flowValue),
		status:          make(map[string]FlowStatus),
	}
}

func (d *ToxicFlowDetector) ProcessOrder(symbol string, timestamp int64, orderID string, price, qty float64, side book.Side) {
	d.orders[symbol] = appendBounded(d.orders[symbol], orderRecord{
		Timestamp: timestamp,
		OrderID:   orderID,
		Action:    OrderActionAdd,
		Price:     price,
		Qty:       qty,
		Side:      side,
	}, d.windowSize)

	if len(d.orders[symbol])%d.updateFrequency == 0 {
		d.updateScore(symbol, timestamp)
	}
}

func (d *ToxicFlowDetector) ProcessCancel(symbol string, timestamp int64, orderID string) {
	d.cancels[symbol] = appendBounded(d.cancels[symbol], flowValue{Timestamp: timestamp}, d.windowSize)
}

func (d *ToxicFlowDetector) ProcessTrade(symbol string, timestamp int64, price, qty float64, side book.Side) {
	d.trades[symbol] = appendBounded(d.trades[symbol], tradeRecord{
		Timestamp: timestamp,
		Price:     price,
		Qty:       qty,
		Side:      side,
	}, d.windowSize)

	if len(d.trades[symbol])%d.updateFrequency == 0 {
		d.updateScore(symbol, timestamp)
	}
}

// ProcessMetrics folds one analyzer sample into the detector windows
// and refreshes the score.
func (d *ToxicFlowDetector) ProcessMetrics(m Metrics) {
	d.imbalance[m.Symbol] = appendBounded(d.imbalance[m.Symbol], flowValue{m.Timestamp, m.OrderImbalance}, d.windowSize)
	d.impact[m.Symbol] = appendBounded(d.impact[m.Symbol], flowValue{m.Timestamp, m.PriceImpact}, d.windowSize)
	d.vol[m.Symbol] = appendBounded(d.vol[m.Symbol], flowValue{m.Timestamp, m.RealizedVolatility}, d.windowSize)

	d.updateScore(m.Symbol, m.Timestamp)
}

// Status returns the latest verdict for a symbol. Symbols never scored
// report non-toxic with zero confidence.
func (d *ToxicFlowDetector) Status(symbol string) FlowStatus {
	if s, ok := d.status[symbol]; ok {
		return s
	}
	return FlowStatus{Symbol: symbol}
}

func (d *ToxicFlowDetector) updateScore(symbol string, timestamp int64) {
	factors := []FlowFactor{
		{Name: "Cancel/Trade Ratio", Contribution: math.Min(1, d.cancelTradeRatio(symbol)/10)},
		{Name: "Order Imbalance", Contribution: math.Min(1, math.Abs(d.orderFlowImbalance(symbol)))},
		{Name: "Price Impact", Contribution: math.Min(1, meanValue(d.impact[symbol])/0.0005)},
		{Name: "Recent Volatility", Contribution: math.Min(1, meanValue(d.vol[symbol])/0.002)},
		{Name: "Large Orders", Contribution: math.Min(1, d.largeOrderRatio(symbol)*2)},
	}

	weights := []float64{0.25, 0.20, 0.20, 0.15, 0.20}
	var score float64
	for i, f := range factors {
		score += f.Contribution * weights[i]
	}

	isToxic := score > d.threshold
	confidence := score
	if !isToxic {
		confidence = 1 - score
	}

	d.status[symbol] = FlowStatus{
		Symbol:     symbol,
		Timestamp:  timestamp,
		IsToxic:    isToxic,
		Confidence: confidence,
		Factors:    factors,
	}
}

func (d *ToxicFlowDetector) cancelTradeRatio(symbol string) float64 {
	trades := len(d.trades[symbol])
	cancels := len(d.cancels[symbol])
	if trades == 0 {
		if cancels == 0 {
			return 0
		}
		// All cancels, no prints: cap at a hard ceiling.
		return 100
	}
	return float64(cancels) / float64(trades)
}

func (d *ToxicFlowDetector) orderFlowImbalance(symbol string) float64 {
	var buyVolume, sellVolume float64
	for _, o := range d.orders[symbol] {
		if o.Side == book.Buy {
			buyVolume += o.Qty
		} else {
			sellVolume += o.Qty
		}
	}
	total := buyVolume + sellVolume
	if total <= 0 {
		return 0
	}
	return (buyVolume - sellVolume) / total
}

func (d *ToxicFlowDetector) largeOrderRatio(symbol string) float64 {
	orders := d.orders[symbol]
	if len(orders) == 0 {
		return 0
	}

	sizes := make([]float64, len(orders))
	for i, o := range orders {
		sizes[i] = o.Qty
	}
	avg, err := stats.Mean(sizes)
	if err != nil || avg == 0 {
		return 0
	}

	large := 0
	for _, size := range sizes {
		if size > 2*avg {
			large++
		}
	}
	return float64(large) / float64(len(sizes))
}

func meanValue(values []flowValue) float64 {
	if len(values) == 0 {
		return 0
	}
	raw := make([]float64, len(values))
	for i, v := range values {
		raw[i] = v.Value
	}
	mean, err := stats.Mean(raw)
	if err != nil {
		return 0
	}
	return mean
}
