package backtest

import (
	"github.com/montanaflynn/stats"

	"github.com/joripage/microbook/pkg/book"
)

// BarData is the per-symbol market snapshot handed to a strategy on
// each bar.
type BarData struct {
	Symbol       string
	MidPrice     float64
	Imbalance    float64
	HasImbalance bool
	Bids         []book.Level
	Asks         []book.Level
}

// Strategy reacts to bars by trading against the portfolio.
type Strategy interface {
	Initialize()
	OnBar(timestamp int64, data map[string]BarData, portfolio *Portfolio)
}

// ImbalanceStrategyConfig parameterizes ImbalanceStrategy. Zero
// values fall back to the defaults.
type ImbalanceStrategyConfig struct {
	LookbackWindow int
	EntryThreshold float64
	ExitThreshold  float64
	PositionSize   float64 // fraction of equity per entry
	StopLoss       float64 // fractional adverse move that forces an exit
}

// ImbalanceStrategy trades z-scored order imbalance: enter with the
// flow when the current imbalance is extreme versus its own recent
// history, exit on reversal or stop loss.
type ImbalanceStrategy struct {
	cfg ImbalanceStrategyConfig

	symbols     []string
	history     map[string][]float64
	entryPrices map[string]float64
}

func NewImbalanceStrategy(symbols []string, cfg ImbalanceStrategyConfig) *ImbalanceStrategy {
	if cfg.LookbackWindow <= 0 {
		cfg.LookbackWindow = 20
	}
	if cfg.EntryThreshold == 0 {
		cfg.EntryThreshold = 0.7
	}
	if cfg.ExitThreshold == 0 {
		cfg.ExitThreshold = 0.3
	}
	if cfg.PositionSize == 0 {
		cfg.PositionSize = 0.1
	}
	if cfg.StopLoss == 0 {
		cfg.StopLoss = 0.02
	}
	return &ImbalanceStrategy{cfg: cfg, symbols: symbols}
}

func (s *ImbalanceStrategy) Initialize() {
	s.history = make(map[string][]float64, len(s.symbols))
	s.entryPrices = make(map[string]float64)
}

func (s *ImbalanceStrategy) OnBar(timestamp int64, data map[string]BarData, portfolio *Portfolio) {
	for _, symbol := range s.symbols {
		bar, ok := data[symbol]
		if !ok {
			continue
		}

		imbalance := bar.Imbalance
		if !bar.HasImbalance {
			imbalance = depthImbalance(bar)
		}

		hist := append(s.history[symbol], imbalance)
		if len(hist) > s.cfg.LookbackWindow {
			hist = hist[len(hist)-s.cfg.LookbackWindow:]
		}
		s.history[symbol] = hist
		if len(hist) < s.cfg.LookbackWindow {
			continue
		}

		zscore := normalize(imbalance, hist)
		price := bar.MidPrice
		if price <= 0 {
			continue
		}
		position := portfolio.Position(symbol)

		switch {
		case position == 0:
			if zscore > s.cfg.EntryThreshold {
				qty := portfolio.Equity() * s.cfg.PositionSize / price
				if portfolio.Buy(symbol, qty, bar, timestamp) {
					s.entryPrices[symbol] = price
				}
			} else if zscore < -s.cfg.EntryThreshold {
				qty := portfolio.Equity() * s.cfg.PositionSize / price
				if portfolio.Sell(symbol, qty, bar, timestamp) {
					s.entryPrices[symbol] = price
				}
			}
		case position > 0:
			entry, hasEntry := s.entryPrices[symbol]
			if zscore < -s.cfg.ExitThreshold || (hasEntry && price < entry*(1-s.cfg.StopLoss)) {
				portfolio.Sell(symbol, position, bar, timestamp)
				delete(s.entryPrices, symbol)
			}
		default:
			entry, hasEntry := s.entryPrices[symbol]
			if zscore > s.cfg.ExitThreshold || (hasEntry && price > entry*(1+s.cfg.StopLoss)) {
				portfolio.Buy(symbol, -position, bar, timestamp)
				delete(s.entryPrices, symbol)
			}
		}
	}
}

// depthImbalance derives imbalance from the top five levels of the
// bar's depth when no precomputed value rode in with it.
func depthImbalance(bar BarData) float64 {
	var bidVol, askVol float64
	for i, l := range bar.Bids {
		if i >= book.DefaultImbalanceDepth {
			break
		}
		bidVol += l.Volume
	}
	for i, l := range bar.Asks {
		if i >= book.DefaultImbalanceDepth {
			break
		}
		askVol += l.Volume
	}
	total := bidVol + askVol
	if total <= 0 {
		return 0
	}
	return (bidVol - askVol) / total
}

func normalize(value float64, hist []float64) float64 {
	mean, err := stats.Mean(stats.Float64Data(hist))
	if err != nil {
		return 0
	}
	sd, err := stats.StandardDeviation(stats.Float64Data(hist))
	if err != nil || sd <= 0 {
		return 0
	}
	return (value - mean) / sd
}
