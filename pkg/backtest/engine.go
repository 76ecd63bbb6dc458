package backtest

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/joripage/microbook/pkg/logging"
)

// Slice is all symbol data for one bar timestamp.
type Slice struct {
	Timestamp int64
	Data      map[string]BarData
}

// Engine replays bar slices through a strategy in timestamp order and
// marks the portfolio after every bar.
type Engine struct {
	strategy  Strategy
	portfolio *Portfolio
}

func NewEngine(strategy Strategy, portfolio *Portfolio) *Engine {
	return &Engine{strategy: strategy, portfolio: portfolio}
}

// Run replays the slices and returns the run performance. Slices are
// sorted by timestamp before replay.
func (e *Engine) Run(ctx context.Context, slices []Slice) (Performance, error) {
	if e.strategy == nil || e.portfolio == nil {
		return Performance{}, errors.New("engine not initialized")
	}

	sort.SliceStable(slices, func(i, j int) bool { return slices[i].Timestamp < slices[j].Timestamp })
	e.strategy.Initialize()

	log, ctx := logging.GetLogger(ctx)
	for _, slice := range slices {
		if err := ctx.Err(); err != nil {
			return e.portfolio.Performance(), err
		}

		e.strategy.OnBar(slice.Timestamp, slice.Data, e.portfolio)

		prices := make(map[string]float64, len(slice.Data))
		for symbol, bar := range slice.Data {
			if bar.MidPrice > 0 {
				prices[symbol] = bar.MidPrice
			}
		}
		e.portfolio.MarkToMarket(prices, slice.Timestamp)
	}

	perf := e.portfolio.Performance()
	log.Info(ctx, "backtest finished",
		zap.Int("bars", len(slices)),
		zap.Int("trades", perf.TotalTrades),
		zap.Float64("total_return", perf.TotalReturn),
		zap.Float64("max_drawdown", perf.MaxDrawdown))
	return perf, nil
}
