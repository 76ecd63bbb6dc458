package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/joripage/microbook/pkg/backtest"
	"github.com/joripage/microbook/pkg/book"
	"github.com/joripage/microbook/pkg/marketdata"
)

func main() {
	var tickFile string
	var synthetic int
	var symbol string
	var intervalMs int
	var capital float64
	var lookback int
	var entry, exit, stopLoss float64
	flag.StringVar(&tickFile, "tick-file", "", "CSV tick file to replay")
	flag.IntVar(&synthetic, "synthetic", 0, "Generate this many synthetic ticks instead of replaying a file")
	flag.StringVar(&symbol, "symbol", "SYN", "Symbol for synthetic ticks")
	flag.IntVar(&intervalMs, "interval-ms", 1000, "Bar interval in milliseconds")
	flag.Float64Var(&capital, "capital", 1_000_000, "Initial capital")
	flag.IntVar(&lookback, "lookback", 20, "Imbalance lookback window")
	flag.Float64Var(&entry, "entry", 0.7, "Entry z-score threshold")
	flag.Float64Var(&exit, "exit", 0.3, "Exit z-score threshold")
	flag.Float64Var(&stopLoss, "stop-loss", 0.02, "Stop loss fraction")
	flag.Parse()

	var ticks []marketdata.Tick
	var err error
	switch {
	case tickFile != "":
		ticks, err = marketdata.LoadCSV(tickFile, 0, 0)
		if err != nil {
			panic(err)
		}
	case synthetic > 0:
		ticks = marketdata.Generate(marketdata.GeneratorConfig{Symbol: symbol, Seed: 1}, 0, synthetic)
	default:
		fmt.Println("nothing to replay: pass -tick-file or -synthetic")
		return
	}

	slices := buildSlices(ticks, time.Duration(intervalMs)*time.Millisecond)
	if len(slices) == 0 {
		fmt.Println("no bars produced from input")
		return
	}

	strat := backtest.NewImbalanceStrategy(symbols(slices), backtest.ImbalanceStrategyConfig{
		LookbackWindow: lookback,
		EntryThreshold: entry,
		ExitThreshold:  exit,
		StopLoss:       stopLoss,
	})
	portfolio := backtest.NewPortfolio(capital, backtest.NewExecutionModel(backtest.SlippageImpact, 0.0001))
	engine := backtest.NewEngine(strat, portfolio)

	perf, err := engine.Run(context.Background(), slices)
	if err != nil {
		panic(err)
	}

	fmt.Printf("bars              : %d\n", len(slices))
	fmt.Printf("trades            : %d\n", perf.TotalTrades)
	fmt.Printf("final equity      : %.2f\n", perf.FinalEquity)
	fmt.Printf("total return      : %.4f%%\n", perf.TotalReturn*100)
	fmt.Printf("annualized return : %.4f%%\n", perf.AnnualizedReturn*100)
	fmt.Printf("volatility        : %.4f\n", perf.Volatility)
	fmt.Printf("sharpe ratio      : %.4f\n", perf.SharpeRatio)
	fmt.Printf("max drawdown      : %.4f%%\n", perf.MaxDrawdown*100)
}

// buildSlices replays order flow through per-symbol books and samples
// a bar at each interval boundary.
func buildSlices(ticks []marketdata.Tick, interval time.Duration) []backtest.Slice {
	registry := book.NewRegistry()
	step := interval.Nanoseconds()

	var slices []backtest.Slice
	var barStart int64 = -1

	flush := func(ts int64) {
		data := make(map[string]backtest.BarData)
		for _, symbol := range registry.Symbols() {
			b, ok := registry.Get(symbol)
			if !ok {
				continue
			}
			mid, hasMid := b.MidPrice()
			if !hasMid {
				continue
			}
			data[symbol] = backtest.BarData{
				Symbol:       symbol,
				MidPrice:     mid,
				Imbalance:    b.OrderImbalance(book.DefaultImbalanceDepth),
				HasImbalance: true,
				Bids:         b.BidLevels(book.DefaultDepth),
				Asks:         b.AskLevels(book.DefaultDepth),
			}
		}
		if len(data) > 0 {
			slices = append(slices, backtest.Slice{Timestamp: ts, Data: data})
		}
	}

	for _, t := range ticks {
		start := t.Timestamp - t.Timestamp%step
		if barStart >= 0 && start != barStart {
			flush(barStart)
		}
		barStart = start

		b := registry.GetOrCreate(t.Symbol)
		switch t.Type {
		case marketdata.EventAdd:
			_ = b.AddOrder(&book.Order{ID: t.OrderID, Price: t.Price, Qty: t.Qty, Side: t.Side, Timestamp: t.Timestamp})
		case marketdata.EventModify:
			_ = b.ModifyOrder(t.OrderID, t.Qty)
		case marketdata.EventCancel:
			_ = b.CancelOrder(t.OrderID)
		}
	}
	if barStart >= 0 {
		flush(barStart)
	}
	return slices
}

func symbols(slices []backtest.Slice) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range slices {
		for symbol := range s.Data {
			if !seen[symbol] {
				seen[symbol] = true
				out = append(out, symbol)
			}
		}
	}
	return out
}
