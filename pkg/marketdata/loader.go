// Package marketdata loads order flow from CSV tick files and can
// synthesize random-walk flow for testing and backtests.
package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joripage/microbook/pkg/book"
)

// EventType classifies one tick.
type EventType string

const (
	EventAdd    EventType = "add"
	EventModify EventType = "modify"
	EventCancel EventType = "cancel"
	EventTrade  EventType = "trade"
)

// Tick is one row of order flow.
type Tick struct {
	Timestamp int64
	Symbol    string
	Type      EventType
	OrderID   string
	Side      book.Side
	Price     float64
	Qty       float64
}

// Bar is one OHLCV aggregate of trade ticks.
type Bar struct {
	Start  int64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// csv column layout: timestamp,symbol,event_type,order_id,side,price,quantity
const csvColumns = 7

// LoadCSV reads ticks from a file. Start and end bound the accepted
// timestamps; zero means unbounded on that end. Rows come back sorted
// by timestamp.
func LoadCSV(path string, start, end int64) ([]Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tick file: %w", err)
	}
	defer f.Close()

	return ReadTicks(f, start, end)
}

// ReadTicks parses CSV tick rows from r. A header row is detected and
// skipped.
func ReadTicks(r io.Reader, start, end int64) ([]Tick, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = csvColumns

	var ticks []Tick
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tick row: %w", err)
		}
		line++
		if line == 1 && rec[0] == "timestamp" {
			continue
		}

		tick, err := parseTick(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		if start != 0 && tick.Timestamp < start {
			continue
		}
		if end != 0 && tick.Timestamp >= end {
			continue
		}
		ticks = append(ticks, tick)
	}

	sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].Timestamp < ticks[j].Timestamp })
	return ticks, nil
}

func parseTick(rec []string) (Tick, error) {
	ts, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return Tick{}, fmt.Errorf("bad timestamp %q: %w", rec[0], err)
	}

	typ := EventType(rec[2])
	switch typ {
	case EventAdd, EventModify, EventCancel, EventTrade:
	default:
		return Tick{}, fmt.Errorf("bad event type %q", rec[2])
	}

	side := book.Side(rec[4])
	if side != book.Buy && side != book.Sell {
		return Tick{}, fmt.Errorf("bad side %q", rec[4])
	}

	price, err := decimal.NewFromString(rec[5])
	if err != nil {
		return Tick{}, fmt.Errorf("bad price %q: %w", rec[5], err)
	}
	qty, err := decimal.NewFromString(rec[6])
	if err != nil {
		return Tick{}, fmt.Errorf("bad quantity %q: %w", rec[6], err)
	}

	return Tick{
		Timestamp: ts,
		Symbol:    rec[1],
		Type:      typ,
		OrderID:   rec[3],
		Side:      side,
		Price:     price.InexactFloat64(),
		Qty:       qty.InexactFloat64(),
	}, nil
}

// Bars aggregates trade ticks into fixed-interval OHLCV bars. Non
// trade ticks are ignored. Ticks must be sorted by timestamp.
func Bars(ticks []Tick, interval time.Duration) []Bar {
	if interval <= 0 {
		return nil
	}
	step := interval.Nanoseconds()

	var bars []Bar
	for _, t := range ticks {
		if t.Type != EventTrade {
			continue
		}
		start := t.Timestamp - t.Timestamp%step
		if len(bars) == 0 || bars[len(bars)-1].Start != start {
			bars = append(bars, Bar{Start: start, Open: t.Price, High: t.Price, Low: t.Price, Close: t.Price, Volume: t.Qty})
			continue
		}
		b := &bars[len(bars)-1]
		if t.Price > b.High {
			b.High = t.Price
		}
		if t.Price < b.Low {
			b.Low = t.Price
		}
		b.Close = t.Price
		b.Volume += t.Qty
	}
	return bars
}

// GeneratorConfig controls synthetic flow generation.
type GeneratorConfig struct {
	Symbol     string
	StartPrice float64
	TickSize   float64
	Volatility float64 // per-step stddev of the mid random walk
	TradeRatio float64 // fraction of events that are trades
	Seed       int64
}

// Generate produces n synthetic ticks: a random walk mid with resting
// orders placed around it, occasional cancels of live orders, and
// trades near the mid. Events are one millisecond apart starting at
// start.
func Generate(cfg GeneratorConfig, start int64, n int) []Tick {
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = 100
	}
	if cfg.TickSize <= 0 {
		cfg.TickSize = 0.01
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = 0.02
	}
	if cfg.TradeRatio <= 0 {
		cfg.TradeRatio = 0.1
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	mid := cfg.StartPrice
	ticks := make([]Tick, 0, n)
	var live []string
	seq := 0

	for i := 0; i < n; i++ {
		mid += rng.NormFloat64() * cfg.Volatility
		if mid < cfg.TickSize {
			mid = cfg.TickSize
		}
		ts := start + int64(i)*int64(time.Millisecond)

		r := rng.Float64()
		switch {
		case r < cfg.TradeRatio:
			side := book.Buy
			if rng.Intn(2) == 1 {
				side = book.Sell
			}
			ticks = append(ticks, Tick{
				Timestamp: ts,
				Symbol:    cfg.Symbol,
				Type:      EventTrade,
				Side:      side,
				Price:     roundTick(mid, cfg.TickSize),
				Qty:       float64(10 + rng.Intn(90)),
			})
		case r < cfg.TradeRatio+0.2 && len(live) > 0:
			at := rng.Intn(len(live))
			id := live[at]
			live = append(live[:at], live[at+1:]...)
			ticks = append(ticks, Tick{
				Timestamp: ts,
				Symbol:    cfg.Symbol,
				Type:      EventCancel,
				OrderID:   id,
				Side:      book.Buy,
			})
		default:
			side := book.Buy
			offset := -cfg.TickSize * float64(1+rng.Intn(5))
			if rng.Intn(2) == 1 {
				side = book.Sell
				offset = -offset
			}
			seq++
			id := fmt.Sprintf("%s-%d", cfg.Symbol, seq)
			live = append(live, id)
			ticks = append(ticks, Tick{
				Timestamp: ts,
				Symbol:    cfg.Symbol,
				Type:      EventAdd,
				OrderID:   id,
				Side:      side,
				Price:     roundTick(mid+offset, cfg.TickSize),
				Qty:       float64(10 + rng.Intn(90)),
			})
		}
	}
	return ticks
}

func roundTick(price, tickSize float64) float64 {
	steps := float64(int64(price/tickSize + 0.5))
	return steps * tickSize
}
