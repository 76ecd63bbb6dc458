// Package simulation models the price impact of hypothetical order
// flow on top of observed market state: an immediate shift driven by
// order size relative to visible depth, plus an exponentially decaying
// residue of past impacts.
package simulation

import (
	"math"
	"math/rand"

	"github.com/joripage/microbook/pkg/book"
)

// MarketState is the market view the simulator perturbs. Levels are in
// priority order (best first), as returned by book depth queries.
type MarketState struct {
	MidPrice   float64
	Spread     float64
	Volatility float64
	BidLevels  []book.Level
	AskLevels  []book.Level
}

type impactEvent struct {
	Timestamp int64
	Impact    float64
	Qty       float64
	Side      book.Side
}

// ImpactSimulator applies and decays simulated market impact per
// symbol. Not safe for concurrent use.
type ImpactSimulator struct {
	priceImpactFactor float64
	decayFactor       float64
	spreadFactor      float64
	volatilityFactor  float64
	randomFactor      float64

	history map[string][]impactEvent
	rng     *rand.Rand
}

// Option tweaks a simulator at construction time.
type Option func(*ImpactSimulator)

// WithRandomFactor overrides the gaussian noise weight. Zero makes the
// simulator deterministic, which the tests rely on.
func WithRandomFactor(f float64) Option {
	return func(s *ImpactSimulator) { s.randomFactor = f }
}

// WithDecayFactor overrides the per-second impact decay base.
func WithDecayFactor(f float64) Option {
	return func(s *ImpactSimulator) { s.decayFactor = f }
}

// WithSeed pins the noise source for reproducible runs.
func WithSeed(seed int64) Option {
	return func(s *ImpactSimulator) { s.rng = rand.New(rand.NewSource(seed)) }
}

func NewImpactSimulator(opts ...Option) *ImpactSimulator {
	s := &ImpactSimulator{
		priceImpactFactor: 0.1,
		decayFactor:       0.95,
		spreadFactor:      0.2,
		volatilityFactor:  0.5,
		randomFactor:      0.1,
		history:           make(map[string][]impactEvent),
		rng:               rand.New(rand.NewSource(rand.Int63())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClearHistory drops recorded impact for one symbol, or all symbols
// when symbol is empty.
func (s *ImpactSimulator) ClearHistory(symbol string) {
	if symbol == "" {
		s.history = make(map[string][]impactEvent)
		return
	}
	delete(s.history, symbol)
}

// ImmediateImpact estimates the price shift a fresh order of the given
// size would cause against the visible depth. Signed: positive for a
// buy, negative for a sell.
func (s *ImpactSimulator) ImmediateImpact(qty float64, side book.Side, state MarketState) float64 {
	if state.MidPrice <= 0 {
		return 0
	}

	levels := state.AskLevels
	if side == book.Sell {
		levels = state.BidLevels
	}
	var volume float64
	for i, l := range levels {
		if i >= book.DefaultImbalanceDepth {
			break
		}
		volume += l.Volume
	}
	if volume <= 0 {
		// No visible depth: assume the order is a tenth of it.
		volume = qty * 10
	}

	sizeRatio := math.Min(1, qty/volume)
	base := state.MidPrice * s.priceImpactFactor * sizeRatio
	total := base +
		state.Spread*s.spreadFactor +
		state.Volatility*s.volatilityFactor +
		state.MidPrice*s.randomFactor*s.rng.NormFloat64()

	if side == book.Sell {
		return -total
	}
	return total
}

// ApplyImpact records the immediate impact of an order and returns the
// market state shifted by it.
func (s *ImpactSimulator) ApplyImpact(symbol string, qty float64, side book.Side, state MarketState, timestamp int64) MarketState {
	impact := s.ImmediateImpact(qty, side, state)

	s.history[symbol] = append(s.history[symbol], impactEvent{
		Timestamp: timestamp,
		Impact:    impact,
		Qty:       qty,
		Side:      side,
	})

	return shiftState(state, impact)
}

// DecayImpact ages all recorded impact for a symbol to the given time,
// pruning events decayed below 1% of their size, and returns the total
// residual impact.
func (s *ImpactSimulator) DecayImpact(symbol string, timestamp int64) float64 {
	var total float64
	kept := s.history[symbol][:0]

	for _, ev := range s.history[symbol] {
		elapsed := float64(timestamp-ev.Timestamp) / 1e9
		decay := math.Pow(s.decayFactor, elapsed)
		if decay <= 0.01 {
			continue
		}
		ev.Impact *= decay
		ev.Timestamp = timestamp
		total += ev.Impact
		kept = append(kept, ev)
	}
	s.history[symbol] = kept
	return total
}

// UpdateState returns the state shifted by the residual decayed impact
// for a symbol.
func (s *ImpactSimulator) UpdateState(symbol string, state MarketState, timestamp int64) MarketState {
	total := s.DecayImpact(symbol, timestamp)
	if math.Abs(total) < 1e-6 {
		return state
	}
	return shiftState(state, total)
}

func shiftState(state MarketState, impact float64) MarketState {
	if state.MidPrice <= 0 {
		return state
	}

	out := state
	out.MidPrice += impact
	out.BidLevels = shiftLevels(state.BidLevels, impact)
	out.AskLevels = shiftLevels(state.AskLevels, impact)
	return out
}

func shiftLevels(levels []book.Level, impact float64) []book.Level {
	out := make([]book.Level, len(levels))
	for i, l := range levels {
		out[i] = book.Level{Price: l.Price + impact, Volume: l.Volume}
	}
	return out
}
