// Package book maintains the resting orders of a single instrument in
// price-time priority and answers queries about current market state:
// best prices, depth, imbalance and estimated impact of a hypothetical
// trade. It performs no matching; crossing resting orders is left to
// the caller. A LimitOrderBook is not safe for concurrent use, all
// calls against one instance must be serialized by its owner.
package book

import "github.com/tidwall/btree"

const (
	// DefaultDepth is the level count returned by depth snapshots when
	// the caller does not ask for a specific one.
	DefaultDepth = 10

	// DefaultImbalanceDepth is the per-side level count that
	// OrderImbalance aggregates by default.
	DefaultImbalanceDepth = 5
)

type LimitOrderBook struct {
	symbol string

	// Flat lookup for O(1) access by order ID. Every order in here is
	// also in exactly one price level on its side, and vice versa.
	ordersByID map[string]*Order

	// Price levels per side. The comparators sort both trees best-first,
	// so Min is the best bid and the best ask respectively.
	bids *btree.BTreeG[*PriceLevel]
	asks *btree.BTreeG[*PriceLevel]

	bestBid float64
	bestAsk float64
	hasBid  bool
	hasAsk  bool
}

func New(symbol string) *LimitOrderBook {
	return &LimitOrderBook{
		symbol:     symbol,
		ordersByID: make(map[string]*Order),
		bids: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.price > b.price
		}),
		asks: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.price < b.price
		}),
	}
}

func (b *LimitOrderBook) Symbol() string {
	return b.symbol
}

// AddOrder places a new resting order. The ID must not already rest in
// the book and the quantity must be positive.
func (b *LimitOrderBook) AddOrder(o *Order) error {
	if o.Qty <= 0 {
		return ErrInvalidQuantity
	}
	if _, ok := b.ordersByID[o.ID]; ok {
		return ErrDuplicateOrderID
	}

	side := b.sideFor(o.Side)
	level, ok := side.GetMut(&PriceLevel{price: o.Price})
	if !ok {
		level = NewPriceLevel(o.Price)
		side.Set(level)
	}
	level.AddOrder(o)
	b.ordersByID[o.ID] = o

	b.updateBestPrices()
	return nil
}

// ModifyOrder changes the quantity of a resting order in place. The
// order keeps its slot in the level's arrival queue; only the level's
// aggregate volume moves, by the quantity delta. Price and side of a
// resting order cannot change; cancel and re-add instead.
func (b *LimitOrderBook) ModifyOrder(orderID string, newQty float64) error {
	if newQty <= 0 {
		return ErrInvalidQuantity
	}
	o, ok := b.ordersByID[orderID]
	if !ok {
		return ErrOrderNotFound
	}

	level, ok := b.sideFor(o.Side).GetMut(&PriceLevel{price: o.Price})
	if !ok {
		// Lookup and sides are kept in lockstep; a missing level means
		// the book is corrupt.
		return ErrOrderNotFound
	}

	level.adjustVolume(newQty - o.Qty)
	o.Qty = newQty
	return nil
}

// CancelOrder removes a resting order, erasing its price level when the
// level empties out.
func (b *LimitOrderBook) CancelOrder(orderID string) error {
	o, ok := b.ordersByID[orderID]
	if !ok {
		return ErrOrderNotFound
	}

	side := b.sideFor(o.Side)
	if level, ok := side.GetMut(&PriceLevel{price: o.Price}); ok {
		level.RemoveOrder(orderID)
		if level.TotalVolume() <= 0 {
			side.Delete(level)
		}
	}
	delete(b.ordersByID, orderID)

	b.updateBestPrices()
	return nil
}

// Order returns the resting order with the given ID.
func (b *LimitOrderBook) Order(orderID string) (*Order, bool) {
	o, ok := b.ordersByID[orderID]
	return o, ok
}

// OrderCount returns the number of resting orders across both sides.
func (b *LimitOrderBook) OrderCount() int {
	return len(b.ordersByID)
}

func (b *LimitOrderBook) BestBid() (float64, bool) {
	return b.bestBid, b.hasBid
}

func (b *LimitOrderBook) BestAsk() (float64, bool) {
	return b.bestAsk, b.hasAsk
}

// MidPrice is defined only when both sides are non-empty.
func (b *LimitOrderBook) MidPrice() (float64, bool) {
	if !b.hasBid || !b.hasAsk {
		return 0, false
	}
	return (b.bestBid + b.bestAsk) / 2, true
}

// Spread is defined only when both sides are non-empty.
func (b *LimitOrderBook) Spread() (float64, bool) {
	if !b.hasBid || !b.hasAsk {
		return 0, false
	}
	return b.bestAsk - b.bestBid, true
}

// OrderImbalance returns (bidVolume-askVolume)/(bidVolume+askVolume)
// over the top levels of each side, or 0 when both are empty. Results
// lie in [-1, 1]; positive means more resting bid volume.
func (b *LimitOrderBook) OrderImbalance(levels int) float64 {
	if levels <= 0 {
		levels = DefaultImbalanceDepth
	}

	var bidVolume, askVolume float64
	count := 0
	b.bids.Scan(func(l *PriceLevel) bool {
		bidVolume += l.TotalVolume()
		count++
		return count < levels
	})
	count = 0
	b.asks.Scan(func(l *PriceLevel) bool {
		askVolume += l.TotalVolume()
		count++
		return count < levels
	})

	total := bidVolume + askVolume
	if total <= 0 {
		return 0
	}
	return (bidVolume - askVolume) / total
}

// BidLevels returns up to count (price, volume) pairs, best bid first.
func (b *LimitOrderBook) BidLevels(count int) []Level {
	return collectLevels(b.bids, count)
}

// AskLevels returns up to count (price, volume) pairs, best ask first.
func (b *LimitOrderBook) AskLevels(count int) []Level {
	return collectLevels(b.asks, count)
}

// EstimateMarketImpact projects the cost of an aggressive order of the
// given size without mutating the book. It walks the opposing side in
// priority order, consuming liquidity level by level, and returns the
// signed deviation of the volume-weighted average fill price from the
// current mid. Positive is always adverse to the aggressor. Returns 0
// when no liquidity would be consumed or when the mid is undefined.
func (b *LimitOrderBook) EstimateMarketImpact(side Side, quantity float64) float64 {
	mid, ok := b.MidPrice()
	if !ok || quantity <= 0 {
		return 0
	}

	opposing := b.asks
	if side == Sell {
		opposing = b.bids
	}

	remaining := quantity
	var weighted, executed float64
	opposing.Scan(func(l *PriceLevel) bool {
		fill := min(remaining, l.TotalVolume())
		weighted += fill * l.Price()
		executed += fill
		remaining -= fill
		return remaining > 0
	})

	if executed <= 0 {
		return 0
	}
	avg := weighted / executed
	if side == Buy {
		return avg - mid
	}
	return mid - avg
}

func (b *LimitOrderBook) sideFor(s Side) *btree.BTreeG[*PriceLevel] {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// updateBestPrices refreshes the cached best bid/ask from the first
// entry of each side. Called after every mutation.
func (b *LimitOrderBook) updateBestPrices() {
	if level, ok := b.bids.Min(); ok {
		b.bestBid, b.hasBid = level.price, true
	} else {
		b.bestBid, b.hasBid = 0, false
	}
	if level, ok := b.asks.Min(); ok {
		b.bestAsk, b.hasAsk = level.price, true
	} else {
		b.bestAsk, b.hasAsk = 0, false
	}
}

func collectLevels(side *btree.BTreeG[*PriceLevel], count int) []Level {
	if count <= 0 {
		count = DefaultDepth
	}
	levels := make([]Level, 0, count)
	side.Scan(func(l *PriceLevel) bool {
		levels = append(levels, Level{Price: l.Price(), Volume: l.TotalVolume()})
		return len(levels) < count
	})
	return levels
}
