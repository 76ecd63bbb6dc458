package book

// Level is one (price, aggregate volume) pair of a depth snapshot,
// as consumed by analytics and published to downstream feeds.
type Level struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// Snapshot is a point-in-time view of the top of the book. MidPrice and
// Spread are meaningful only when HasMid is set, i.e. both sides were
// non-empty at capture time.
type Snapshot struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Bids      []Level `json:"bids"`
	Asks      []Level `json:"asks"`
	MidPrice  float64 `json:"mid_price"`
	Spread    float64 `json:"spread"`
	HasMid    bool    `json:"has_mid"`
}

// Snapshot captures the top depth levels of both sides plus derived
// best-price stats. depth <= 0 uses DefaultDepth.
func (b *LimitOrderBook) Snapshot(timestamp int64, depth int) Snapshot {
	snap := Snapshot{
		Symbol:    b.symbol,
		Timestamp: timestamp,
		Bids:      b.BidLevels(depth),
		Asks:      b.AskLevels(depth),
	}
	if mid, ok := b.MidPrice(); ok {
		spread, _ := b.Spread()
		snap.MidPrice = mid
		snap.Spread = spread
		snap.HasMid = true
	}
	return snap
}
