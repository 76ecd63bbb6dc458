package book

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the side a hypothetical aggressor of this side would
// consume liquidity from.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Order is one resting interest in the book. ID, Price and Side are fixed
// for the life of the order; only Qty changes, via LimitOrderBook.ModifyOrder.
// Timestamp is informational: time priority comes from the order's position
// in its price level queue, not from comparing timestamps.
type Order struct {
	ID        string
	Price     float64
	Qty       float64
	Side      Side
	Timestamp int64 // unix nanoseconds
}
