package book

import "github.com/gammazero/deque"

// PriceLevel aggregates every resting order at one price on one side.
// Orders keep arrival order; the front of the queue is the order a
// matching engine would consume first.
type PriceLevel struct {
	price       float64
	orders      deque.Deque[*Order]
	totalVolume float64
}

func NewPriceLevel(price float64) *PriceLevel {
	return &PriceLevel{price: price}
}

func (l *PriceLevel) Price() float64 {
	return l.price
}

// AddOrder appends an order to the back of the arrival queue.
func (l *PriceLevel) AddOrder(o *Order) {
	l.orders.PushBack(o)
	l.totalVolume += o.Qty
}

// RemoveOrder removes the order with the given ID and subtracts its
// quantity from the level total. Unknown IDs are a no-op.
func (l *PriceLevel) RemoveOrder(orderID string) {
	i := l.orders.Index(func(o *Order) bool { return o.ID == orderID })
	if i < 0 {
		return
	}
	o := l.orders.Remove(i)
	l.totalVolume -= o.Qty
}

func (l *PriceLevel) TotalVolume() float64 {
	return l.totalVolume
}

func (l *PriceLevel) Len() int {
	return l.orders.Len()
}

// Orders returns the resting orders in arrival (priority) order.
func (l *PriceLevel) Orders() []*Order {
	out := make([]*Order, l.orders.Len())
	for i := 0; i < l.orders.Len(); i++ {
		out[i] = l.orders.At(i)
	}
	return out
}

// adjustVolume applies a quantity delta without touching the queue.
// Used by modify so the order keeps its time-priority slot.
func (l *PriceLevel) adjustVolume(delta float64) {
	l.totalVolume += delta
}
