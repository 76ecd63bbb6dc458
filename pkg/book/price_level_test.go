package book

import "testing"

func TestPriceLevelAddAndVolume(t *testing.T) {
	l := NewPriceLevel(10.0)

	l.AddOrder(&Order{ID: "1", Price: 10.0, Qty: 5, Side: Buy})
	l.AddOrder(&Order{ID: "2", Price: 10.0, Qty: 7, Side: Buy})

	if l.TotalVolume() != 12 {
		t.Fatalf("expected total volume 12, got %v", l.TotalVolume())
	}
	if l.Len() != 2 {
		t.Fatalf("expected 2 orders, got %d", l.Len())
	}
}

func TestPriceLevelRemovePreservesArrivalOrder(t *testing.T) {
	l := NewPriceLevel(10.0)
	l.AddOrder(&Order{ID: "a", Price: 10.0, Qty: 1, Side: Sell})
	l.AddOrder(&Order{ID: "b", Price: 10.0, Qty: 2, Side: Sell})
	l.AddOrder(&Order{ID: "c", Price: 10.0, Qty: 3, Side: Sell})

	l.RemoveOrder("b")

	orders := l.Orders()
	if len(orders) != 2 || orders[0].ID != "a" || orders[1].ID != "c" {
		t.Fatalf("unexpected queue after remove: %+v", orders)
	}
	if l.TotalVolume() != 4 {
		t.Fatalf("expected total volume 4, got %v", l.TotalVolume())
	}
}

func TestPriceLevelRemoveUnknownIsNoop(t *testing.T) {
	l := NewPriceLevel(10.0)
	l.AddOrder(&Order{ID: "a", Price: 10.0, Qty: 1, Side: Sell})

	l.RemoveOrder("missing")

	if l.Len() != 1 || l.TotalVolume() != 1 {
		t.Fatalf("no-op remove changed the level: len=%d volume=%v", l.Len(), l.TotalVolume())
	}
}
