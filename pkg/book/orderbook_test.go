package book

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func mustAdd(t *testing.T, b *LimitOrderBook, id string, side Side, price, qty float64) {
	t.Helper()
	if err := b.AddOrder(&Order{ID: id, Price: price, Qty: qty, Side: side}); err != nil {
		t.Fatalf("add %s failed: %v", id, err)
	}
}

func TestEmptyBookQueries(t *testing.T) {
	b := New("TEST")

	if _, ok := b.BestBid(); ok {
		t.Fatalf("empty book should have no best bid")
	}
	if _, ok := b.BestAsk(); ok {
		t.Fatalf("empty book should have no best ask")
	}
	if _, ok := b.MidPrice(); ok {
		t.Fatalf("mid price should be undefined on an empty book")
	}
	if _, ok := b.Spread(); ok {
		t.Fatalf("spread should be undefined on an empty book")
	}
	if imb := b.OrderImbalance(DefaultImbalanceDepth); imb != 0 {
		t.Fatalf("expected 0 imbalance on empty book, got %v", imb)
	}
	if impact := b.EstimateMarketImpact(Buy, 100); impact != 0 {
		t.Fatalf("expected 0 impact on empty book, got %v", impact)
	}
}

func TestSimpleCross(t *testing.T) {
	b := New("TEST")
	mustAdd(t, b, "b1", Buy, 10.0, 100)
	mustAdd(t, b, "s1", Sell, 10.5, 50)

	if bid, ok := b.BestBid(); !ok || bid != 10.0 {
		t.Fatalf("expected best bid 10.0, got %v (%v)", bid, ok)
	}
	if ask, ok := b.BestAsk(); !ok || ask != 10.5 {
		t.Fatalf("expected best ask 10.5, got %v (%v)", ask, ok)
	}
	if mid, ok := b.MidPrice(); !ok || !almostEqual(mid, 10.25) {
		t.Fatalf("expected mid 10.25, got %v (%v)", mid, ok)
	}
	if spread, ok := b.Spread(); !ok || !almostEqual(spread, 0.5) {
		t.Fatalf("expected spread 0.5, got %v (%v)", spread, ok)
	}
}

func TestBestPricesTrackMutations(t *testing.T) {
	b := New("TEST")
	mustAdd(t, b, "b1", Buy, 9.0, 10)
	mustAdd(t, b, "b2", Buy, 9.5, 10)
	mustAdd(t, b, "s1", Sell, 10.5, 10)
	mustAdd(t, b, "s2", Sell, 10.2, 10)

	if bid, _ := b.BestBid(); bid != 9.5 {
		t.Fatalf("expected best bid 9.5, got %v", bid)
	}
	if ask, _ := b.BestAsk(); ask != 10.2 {
		t.Fatalf("expected best ask 10.2, got %v", ask)
	}

	if err := b.CancelOrder("b2"); err != nil {
		t.Fatalf("cancel b2: %v", err)
	}
	if err := b.CancelOrder("s2"); err != nil {
		t.Fatalf("cancel s2: %v", err)
	}

	if bid, _ := b.BestBid(); bid != 9.0 {
		t.Fatalf("expected best bid 9.0 after cancel, got %v", bid)
	}
	if ask, _ := b.BestAsk(); ask != 10.5 {
		t.Fatalf("expected best ask 10.5 after cancel, got %v", ask)
	}
}

func TestAddRejectsDuplicateID(t *testing.T) {
	b := New("TEST")
	mustAdd(t, b, "dup", Buy, 10.0, 5)

	err := b.AddOrder(&Order{ID: "dup", Price: 11.0, Qty: 1, Side: Sell})
	if !errors.Is(err, ErrDuplicateOrderID) {
		t.Fatalf("expected ErrDuplicateOrderID, got %v", err)
	}

	// The original order must be untouched.
	o, ok := b.Order("dup")
	if !ok || o.Price != 10.0 || o.Side != Buy || o.Qty != 5 {
		t.Fatalf("original order mutated by rejected add: %+v", o)
	}
}

func TestAddRejectsNonPositiveQuantity(t *testing.T) {
	b := New("TEST")

	for _, qty := range []float64{0, -1} {
		err := b.AddOrder(&Order{ID: "x", Price: 10.0, Qty: qty, Side: Buy})
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("qty=%v: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
	if b.OrderCount() != 0 {
		t.Fatalf("rejected adds must not rest, count=%d", b.OrderCount())
	}
}

func TestModifyPreservesTimePrioritySlot(t *testing.T) {
	b := New("TEST")
	mustAdd(t, b, "A", Buy, 10.0, 10)
	mustAdd(t, b, "B", Buy, 10.0, 5)

	if err := b.ModifyOrder("A", 20); err != nil {
		t.Fatalf("modify A: %v", err)
	}

	levels := b.BidLevels(1)
	if len(levels) != 1 || !almostEqual(levels[0].Volume, 25) {
		// 10 -> 20 is a delta of +10 on the original 15 total.
		t.Fatalf("expected level volume 25 after modify, got %+v", levels)
	}

	level, ok := b.bids.Get(&PriceLevel{price: 10.0})
	if !ok {
		t.Fatalf("level 10.0 missing")
	}
	orders := level.Orders()
	if len(orders) != 2 || orders[0].ID != "A" || orders[1].ID != "B" {
		t.Fatalf("modify changed queue order: %+v", orders)
	}
	if orders[0].Qty != 20 {
		t.Fatalf("expected A qty 20, got %v", orders[0].Qty)
	}
}

func TestModifyRejectsUnknownAndNonPositive(t *testing.T) {
	b := New("TEST")
	mustAdd(t, b, "A", Buy, 10.0, 10)

	if err := b.ModifyOrder("missing", 5); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if err := b.ModifyOrder("A", 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if o, _ := b.Order("A"); o.Qty != 10 {
		t.Fatalf("rejected modify changed quantity to %v", o.Qty)
	}
}

func TestCancelUnknownOrder(t *testing.T) {
	b := New("TEST")
	if err := b.CancelOrder("missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestAddCancelRoundTrip(t *testing.T) {
	b := New("TEST")
	mustAdd(t, b, "b1", Buy, 10.0, 100)
	mustAdd(t, b, "s1", Sell, 10.5, 50)

	before := b.Snapshot(0, DefaultDepth)

	mustAdd(t, b, "tmp", Buy, 10.1, 30)
	if err := b.CancelOrder("tmp"); err != nil {
		t.Fatalf("cancel tmp: %v", err)
	}

	after := b.Snapshot(0, DefaultDepth)
	if len(before.Bids) != len(after.Bids) || len(before.Asks) != len(after.Asks) {
		t.Fatalf("depth changed across round trip: %+v vs %+v", before, after)
	}
	for i := range before.Bids {
		if before.Bids[i] != after.Bids[i] {
			t.Fatalf("bid level %d changed: %+v vs %+v", i, before.Bids[i], after.Bids[i])
		}
	}
	if before.MidPrice != after.MidPrice || before.Spread != after.Spread {
		t.Fatalf("mid/spread changed across round trip")
	}
	if b.OrderCount() != 2 {
		t.Fatalf("expected 2 resting orders, got %d", b.OrderCount())
	}
}

func TestDepthLevelsBestFirstAndClamped(t *testing.T) {
	b := New("TEST")
	mustAdd(t, b, "b1", Buy, 9.8, 10)
	mustAdd(t, b, "b2", Buy, 9.9, 20)
	mustAdd(t, b, "b3", Buy, 9.7, 30)
	mustAdd(t, b, "s1", Sell, 10.1, 15)
	mustAdd(t, b, "s2", Sell, 10.3, 25)

	bids := b.BidLevels(2)
	if len(bids) != 2 || bids[0].Price != 9.9 || bids[1].Price != 9.8 {
		t.Fatalf("unexpected bid levels: %+v", bids)
	}

	// Fewer levels than requested come back without padding.
	asks := b.AskLevels(10)
	if len(asks) != 2 || asks[0].Price != 10.1 || asks[1].Price != 10.3 {
		t.Fatalf("unexpected ask levels: %+v", asks)
	}
}

func TestOrderImbalanceTopLevel(t *testing.T) {
	b := New("TEST")
	mustAdd(t, b, "b1", Buy, 10.0, 100)
	mustAdd(t, b, "s1", Sell, 10.5, 50)

	imb := b.OrderImbalance(1)
	if !almostEqual(imb, 50.0/150.0) {
		t.Fatalf("expected imbalance 1/3, got %v", imb)
	}
}

func TestEstimateMarketImpactWalksOpposingSide(t *testing.T) {
	b := New("TEST")
	mustAdd(t, b, "b1", Buy, 10.0, 100)
	mustAdd(t, b, "s1", Sell, 10.5, 50)
	mustAdd(t, b, "s2", Sell, 10.6, 100)

	// Consumes 50@10.5 then 70@10.6 against a 10.25 mid.
	avg := (50*10.5 + 70*10.6) / 120.0
	want := avg - 10.25

	got := b.EstimateMarketImpact(Buy, 120)
	if !almostEqual(got, want) {
		t.Fatalf("expected impact %v, got %v", want, got)
	}

	// Read-only simulation: nothing may have moved.
	if b.OrderCount() != 3 {
		t.Fatalf("impact estimate mutated the book")
	}
	if levels := b.AskLevels(DefaultDepth); len(levels) != 2 || !almostEqual(levels[0].Volume, 50) {
		t.Fatalf("impact estimate changed ask depth: %+v", levels)
	}
}

func TestEstimateMarketImpactSellSide(t *testing.T) {
	b := New("TEST")
	mustAdd(t, b, "b1", Buy, 10.0, 80)
	mustAdd(t, b, "b2", Buy, 9.9, 80)
	mustAdd(t, b, "s1", Sell, 10.5, 50)

	// Sell 100: consumes 80@10.0 then 20@9.9 against a 10.25 mid.
	avg := (80*10.0 + 20*9.9) / 100.0
	want := 10.25 - avg

	got := b.EstimateMarketImpact(Sell, 100)
	if !almostEqual(got, want) {
		t.Fatalf("expected impact %v, got %v", want, got)
	}
	if got <= 0 {
		t.Fatalf("adverse move must be positive for the aggressor, got %v", got)
	}
}

func TestVolumeConservationAcrossMutations(t *testing.T) {
	b := New("TEST")
	mustAdd(t, b, "b1", Buy, 10.0, 100)
	mustAdd(t, b, "b2", Buy, 9.9, 40)
	mustAdd(t, b, "b3", Buy, 10.0, 60)
	mustAdd(t, b, "s1", Sell, 10.5, 30)
	mustAdd(t, b, "s2", Sell, 10.6, 70)

	if err := b.ModifyOrder("b2", 55); err != nil {
		t.Fatalf("modify: %v", err)
	}
	if err := b.CancelOrder("s1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	sumSide := func(side Side) float64 {
		var total float64
		for _, id := range []string{"b1", "b2", "b3", "s1", "s2"} {
			if o, ok := b.Order(id); ok && o.Side == side {
				total += o.Qty
			}
		}
		return total
	}
	sumLevels := func(levels []Level) float64 {
		var total float64
		for _, l := range levels {
			total += l.Volume
		}
		return total
	}

	if !almostEqual(sumLevels(b.BidLevels(100)), sumSide(Buy)) {
		t.Fatalf("bid level volume diverged from resting bid quantity")
	}
	if !almostEqual(sumLevels(b.AskLevels(100)), sumSide(Sell)) {
		t.Fatalf("ask level volume diverged from resting ask quantity")
	}
}

func TestQueriesAreIdempotent(t *testing.T) {
	b := New("TEST")
	mustAdd(t, b, "b1", Buy, 10.0, 100)
	mustAdd(t, b, "s1", Sell, 10.5, 50)

	mid1, _ := b.MidPrice()
	mid2, _ := b.MidPrice()
	if mid1 != mid2 {
		t.Fatalf("mid price not idempotent: %v vs %v", mid1, mid2)
	}
	if b.OrderImbalance(5) != b.OrderImbalance(5) {
		t.Fatalf("imbalance not idempotent")
	}
	i1 := b.EstimateMarketImpact(Buy, 30)
	i2 := b.EstimateMarketImpact(Buy, 30)
	if i1 != i2 {
		t.Fatalf("impact estimate not idempotent: %v vs %v", i1, i2)
	}
}
