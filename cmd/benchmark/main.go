package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/joripage/microbook/pkg/book"
)

const (
	numOrders = 1_000_000
	minPrice  = 100.0
	maxPrice  = 200.0
	minQty    = 1
	maxQty    = 100
)

func randomOrder(rng *rand.Rand, id int) *book.Order {
	side := book.Buy
	if rng.Intn(2) == 0 {
		side = book.Sell
	}
	price := minPrice + rng.Float64()*(maxPrice-minPrice)
	qty := float64(rng.Intn(maxQty-minQty+1) + minQty)

	return &book.Order{
		ID:        fmt.Sprintf("ORD-%06d", id),
		Price:     float64(int(price*100)) / 100,
		Qty:       qty,
		Side:      side,
		Timestamp: time.Now().UnixNano(),
	}
}

func main() {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	b := book.New("ABC")

	ids := make([]string, 0, numOrders)

	start := time.Now()
	for i := 0; i < numOrders; i++ {
		o := randomOrder(rng, i+1)
		if err := b.AddOrder(o); err == nil {
			ids = append(ids, o.ID)
		}
	}
	addElapsed := time.Since(start)

	start = time.Now()
	modified := 0
	for _, id := range ids {
		if rng.Intn(4) == 0 {
			if err := b.ModifyOrder(id, float64(rng.Intn(maxQty)+1)); err == nil {
				modified++
			}
		}
	}
	modifyElapsed := time.Since(start)

	start = time.Now()
	queries := 0
	for i := 0; i < numOrders; i++ {
		_, _ = b.BestBid()
		_, _ = b.BestAsk()
		_, _ = b.MidPrice()
		_ = b.OrderImbalance(book.DefaultImbalanceDepth)
		queries += 4
	}
	queryElapsed := time.Since(start)

	start = time.Now()
	cancelled := 0
	for _, id := range ids {
		if err := b.CancelOrder(id); err == nil {
			cancelled++
		}
	}
	cancelElapsed := time.Since(start)

	fmt.Println("--------")
	fmt.Printf("orders added    : %d in %s (%.0f ops/s)\n", len(ids), addElapsed, float64(len(ids))/addElapsed.Seconds())
	fmt.Printf("orders modified : %d in %s\n", modified, modifyElapsed)
	fmt.Printf("queries         : %d in %s (%.0f ops/s)\n", queries, queryElapsed, float64(queries)/queryElapsed.Seconds())
	fmt.Printf("orders cancelled: %d in %s (%.0f ops/s)\n", cancelled, cancelElapsed, float64(cancelled)/cancelElapsed.Seconds())
	fmt.Printf("orders resting  : %d\n", b.OrderCount())
}
