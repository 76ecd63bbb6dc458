package marketdata

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joripage/microbook/pkg/book"
)

const sampleCSV = `timestamp,symbol,event_type,order_id,side,price,quantity
1000,AAPL,add,o1,BUY,100.25,50
3000,AAPL,trade,,SELL,100.30,10
2000,AAPL,add,o2,SELL,100.50,25
4000,AAPL,cancel,o1,BUY,0,0
`

func TestReadTicksParsesAndSorts(t *testing.T) {
	ticks, err := ReadTicks(strings.NewReader(sampleCSV), 0, 0)
	require.NoError(t, err)
	require.Len(t, ticks, 4)

	// Sorted by timestamp despite the out of order rows.
	assert.Equal(t, int64(1000), ticks[0].Timestamp)
	assert.Equal(t, int64(2000), ticks[1].Timestamp)
	assert.Equal(t, int64(3000), ticks[2].Timestamp)
	assert.Equal(t, int64(4000), ticks[3].Timestamp)

	assert.Equal(t, EventAdd, ticks[0].Type)
	assert.Equal(t, "o1", ticks[0].OrderID)
	assert.Equal(t, book.Buy, ticks[0].Side)
	assert.InDelta(t, 100.25, ticks[0].Price, 1e-9)
	assert.InDelta(t, 50.0, ticks[0].Qty, 1e-9)

	assert.Equal(t, EventTrade, ticks[2].Type)
	assert.Equal(t, EventCancel, ticks[3].Type)
}

func TestReadTicksTimeRange(t *testing.T) {
	// [2000, 4000) keeps the middle two rows only.
	ticks, err := ReadTicks(strings.NewReader(sampleCSV), 2000, 4000)
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, int64(2000), ticks[0].Timestamp)
	assert.Equal(t, int64(3000), ticks[1].Timestamp)
}

func TestReadTicksRejectsBadRows(t *testing.T) {
	cases := []struct {
		name string
		row  string
	}{
		{"bad timestamp", "abc,AAPL,add,o1,BUY,100,10"},
		{"bad event type", "1000,AAPL,fill,o1,BUY,100,10"},
		{"bad side", "1000,AAPL,add,o1,LONG,100,10"},
		{"bad price", "1000,AAPL,add,o1,BUY,1.2.3,10"},
		{"bad quantity", "1000,AAPL,add,o1,BUY,100,x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadTicks(strings.NewReader(tc.row+"\n"), 0, 0)
			assert.Error(t, err)
		})
	}
}

func TestBarsAggregation(t *testing.T) {
	sec := int64(time.Second)
	ticks := []Tick{
		{Timestamp: 0 * sec, Type: EventTrade, Price: 100, Qty: 10},
		{Timestamp: 0*sec + sec/2, Type: EventTrade, Price: 102, Qty: 5},
		{Timestamp: 0*sec + sec/2, Type: EventAdd, Price: 999, Qty: 1}, // ignored
		{Timestamp: 1*sec + sec/4, Type: EventTrade, Price: 99, Qty: 20},
	}

	bars := Bars(ticks, time.Second)
	require.Len(t, bars, 2)

	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, 102.0, bars[0].High)
	assert.Equal(t, 100.0, bars[0].Low)
	assert.Equal(t, 102.0, bars[0].Close)
	assert.Equal(t, 15.0, bars[0].Volume)

	assert.Equal(t, int64(time.Second), bars[1].Start)
	assert.Equal(t, 99.0, bars[1].Close)
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := GeneratorConfig{Symbol: "SYN", StartPrice: 100, Seed: 42}

	a := Generate(cfg, 0, 500)
	b := Generate(cfg, 0, 500)

	require.Len(t, a, 500)
	assert.Equal(t, a, b)

	var adds, cancels, trades int
	live := make(map[string]bool)
	for _, tk := range a {
		switch tk.Type {
		case EventAdd:
			adds++
			assert.False(t, live[tk.OrderID], "duplicate order id %s", tk.OrderID)
			live[tk.OrderID] = true
			assert.Greater(t, tk.Price, 0.0)
			assert.Greater(t, tk.Qty, 0.0)
		case EventCancel:
			cancels++
			assert.True(t, live[tk.OrderID], "cancel of unknown order %s", tk.OrderID)
			delete(live, tk.OrderID)
		case EventTrade:
			trades++
		}
	}
	assert.Greater(t, adds, 0)
	assert.Greater(t, cancels, 0)
	assert.Greater(t, trades, 0)
}
