// Package feed pumps order and trade events through the books and the
// analytics pipeline, then fans results out to subscribers.
package feed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joripage/microbook/pkg/analytics"
	"github.com/joripage/microbook/pkg/book"
	"github.com/joripage/microbook/pkg/logging"
)

const (
	DefaultQueueSize     = 1024
	DefaultSnapshotDepth = book.DefaultDepth
)

// OrderEvent is one order instruction on the feed.
type OrderEvent struct {
	Action    analytics.OrderAction
	Symbol    string
	OrderID   string
	Side      book.Side
	Price     float64
	Qty       float64
	Timestamp int64
}

// TradeEvent is one executed trade on the feed.
type TradeEvent struct {
	Symbol    string
	Price     float64
	Qty       float64
	Side      book.Side
	Timestamp int64
}

// BookSubscriber receives a depth snapshot after every applied order.
type BookSubscriber func(book.Snapshot)

// MetricsSubscriber receives metrics after every book or trade update.
type MetricsSubscriber func(analytics.Metrics)

// Config controls handler queue depth and snapshot fan-out.
type Config struct {
	QueueSize     int
	SnapshotDepth int
}

// Handler owns the per-symbol books and drives analytics from the
// event streams. Events are applied by a single goroutine per stream,
// so book mutation needs no further locking.
type Handler struct {
	cfg      Config
	registry *book.Registry
	analyzer *analytics.Analyzer
	detector *analytics.ToxicFlowDetector

	orderCh chan OrderEvent
	tradeCh chan TradeEvent

	mu          sync.RWMutex
	bookSubs    []BookSubscriber
	metricsSubs []MetricsSubscriber

	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
}

func NewHandler(cfg Config, registry *book.Registry, analyzer *analytics.Analyzer, detector *analytics.ToxicFlowDetector) *Handler {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.SnapshotDepth <= 0 {
		cfg.SnapshotDepth = DefaultSnapshotDepth
	}
	return &Handler{
		cfg:      cfg,
		registry: registry,
		analyzer: analyzer,
		detector: detector,
		orderCh:  make(chan OrderEvent, cfg.QueueSize),
		tradeCh:  make(chan TradeEvent, cfg.QueueSize),
	}
}

func (h *Handler) SubscribeBook(fn BookSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bookSubs = append(h.bookSubs, fn)
}

func (h *Handler) SubscribeMetrics(fn MetricsSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metricsSubs = append(h.metricsSubs, fn)
}

// Start launches the stream loops. They run until ctx is cancelled or
// Stop is called.
func (h *Handler) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)

	h.wg.Add(2)
	go h.orderLoop(ctx)
	go h.tradeLoop(ctx)
}

// Stop shuts the loops down and waits for queued events already taken
// off the channels to finish applying.
func (h *Handler) Stop() {
	h.once.Do(func() {
		if h.cancel != nil {
			h.cancel()
		}
		h.wg.Wait()
	})
}

// SubmitOrder enqueues an order event. A zero timestamp is stamped
// with the current time. Returns false when the queue is full.
func (h *Handler) SubmitOrder(ev OrderEvent) bool {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixNano()
	}
	select {
	case h.orderCh <- ev:
		return true
	default:
		return false
	}
}

// SubmitTrade enqueues a trade event. A zero timestamp is stamped
// with the current time. Returns false when the queue is full.
func (h *Handler) SubmitTrade(ev TradeEvent) bool {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixNano()
	}
	select {
	case h.tradeCh <- ev:
		return true
	default:
		return false
	}
}

func (h *Handler) orderLoop(ctx context.Context) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.orderCh:
			h.applyOrder(ctx, ev)
		}
	}
}

func (h *Handler) tradeLoop(ctx context.Context) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.tradeCh:
			h.applyTrade(ev)
		}
	}
}

func (h *Handler) applyOrder(ctx context.Context, ev OrderEvent) {
	b := h.registry.GetOrCreate(ev.Symbol)

	var err error
	switch ev.Action {
	case analytics.OrderActionAdd:
		err = b.AddOrder(&book.Order{
			ID:        ev.OrderID,
			Price:     ev.Price,
			Qty:       ev.Qty,
			Side:      ev.Side,
			Timestamp: ev.Timestamp,
		})
	case analytics.OrderActionModify:
		err = b.ModifyOrder(ev.OrderID, ev.Qty)
	case analytics.OrderActionCancel:
		err = b.CancelOrder(ev.OrderID)
	}
	if err != nil {
		log, ctx := logging.GetLogger(ctx)
		log.Warn(ctx, "order event rejected",
			zap.String("symbol", ev.Symbol),
			zap.String("order_id", ev.OrderID),
			zap.String("action", string(ev.Action)),
			zap.Error(err))
		return
	}

	if h.detector != nil {
		switch ev.Action {
		case analytics.OrderActionAdd, analytics.OrderActionModify:
			h.detector.ProcessOrder(ev.Symbol, ev.Timestamp, ev.OrderID, ev.Price, ev.Qty, ev.Side)
		case analytics.OrderActionCancel:
			h.detector.ProcessCancel(ev.Symbol, ev.Timestamp, ev.OrderID)
		}
	}

	h.analyzer.ProcessOrder(ev.Symbol, ev.Timestamp, ev.OrderID, ev.Action, ev.Price, ev.Qty, ev.Side)
	snap := b.Snapshot(ev.Timestamp, h.cfg.SnapshotDepth)
	m := h.analyzer.ProcessBook(ev.Symbol, ev.Timestamp, snap.Bids, snap.Asks)
	if h.detector != nil {
		h.detector.ProcessMetrics(m)
	}
	h.publish(snap, m)
}

func (h *Handler) applyTrade(ev TradeEvent) {
	h.analyzer.ProcessTrade(ev.Symbol, ev.Timestamp, ev.Price, ev.Qty, ev.Side)
	if h.detector != nil {
		h.detector.ProcessTrade(ev.Symbol, ev.Timestamp, ev.Price, ev.Qty, ev.Side)
	}

	if b, ok := h.registry.Get(ev.Symbol); ok {
		snap := b.Snapshot(ev.Timestamp, h.cfg.SnapshotDepth)
		m := h.analyzer.ProcessBook(ev.Symbol, ev.Timestamp, snap.Bids, snap.Asks)
		h.publish(snap, m)
	}
}

func (h *Handler) publish(snap book.Snapshot, m analytics.Metrics) {
	h.mu.RLock()
	bookSubs := h.bookSubs
	metricsSubs := h.metricsSubs
	h.mu.RUnlock()

	for _, fn := range bookSubs {
		fn(snap)
	}
	for _, fn := range metricsSubs {
		fn(m)
	}
}
