// Package worker drains published metrics off JetStream and persists
// them through the metrics repo.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/joripage/microbook/pkg/analytics"
	"github.com/joripage/microbook/pkg/logging"
	"github.com/joripage/microbook/pkg/store/model"
	"github.com/joripage/microbook/pkg/store/repo"
	"github.com/shopspring/decimal"
)

type Worker struct {
	metric repo.IMetric
}

func NewWorker(r repo.IRepo) *Worker {
	return &Worker{
		metric: r.Metric(),
	}
}

// StartConsumer pulls metric samples from the durable consumer until
// ctx is cancelled. Samples that fail to decode are acked and dropped;
// samples that fail to persist are left unacked for redelivery.
func (w *Worker) StartConsumer(ctx context.Context, js nats.JetStreamContext, subject, durable string) error {
	cons, err := js.PullSubscribe(subject, durable)
	if err != nil {
		return err
	}

	log, ctx := logging.GetLogger(ctx)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msgs, err := cons.Fetch(10, nats.MaxWait(time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			log.Warn(ctx, "fetch metrics batch", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var m analytics.Metrics
			if err := json.Unmarshal(msg.Data, &m); err != nil {
				log.Warn(ctx, "decode metrics sample", zap.Error(err))
				_ = msg.Ack()
				continue
			}
			if err := w.handleMetrics(ctx, m); err != nil {
				log.Error(ctx, "persist metrics sample", zap.String("symbol", m.Symbol), zap.Error(err))
				continue
			}
			_ = msg.Ack()
		}
	}
}

func (w *Worker) handleMetrics(ctx context.Context, m analytics.Metrics) error {
	_, err := w.metric.Create(ctx, &model.MetricRecord{
		Symbol:     m.Symbol,
		Timestamp:  time.Unix(0, m.Timestamp),
		MidPrice:   decimal.NewFromFloat(m.MidPrice),
		Spread:     decimal.NewFromFloat(m.Spread),
		Imbalance:  decimal.NewFromFloat(m.OrderImbalance),
		Impact:     decimal.NewFromFloat(m.PriceImpact),
		Volatility: decimal.NewFromFloat(m.RealizedVolatility),
	})
	return err
}
