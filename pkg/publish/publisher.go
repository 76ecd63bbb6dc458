// Package publish fans book snapshots and metrics out to downstream
// consumers: Kafka topics for streaming, Redis for the latest snapshot
// per symbol, and a JetStream subject feeding the persistence worker.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/joripage/microbook/pkg/analytics"
	"github.com/joripage/microbook/pkg/book"
	"github.com/joripage/microbook/pkg/kafkabus"
	"github.com/joripage/microbook/pkg/logging"
	"github.com/joripage/microbook/pkg/store/model"
)

const snapshotTTL = time.Minute

type Config struct {
	SnapshotTopic string
	MetricsTopic  string
	EventsTopic   string
	NatsSubject   string
}

// Publisher pushes snapshots and metrics to the configured sinks. Any
// sink may be nil, in which case it is skipped.
type Publisher struct {
	cfg      Config
	producer *kafkabus.Producer
	redis    redis.UniversalClient
	js       nats.JetStreamContext
}

func NewPublisher(cfg Config, producer *kafkabus.Producer, rd redis.UniversalClient, js nats.JetStreamContext) *Publisher {
	return &Publisher{
		cfg:      cfg,
		producer: producer,
		redis:    rd,
		js:       js,
	}
}

// PublishSnapshot sends one depth snapshot to Kafka and refreshes the
// latest-snapshot cache entry for the symbol.
func (p *Publisher) PublishSnapshot(ctx context.Context, snap book.Snapshot) {
	log, ctx := logging.GetLogger(ctx)

	if p.producer != nil && p.cfg.SnapshotTopic != "" {
		if err := p.producer.PublishJSON(ctx, p.cfg.SnapshotTopic, snap.Symbol, snap, nil); err != nil {
			log.Error(ctx, "publish snapshot to kafka", zap.String("symbol", snap.Symbol), zap.Error(err))
		}
	}

	if p.redis != nil {
		b, err := json.Marshal(snap)
		if err != nil {
			log.Error(ctx, "marshal snapshot", zap.String("symbol", snap.Symbol), zap.Error(err))
			return
		}
		if err := p.redis.Set(ctx, SnapshotKey(snap.Symbol), b, snapshotTTL).Err(); err != nil {
			log.Error(ctx, "cache snapshot", zap.String("symbol", snap.Symbol), zap.Error(err))
		}
	}
}

// PublishMetrics sends one metrics sample to Kafka and to the
// JetStream subject the persistence worker consumes.
func (p *Publisher) PublishMetrics(ctx context.Context, m analytics.Metrics) {
	log, ctx := logging.GetLogger(ctx)

	if p.producer != nil && p.cfg.MetricsTopic != "" {
		if err := p.producer.PublishJSON(ctx, p.cfg.MetricsTopic, m.Symbol, m, nil); err != nil {
			log.Error(ctx, "publish metrics to kafka", zap.String("symbol", m.Symbol), zap.Error(err))
		}
	}

	if p.js != nil && p.cfg.NatsSubject != "" {
		b, err := json.Marshal(m)
		if err != nil {
			log.Error(ctx, "marshal metrics", zap.String("symbol", m.Symbol), zap.Error(err))
			return
		}
		if _, err := p.js.Publish(p.cfg.NatsSubject, b); err != nil {
			log.Error(ctx, "publish metrics to jetstream", zap.String("symbol", m.Symbol), zap.Error(err))
		}
	}
}

// PublishBookEvent sends one raw order flow event to the events
// topic, keyed by symbol so per-symbol ordering survives partitioning.
func (p *Publisher) PublishBookEvent(ctx context.Context, ev *model.BookEvent) {
	if p.producer == nil || p.cfg.EventsTopic == "" {
		return
	}
	if err := p.producer.PublishJSON(ctx, p.cfg.EventsTopic, ev.Symbol, ev, nil); err != nil {
		log, ctx := logging.GetLogger(ctx)
		log.Error(ctx, "publish book event to kafka", zap.String("symbol", ev.Symbol), zap.Error(err))
	}
}

// LatestSnapshot reads the cached snapshot for a symbol. The second
// return is false when no snapshot is cached.
func (p *Publisher) LatestSnapshot(ctx context.Context, symbol string) (book.Snapshot, bool, error) {
	if p.redis == nil {
		return book.Snapshot{}, false, nil
	}
	b, err := p.redis.Get(ctx, SnapshotKey(symbol)).Bytes()
	if err == redis.Nil {
		return book.Snapshot{}, false, nil
	}
	if err != nil {
		return book.Snapshot{}, false, fmt.Errorf("get cached snapshot: %w", err)
	}
	var snap book.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return book.Snapshot{}, false, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return snap, true, nil
}

func SnapshotKey(symbol string) string {
	return "book:snapshot:" + symbol
}
