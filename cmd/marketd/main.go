package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/joripage/microbook/config"
	"github.com/joripage/microbook/pkg/analytics"
	"github.com/joripage/microbook/pkg/book"
	"github.com/joripage/microbook/pkg/feed"
	redis_wrapper "github.com/joripage/microbook/pkg/infra/redis"
	"github.com/joripage/microbook/pkg/kafkabus"
	"github.com/joripage/microbook/pkg/marketdata"
	"github.com/joripage/microbook/pkg/publish"
	"github.com/joripage/microbook/pkg/store/model"
)

func main() {
	var configFile string
	var tickFile string
	var synthetic int
	var symbol string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&tickFile, "tick-file", "", "CSV tick file to replay")
	flag.IntVar(&synthetic, "synthetic", 0, "Generate this many synthetic ticks instead of replaying a file")
	flag.StringVar(&symbol, "symbol", "SYN", "Symbol for synthetic ticks")
	flag.Parse()

	go func() {
		_ = http.ListenAndServe("localhost:6060", nil)
	}()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	configBytes, err := json.MarshalIndent(cfg, "", "   ")
	if err != nil {
		zap.S().Warnf("could not convert config to JSON: %v", err)
	} else {
		zap.S().Debugf("load config %s", string(configBytes))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// analytics
	windowSize := analytics.DefaultWindowSize
	toxicThreshold := analytics.DefaultToxicThreshold
	if cfg.Analytics != nil {
		if cfg.Analytics.WindowSize > 0 {
			windowSize = cfg.Analytics.WindowSize
		}
		if cfg.Analytics.ToxicThreshold > 0 {
			toxicThreshold = cfg.Analytics.ToxicThreshold
		}
	}
	registry := book.NewRegistry()
	analyzer := analytics.NewAnalyzer(windowSize)
	detector := analytics.NewToxicFlowDetector(windowSize, 10, toxicThreshold)

	// sinks
	var producer *kafkabus.Producer
	pubCfg := publish.Config{}
	if cfg.Kafka != nil {
		producer = kafkabus.NewProducer(kafkabus.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		defer producer.Close()
		pubCfg.SnapshotTopic = cfg.Kafka.SnapshotTopic
		pubCfg.MetricsTopic = cfg.Kafka.MetricsTopic
		pubCfg.EventsTopic = cfg.Kafka.EventsTopic
	}

	var js nats.JetStreamContext
	if cfg.Nats != nil && cfg.Nats.URL != "" {
		nc, err := nats.Connect(cfg.Nats.URL)
		if err != nil {
			zap.S().Errorf("connect nats fail with err: %v", err)
			panic(err)
		}
		defer nc.Close()
		js, err = nc.JetStream()
		if err != nil {
			panic(err)
		}
		_, _ = js.AddStream(&nats.StreamConfig{
			Name:     cfg.Nats.Stream,
			Subjects: []string{cfg.Nats.Stream + ".*"},
		})
		pubCfg.NatsSubject = cfg.Nats.Subject
	}

	publisher := publish.NewPublisher(pubCfg, producer, nil, js)
	if cfg.Redis != nil {
		rd, err := redis_wrapper.InitRedis(cfg.Redis)
		if err != nil {
			zap.S().Errorf("init redis fail with err: %v", err)
			panic(err)
		}
		publisher = publish.NewPublisher(pubCfg, producer, rd, js)
	}

	// feed
	feedCfg := feed.Config{}
	if cfg.Feed != nil {
		feedCfg.QueueSize = cfg.Feed.QueueSize
		feedCfg.SnapshotDepth = cfg.Feed.SnapshotDepth
	}
	handler := feed.NewHandler(feedCfg, registry, analyzer, detector)
	handler.SubscribeBook(func(snap book.Snapshot) {
		publisher.PublishSnapshot(ctx, snap)
	})
	handler.SubscribeMetrics(func(m analytics.Metrics) {
		publisher.PublishMetrics(ctx, m)
	})
	handler.Start(ctx)
	defer handler.Stop()

	go func() {
		if err := pumpTicks(ctx, handler, publisher, tickFile, synthetic, symbol); err != nil {
			zap.S().Errorf("tick pump stopped with err: %v", err)
		}
	}()

	fmt.Println("marketd started. Press Ctrl+C to exit.")
	<-sigs
	cancel()
}

func pumpTicks(ctx context.Context, handler *feed.Handler, publisher *publish.Publisher, tickFile string, synthetic int, symbol string) error {
	var ticks []marketdata.Tick
	var err error
	switch {
	case tickFile != "":
		ticks, err = marketdata.LoadCSV(tickFile, 0, 0)
		if err != nil {
			return err
		}
	case synthetic > 0:
		ticks = marketdata.Generate(marketdata.GeneratorConfig{
			Symbol: symbol,
			Seed:   time.Now().UnixNano(),
		}, time.Now().UnixNano(), synthetic)
	default:
		return nil
	}

	for _, t := range ticks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		submitTick(ctx, handler, publisher, t)
	}
	return nil
}

func submitTick(ctx context.Context, handler *feed.Handler, publisher *publish.Publisher, t marketdata.Tick) {
	ts := time.Unix(0, t.Timestamp)
	publisher.PublishBookEvent(ctx, &model.BookEvent{
		EventID:   model.NewEventID(t.Symbol, t.OrderID, model.BookEventType(t.Type), ts),
		Symbol:    t.Symbol,
		OrderID:   t.OrderID,
		EventType: model.BookEventType(t.Type),
		Side:      string(t.Side),
		Price:     decimal.NewFromFloat(t.Price),
		Qty:       decimal.NewFromFloat(t.Qty),
		Timestamp: ts,
	})

	if t.Type == marketdata.EventTrade {
		for !handler.SubmitTrade(feed.TradeEvent{
			Symbol:    t.Symbol,
			Price:     t.Price,
			Qty:       t.Qty,
			Side:      t.Side,
			Timestamp: t.Timestamp,
		}) {
			if ctx.Err() != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
		return
	}

	var action analytics.OrderAction
	switch t.Type {
	case marketdata.EventAdd:
		action = analytics.OrderActionAdd
	case marketdata.EventModify:
		action = analytics.OrderActionModify
	case marketdata.EventCancel:
		action = analytics.OrderActionCancel
	}
	for !handler.SubmitOrder(feed.OrderEvent{
		Action:    action,
		Symbol:    t.Symbol,
		OrderID:   t.OrderID,
		Side:      t.Side,
		Price:     t.Price,
		Qty:       t.Qty,
		Timestamp: t.Timestamp,
	}) {
		if ctx.Err() != nil {
			return
		}
		time.Sleep(time.Millisecond)
	}
}
