package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/joripage/microbook/config"
	postgres_wrapper "github.com/joripage/microbook/pkg/infra/postgres"
	"github.com/joripage/microbook/pkg/kafkabus"
	"github.com/joripage/microbook/pkg/store/repo"
	"github.com/joripage/microbook/pkg/worker"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

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

	// NATS
	natsURL := nats.DefaultURL
	if cfg.Nats != nil && cfg.Nats.URL != "" {
		natsURL = cfg.Nats.URL
	}
	nc, err := nats.Connect(natsURL)
	if err != nil {
		zap.S().Errorf("connect nats fail with err: %v", err)
		panic(err)
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		panic(err)
	}

	// Ensure stream
	_, _ = js.AddStream(&nats.StreamConfig{
		Name:     cfg.Nats.Stream,
		Subjects: []string{cfg.Nats.Stream + ".*"},
	})

	// init db
	db, err := postgres_wrapper.InitPostgres(cfg.MetricsDB)
	if err != nil {
		zap.S().Errorf("init db fail with err: %v", err)
		panic(err)
	}

	// init repo
	sqlRepo := repo.NewRepo(db)

	// metrics off jetstream
	w := worker.NewWorker(sqlRepo)
	go func() {
		if err := w.StartConsumer(ctx, js, cfg.Nats.Subject, cfg.Nats.Durable); err != nil && ctx.Err() == nil {
			zap.S().Errorf("metrics consumer stopped with err: %v", err)
		}
	}()

	// raw book events off kafka
	if cfg.Kafka != nil && cfg.Kafka.EventsTopic != "" {
		group, err := kafkabus.NewConsumerGroup(kafkabus.ConsumerConfig{
			Brokers:  cfg.Kafka.Brokers,
			GroupID:  cfg.Kafka.EventsGroup,
			Topic:    cfg.Kafka.EventsTopic,
			DLQTopic: cfg.Kafka.EventsDLQ,
		})
		if err != nil {
			zap.S().Errorf("init kafka consumer fail with err: %v", err)
			panic(err)
		}
		defer group.Close()

		ec := worker.NewEventConsumer(sqlRepo, group)
		go func() {
			if err := ec.Run(ctx); err != nil && ctx.Err() == nil {
				zap.S().Errorf("event consumer stopped with err: %v", err)
			}
		}()
	}

	<-sigs
	cancel()
}
