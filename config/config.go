package config

import (
	"os"

	postgres_wrapper "github.com/joripage/microbook/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/microbook/pkg/infra/redis"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	SnapshotTopic string   `yaml:"snapshot_topic"`
	MetricsTopic  string   `yaml:"metrics_topic"`
	EventsTopic   string   `yaml:"events_topic"`
	EventsGroup   string   `yaml:"events_group"`
	EventsDLQ     string   `yaml:"events_dlq"`
}

type NatsConfig struct {
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
	Subject string `yaml:"subject"`
	Durable string `yaml:"durable"`
}

type FeedConfig struct {
	QueueSize     int `yaml:"queue_size"`
	SnapshotDepth int `yaml:"snapshot_depth"`
}

type AnalyticsConfig struct {
	WindowSize     int     `yaml:"window_size"`
	ToxicThreshold float64 `yaml:"toxic_threshold"`
}

type AppConfig struct {
	ServiceName string                           `yaml:"service_name"`
	MetricsDB   *postgres_wrapper.PostgresConfig `yaml:"metrics_db"`
	Redis       *redis_wrapper.RedisConfig       `yaml:"redis"`
	Kafka       *KafkaConfig                     `yaml:"kafka"`
	Nats        *NatsConfig                      `yaml:"nats"`
	Feed        *FeedConfig                      `yaml:"feed"`
	Analytics   *AnalyticsConfig                 `yaml:"analytics"`
}

// Load load config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")
	zap.S().Debugf("CONFIG_FILE=%v", filePath)

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}

	err = yaml.Unmarshal(configBytes, cfg)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)

	return cfg, nil
}
