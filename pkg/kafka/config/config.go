package kafka_config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
)

// Config holds the broker list and the client tuning shared by the work
// queue consumer, the enqueue producer and the DLQ writer.
type Config struct {
	Brokers []string `validate:"min=1,dive,required"`

	Producer ProducerConfig
	Consumer ConsumerConfig
	Retry    RetryConfig

	EnableMiddleware bool
}

type ProducerConfig struct {
	MaxAttempts  int           `validate:"gt=0"`
	BatchTimeout time.Duration `validate:"gt=0"`
	RequireAcks  int           `validate:"oneof=-1 0 1"`
	Compression  string        `validate:"oneof=none gzip snappy lz4 zstd"`
	Async        bool
}

type ConsumerConfig struct {
	// StartOffset is kafka.LastOffset (-1), kafka.FirstOffset (-2) or an
	// absolute offset.
	StartOffset       int64         `validate:"gte=-2"`
	MinBytes          int           `validate:"gt=0"`
	MaxBytes          int           `validate:"gtefield=MinBytes"`
	MaxWait           time.Duration `validate:"gt=0"`
	CommitInterval    time.Duration `validate:"gt=0"`
	HeartbeatInterval time.Duration `validate:"gt=0"`
	SessionTimeout    time.Duration `validate:"gtfield=HeartbeatInterval"`
	RebalanceTimeout  time.Duration `validate:"gt=0"`
}

// RetryConfig bounds in-process redelivery of a failed job: the n-th retry
// waits BaseDelay * 2^n, capped at MaxDelay.
type RetryConfig struct {
	MaxRetries int           `validate:"gte=0"`
	BaseDelay  time.Duration `validate:"gt=0"`
	MaxDelay   time.Duration `validate:"gtefield=BaseDelay"`
}

var validate = validator.New()

func Load() (*Config, error) {
	def := Default()
	cfg := &Config{
		Brokers: splitBrokers(envOr(EnvKafkaBrokers, strings.Join(def.Brokers, ","), parseString)),

		Producer: ProducerConfig{
			MaxAttempts:  envOr(EnvKafkaProducerMaxAttempts, def.Producer.MaxAttempts, parseInt),
			BatchTimeout: envOr(EnvKafkaProducerBatchTimeout, def.Producer.BatchTimeout, time.ParseDuration),
			RequireAcks:  envOr(EnvKafkaProducerRequireAcks, def.Producer.RequireAcks, parseInt),
			Compression:  strings.ToLower(envOr(EnvKafkaProducerCompression, def.Producer.Compression, parseString)),
			Async:        envOr(EnvKafkaProducerAsync, def.Producer.Async, parseBool),
		},

		Consumer: ConsumerConfig{
			StartOffset:       envOr(EnvKafkaConsumerStartOffset, def.Consumer.StartOffset, parseInt64),
			MinBytes:          envOr(EnvKafkaConsumerMinBytes, def.Consumer.MinBytes, parseInt),
			MaxBytes:          envOr(EnvKafkaConsumerMaxBytes, def.Consumer.MaxBytes, parseInt),
			MaxWait:           envOr(EnvKafkaConsumerMaxWait, def.Consumer.MaxWait, time.ParseDuration),
			CommitInterval:    envOr(EnvKafkaConsumerCommitInterval, def.Consumer.CommitInterval, time.ParseDuration),
			HeartbeatInterval: envOr(EnvKafkaConsumerHeartbeatInterval, def.Consumer.HeartbeatInterval, time.ParseDuration),
			SessionTimeout:    envOr(EnvKafkaConsumerSessionTimeout, def.Consumer.SessionTimeout, time.ParseDuration),
			RebalanceTimeout:  envOr(EnvKafkaConsumerRebalanceTimeout, def.Consumer.RebalanceTimeout, time.ParseDuration),
		},

		Retry: RetryConfig{
			MaxRetries: envOr(EnvKafkaConsumerMaxRetries, def.Retry.MaxRetries, parseInt),
			BaseDelay:  envOr(EnvKafkaRetryBaseDelay, def.Retry.BaseDelay, time.ParseDuration),
			MaxDelay:   envOr(EnvKafkaRetryMaxDelay, def.Retry.MaxDelay, time.ParseDuration),
		},

		EnableMiddleware: envOr(EnvKafkaEnableMiddleware, def.EnableMiddleware, parseBool),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once, numbered, so a broken
// deployment can be fixed in one pass.
func (cfg *Config) Validate() error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("kafka configuration validation failed: %w", err)
	}

	var b strings.Builder
	b.WriteString("kafka configuration validation failed:\n")
	for i, fe := range fieldErrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			fmt.Fprintf(&b, "  %d. %s must satisfy %s=%s, got: %v\n", i+1, field, fe.Tag(), fe.Param(), fe.Value())
		} else {
			fmt.Fprintf(&b, "  %d. %s must satisfy %s, got: %v\n", i+1, field, fe.Tag(), fe.Value())
		}
	}
	return errors.New(b.String())
}

// CompressionCodec maps the configured name onto a kafka-go codec. "none"
// yields the zero value, which disables compression.
func (p ProducerConfig) CompressionCodec() compress.Compression {
	switch p.Compression {
	case "none":
		return 0
	case "gzip":
		return compress.Gzip
	case "lz4":
		return compress.Lz4
	case "zstd":
		return compress.Zstd
	default:
		return compress.Snappy
	}
}

func (p ProducerConfig) Acks() kafka.RequiredAcks {
	switch p.RequireAcks {
	case 0:
		return kafka.RequireNone
	case 1:
		return kafka.RequireOne
	default:
		return kafka.RequireAll
	}
}

func (cfg *Config) LogConfiguration(log *logger.Logger) {
	log.Info("Kafka configuration loaded",
		"brokers", cfg.Brokers,
		"producer_acks", cfg.Producer.RequireAcks,
		"producer_compression", cfg.Producer.Compression,
		"producer_async", cfg.Producer.Async,
		"consumer_start_offset", cfg.Consumer.StartOffset,
		"consumer_max_wait", cfg.Consumer.MaxWait,
		"consumer_session_timeout", cfg.Consumer.SessionTimeout,
		"retry_max", cfg.Retry.MaxRetries,
		"retry_base_delay", cfg.Retry.BaseDelay,
		"retry_max_delay", cfg.Retry.MaxDelay,
		"middleware", cfg.EnableMiddleware,
	)
}

func splitBrokers(raw string) []string {
	brokers := strings.Split(raw, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}
	return brokers
}
