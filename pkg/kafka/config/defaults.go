package kafka_config

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// Default returns the settings used for any variable left unset. The linker
// reads its topic from the beginning the first time a group joins, so a fresh
// deployment picks up jobs enqueued before the workers started.
func Default() Config {
	return Config{
		Brokers: []string{"localhost:9092"},
		Producer: ProducerConfig{
			MaxAttempts:  3,
			BatchTimeout: 10 * time.Millisecond,
			RequireAcks:  int(kafka.RequireAll),
			Compression:  "snappy",
		},
		Consumer: ConsumerConfig{
			StartOffset:       kafka.FirstOffset,
			MinBytes:          1,
			MaxBytes:          10 << 20,
			MaxWait:           500 * time.Millisecond,
			CommitInterval:    time.Second,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    10 * time.Second,
			RebalanceTimeout:  time.Minute,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  500 * time.Millisecond,
			MaxDelay:   30 * time.Second,
		},
		EnableMiddleware: true,
	}
}
