package kafka_middleware

import (
	"context"
	"time"

	"github.com/HefnerLance/bubble-mongo-linker/pkg/kafka"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"
)

// LoggingProducerMiddleware logs message publishing operations
func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msgs []kafka.Message, next func(ctx context.Context, msgs []kafka.Message) error) error {
		start := time.Now()
		topic := ""
		if len(msgs) > 0 {
			topic = msgs[0].Topic
		}

		err := next(ctx, msgs)

		if err != nil {
			log.Error("Failed to publish messages",
				"topic", topic,
				"count", len(msgs),
				"duration", time.Since(start),
				"error", err,
			)
		} else {
			log.Debug("Published messages",
				"topic", topic,
				"count", len(msgs),
				"duration", time.Since(start),
			)
		}

		return err
	}
}

// LoggingConsumerMiddleware logs message consumption operations
func LoggingConsumerMiddleware(log *logger.Logger) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()

		log.Debug("Processing message",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"retry_count", msg.GetRetryCount(),
		)

		err := next(ctx, msg)

		if err != nil {
			log.Warn("Failed to process message",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", msg.Key,
				"event_id", msg.GetEventID(),
				"duration", time.Since(start),
				"error", err,
			)
		} else {
			log.Debug("Processed message",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", msg.Key,
				"duration", time.Since(start),
			)
		}

		return err
	}
}
