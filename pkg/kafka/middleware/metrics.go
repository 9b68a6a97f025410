package kafka_middleware

import (
	"context"

	"github.com/HefnerLance/bubble-mongo-linker/pkg/kafka"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/metrics"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// MetricsProducerMiddleware counts published messages per topic and status
func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msgs []kafka.Message, next func(ctx context.Context, msgs []kafka.Message) error) error {
		err := next(ctx, msgs)

		status := statusSuccess
		if err != nil {
			status = statusError
		}
		for _, msg := range msgs {
			metrics.QueueMessagesPublished.WithLabelValues(msg.Topic, status).Inc()
		}
		return err
	}
}

// MetricsConsumerMiddleware counts handler attempts per topic and status.
// Retries are counted as separate attempts.
func MetricsConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		err := next(ctx, msg)

		status := statusSuccess
		if err != nil {
			status = statusError
		}
		metrics.QueueMessagesConsumed.WithLabelValues(msg.Topic, status).Inc()
		return err
	}
}
