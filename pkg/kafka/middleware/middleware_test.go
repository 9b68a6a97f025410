package kafka_middleware

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/HefnerLance/bubble-mongo-linker/pkg/kafka"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLoggingConsumerMiddleware_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Output: &buf, Level: logger.DEBUG})
	mw := LoggingConsumerMiddleware(log)

	boom := errors.New("boom")
	err := mw(context.Background(), kafka.Message{Topic: "t", Key: "rec-1", Headers: map[string]string{}},
		func(ctx context.Context, msg kafka.Message) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), "Failed to process message")
	assert.Contains(t, buf.String(), "rec-1")
}

func TestMetricsConsumerMiddleware_CountsByStatus(t *testing.T) {
	mw := MetricsConsumerMiddleware()
	topic := "metrics-consumer-test"

	ok := func(ctx context.Context, msg kafka.Message) error { return nil }
	fail := func(ctx context.Context, msg kafka.Message) error { return errors.New("x") }

	_ = mw(context.Background(), kafka.Message{Topic: topic}, ok)
	_ = mw(context.Background(), kafka.Message{Topic: topic}, ok)
	_ = mw(context.Background(), kafka.Message{Topic: topic}, fail)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.QueueMessagesConsumed.WithLabelValues(topic, statusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QueueMessagesConsumed.WithLabelValues(topic, statusError)))
}

func TestMetricsProducerMiddleware_CountsEveryMessage(t *testing.T) {
	mw := MetricsProducerMiddleware()
	topic := "metrics-producer-test"
	msgs := []kafka.Message{{Topic: topic}, {Topic: topic}, {Topic: topic}}

	_ = mw(context.Background(), msgs, func(ctx context.Context, m []kafka.Message) error { return nil })

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.QueueMessagesPublished.WithLabelValues(topic, statusSuccess)))
}
