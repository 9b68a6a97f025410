package kafka

import (
	"context"
	"fmt"
	"sync"

	kafka_config "github.com/HefnerLance/bubble-mongo-linker/pkg/kafka/config"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Producer wraps kafka-go writer with additional functionality
type Producer struct {
	writer     messageWriter
	topic      string
	middleware []ProducerMiddleware
	closed     bool
	mu         sync.RWMutex
}

// ProducerMiddleware allows intercepting publish operations
type ProducerMiddleware func(ctx context.Context, msgs []Message, next func(ctx context.Context, msgs []Message) error) error

func NewProducer(cfg *kafka_config.Config, topic string, log *logger.Logger) (*Producer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if log == nil {
		log = logger.Discard()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // Hash by key for ordering
		RequiredAcks: cfg.Producer.Acks(),
		Compression:  cfg.Producer.CompressionCodec(),
		MaxAttempts:  cfg.Producer.MaxAttempts,
		BatchTimeout: cfg.Producer.BatchTimeout,
		Async:        cfg.Producer.Async,
		Logger:       kafka.LoggerFunc(func(msg string, args ...any) {}),
		ErrorLogger:  errorLogger(log),
	}

	return newProducer(writer, topic), nil
}

func newProducer(writer messageWriter, topic string) *Producer {
	return &Producer{writer: writer, topic: topic}
}

func (p *Producer) Topic() string {
	return p.topic
}

func (p *Producer) Use(middleware ProducerMiddleware) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.middleware = append(p.middleware, middleware)
}

func (p *Producer) Publish(ctx context.Context, msg Message) error {
	return p.PublishBatch(ctx, []Message{msg})
}

// PublishBatch writes msgs in one call. A message without key or value fails
// the whole batch.
func (p *Producer) PublishBatch(ctx context.Context, msgs []Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrProducerClosed
	}
	handler := p.publishInternal
	for i := len(p.middleware) - 1; i >= 0; i-- {
		middleware := p.middleware[i]
		next := handler
		handler = func(ctx context.Context, m []Message) error {
			return middleware(ctx, m, next)
		}
	}
	p.mu.RUnlock()

	if len(msgs) == 0 {
		return ErrInvalidMessage
	}
	for i := range msgs {
		if msgs[i].Key == "" {
			return ErrEmptyKey
		}
		if len(msgs[i].Value) == 0 {
			return ErrEmptyValue
		}
		msgs[i].Topic = p.topic
	}

	return handler(ctx, msgs)
}

func (p *Producer) publishInternal(ctx context.Context, msgs []Message) error {
	kafkaMessages := make([]kafka.Message, 0, len(msgs))
	for _, msg := range msgs {
		kafkaMessages = append(kafkaMessages, toKafkaMessage(msg))
	}
	if err := p.writer.WriteMessages(ctx, kafkaMessages...); err != nil {
		return classifyWriteError("failed to write messages to "+p.topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}
