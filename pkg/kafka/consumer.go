package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/HefnerLance/bubble-mongo-linker/pkg/errors"
	kafka_config "github.com/HefnerLance/bubble-mongo-linker/pkg/kafka/config"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/metrics"

	"github.com/segmentio/kafka-go"
)

const (
	defaultWorkers      = 5
	defaultDrainTimeout = 30 * time.Second
	fetchErrorBackoff   = time.Second
	sideEffectTimeout   = 10 * time.Second
)

type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Stats() kafka.ReaderStats
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerMiddleware func(ctx context.Context, msg Message, next MessageHandler) error

type ConsumerOptions struct {
	// Workers bounds the number of messages handled concurrently.
	Workers int
	// DrainTimeout bounds how long in-flight handlers may run after the
	// consume context is cancelled.
	DrainTimeout time.Duration
	// OnFailure is called once per message that ends up in the DLQ.
	OnFailure func(msg Message, err error)
	Logger    *logger.Logger
}

// Consumer fetches messages on one goroutine and hands them to a bounded
// pool of workers. Transient handler errors are retried with exponential
// backoff; exhausted or permanent failures are written to the DLQ topic.
type Consumer struct {
	reader    fetcher
	dlqWriter messageWriter

	topic      string
	groupID    string
	dlqTopic   string
	maxRetries int
	retryBase  time.Duration
	retryMax   time.Duration

	workers      int
	drainTimeout time.Duration
	handler      MessageHandler
	middleware   []ConsumerMiddleware
	onFailure    func(msg Message, err error)
	log          *logger.Logger

	offsets   *offsetTracker
	commitMu  sync.Mutex
	committed map[int]int64

	closed bool
	mu     sync.RWMutex
	wg     sync.WaitGroup
}

func NewConsumer(cfg *kafka_config.Config, topic, groupID, dlqTopic string, handler MessageHandler, opts ConsumerOptions) (*Consumer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("group ID cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("message handler cannot be nil")
	}

	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		Topic:             topic,
		GroupID:           groupID,
		MinBytes:          cfg.Consumer.MinBytes,
		MaxBytes:          cfg.Consumer.MaxBytes,
		MaxWait:           cfg.Consumer.MaxWait,
		CommitInterval:    cfg.Consumer.CommitInterval,
		HeartbeatInterval: cfg.Consumer.HeartbeatInterval,
		SessionTimeout:    cfg.Consumer.SessionTimeout,
		RebalanceTimeout:  cfg.Consumer.RebalanceTimeout,
		StartOffset:       cfg.Consumer.StartOffset,
		Logger:            kafka.LoggerFunc(func(msg string, args ...any) {}),
		ErrorLogger:       errorLogger(log),
	})

	var dlqWriter messageWriter
	if dlqTopic != "" {
		dlqWriter = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        dlqTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  cfg.Producer.CompressionCodec(),
			MaxAttempts:  cfg.Producer.MaxAttempts,
			Logger:       kafka.LoggerFunc(func(msg string, args ...any) {}),
			ErrorLogger:  errorLogger(log),
		}
	}

	c := newConsumer(reader, dlqWriter, handler, opts)
	c.topic = topic
	c.groupID = groupID
	c.dlqTopic = dlqTopic
	c.maxRetries = cfg.Retry.MaxRetries
	c.retryBase = cfg.Retry.BaseDelay
	c.retryMax = cfg.Retry.MaxDelay
	return c, nil
}

func newConsumer(reader fetcher, dlqWriter messageWriter, handler MessageHandler, opts ConsumerOptions) *Consumer {
	retry := kafka_config.Default().Retry
	c := &Consumer{
		reader:       reader,
		dlqWriter:    dlqWriter,
		retryBase:    retry.BaseDelay,
		retryMax:     retry.MaxDelay,
		maxRetries:   retry.MaxRetries,
		workers:      opts.Workers,
		drainTimeout: opts.DrainTimeout,
		handler:      handler,
		onFailure:    opts.OnFailure,
		log:          opts.Logger,
		offsets:      newOffsetTracker(),
		committed:    make(map[int]int64),
	}
	if c.workers <= 0 {
		c.workers = defaultWorkers
	}
	if c.drainTimeout <= 0 {
		c.drainTimeout = defaultDrainTimeout
	}
	if c.log == nil {
		c.log = logger.Discard()
	}
	return c
}

func errorLogger(log *logger.Logger) kafka.Logger {
	return kafka.LoggerFunc(func(msg string, args ...any) {
		log.Error("kafka client error", "detail", fmt.Sprintf(msg, args...))
	})
}

func (c *Consumer) Use(middleware ConsumerMiddleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, middleware)
}

// Start consumes until ctx is cancelled. On cancellation it stops fetching,
// waits for in-flight handlers (up to the drain timeout) and returns
// ctx.Err().
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrConsumerClosed
	}
	handler := c.chain()
	c.mu.RUnlock()

	c.wg.Add(1)
	defer c.wg.Done()

	handlerCtx, cancelHandlers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelHandlers()

	jobs := make(chan kafka.Message)
	var workers sync.WaitGroup
	for range c.workers {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for km := range jobs {
				c.handle(handlerCtx, handler, km)
			}
		}()
	}

	err := c.fetchLoop(ctx, jobs)
	close(jobs)

	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()

	timer := time.NewTimer(c.drainTimeout)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		c.log.Warn("Drain timeout exceeded, cancelling in-flight handlers",
			"topic", c.topic,
			"in_flight", c.offsets.inFlight(),
		)
		cancelHandlers()
		<-drained
	}

	return err
}

func (c *Consumer) fetchLoop(ctx context.Context, jobs chan<- kafka.Message) error {
	for {
		km, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return ErrConsumerClosed
			}
			c.log.Error("Failed to fetch message", "topic", c.topic, "error", err)
			if err := sleepCtx(ctx, fetchErrorBackoff); err != nil {
				return err
			}
			continue
		}

		c.offsets.dispatch(km)
		select {
		case jobs <- km:
		case <-ctx.Done():
			// Never handed to a worker, so never committed: it is redelivered.
			return ctx.Err()
		}
	}
}

func (c *Consumer) chain() MessageHandler {
	handler := c.handler
	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := handler
		handler = func(ctx context.Context, m Message) error {
			return middleware(ctx, m, next)
		}
	}
	return handler
}

func (c *Consumer) handle(ctx context.Context, handler MessageHandler, km kafka.Message) {
	metrics.QueueInFlight.Inc()
	defer metrics.QueueInFlight.Dec()

	msg := fromKafkaMessage(km)
	if err := c.process(ctx, handler, &msg); err != nil {
		c.fail(ctx, msg, err)
	}

	if next, ok := c.offsets.complete(km); ok {
		c.commit(ctx, next)
	}
}

// process runs handler, retrying transient failures with exponential backoff.
func (c *Consumer) process(ctx context.Context, handler MessageHandler, msg *Message) error {
	for {
		err := handler(ctx, *msg)
		if err == nil {
			return nil
		}

		retries := msg.GetRetryCount()
		if !ShouldRetry(err, retries, c.maxRetries) {
			if retries >= c.maxRetries && ClassifyError(err) == ErrorTypeTransient {
				return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
			}
			return err
		}

		delay := c.backoff(retries, err)
		msg.IncrementRetryCount()
		metrics.QueueRetries.WithLabelValues(c.topic).Inc()
		c.log.Warn("Retrying message",
			"topic", msg.Topic,
			"key", msg.Key,
			"attempt", retries+1,
			"max_retries", c.maxRetries,
			"delay", delay,
			"error", err,
		)

		if waitErr := sleepCtx(ctx, delay); waitErr != nil {
			return err
		}
	}
}

// backoff returns retryBase * 2^attempt capped at retryMax, stretched to the
// upstream Retry-After when that is longer.
func (c *Consumer) backoff(attempt int, err error) time.Duration {
	d := c.retryBase
	for i := 0; i < attempt && d < c.retryMax; i++ {
		d *= 2
	}
	if ra := apperrors.RetryAfter(err); ra > d {
		d = ra
	}
	return min(d, c.retryMax)
}

func (c *Consumer) fail(ctx context.Context, msg Message, err error) {
	code := ErrorCode(err)
	metrics.DLQMessagesTotal.WithLabelValues(c.topic, code).Inc()

	if c.onFailure != nil {
		c.onFailure(msg, err)
	}

	if c.dlqWriter == nil {
		c.log.Error("Message failed, no DLQ configured",
			"topic", msg.Topic,
			"key", msg.Key,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}

	dlqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if dlqErr := c.sendToDLQ(dlqCtx, msg, err); dlqErr != nil {
		c.log.Error("Failed to send message to DLQ",
			"topic", msg.Topic,
			"key", msg.Key,
			"offset", msg.Offset,
			"error", err,
			"dlq_error", dlqErr,
		)
		return
	}
	c.log.Warn("Message sent to DLQ",
		"topic", msg.Topic,
		"dlq_topic", c.dlqTopic,
		"key", msg.Key,
		"retries", msg.GetRetryCount(),
		"error_code", code,
		"error", err,
	)
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg Message, originalErr error) error {
	headers := make(map[string]string, len(msg.Headers)+6)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[HeaderOriginalTopic] = c.topic
	headers[HeaderDLQError] = originalErr.Error()
	headers[HeaderDLQErrorCode] = ErrorCode(originalErr)
	headers[HeaderDLQTimestamp] = time.Now().Format(time.RFC3339)
	headers[HeaderDLQConsumerGroup] = c.groupID
	headers[HeaderDLQPartition] = strconv.Itoa(msg.Partition)
	headers[HeaderDLQOffset] = strconv.FormatInt(msg.Offset, 10)

	// Retries restart from zero when the message is replayed.
	delete(headers, HeaderRetryCount)

	dlqMsg := msg
	dlqMsg.Headers = headers
	dlqMsg.Timestamp = time.Now()
	if err := c.dlqWriter.WriteMessages(ctx, toKafkaMessage(dlqMsg)); err != nil {
		return classifyWriteError("failed to write message to "+c.dlqTopic, err)
	}
	return nil
}

func (c *Consumer) commit(ctx context.Context, km kafka.Message) {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	if last, ok := c.committed[km.Partition]; ok && km.Offset <= last {
		return
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := c.reader.CommitMessages(commitCtx, km); err != nil {
		c.log.Error("Failed to commit offset",
			"topic", km.Topic,
			"partition", km.Partition,
			"offset", km.Offset,
			"error", err,
		)
		return
	}
	c.committed[km.Partition] = km.Offset
}

// Close waits for Start to return and releases the reader and DLQ writer.
// Cancel the context passed to Start first.
func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()

	var errs []error
	if c.reader != nil {
		errs = append(errs, c.reader.Close())
	}
	if c.dlqWriter != nil {
		errs = append(errs, c.dlqWriter.Close())
	}
	return errors.Join(errs...)
}

func (c *Consumer) Stats() kafka.ReaderStats {
	return c.reader.Stats()
}

func (c *Consumer) Lag() int64 {
	return c.reader.Stats().Lag
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
