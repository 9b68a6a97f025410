package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HefnerLance/bubble-mongo-linker/internal/links/handler"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/bubble"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/config"
	apperrors "github.com/HefnerLance/bubble-mongo-linker/pkg/errors"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/kafka"
	kafka_config "github.com/HefnerLance/bubble-mongo-linker/pkg/kafka/config"
	kafka_middleware "github.com/HefnerLance/bubble-mongo-linker/pkg/kafka/middleware"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/model"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	enqueueSource      = "enqueue"
	listMaxAttempts    = 5
	listDefaultBackoff = time.Second
)

type recordLister interface {
	ListRecordIDs(ctx context.Context, cursor, limit int) (*bubble.Page, error)
}

type jobPublisher interface {
	PublishBatch(ctx context.Context, msgs []kafka.Message) error
}

type enqueueOptions struct {
	SessionID   string
	StartCursor int
	PageSize    int
	// MaxRecords stops after this many jobs. Zero means all.
	MaxRecords int
}

func newEnqueueCommand() *cobra.Command {
	var opts enqueueOptions

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Page through Bubble records and publish one job per record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(serviceName)
			defer cfg.GracefulShutdown()

			if opts.SessionID == "" {
				opts.SessionID = uuid.NewString()
			}
			if opts.PageSize == 0 {
				opts.PageSize = cfg.BubblePageSize
			}
			opts.PageSize = min(max(opts.PageSize, 1), config.MaxBubblePageSize)
			return runEnqueue(cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SessionID, "session", "", "Session id stamped on every job (default: random)")
	cmd.Flags().IntVar(&opts.StartCursor, "cursor", 0, "Bubble cursor to start from")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "Records per Bubble page (default BUBBLE_PAGE_SIZE)")
	cmd.Flags().IntVar(&opts.MaxRecords, "max", 0, "Stop after this many records (0 = all)")
	return cmd
}

func runEnqueue(cmd *cobra.Command, cfg *config.Config, opts enqueueOptions) error {
	kcfg, err := kafka_config.Load()
	if err != nil {
		return err
	}
	lister, err := newBubbleClient(cfg)
	if err != nil {
		return err
	}

	producer, err := kafka.NewProducer(kcfg, cfg.LinkerTopic, cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close producer", "error", err)
		}
	}()
	if kcfg.EnableMiddleware {
		producer.Use(kafka_middleware.MetricsProducerMiddleware())
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	published, err := enqueueAll(ctx, lister, producer, opts, cfg.Log)
	fmt.Fprintf(cmd.OutOrStdout(), "session %s: enqueued %d records to %s\n", opts.SessionID, published, cfg.LinkerTopic)
	return err
}

// enqueueAll publishes a job for every listed record, one batch per page, and
// returns how many were published.
func enqueueAll(ctx context.Context, lister recordLister, publisher jobPublisher, opts enqueueOptions, log *logger.Logger) (int, error) {
	published := 0
	for cursor := opts.StartCursor; cursor >= 0; {
		limit := opts.PageSize
		if opts.MaxRecords > 0 {
			limit = min(limit, opts.MaxRecords-published)
		}
		if limit <= 0 {
			break
		}

		page, err := listWithRetry(ctx, lister, cursor, limit, log)
		if err != nil {
			return published, fmt.Errorf("failed to list records at cursor %d: %w", cursor, err)
		}
		if page.Count == 0 {
			break
		}
		if len(page.IDs) == 0 {
			log.Warn("Page has no record ids, skipping", "cursor", cursor, "count", page.Count)
			cursor = page.Next()
			continue
		}

		msgs := make([]kafka.Message, 0, len(page.IDs))
		for _, id := range page.IDs {
			msg, err := kafka.NewMessage().
				WithKey(id).
				WithValue(model.Job{RecordID: id}).
				WithEventType(handler.EventTypeReconcile).
				WithSessionID(opts.SessionID).
				WithSource(enqueueSource).
				Build()
			if err != nil {
				return published, err
			}
			msgs = append(msgs, msg)
		}
		if err := publisher.PublishBatch(ctx, msgs); err != nil {
			return published, fmt.Errorf("failed to publish jobs at cursor %d: %w", cursor, err)
		}

		published += len(msgs)
		log.Info("Enqueued page",
			"session_id", opts.SessionID,
			"cursor", cursor,
			"count", len(msgs),
			"remaining", page.Remaining,
			"published", published,
		)
		cursor = page.Next()
	}
	return published, nil
}

func listWithRetry(ctx context.Context, lister recordLister, cursor, limit int, log *logger.Logger) (*bubble.Page, error) {
	for attempt := 1; ; attempt++ {
		page, err := lister.ListRecordIDs(ctx, cursor, limit)
		if err == nil || !apperrors.IsRetryable(err) || attempt == listMaxAttempts {
			return page, err
		}

		wait := apperrors.RetryAfter(err)
		if wait <= 0 {
			wait = listDefaultBackoff * time.Duration(attempt)
		}
		log.Warn("Listing failed, retrying", "cursor", cursor, "attempt", attempt, "wait", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
