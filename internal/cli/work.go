package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HefnerLance/bubble-mongo-linker/internal/links/handler"
	"github.com/HefnerLance/bubble-mongo-linker/internal/report"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/app"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/config"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/kafka"
	kafka_config "github.com/HefnerLance/bubble-mongo-linker/pkg/kafka/config"
	kafka_middleware "github.com/HefnerLance/bubble-mongo-linker/pkg/kafka/middleware"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWorkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Consume record jobs from Kafka and reconcile them",
		Long: "work consumes jobs from LINKER_TOPIC with WORKER_COUNT concurrent workers.\n" +
			"Failed jobs are retried with backoff and then written to LINKER_DLQ_TOPIC.\n" +
			"Health, metrics and the inspection API are served on PORT.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(serviceName)
			defer cfg.GracefulShutdown()
			return runWorker(cmd, cfg)
		},
	}
}

func runWorker(cmd *cobra.Command, cfg *config.Config) error {
	kcfg, err := kafka_config.Load()
	if err != nil {
		return err
	}
	kcfg.LogConfiguration(cfg.Log)

	deps, err := buildReconciler(cfg)
	if err != nil {
		return err
	}

	tally := report.New("")
	jobs := handler.NewJobHandler(deps.reconciler, tally, cfg.Log)

	consumer, err := kafka.NewConsumer(kcfg, cfg.LinkerTopic, cfg.LinkerGroupID, cfg.LinkerDLQTopic, jobs.Handle, kafka.ConsumerOptions{
		Workers:      cfg.WorkerCount,
		DrainTimeout: cfg.ShutdownTimeout,
		OnFailure:    jobs.OnFailure,
		Logger:       cfg.Log,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	if kcfg.EnableMiddleware {
		consumer.Use(kafka_middleware.MetricsConsumerMiddleware())
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	}

	application := app.NewApplication(cfg)
	application.SetApp(
		handler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
		handler.NewLinkHandler(deps.links, tally, cfg.Log),
	)
	serverErrs, err := application.Start()
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Worker started",
		"session_id", tally.SessionID(),
		"topic", cfg.LinkerTopic,
		"group_id", cfg.LinkerGroupID,
		"workers", cfg.WorkerCount,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := consumer.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		select {
		case err := <-serverErrs:
			if err != nil {
				return fmt.Errorf("HTTP server failed: %w", err)
			}
			return nil
		case <-gctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
			defer cancel()
			application.Shutdown(shutdownCtx)
			return nil
		}
	})

	runErr := g.Wait()
	cfg.Log.Info("Shutting down worker", "session_id", tally.SessionID())

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close consumer", "error", err)
	}
	if err := tally.Print(cmd.OutOrStdout()); err != nil {
		cfg.Log.Error("Failed to print session report", "error", err)
	}
	return runErr
}
