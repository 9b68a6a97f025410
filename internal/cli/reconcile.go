package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/HefnerLance/bubble-mongo-linker/internal/links/handler"
	"github.com/HefnerLance/bubble-mongo-linker/internal/links/service"
	"github.com/HefnerLance/bubble-mongo-linker/internal/report"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/config"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newReconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [record-id...]",
		Short: "Reconcile the given record ids directly, without Kafka",
		Long: "reconcile links each given record id using WORKER_COUNT workers and prints\n" +
			"the session report. With no arguments, or with \"-\", ids are read from\n" +
			"stdin one per line. Use it to reprocess ids taken from the DLQ.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := args
			if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
				var err error
				if ids, err = readIDs(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			if len(ids) == 0 {
				return fmt.Errorf("no record ids given")
			}

			cfg := config.Load(serviceName)
			defer cfg.GracefulShutdown()

			deps, err := buildReconciler(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tally := report.New("")
			runErr := reconcileIDs(ctx, deps.reconciler, ids, cfg.WorkerCount, tally, cfg.Log)
			if err := tally.Print(cmd.OutOrStdout()); err != nil {
				return err
			}
			return runErr
		},
	}
}

// readIDs reads one id per line, skipping blank lines and # comments.
func readIDs(r io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read record ids: %w", err)
	}
	return ids, nil
}

// reconcileIDs runs at most workers reconciliations at a time. A failing
// record does not stop the others; the error reports how many failed.
func reconcileIDs(ctx context.Context, r service.Reconciler, ids []string, workers int, tally *report.Tally, log *logger.Logger) error {
	g := new(errgroup.Group)
	g.SetLimit(max(workers, 1))

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			start := time.Now()
			outcome, err := r.Reconcile(ctx, id)
			if err != nil {
				tally.RecordFailure()
				handler.LogFailure(log, id, err, "session_id", tally.SessionID())
				return nil
			}
			tally.Record(outcome)
			handler.LogOutcome(log, outcome, time.Since(start), "session_id", tally.SessionID())
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed := tally.Snapshot().Counts[report.Failed]; failed > 0 {
		return fmt.Errorf("%d of %d records failed", failed, len(ids))
	}
	return nil
}
