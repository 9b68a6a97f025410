package handler

import (
	"context"
	"time"

	"github.com/HefnerLance/bubble-mongo-linker/internal/links/service"
	"github.com/HefnerLance/bubble-mongo-linker/internal/report"
	apperrors "github.com/HefnerLance/bubble-mongo-linker/pkg/errors"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/kafka"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/model"

	"github.com/go-playground/validator/v10"
)

const EventTypeReconcile = "record.reconcile"

// JobHandler turns queue messages into reconciliations.
type JobHandler struct {
	reconciler service.Reconciler
	tally      *report.Tally
	validate   *validator.Validate
	log        *logger.Logger
}

func NewJobHandler(reconciler service.Reconciler, tally *report.Tally, log *logger.Logger) *JobHandler {
	return &JobHandler{
		reconciler: reconciler,
		tally:      tally,
		validate:   validator.New(),
		log:        log,
	}
}

// Handle is a kafka.MessageHandler. Reconciliation errors are returned
// unchanged so the consumer can retry the retryable ones.
func (h *JobHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var job model.Job
	if err := msg.DecodeValue(&job); err != nil {
		return apperrors.Validation("malformed job payload", map[string]any{
			"key":   msg.Key,
			"error": err.Error(),
		})
	}
	if err := h.validate.Struct(job); err != nil {
		return apperrors.Validation("invalid job", map[string]any{
			"key":   msg.Key,
			"error": err.Error(),
		})
	}

	start := time.Now()
	outcome, err := h.reconciler.Reconcile(ctx, job.RecordID)
	if err != nil {
		return err
	}

	h.tally.Record(outcome)
	LogOutcome(h.log, outcome, time.Since(start), "session_id", msg.GetSessionID())
	return nil
}

// OnFailure is called by the consumer for messages it gives up on.
func (h *JobHandler) OnFailure(msg kafka.Message, err error) {
	h.tally.RecordFailure()
	LogFailure(h.log, msg.Key, err, "session_id", msg.GetSessionID())
}

// LogOutcome writes the one line every completed record gets.
func LogOutcome(log *logger.Logger, outcome *model.Outcome, elapsed time.Duration, attrs ...any) {
	args := []any{
		"record_id", outcome.RecordID,
		"status", outcome.Status,
		"match_type", outcome.MatchType,
		"link_id", outcome.LinkID,
		"duration_ms", elapsed.Milliseconds(),
	}
	log.Info("Record reconciled", append(args, attrs...)...)
}

func LogFailure(log *logger.Logger, recordID string, err error, attrs ...any) {
	args := []any{
		"record_id", recordID,
		"status", report.Failed,
		"error_code", kafka.ErrorCode(err),
		"retryable", apperrors.IsRetryable(err),
		"error", err,
	}
	log.Error("Record reconciliation failed", append(args, attrs...)...)
}
