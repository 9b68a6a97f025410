package service

import (
	"context"
	"errors"
	"time"

	"github.com/HefnerLance/bubble-mongo-linker/internal/businesses/matcher"
	linkserrors "github.com/HefnerLance/bubble-mongo-linker/internal/links/errors"
	"github.com/HefnerLance/bubble-mongo-linker/internal/links/repository"
	apperrors "github.com/HefnerLance/bubble-mongo-linker/pkg/errors"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/metrics"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/model"
)

// maxRounds bounds the find-or-insert loop. A round only repeats when a link
// vanished between a duplicate-key rejection and the merge.
const maxRounds = 3

type RecordFetcher interface {
	GetRecord(ctx context.Context, id string) (*model.Record, error)
}

type Reconciler interface {
	// Reconcile links one source record. Terminal non-failure results
	// (skipped, not_found) come back as an Outcome with a nil error.
	Reconcile(ctx context.Context, recordID string) (*model.Outcome, error)
}

type reconciler struct {
	fetcher RecordFetcher
	matcher matcher.Matcher
	links   repository.LinkRepository
	log     *logger.Logger
}

func NewReconciler(
	fetcher RecordFetcher,
	m matcher.Matcher,
	links repository.LinkRepository,
	log *logger.Logger,
) Reconciler {
	if log == nil {
		log = logger.Discard()
	}
	return &reconciler{
		fetcher: fetcher,
		matcher: m,
		links:   links,
		log:     log,
	}
}

func (r *reconciler) Reconcile(ctx context.Context, recordID string) (*model.Outcome, error) {
	start := time.Now()
	outcome, err := r.reconcile(ctx, recordID)
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ReconcileTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.ReconcileTotal.WithLabelValues(outcome.Label()).Inc()
	return outcome, nil
}

func (r *reconciler) reconcile(ctx context.Context, recordID string) (*model.Outcome, error) {
	rec, err := r.fetcher.GetRecord(ctx, recordID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeSourceNotFound) {
			r.log.Info("Source record not found", "record_id", recordID, "error", err)
			return model.NotFound(recordID), nil
		}
		return nil, err
	}

	key := model.NewDedupKey(rec.Website, rec.Address)
	if key.IsEmpty() {
		r.log.Info("Record has neither website nor address, skipping",
			"record_id", recordID,
			"error", apperrors.InsufficientKeyFields(recordID),
		)
		return model.Skipped(recordID), nil
	}

	var match *model.Match
	for round := 0; round < maxRounds; round++ {
		_, err := r.links.FindByKey(ctx, key)
		if err == nil {
			outcome, merged, err := r.merge(ctx, key, recordID)
			if err != nil || merged {
				return outcome, err
			}
			continue
		}
		if !errors.Is(err, linkserrors.ErrNotFound) {
			return nil, r.storageError("link lookup failed", recordID, err)
		}

		if match == nil {
			m, err := r.matcher.Match(ctx, rec)
			if err != nil {
				return nil, err
			}
			match = &m
		}

		link := model.NewLink(rec, key, *match)
		err = r.links.Insert(ctx, link)
		if err == nil {
			return model.Succeeded(recordID, link.ID, match.Type), nil
		}
		if !errors.Is(err, linkserrors.ErrDuplicateKey) {
			return nil, r.storageError("link insert failed", recordID, err)
		}

		metrics.DuplicateKeyConflicts.Inc()
		r.log.Debug("Concurrent insert for the same key, merging",
			"record_id", recordID,
			"error", apperrors.DuplicateKeyConflict(key.Website, key.Address, err),
		)
		outcome, merged, err := r.merge(ctx, key, recordID)
		if err != nil || merged {
			return outcome, err
		}
	}

	return nil, apperrors.StorageFatal("link for key kept disappearing", nil).WithDetails(map[string]any{
		"record_id": recordID,
		"website":   key.Website,
		"address":   key.Address,
	})
}

// merge adds recordID to the link stored under key. merged is false when the
// link no longer exists and the caller should start over.
func (r *reconciler) merge(ctx context.Context, key model.DedupKey, recordID string) (*model.Outcome, bool, error) {
	linkID, err := r.links.AddSource(ctx, key, recordID)
	if err != nil {
		if errors.Is(err, linkserrors.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, r.storageError("link merge failed", recordID, err)
	}
	return model.Succeeded(recordID, linkID, model.MatchDuplicate), true, nil
}

func (r *reconciler) storageError(msg, recordID string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.StorageFatal(msg, err).WithDetails(map[string]any{"record_id": recordID})
}
