// Package matcher resolves a source record to a business in a fixed tier
// order. The first tier that yields exactly one business wins.
package matcher

import (
	"context"
	"strings"

	"github.com/HefnerLance/bubble-mongo-linker/internal/businesses/repository"
	apperrors "github.com/HefnerLance/bubble-mongo-linker/pkg/errors"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/model"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/sanitizer"
)

// queryLimit is enough to tell "exactly one" from "ambiguous".
const queryLimit = 2

type Matcher interface {
	Match(ctx context.Context, rec *model.Record) (model.Match, error)
}

type tieredMatcher struct {
	repo repository.BusinessRepository
	log  *logger.Logger
}

func NewMatcher(repo repository.BusinessRepository, log *logger.Logger) Matcher {
	if log == nil {
		log = logger.Discard()
	}
	return &tieredMatcher{repo: repo, log: log}
}

// Match never returns an error for a record that simply has no match; the
// result is then model.Unmatched(). Errors are storage failures.
func (m *tieredMatcher) Match(ctx context.Context, rec *model.Record) (model.Match, error) {
	if match, ok, err := m.direct(ctx, rec); err != nil || ok {
		return match, err
	}
	if match, ok, err := m.fallback(ctx, rec); err != nil || ok {
		return match, err
	}
	return model.Unmatched(), nil
}

func (m *tieredMatcher) direct(ctx context.Context, rec *model.Record) (model.Match, bool, error) {
	legacyID := strings.TrimSpace(rec.LegacyID)
	if legacyID == "" {
		return model.Match{}, false, nil
	}

	hits, err := m.repo.FindByLegacyID(ctx, legacyID, queryLimit)
	if err != nil {
		return model.Match{}, false, apperrors.StorageFatal("direct id lookup failed", err)
	}

	switch len(hits) {
	case 0:
		return model.Match{}, false, nil
	case 1:
		return matched(hits[0], model.MatchDirectID), true, nil
	default:
		m.log.Warn("Ambiguous legacy id, trying fallback",
			"record_id", rec.ID,
			"legacy_id", legacyID,
		)
		return model.Match{}, false, nil
	}
}

func (m *tieredMatcher) fallback(ctx context.Context, rec *model.Record) (model.Match, bool, error) {
	q, ok := CandidateQueryFor(rec)
	if !ok {
		return model.Match{}, false, nil
	}

	hits, err := m.repo.FindCandidates(ctx, q, queryLimit)
	if err != nil {
		return model.Match{}, false, apperrors.StorageFatal("fallback lookup failed", err)
	}
	if len(hits) != 1 {
		if len(hits) > 1 {
			m.log.Debug("Ambiguous fallback candidates", "record_id", rec.ID, "hosts", q.WebsiteHosts)
		}
		return model.Match{}, false, nil
	}
	return matched(hits[0], model.MatchFallback), true, nil
}

// CandidateQueryFor builds the fallback query for rec. ok is false when the
// record lacks a website, or has neither a name nor enough phone digits.
func CandidateQueryFor(rec *model.Record) (repository.CandidateQuery, bool) {
	host := sanitizer.NormalizeHost(rec.Website)
	if host == "" {
		return repository.CandidateQuery{}, false
	}

	q := repository.CandidateQuery{
		WebsiteHosts: sanitizer.HostVariants(host),
		Name:         strings.TrimSpace(rec.Name),
		PhoneSuffix:  sanitizer.PhoneSuffix(rec.Phone, sanitizer.MinPhoneDigits),
	}
	if q.Name == "" && q.PhoneSuffix == "" {
		return repository.CandidateQuery{}, false
	}
	return q, true
}

func matched(b *model.Business, t model.MatchType) model.Match {
	id := b.ID
	return model.Match{TargetBusinessID: &id, Type: t}
}
