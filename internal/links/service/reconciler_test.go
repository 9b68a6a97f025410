package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	linkserrors "github.com/HefnerLance/bubble-mongo-linker/internal/links/errors"
	apperrors "github.com/HefnerLance/bubble-mongo-linker/pkg/errors"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/model"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	records map[string]*model.Record
	err     error
}

func (f *fakeFetcher) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, apperrors.SourceNotFound(id)
	}
	cp := *rec
	return &cp, nil
}

type matcherFunc func(ctx context.Context, rec *model.Record) (model.Match, error)

func (f matcherFunc) Match(ctx context.Context, rec *model.Record) (model.Match, error) {
	return f(ctx, rec)
}

func unmatched() matcherFunc {
	return func(ctx context.Context, rec *model.Record) (model.Match, error) {
		return model.Unmatched(), nil
	}
}

// fakeLinkRepository keeps links in memory and enforces the unique dedup key
// the way the Mongo index does.
type fakeLinkRepository struct {
	mu     sync.Mutex
	links  map[model.DedupKey]*model.Link
	nextID int

	// failInserts makes the next n inserts report a duplicate key without
	// storing anything.
	failInserts int
	findErr     error
	findHook    func()

	finds   int
	inserts int
	merges  int
}

func newFakeLinkRepository() *fakeLinkRepository {
	return &fakeLinkRepository{links: map[model.DedupKey]*model.Link{}}
}

func (f *fakeLinkRepository) FindByKey(ctx context.Context, key model.DedupKey) (*model.Link, error) {
	f.mu.Lock()
	f.finds++
	link, ok := f.links[key]
	findErr := f.findErr
	hook := f.findHook
	var cp model.Link
	if ok {
		cp = *link
	}
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if findErr != nil {
		return nil, findErr
	}
	if !ok {
		return nil, linkserrors.ErrNotFound
	}
	return &cp, nil
}

func (f *fakeLinkRepository) Insert(ctx context.Context, link *model.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failInserts > 0 {
		f.failInserts--
		return fmt.Errorf("%w: injected", linkserrors.ErrDuplicateKey)
	}
	if _, exists := f.links[link.DedupKey]; exists {
		return fmt.Errorf("%w: %s|%s", linkserrors.ErrDuplicateKey, link.DedupKey.Website, link.DedupKey.Address)
	}

	f.inserts++
	f.nextID++
	link.ID = fmt.Sprintf("link-%d", f.nextID)
	cp := *link
	cp.SourceIDs = slices.Clone(link.SourceIDs)
	f.links[link.DedupKey] = &cp
	return nil
}

func (f *fakeLinkRepository) AddSource(ctx context.Context, key model.DedupKey, sourceID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	link, ok := f.links[key]
	if !ok {
		return "", linkserrors.ErrNotFound
	}
	f.merges++
	if !slices.Contains(link.SourceIDs, sourceID) {
		link.SourceIDs = append(link.SourceIDs, sourceID)
	}
	return link.ID, nil
}

func (f *fakeLinkRepository) FindBySourceID(ctx context.Context, sourceID string) (*model.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, link := range f.links {
		if slices.Contains(link.SourceIDs, sourceID) {
			cp := *link
			return &cp, nil
		}
	}
	return nil, linkserrors.ErrNotFound
}

func (f *fakeLinkRepository) FindAll(ctx context.Context, matchType model.MatchType, limit int, offset int64) ([]*model.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Link
	for _, link := range f.links {
		if matchType == "" || link.Match.Type == matchType {
			cp := *link
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeLinkRepository) Count(ctx context.Context, matchType model.MatchType) (int64, error) {
	links, _ := f.FindAll(ctx, matchType, 0, 0)
	return int64(len(links)), nil
}

func (f *fakeLinkRepository) DeleteAll(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.links))
	f.links = map[model.DedupKey]*model.Link{}
	return n, nil
}

func (f *fakeLinkRepository) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts + f.merges
}

func (f *fakeLinkRepository) all() []*model.Link {
	links, _ := f.FindAll(context.Background(), "", 0, 0)
	return links
}

func acme(id string) *model.Record {
	return testutil.NewRecordBuilder(id).BuildPtr()
}

func TestReconcile_NewLinkCarriesMatch(t *testing.T) {
	links := newFakeLinkRepository()
	target := "biz-1"
	m := matcherFunc(func(ctx context.Context, rec *model.Record) (model.Match, error) {
		return model.Match{TargetBusinessID: &target, Type: model.MatchDirectID}, nil
	})
	r := NewReconciler(&fakeFetcher{records: map[string]*model.Record{"r1": acme("r1")}}, m, links, nil)

	outcome, err := r.Reconcile(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, model.Succeeded("r1", "link-1", model.MatchDirectID), outcome)
	stored := links.all()
	require.Len(t, stored, 1)
	assert.Equal(t, model.DedupKey{Website: "acme.com", Address: "1mainst"}, stored[0].DedupKey)
	assert.Equal(t, []string{"r1"}, stored[0].SourceIDs)
	assert.Equal(t, "biz-1", *stored[0].Match.TargetBusinessID)
}

func TestReconcile_ExistingKeyIsDuplicate(t *testing.T) {
	links := newFakeLinkRepository()
	matcherCalls := 0
	m := matcherFunc(func(ctx context.Context, rec *model.Record) (model.Match, error) {
		matcherCalls++
		return model.Unmatched(), nil
	})
	fetcher := &fakeFetcher{records: map[string]*model.Record{
		"r1": acme("r1"),
		"r2": testutil.NewRecordBuilder("r2").WithWebsite("ACME.com").WithAddress("1 main st").BuildPtr(),
	}}
	r := NewReconciler(fetcher, m, links, nil)

	_, err := r.Reconcile(context.Background(), "r1")
	require.NoError(t, err)
	outcome, err := r.Reconcile(context.Background(), "r2")
	require.NoError(t, err)

	assert.Equal(t, model.Succeeded("r2", "link-1", model.MatchDuplicate), outcome)
	assert.Equal(t, 1, matcherCalls, "duplicates are not re-matched")
	stored := links.all()
	require.Len(t, stored, 1)
	assert.Equal(t, []string{"r1", "r2"}, stored[0].SourceIDs)
	assert.Equal(t, model.MatchUnmatched, stored[0].Match.Type)
}

func TestReconcile_RerunIsIdempotent(t *testing.T) {
	links := newFakeLinkRepository()
	r := NewReconciler(&fakeFetcher{records: map[string]*model.Record{"r1": acme("r1")}}, unmatched(), links, nil)

	first, err := r.Reconcile(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, model.MatchUnmatched, first.MatchType)

	for range 3 {
		again, err := r.Reconcile(context.Background(), "r1")
		require.NoError(t, err)
		assert.Equal(t, model.MatchDuplicate, again.MatchType)
		assert.Equal(t, first.LinkID, again.LinkID)
	}

	stored := links.all()
	require.Len(t, stored, 1)
	assert.Equal(t, []string{"r1"}, stored[0].SourceIDs)
}

func TestReconcile_EmptyKeyIsSkippedWithoutWrites(t *testing.T) {
	links := newFakeLinkRepository()
	m := matcherFunc(func(ctx context.Context, rec *model.Record) (model.Match, error) {
		t.Fatal("matcher must not run for a skipped record")
		return model.Match{}, nil
	})
	r := NewReconciler(&fakeFetcher{records: map[string]*model.Record{"r1": testutil.KeylessRecord("r1")}}, m, links, nil)

	outcome, err := r.Reconcile(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, model.Skipped("r1"), outcome)
	assert.Zero(t, links.writes())
	assert.Zero(t, links.finds)
}

func TestReconcile_SourceNotFound(t *testing.T) {
	links := newFakeLinkRepository()
	r := NewReconciler(&fakeFetcher{records: map[string]*model.Record{}}, unmatched(), links, nil)

	outcome, err := r.Reconcile(context.Background(), "gone")
	require.NoError(t, err)

	assert.Equal(t, model.NotFound("gone"), outcome)
	assert.Equal(t, "not_found", outcome.Label())
	assert.Zero(t, links.writes())
}

func TestReconcile_UpstreamErrorsPropagate(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"rate limited", apperrors.UpstreamTransient("bubble rate limit exceeded", time.Second, nil), true},
		{"permanent", apperrors.UpstreamPermanent("bubble returned 400", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := newFakeLinkRepository()
			r := NewReconciler(&fakeFetcher{err: tt.err}, unmatched(), links, nil)

			outcome, err := r.Reconcile(context.Background(), "r1")
			assert.Nil(t, outcome)
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.retryable, apperrors.IsRetryable(err))
			assert.Zero(t, links.writes())
		})
	}
}

func TestReconcile_StorageErrorIsFatal(t *testing.T) {
	links := newFakeLinkRepository()
	links.findErr = assert.AnError
	r := NewReconciler(&fakeFetcher{records: map[string]*model.Record{"r1": acme("r1")}}, unmatched(), links, nil)

	_, err := r.Reconcile(context.Background(), "r1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStorageFatal))
	assert.False(t, apperrors.IsRetryable(err))
}

func TestReconcile_MatcherErrorPropagates(t *testing.T) {
	links := newFakeLinkRepository()
	m := matcherFunc(func(ctx context.Context, rec *model.Record) (model.Match, error) {
		return model.Match{}, apperrors.StorageFatal("fallback lookup failed", assert.AnError)
	})
	r := NewReconciler(&fakeFetcher{records: map[string]*model.Record{"r1": acme("r1")}}, m, links, nil)

	_, err := r.Reconcile(context.Background(), "r1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStorageFatal))
	assert.Zero(t, links.writes())
}

func TestReconcile_ConflictWithVanishedLinkRetries(t *testing.T) {
	links := newFakeLinkRepository()
	links.failInserts = 1
	r := NewReconciler(&fakeFetcher{records: map[string]*model.Record{"r1": acme("r1")}}, unmatched(), links, nil)

	outcome, err := r.Reconcile(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, model.MatchUnmatched, outcome.MatchType)
	assert.Len(t, links.all(), 1)
	assert.Equal(t, 2, links.finds)
}

func TestReconcile_GivesUpAfterBoundedRounds(t *testing.T) {
	links := newFakeLinkRepository()
	links.failInserts = maxRounds
	r := NewReconciler(&fakeFetcher{records: map[string]*model.Record{"r1": acme("r1")}}, unmatched(), links, nil)

	_, err := r.Reconcile(context.Background(), "r1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStorageFatal))
	assert.Equal(t, maxRounds, links.finds)
	assert.Empty(t, links.all())
}

func TestReconcile_ConcurrentSameKey(t *testing.T) {
	links := newFakeLinkRepository()

	// Both reconciliations miss the lookup before either inserts.
	var arrived sync.WaitGroup
	arrived.Add(2)
	var mu sync.Mutex
	gated := 0
	links.findHook = func() {
		mu.Lock()
		first := gated < 2
		gated++
		mu.Unlock()
		if first {
			arrived.Done()
			arrived.Wait()
		}
	}

	fetcher := &fakeFetcher{records: map[string]*model.Record{
		"r1": acme("r1"),
		"r2": testutil.NewRecordBuilder("r2").WithName("Acme Inc").WithWebsite("http://acme.com").WithAddress("1 MAIN ST").BuildPtr(),
	}}
	r := NewReconciler(fetcher, unmatched(), links, nil)

	var wg sync.WaitGroup
	outcomes := make([]*model.Outcome, 2)
	errs := make([]error, 2)
	for i, id := range []string{"r1", "r2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i], errs[i] = r.Reconcile(context.Background(), id)
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	stored := links.all()
	require.Len(t, stored, 1, "exactly one link per dedup key")
	assert.ElementsMatch(t, []string{"r1", "r2"}, stored[0].SourceIDs)

	labels := []string{outcomes[0].Label(), outcomes[1].Label()}
	assert.ElementsMatch(t, []string{"unmatched", "duplicate"}, labels)
	assert.Equal(t, outcomes[0].LinkID, outcomes[1].LinkID)
}
