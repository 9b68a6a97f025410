package service

import (
	"context"
	"sync"
	"testing"

	"github.com/HefnerLance/bubble-mongo-linker/internal/links/repository"
	migrations "github.com/HefnerLance/bubble-mongo-linker/internal/migrations/mongo"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/model"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// barrierLinkRepository holds the first lookup of each worker until every
// worker has made one, so all of them miss and race to insert.
type barrierLinkRepository struct {
	repository.LinkRepository
	arrived *sync.WaitGroup
	once    sync.Once
}

func (r *barrierLinkRepository) FindByKey(ctx context.Context, key model.DedupKey) (*model.Link, error) {
	link, err := r.LinkRepository.FindByKey(ctx, key)
	r.once.Do(func() {
		r.arrived.Done()
		r.arrived.Wait()
	})
	return link, err
}

func TestReconcile_ConcurrentSameKeyAgainstMongo(t *testing.T) {
	h := testutil.NewMongoHelper(t)
	ctx := context.Background()
	require.NoError(t, migrations.RunMigration(ctx, h.Client, h.DBName, logger.Discard()))

	fetcher := &fakeFetcher{records: map[string]*model.Record{
		"r1": acme("r1"),
		"r2": testutil.NewRecordBuilder("r2").WithName("Acme Inc").WithWebsite("http://acme.com").WithAddress("1 MAIN ST").BuildPtr(),
		"r3": testutil.NewRecordBuilder("r3").WithWebsite("acme.com/contact").WithAddress("1 main st").BuildPtr(),
	}}
	ids := []string{"r1", "r2", "r3"}

	var arrived sync.WaitGroup
	arrived.Add(len(ids))

	var wg sync.WaitGroup
	outcomes := make([]*model.Outcome, len(ids))
	errs := make([]error, len(ids))
	for i, id := range ids {
		links := &barrierLinkRepository{
			LinkRepository: repository.NewMongoLinkRepository(h.Config()),
			arrived:        &arrived,
		}
		r := NewReconciler(fetcher, unmatched(), links, nil)

		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i], errs[i] = r.Reconcile(ctx, id)
		}()
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i], "record %s", ids[i])
	}

	assert.Equal(t, int64(1), h.CountDocuments(t, repository.CollectionName), "exactly one link per dedup key")

	stored, err := repository.NewMongoLinkRepository(h.Config()).FindByKey(ctx, model.NewDedupKey("acme.com", "1 Main St."))
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, stored.SourceIDs)

	var created, merged int
	for _, o := range outcomes {
		assert.Equal(t, stored.ID, o.LinkID)
		switch o.Label() {
		case "unmatched":
			created++
		case "duplicate":
			merged++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, len(ids)-1, merged)
}
