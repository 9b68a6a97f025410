package mongo

import (
	"context"
	"testing"
	"time"

	linkserrors "github.com/HefnerLance/bubble-mongo-linker/internal/links/errors"
	linkrepo "github.com/HefnerLance/bubble-mongo-linker/internal/links/repository"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/model"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestRunMigration(t *testing.T) {
	h := testutil.NewMongoHelper(t)
	ctx := context.Background()

	require.NoError(t, RunMigration(ctx, h.Client, h.DBName, logger.Discard()))
	require.NoError(t, RunMigration(ctx, h.Client, h.DBName, logger.Discard()), "migrations are re-runnable")

	specs, err := h.Database.Collection(linkrepo.CollectionName).Indexes().ListSpecifications(ctx)
	require.NoError(t, err)
	var unique bool
	for _, s := range specs {
		if s.Name == DedupKeyIndexName {
			unique = s.Unique != nil && *s.Unique
		}
	}
	assert.True(t, unique, "dedup key index must be unique")

	repo := linkrepo.NewMongoLinkRepository(h.Config())
	rec := &model.Record{ID: "r1", Website: "acme.com", Address: "1 Main St"}
	key := model.NewDedupKey(rec.Website, rec.Address)
	require.NoError(t, repo.Insert(ctx, model.NewLink(rec, key, model.Unmatched())))

	rec2 := &model.Record{ID: "r2", Website: "https://acme.com", Address: "1 main st"}
	assert.ErrorIs(t, repo.Insert(ctx, model.NewLink(rec2, key, model.Unmatched())), linkserrors.ErrDuplicateKey)
}

func TestLinkValidatorRejectsEmptySources(t *testing.T) {
	h := testutil.NewMongoHelper(t)
	ctx := context.Background()
	require.NoError(t, RunMigration(ctx, h.Client, h.DBName, logger.Discard()))

	_, err := h.Database.Collection(linkrepo.CollectionName).InsertOne(ctx, bson.M{
		"dedup_key":  bson.M{"website": "a.com", "address": ""},
		"source_ids": bson.A{},
		"match":      bson.M{"match_type": "unmatched", "target_business_id": nil},
		"created_at": time.Now(),
		"updated_at": time.Now(),
	})
	assert.Error(t, err)
}
