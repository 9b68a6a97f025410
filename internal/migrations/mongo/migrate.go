package mongo

import (
	"context"
	"fmt"

	businessrepo "github.com/HefnerLance/bubble-mongo-linker/internal/businesses/repository"
	linkrepo "github.com/HefnerLance/bubble-mongo-linker/internal/links/repository"
	"github.com/HefnerLance/bubble-mongo-linker/internal/migrations/mongo/validators"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DedupKeyIndexName = "dedup_key_unique"

var (
	// LinksIndexes carries the unique dedup index every concurrent
	// reconciliation relies on.
	LinksIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "dedup_key.website", Value: 1},
				{Key: "dedup_key.address", Value: 1},
			},
			Options: options.Index().SetName(DedupKeyIndexName).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "source_ids", Value: 1}},
			Options: options.Index().SetName("source_ids"),
		},
		{
			Keys:    bson.D{{Key: "match.match_type", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("match_type_created_at"),
		},
	}

	BusinessesIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "legacy_id", Value: 1}},
			Options: options.Index().SetName("legacy_id"),
		},
	}
)

type collectionDef struct {
	Name    string
	Indexes []mongo.IndexModel
	// Validator is nil for collections owned by another system.
	Validator bson.M
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	collections := []collectionDef{
		{Name: linkrepo.CollectionName, Indexes: LinksIndexes, Validator: validators.LinkValidator},
		{Name: businessrepo.CollectionName, Indexes: BusinessesIndexes},
	}

	for _, def := range collections {
		if def.Validator != nil {
			if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
				return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
			}
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All migrations applied", "database", dbName)
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	names, err := db.Collection(name).Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "indexes", names)
	return nil
}
