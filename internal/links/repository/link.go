package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	linkserrors "github.com/HefnerLance/bubble-mongo-linker/internal/links/errors"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/config"
	mongodb "github.com/HefnerLance/bubble-mongo-linker/pkg/db/mongo"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Links"
)

type LinkRepository interface {
	FindByKey(ctx context.Context, key model.DedupKey) (*model.Link, error)
	// Insert returns ErrDuplicateKey when the unique dedup index rejects the
	// document.
	Insert(ctx context.Context, link *model.Link) error
	// AddSource adds sourceID to the source_ids set of the link keyed by key
	// and returns the link id. ErrNotFound when no such link exists.
	AddSource(ctx context.Context, key model.DedupKey, sourceID string) (string, error)

	FindBySourceID(ctx context.Context, sourceID string) (*model.Link, error)
	FindAll(ctx context.Context, matchType model.MatchType, limit int, offset int64) ([]*model.Link, error)
	Count(ctx context.Context, matchType model.MatchType) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type mongoLinkRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoLinkRepository(cfg *config.Config) LinkRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLinkRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func keyFilter(key model.DedupKey) bson.M {
	return bson.M{
		"dedup_key.website": key.Website,
		"dedup_key.address": key.Address,
	}
}

func (r *mongoLinkRepository) FindByKey(ctx context.Context, key model.DedupKey) (*model.Link, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.findOne(ctx, keyFilter(key))
}

func (r *mongoLinkRepository) FindBySourceID(ctx context.Context, sourceID string) (*model.Link, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.findOne(ctx, bson.M{"source_ids": sourceID})
}

func (r *mongoLinkRepository) findOne(ctx context.Context, filter bson.M) (*model.Link, error) {
	var link model.Link
	if err := r.collection.FindOne(ctx, filter).Decode(&link); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, linkserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find link: %w", err)
	}
	return &link, nil
}

func (r *mongoLinkRepository) Insert(ctx context.Context, link *model.Link) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := r.now()
	link.CreatedAt = now
	link.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, link)
	if err != nil {
		if mongodb.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s|%s", linkserrors.ErrDuplicateKey, link.DedupKey.Website, link.DedupKey.Address)
		}
		return fmt.Errorf("failed to insert link: %w", err)
	}

	link.ID = mongodb.IDString(result.InsertedID)
	return nil
}

func (r *mongoLinkRepository) AddSource(ctx context.Context, key model.DedupKey, sourceID string) (string, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$addToSet": bson.M{"source_ids": sourceID},
		"$set":      bson.M{"updated_at": r.now()},
	}
	opts := options.FindOneAndUpdate().
		SetProjection(bson.M{"_id": 1}).
		SetReturnDocument(options.After)

	var doc struct {
		ID any `bson:"_id"`
	}
	if err := r.collection.FindOneAndUpdate(ctx, keyFilter(key), update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", linkserrors.ErrNotFound
		}
		return "", fmt.Errorf("failed to add source to link: %w", err)
	}
	return mongodb.IDString(doc.ID), nil
}

func matchTypeFilter(matchType model.MatchType) bson.M {
	if matchType == "" {
		return bson.M{}
	}
	return bson.M{"match.match_type": matchType}
}

func (r *mongoLinkRepository) FindAll(ctx context.Context, matchType model.MatchType, limit int, offset int64) ([]*model.Link, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, matchTypeFilter(matchType), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer cursor.Close(ctx)

	links := make([]*model.Link, 0, limit)
	if err := cursor.All(ctx, &links); err != nil {
		return nil, fmt.Errorf("failed to decode links: %w", err)
	}
	return links, nil
}

func (r *mongoLinkRepository) Count(ctx context.Context, matchType model.MatchType) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, matchTypeFilter(matchType))
	if err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

func (r *mongoLinkRepository) DeleteAll(ctx context.Context) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete links: %w", err)
	}
	return result.DeletedCount, nil
}
