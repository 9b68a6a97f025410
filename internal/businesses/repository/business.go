package repository

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/HefnerLance/bubble-mongo-linker/pkg/config"
	mongodb "github.com/HefnerLance/bubble-mongo-linker/pkg/db/mongo"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Businesses"
)

// CandidateQuery describes a fallback search. A business qualifies when its
// website contains one of WebsiteHosts and either its name contains Name or
// its phone ends with PhoneSuffix.
type CandidateQuery struct {
	WebsiteHosts []string
	Name         string
	PhoneSuffix  string
}

type BusinessRepository interface {
	FindByLegacyID(ctx context.Context, legacyID string, limit int) ([]*model.Business, error)
	FindCandidates(ctx context.Context, q CandidateQuery, limit int) ([]*model.Business, error)
}

type mongoBusinessRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBusinessRepository(cfg *config.Config) BusinessRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBusinessRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoBusinessRepository) FindByLegacyID(ctx context.Context, legacyID string, limit int) ([]*model.Business, error) {
	if legacyID == "" {
		return nil, nil
	}
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.find(ctx, BuildLegacyIDFilter(legacyID), limit)
}

func (r *mongoBusinessRepository) FindCandidates(ctx context.Context, q CandidateQuery, limit int) ([]*model.Business, error) {
	filter := BuildCandidateFilter(q)
	if filter == nil {
		return nil, nil
	}
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.find(ctx, filter, limit)
}

func (r *mongoBusinessRepository) find(ctx context.Context, filter bson.M, limit int) ([]*model.Business, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetProjection(bson.M{
			"name":             1,
			"website":          1,
			"contact.phone":    1,
			"contact.email":    1,
			"location.address": 1,
			"location.city":    1,
		})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query businesses: %w", err)
	}
	defer cursor.Close(ctx)

	var businesses []*model.Business
	if err := cursor.All(ctx, &businesses); err != nil {
		return nil, fmt.Errorf("failed to decode businesses: %w", err)
	}
	return businesses, nil
}

// BuildLegacyIDFilter matches legacy_id exactly. Numeric ids also match
// documents that stored the id as a number.
func BuildLegacyIDFilter(legacyID string) bson.M {
	if n, err := strconv.ParseInt(legacyID, 10, 64); err == nil {
		return bson.M{"legacy_id": bson.M{"$in": bson.A{legacyID, n}}}
	}
	return bson.M{"legacy_id": legacyID}
}

// BuildCandidateFilter returns the fallback filter, or nil when q cannot
// produce a conjunctive query (no host, or neither name nor phone).
func BuildCandidateFilter(q CandidateQuery) bson.M {
	var websites bson.A
	for _, host := range q.WebsiteHosts {
		if host = strings.TrimSpace(host); host != "" {
			websites = append(websites, bson.M{"website": hostRegex(host)})
		}
	}

	var secondary bson.A
	if name := strings.TrimSpace(q.Name); name != "" {
		secondary = append(secondary, bson.M{"name": primitive.Regex{Pattern: regexp.QuoteMeta(name), Options: "i"}})
	}
	if q.PhoneSuffix != "" {
		secondary = append(secondary, bson.M{"contact.phone": phoneSuffixRegex(q.PhoneSuffix)})
	}

	if len(websites) == 0 || len(secondary) == 0 {
		return nil
	}
	return bson.M{"$and": bson.A{
		bson.M{"$or": websites},
		bson.M{"$or": secondary},
	}}
}

// hostRegex matches host as a whole label sequence inside a stored website,
// so "acme.com" matches "https://www.acme.com/" but not "notacme.com".
func hostRegex(host string) primitive.Regex {
	return primitive.Regex{
		Pattern: `(^|[/.@])` + regexp.QuoteMeta(host) + `($|[/:?#])`,
		Options: "i",
	}
}

// phoneSuffixRegex matches a stored phone whose digits end with suffix,
// whatever the separators.
func phoneSuffixRegex(suffix string) primitive.Regex {
	var b strings.Builder
	for i, d := range suffix {
		if i > 0 {
			b.WriteString(`\D*`)
		}
		b.WriteString(regexp.QuoteMeta(string(d)))
	}
	b.WriteString(`\D*$`)
	return primitive.Regex{Pattern: b.String()}
}
