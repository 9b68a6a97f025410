package testutil

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/HefnerLance/bubble-mongo-linker/pkg/client"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/config"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	EnvTestMongoURI   = "TEST_MONGO_URI"
	ConnectionTimeout = 10 * time.Second
)

// MongoHelper gives a test its own throw-away database on the server named by
// TEST_MONGO_URI. The database is dropped when the test ends.
type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
	DBName   string
	cfg      *config.Config
}

// NewMongoHelper skips the test when TEST_MONGO_URI is unset.
func NewMongoHelper(t *testing.T) *MongoHelper {
	t.Helper()

	mongoURI := os.Getenv(EnvTestMongoURI)
	if mongoURI == "" {
		t.Skipf("%s not set, skipping MongoDB integration test", EnvTestMongoURI)
	}

	dbName := "linker_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	log := logger.Discard()

	c := client.NewClient()
	c.SetMongo(log, mongoURI, ConnectionTimeout)

	h := &MongoHelper{
		Client:   c.Mongo,
		Database: c.Mongo.Database(dbName),
		DBName:   dbName,
		cfg: &config.Config{
			MongoURI:          mongoURI,
			MongoDatabaseName: dbName,
			MongoConnTimeout:  ConnectionTimeout,
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      5 * time.Second,
			Log:               log,
			Client:            c,
		},
	}
	t.Cleanup(func() { h.Close(t) })
	return h
}

// Config returns a configuration wired to the helper's client and database.
func (m *MongoHelper) Config() *config.Config {
	return m.cfg
}

func (m *MongoHelper) Close(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Database.Drop(ctx); err != nil {
		t.Logf("warning: failed to drop test database %s: %v", m.DBName, err)
	}
	if err := m.Client.Disconnect(ctx); err != nil {
		t.Logf("warning: failed to disconnect from MongoDB: %v", err)
	}
}

func (m *MongoHelper) CountDocuments(t *testing.T, collectionName string) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := m.Database.Collection(collectionName).CountDocuments(ctx, map[string]any{})
	if err != nil {
		t.Fatalf("failed to count documents in %s: %v", collectionName, err)
	}
	return count
}

func (m *MongoHelper) InsertMany(t *testing.T, collectionName string, docs ...any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := m.Database.Collection(collectionName).InsertMany(ctx, docs); err != nil {
		t.Fatalf("failed to seed %s: %v", collectionName, err)
	}
}
