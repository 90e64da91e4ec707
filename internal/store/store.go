// Package store encapsulates MongoDB client management and the Mongo-backed
// data store gateway.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"tg_support_bot/internal/config"
)

// Collection names used across the bot.
const (
	CollectionUsers         = "users"
	CollectionComplaints    = "complaints"
	CollectionBannedWords   = "banned_words"
	CollectionAutoResponses = "auto_responses"
	CollectionWarnings      = "user_warnings"
	CollectionGroupSettings = "group_settings"
	CollectionCounters      = "counters"
)

// mongoClient captures the subset of mongo.Client behavior we rely on to allow
// lightweight stubbing in tests without a live Mongo deployment.
type mongoClient interface {
	Ping(context.Context, *readpref.ReadPref) error
	Database(string, ...*options.DatabaseOptions) *mongo.Database
	Disconnect(context.Context) error
}

// connectMongo is overridable for tests.
var connectMongo = func(ctx context.Context, opts *options.ClientOptions) (mongoClient, error) {
	return mongo.Connect(ctx, opts)
}

// createIndexes is overridable for tests.
var createIndexes = func(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) ([]string, error) {
	return coll.Indexes().CreateMany(ctx, models)
}

// Manager owns a MongoDB client and the configured database handle.
type Manager struct {
	client mongoClient
	db     *mongo.Database
}

// NewManager initializes the Mongo client using the supplied configuration and
// verifies connectivity with a ping.
func NewManager(ctx context.Context, cfg config.Config) (*Manager, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	client, err := connectMongo(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Manager{
		client: client,
		db:     client.Database(cfg.MongoDB),
	}, nil
}

// Database returns the configured database handle.
func (m *Manager) Database() *mongo.Database {
	return m.db
}

// Collection returns a collection handle for the given name.
func (m *Manager) Collection(name string) *mongo.Collection {
	return m.db.Collection(name)
}

// Ping verifies the primary is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m == nil || m.client == nil {
		return errors.New("store manager is not initialized")
	}

	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}

	return nil
}

type indexSpec struct {
	collection string
	models     []mongo.IndexModel
}

func baseIndexes() []indexSpec {
	unique := func(name string, keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name).SetUnique(true)}
	}
	plain := func(name string, keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name)}
	}

	return []indexSpec{
		{CollectionUsers, []mongo.IndexModel{unique("user_id_unique", bson.D{{Key: "user_id", Value: 1}})}},
		{CollectionComplaints, []mongo.IndexModel{
			unique("id_unique", bson.D{{Key: "id", Value: 1}}),
			plain("user_status", bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}),
		}},
		{CollectionBannedWords, []mongo.IndexModel{unique("word_unique", bson.D{{Key: "word", Value: 1}})}},
		{CollectionAutoResponses, []mongo.IndexModel{unique("trigger_unique", bson.D{{Key: "trigger", Value: 1}})}},
		{CollectionWarnings, []mongo.IndexModel{plain("user_id", bson.D{{Key: "user_id", Value: 1}})}},
	}
}

// EnsureBaseIndexes creates the unique keys and lookup indexes of every
// collection. Collections are created implicitly if they do not already exist.
func (m *Manager) EnsureBaseIndexes(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m == nil || m.db == nil {
		return errors.New("store manager is not initialized")
	}

	for _, spec := range baseIndexes() {
		if _, err := createIndexes(ctx, m.Collection(spec.collection), spec.models); err != nil {
			return fmt.Errorf("create %s indexes: %w", spec.collection, err)
		}
	}

	return nil
}

// Close disconnects the Mongo client.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	return m.client.Disconnect(ctx)
}
