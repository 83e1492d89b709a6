// Package store persists users, threads, messages, and share links in
// MongoDB.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("not found")

// ErrThreadMissing reports a message whose thread has disappeared. This is
// a data inconsistency that callers must surface, not swallow.
var ErrThreadMissing = errors.New("data inconsistency: message references a missing thread")

// Config holds MongoDB connection settings.
type Config struct {
	// URL is the MongoDB connection string.
	URL string

	// Database is the database name (default: "relaychat").
	Database string
}

// Store wraps the MongoDB client and collection handles. One instance is
// constructed at startup and shared; the driver pools connections.
type Store struct {
	client   *mongo.Client
	database *mongo.Database

	users    *mongo.Collection
	threads  *mongo.Collection
	messages *mongo.Collection
	shares   *mongo.Collection
}

// New connects to MongoDB, verifies the connection, and ensures indexes.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("MongoDB URL is required")
	}

	dbName := cfg.Database
	if dbName == "" {
		dbName = "relaychat"
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(dbName)
	s := &Store{
		client:   client,
		database: database,
		users:    database.Collection("users"),
		threads:  database.Collection("threads"),
		messages: database.Collection("messages"),
		shares:   database.Collection("partial_shares"),
	}
	s.ensureIndexes(ctx)

	return s, nil
}

// ensureIndexes creates the indexes backing the common queries. Failures
// are logged, not fatal; the indexes may already exist.
func (s *Store) ensureIndexes(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for coll, models := range map[*mongo.Collection][]mongo.IndexModel{
		s.users: {
			{Keys: bson.D{{Key: "externalId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		s.threads: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		s.messages: {
			{Keys: bson.D{{Key: "threadId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		s.shares: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
	} {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			slog.Warn("failed to create MongoDB indexes", "collection", coll.Name(), "error", err)
		}
	}
}

// Ping verifies the database connection, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
