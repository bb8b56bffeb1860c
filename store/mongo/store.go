package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/herald/store"
)

// Collection name constants.
const (
	colRules      = "herald_rules"
	colAccounts   = "herald_accounts"
	colFollowers  = "herald_followers"
	colClaims     = "herald_trigger_claims"
	colTriggerLog = "herald_trigger_logs"
	colFailures   = "herald_failures"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all herald collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}

		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("herald/mongo: migrate %s indexes: %w", col, err)
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all herald collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colRules: {
			{Keys: bson.D{{Key: "owner_user_id", Value: 1}, {Key: "active", Value: 1}}},
			{Keys: bson.D{{Key: "owner_user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colAccounts: {
			{
				Keys:    bson.D{{Key: "owner_user_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "external_account_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colFollowers: {
			{
				Keys:    bson.D{{Key: "owner_user_id", Value: 1}, {Key: "actor_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colClaims: {
			{
				Keys:    bson.D{{Key: "key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "claimed_at", Value: 1}}},
		},
		colTriggerLog: {
			{Keys: bson.D{{Key: "automation_id", Value: 1}, {Key: "actor_id", Value: 1}, {Key: "triggered_at", Value: -1}}},
			{Keys: bson.D{{Key: "triggered_at", Value: -1}}},
		},
		colFailures: {
			{Keys: bson.D{{Key: "owner_user_id", Value: 1}, {Key: "failed_at", Value: -1}}},
			{Keys: bson.D{{Key: "automation_id", Value: 1}}},
		},
	}
}
