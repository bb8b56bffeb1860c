// Package store defines the composite Store interface for all Herald persistence.
//
// Each subsystem defines its own store interface and the aggregate Store
// composes them, so a single backend serves the whole pipeline.
package store

import (
	"context"

	"github.com/xraph/herald/account"
	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/follower"
	"github.com/xraph/herald/rule"
	"github.com/xraph/herald/trigger"
)

// Store is the aggregate persistence interface.
type Store interface {
	rule.Store
	account.Store
	follower.Store
	trigger.Store
	failure.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
