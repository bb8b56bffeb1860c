package herald

import (
	"errors"

	"github.com/xraph/herald/account"
	"github.com/xraph/herald/event"
	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/follower"
	"github.com/xraph/herald/responder"
	"github.com/xraph/herald/rule"
	"github.com/xraph/herald/trigger"
)

// Sentinel errors returned by Herald operations. Subsystem sentinels are
// re-exported so callers can match them from one place.
var (
	// ErrNoStore is returned when Herald is created without a store.
	ErrNoStore = errors.New("herald: store is required")

	// ErrNoMessaging is returned when Herald is created without a messaging client.
	ErrNoMessaging = errors.New("herald: messaging client is required")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("herald: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("herald: migration failed")

	// ErrInvalidSignature is returned when a webhook signature does not verify.
	ErrInvalidSignature = errors.New("herald: invalid webhook signature")

	// ErrAccountTaken is returned when an external account is already linked to another owner.
	ErrAccountTaken = errors.New("herald: external account already connected")

	// ErrRuleNotFound is returned when a rule cannot be found.
	ErrRuleNotFound = rule.ErrNotFound

	// ErrAccountNotFound is returned when a connected account cannot be found.
	ErrAccountNotFound = account.ErrNotFound

	// ErrFollowerNotFound is returned when no follower record exists.
	ErrFollowerNotFound = follower.ErrNotFound

	// ErrFailureNotFound is returned when a failure record cannot be found.
	ErrFailureNotFound = failure.ErrNotFound

	// ErrDuplicateTrigger is returned when a trigger claim already exists.
	ErrDuplicateTrigger = trigger.ErrDuplicate

	// ErrMalformedPayload is returned for a webhook body that is not a payload at all.
	ErrMalformedPayload = event.ErrMalformedPayload

	// ErrDeliveryFailed is returned when a response exhausted its retries.
	ErrDeliveryFailed = responder.ErrDeliveryFailed
)
