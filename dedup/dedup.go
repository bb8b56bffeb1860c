// Package dedup implements the fast replay guard that runs before any rule
// evaluation. One Guard, one TTL policy, one Cache.
package dedup

import (
	"context"
	"time"
)

// Outcome tags an idempotency record.
type Outcome string

const (
	// OutcomeInFlight marks a key reserved by an event still being processed.
	OutcomeInFlight Outcome = "in_flight"

	// OutcomeHandled marks a key whose event finished processing.
	OutcomeHandled Outcome = "handled"

	// OutcomeErrored marks a key whose event failed downstream.
	OutcomeErrored Outcome = "errored"
)

// Record is the value stored under an idempotency key.
type Record struct {
	Outcome Outcome   `json:"outcome"`
	At      time.Time `json:"at"`
}

// Cache is a key-value store with TTL. Reserve must be a single atomic
// set-if-absent step so two concurrent deliveries of the same event cannot
// both observe the key as missing.
type Cache interface {
	// Reserve stores rec under key when no unexpired entry exists and
	// reports whether it did.
	Reserve(ctx context.Context, key string, rec Record, ttl time.Duration) (bool, error)

	// Mark replaces the record under an existing key, keeping its expiry.
	Mark(ctx context.Context, key string, rec Record) error

	// Release removes key.
	Release(ctx context.Context, key string) error

	// Sweep evicts entries that expired before now and returns how many
	// were removed. Caches with native expiry may return zero.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Len returns the number of entries currently held.
	Len(ctx context.Context) (int, error)
}
