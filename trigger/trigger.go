// Package trigger holds the durable, append-only record of automation firings
// and the claim table that makes the durable duplicate check race-free.
package trigger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/xraph/herald/id"
	"github.com/xraph/herald/rule"
)

// ErrDuplicate is returned when a claim for the same natural key already exists.
var ErrDuplicate = errors.New("herald: duplicate trigger")

// BucketWidth is the time bucket of a claim's natural key and the lookback
// of the recent-trigger check. Two instances racing on the same firing
// across a bucket boundary claim different keys, and neither sees the
// other's log row yet, so both may send once in that window.
const BucketWidth = 5 * time.Minute

// TriggerLog is one successful rule match-and-fire. Rows are never updated.
type TriggerLog struct {
	ID            id.ID            `json:"id"`
	AutomationID  id.ID            `json:"automation_id"`
	TriggerKind   rule.TriggerKind `json:"trigger_kind"`
	TriggerText   string           `json:"trigger_text"`
	ActorID       string           `json:"actor_id"`
	ActorUsername string           `json:"actor_username,omitempty"`
	IsNewFollower bool             `json:"is_new_follower"`
	EventID       string           `json:"event_id,omitempty"`
	TriggeredAt   time.Time        `json:"triggered_at"`
}

// Claim reserves the natural key (automation, actor, text hash, bucket)
// before a send. A uniqueness constraint on Key is the duplicate signal.
type Claim struct {
	ID           id.ID     `json:"id"`
	Key          string    `json:"key"`
	AutomationID id.ID     `json:"automation_id"`
	ActorID      string    `json:"actor_id"`
	TextHash     string    `json:"text_hash"`
	Bucket       int64     `json:"bucket"`
	ClaimedAt    time.Time `json:"claimed_at"`
}

// NewClaim builds the claim for a firing at time at.
func NewClaim(automationID id.ID, actorID, text string, at time.Time) *Claim {
	hash := TextHash(text)
	bucket := Bucket(at)
	return &Claim{
		ID:           id.NewClaimID(),
		Key:          ClaimKey(automationID, actorID, hash, bucket),
		AutomationID: automationID,
		ActorID:      actorID,
		TextHash:     hash,
		Bucket:       bucket,
		ClaimedAt:    at.UTC(),
	}
}

// TextHash returns the hex SHA-256 of the trigger text.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Bucket returns the BucketWidth time bucket containing t.
func Bucket(t time.Time) int64 {
	return t.Unix() / int64(BucketWidth/time.Second)
}

// ClaimKey joins the natural key components.
func ClaimKey(automationID id.ID, actorID, textHash string, bucket int64) string {
	return automationID.String() + ":" + actorID + ":" + textHash + ":" + strconv.FormatInt(bucket, 10)
}

// ListOpts configures filtering and pagination for trigger log listing.
type ListOpts struct {
	Offset       int
	Limit        int
	AutomationID *id.ID
	ActorID      string
	From         *time.Time
	To           *time.Time
}

// Store defines the persistence contract for trigger logs and claims.
type Store interface {
	// ClaimTrigger inserts a claim. Returns ErrDuplicate when the key exists.
	ClaimTrigger(ctx context.Context, c *Claim) error

	// ReleaseClaim removes a claim so the same firing may be attempted again.
	ReleaseClaim(ctx context.Context, key string) error

	// PurgeClaims deletes claims older than before.
	PurgeClaims(ctx context.Context, before time.Time) (int64, error)

	// CreateTriggerLog appends a trigger log row.
	CreateTriggerLog(ctx context.Context, l *TriggerLog) error

	// HasRecentTrigger reports whether the automation already fired for this
	// actor and exact text at or after since.
	HasRecentTrigger(ctx context.Context, automationID id.ID, actorID, text string, since time.Time) (bool, error)

	// ListTriggerLogs returns trigger logs, newest first.
	ListTriggerLogs(ctx context.Context, opts ListOpts) ([]*TriggerLog, error)

	// CountTriggerLogs returns the number of trigger logs matching opts.
	CountTriggerLogs(ctx context.Context, opts ListOpts) (int64, error)
}
