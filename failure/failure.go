// Package failure records responses that could not be delivered after the
// retry budget was spent, for operator visibility.
package failure

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/herald/id"
	"github.com/xraph/herald/internal/entity"
)

// ErrNotFound is returned when a failure record cannot be found.
var ErrNotFound = errors.New("herald: failure not found")

// Action names the outbound call that failed.
type Action string

const (
	ActionDirectMessage Action = "direct_message"
	ActionCommentReply  Action = "comment_reply"
	ActionPrivateReply  Action = "private_reply"
)

// Failure is a hard delivery failure.
type Failure struct {
	entity.Entity

	// ID is the unique TypeID for this record.
	ID id.ID `json:"id"`

	// AutomationID references the rule that fired.
	AutomationID id.ID `json:"automation_id"`

	// OwnerUserID identifies the rule owner.
	OwnerUserID string `json:"owner_user_id"`

	// EventID is the provider id of the triggering event.
	EventID string `json:"event_id,omitempty"`

	// EventKind is the triggering event kind.
	EventKind string `json:"event_kind"`

	// ActorID is the user who should have received the response.
	ActorID string `json:"actor_id"`

	// Action is the outbound call that failed.
	Action Action `json:"action"`

	// Message is the text that was not delivered.
	Message string `json:"message"`

	// Error is the error from the final attempt.
	Error string `json:"error"`

	// AttemptCount is the number of attempts made.
	AttemptCount int `json:"attempt_count"`

	// LastStatusCode is the HTTP status of the final attempt, if any.
	LastStatusCode int `json:"last_status_code,omitempty"`

	// FailedAt is when the retry budget ran out.
	FailedAt time.Time `json:"failed_at"`
}

// ListOpts configures filtering and pagination for failure listing.
type ListOpts struct {
	Offset       int
	Limit        int
	OwnerUserID  string
	AutomationID *id.ID
	From         *time.Time
	To           *time.Time
}

// Store defines the persistence contract for failure records.
type Store interface {
	// PushFailure persists a failure record.
	PushFailure(ctx context.Context, f *Failure) error

	// GetFailure returns a failure by ID.
	GetFailure(ctx context.Context, failureID id.ID) (*Failure, error)

	// ListFailures returns failures, newest first.
	ListFailures(ctx context.Context, opts ListOpts) ([]*Failure, error)

	// CountFailures returns the total number of failure records.
	CountFailures(ctx context.Context) (int64, error)

	// PurgeFailures deletes failures older than before.
	PurgeFailures(ctx context.Context, before time.Time) (int64, error)
}
