// Package follower tracks per-owner actor state: recent follows, whether the
// actor has commented yet, and the staged trust level used by smart-follower
// rules.
package follower

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/herald/id"
	"github.com/xraph/herald/internal/entity"
)

// ErrNotFound is returned when no follower record exists for an owner/actor pair.
var ErrNotFound = errors.New("herald: follower not found")

// State is the staged trust level of an actor: unknown → first_commenter → trusted.
type State string

const (
	StateUnknown        State = "unknown"
	StateFirstCommenter State = "first_commenter"
	StateTrusted        State = "trusted"
)

// Next returns the state one step further along the lifecycle. Trusted is terminal.
func (s State) Next() State {
	switch s {
	case StateFirstCommenter, StateTrusted:
		return StateTrusted
	default:
		return StateFirstCommenter
	}
}

// Follower is the record kept per (owner, actor) pair.
type Follower struct {
	entity.Entity

	ID          id.ID      `json:"id"`
	OwnerUserID string     `json:"owner_user_id"`
	ActorID     string     `json:"actor_id"`
	Username    string     `json:"username,omitempty"`
	FollowedAt  *time.Time `json:"followed_at,omitempty"`
	CommentedAt *time.Time `json:"commented_at,omitempty"`
	Trust       State      `json:"trust"`
}

// Store defines the persistence contract for follower records.
type Store interface {
	// RecordFollow upserts a follow for the owner/actor pair.
	RecordFollow(ctx context.Context, f *Follower) error

	// GetFollower returns the record for an owner/actor pair.
	GetFollower(ctx context.Context, ownerUserID, actorID string) (*Follower, error)

	// MarkCommented records the actor's first comment time, creating the
	// record when absent. Later calls keep the first time.
	MarkCommented(ctx context.Context, ownerUserID, actorID string, at time.Time) error

	// AdvanceTrust atomically moves the pair one trust step forward and
	// returns the new state. An absent record becomes first_commenter.
	AdvanceTrust(ctx context.Context, ownerUserID, actorID string) (State, error)
}
