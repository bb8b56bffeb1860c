package follower

import (
	"context"
	"errors"
	"time"
)

// DefaultNewFollowerWindow is how long after following an actor counts as new.
const DefaultNewFollowerWindow = 7 * 24 * time.Hour

// Tracker answers follower questions for the matcher and responder.
type Tracker struct {
	store  Store
	window time.Duration
	now    func() time.Time
}

// NewTracker creates a tracker over store.
func NewTracker(store Store, window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultNewFollowerWindow
	}
	return &Tracker{
		store:  store,
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the tracker clock. Used by tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// IsNewFollower reports whether actorID followed ownerUserID within the
// window and has not commented since.
func (t *Tracker) IsNewFollower(ctx context.Context, ownerUserID, actorID string) (bool, error) {
	f, err := t.store.GetFollower(ctx, ownerUserID, actorID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if f.FollowedAt == nil || f.CommentedAt != nil {
		return false, nil
	}
	return t.now().Sub(*f.FollowedAt) <= t.window, nil
}

// MarkCommented records that actorID has commented on ownerUserID's content.
func (t *Tracker) MarkCommented(ctx context.Context, ownerUserID, actorID string) error {
	return t.store.MarkCommented(ctx, ownerUserID, actorID, t.now())
}

// Advance moves the actor one trust step forward and returns the new state.
func (t *Tracker) Advance(ctx context.Context, ownerUserID, actorID string) (State, error) {
	return t.store.AdvanceTrust(ctx, ownerUserID, actorID)
}
