package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/herald"
	"github.com/xraph/herald/follower"
	"github.com/xraph/herald/id"
)

func followerFilter(ownerUserID, actorID string) bson.M {
	return bson.M{"owner_user_id": ownerUserID, "actor_id": actorID}
}

// ensureFollower inserts an unknown-trust record when none exists.
func (s *Store) ensureFollower(ctx context.Context, ownerUserID, actorID string) error {
	t := now()

	_, err := s.mdb.NewUpdate((*followerModel)(nil)).
		Filter(followerFilter(ownerUserID, actorID)).
		SetUpdate(bson.M{"$setOnInsert": bson.M{
			"_id":           id.NewFollowerID().String(),
			"owner_user_id": ownerUserID,
			"actor_id":      actorID,
			"username":      "",
			"trust":         string(follower.StateUnknown),
			"created_at":    t,
			"updated_at":    t,
		}}).
		Upsert().
		Exec(ctx)
	// A duplicate key means a concurrent upsert created the record first.
	if err != nil && !mongod.IsDuplicateKeyError(err) {
		return fmt.Errorf("herald/mongo: ensure follower: %w", err)
	}

	return nil
}

// RecordFollow stores that the actor followed the owner.
func (s *Store) RecordFollow(ctx context.Context, f *follower.Follower) error {
	if err := s.ensureFollower(ctx, f.OwnerUserID, f.ActorID); err != nil {
		return err
	}

	followed := now()
	if f.FollowedAt != nil {
		followed = f.FollowedAt.UTC()
	}

	q := s.mdb.NewUpdate((*followerModel)(nil)).
		Filter(followerFilter(f.OwnerUserID, f.ActorID)).
		Set("followed_at", followed).
		Set("updated_at", now())

	if f.Username != "" {
		q = q.Set("username", f.Username)
	}

	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("herald/mongo: record follow: %w", err)
	}

	return nil
}

// GetFollower returns the follower record for an actor.
func (s *Store) GetFollower(ctx context.Context, ownerUserID, actorID string) (*follower.Follower, error) {
	var m followerModel

	err := s.mdb.NewFind(&m).
		Filter(followerFilter(ownerUserID, actorID)).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, herald.ErrFollowerNotFound
		}

		return nil, fmt.Errorf("herald/mongo: get follower: %w", err)
	}

	return fromFollowerModel(&m)
}

// MarkCommented records the first comment time. Later calls keep the first.
func (s *Store) MarkCommented(ctx context.Context, ownerUserID, actorID string, at time.Time) error {
	if err := s.ensureFollower(ctx, ownerUserID, actorID); err != nil {
		return err
	}

	filter := followerFilter(ownerUserID, actorID)
	filter["commented_at"] = nil

	_, err := s.mdb.NewUpdate((*followerModel)(nil)).
		Filter(filter).
		Set("commented_at", at.UTC()).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/mongo: mark commented: %w", err)
	}

	return nil
}

// AdvanceTrust moves the actor one trust step and returns the new state.
// Uses FindOneAndUpdate with a pipeline so concurrent comments each observe
// a distinct step.
func (s *Store) AdvanceTrust(ctx context.Context, ownerUserID, actorID string) (follower.State, error) {
	if err := s.ensureFollower(ctx, ownerUserID, actorID); err != nil {
		return "", err
	}

	advanced := bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$in", Value: bson.A{
			"$trust",
			bson.A{string(follower.StateFirstCommenter), string(follower.StateTrusted)},
		}}},
		string(follower.StateTrusted),
		string(follower.StateFirstCommenter),
	}}}

	pipeline := mongod.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "trust", Value: advanced},
			{Key: "updated_at", Value: now()},
		}}},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m followerModel

	err := s.mdb.Collection(colFollowers).
		FindOneAndUpdate(ctx, followerFilter(ownerUserID, actorID), pipeline, opts).
		Decode(&m)
	if err != nil {
		return "", fmt.Errorf("herald/mongo: advance trust: %w", err)
	}

	return follower.State(m.Trust), nil
}
