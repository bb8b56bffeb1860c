package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/xraph/herald"
	"github.com/xraph/herald/follower"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/internal/entity"
)

// Follower hash fields. Trust is derived from the "comments" counter so
// concurrent advances are serialized by HINCRBY.
const (
	fieldID          = "id"
	fieldUsername    = "username"
	fieldFollowedAt  = "followed_at"
	fieldCommentedAt = "commented_at"
	fieldComments    = "comments"
	fieldCreatedAt   = "created_at"
	fieldUpdatedAt   = "updated_at"
)

// ensureFollower writes the identity fields if the hash is new.
func (s *Store) ensureFollower(ctx context.Context, key string) {
	t := now().Format(time.RFC3339Nano)
	pipe := s.rdb.Pipeline()
	pipe.HSetNX(ctx, key, fieldID, id.NewFollowerID().String())
	pipe.HSetNX(ctx, key, fieldCreatedAt, t)
	pipe.HSet(ctx, key, fieldUpdatedAt, t)
	_, _ = pipe.Exec(ctx) //nolint:errcheck // the write that follows reports failures
}

func (s *Store) RecordFollow(ctx context.Context, f *follower.Follower) error {
	key := followerKey(f.OwnerUserID, f.ActorID)
	s.ensureFollower(ctx, key)

	followed := now()
	if f.FollowedAt != nil {
		followed = f.FollowedAt.UTC()
	}

	values := []any{fieldFollowedAt, followed.Format(time.RFC3339Nano)}
	if f.Username != "" {
		values = append(values, fieldUsername, f.Username)
	}
	if err := s.rdb.HSet(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("herald/redis: record follow: %w", err)
	}
	return nil
}

func (s *Store) GetFollower(ctx context.Context, ownerUserID, actorID string) (*follower.Follower, error) {
	fields, err := s.rdb.HGetAll(ctx, followerKey(ownerUserID, actorID)).Result()
	if err != nil {
		return nil, fmt.Errorf("herald/redis: get follower: %w", err)
	}
	if len(fields) == 0 {
		return nil, herald.ErrFollowerNotFound
	}

	flwID, err := id.ParseFollowerID(fields[fieldID])
	if err != nil {
		return nil, fmt.Errorf("parse follower ID %q: %w", fields[fieldID], err)
	}

	var comments int64
	if raw := fields[fieldComments]; raw != "" {
		if comments, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("herald/redis: parse comment count: %w", err)
		}
	}

	return &follower.Follower{
		Entity: entity.Entity{
			CreatedAt: parseTime(fields[fieldCreatedAt]),
			UpdatedAt: parseTime(fields[fieldUpdatedAt]),
		},
		ID:          flwID,
		OwnerUserID: ownerUserID,
		ActorID:     actorID,
		Username:    fields[fieldUsername],
		FollowedAt:  parseTimePtr(fields[fieldFollowedAt]),
		CommentedAt: parseTimePtr(fields[fieldCommentedAt]),
		Trust:       stateFromCount(comments),
	}, nil
}

func (s *Store) MarkCommented(ctx context.Context, ownerUserID, actorID string, at time.Time) error {
	key := followerKey(ownerUserID, actorID)
	s.ensureFollower(ctx, key)

	if err := s.rdb.HSetNX(ctx, key, fieldCommentedAt, at.UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("herald/redis: mark commented: %w", err)
	}
	return nil
}

func (s *Store) AdvanceTrust(ctx context.Context, ownerUserID, actorID string) (follower.State, error) {
	key := followerKey(ownerUserID, actorID)
	s.ensureFollower(ctx, key)

	n, err := s.rdb.HIncrBy(ctx, key, fieldComments, 1).Result()
	if err != nil {
		return "", fmt.Errorf("herald/redis: advance trust: %w", err)
	}
	return stateFromCount(n), nil
}

// stateFromCount maps the number of trust advances to a trust state.
func stateFromCount(n int64) follower.State {
	switch {
	case n <= 0:
		return follower.StateUnknown
	case n == 1:
		return follower.StateFirstCommenter
	default:
		return follower.StateTrusted
	}
}

func parseTime(raw string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, raw) //nolint:errcheck // zero time on malformed input
	return t
}

func parseTimePtr(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t := parseTime(raw)
	return &t
}
