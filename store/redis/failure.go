package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/herald"
	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/id"
)

func (s *Store) PushFailure(ctx context.Context, f *failure.Failure) error {
	m := toFailureModel(f)

	if err := s.setJSON(ctx, entityKey(prefixFailure, m.ID), m); err != nil {
		return fmt.Errorf("herald/redis: push failure: %w", err)
	}

	z := goredis.Z{Score: scoreFromTime(m.FailedAt), Member: m.ID}
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zFailureAll, z)
	if m.OwnerUserID != "" {
		pipe.ZAdd(ctx, zFailureOwner+m.OwnerUserID, z)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("herald/redis: push failure indexes: %w", err)
	}
	return nil
}

func (s *Store) GetFailure(ctx context.Context, failureID id.ID) (*failure.Failure, error) {
	var m failureModel
	if err := s.getJSON(ctx, entityKey(prefixFailure, failureID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, herald.ErrFailureNotFound
		}
		return nil, fmt.Errorf("herald/redis: get failure: %w", err)
	}
	return fromFailureModel(&m)
}

func (s *Store) ListFailures(ctx context.Context, opts failure.ListOpts) ([]*failure.Failure, error) {
	zKey := zFailureAll
	if opts.OwnerUserID != "" {
		zKey = zFailureOwner + opts.OwnerUserID
	}

	ids, err := s.window(ctx, zKey, opts.From, opts.To, true)
	if err != nil {
		return nil, fmt.Errorf("herald/redis: list failures: %w", err)
	}

	result := make([]*failure.Failure, 0, len(ids))
	for _, failureID := range ids {
		var m failureModel
		if err := s.getJSON(ctx, entityKey(prefixFailure, failureID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.AutomationID != nil && m.AutomationID != opts.AutomationID.String() {
			continue
		}
		f, err := fromFailureModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) CountFailures(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zFailureAll).Result()
	if err != nil {
		return 0, fmt.Errorf("herald/redis: count failures: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeFailures(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.window(ctx, zFailureAll, nil, &before, false)
	if err != nil {
		return 0, fmt.Errorf("herald/redis: purge failures list: %w", err)
	}

	var count int64
	for _, failureID := range ids {
		var m failureModel
		if err := s.getJSON(ctx, entityKey(prefixFailure, failureID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return count, err
		}

		pipe := s.rdb.Pipeline()
		pipe.Del(ctx, entityKey(prefixFailure, failureID))
		pipe.ZRem(ctx, zFailureAll, failureID)
		if m.OwnerUserID != "" {
			pipe.ZRem(ctx, zFailureOwner+m.OwnerUserID, failureID)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return count, fmt.Errorf("herald/redis: purge failures: %w", err)
		}
		count++
	}

	return count, nil
}
