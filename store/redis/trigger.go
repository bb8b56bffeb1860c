package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/herald"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/trigger"
)

// ==================== Claims ====================

func (s *Store) ClaimTrigger(ctx context.Context, c *trigger.Claim) error {
	raw, err := json.Marshal(toClaimModel(c))
	if err != nil {
		return fmt.Errorf("herald/redis: marshal claim: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, entityKey(prefixClaim, c.Key), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("herald/redis: claim trigger: %w", err)
	}
	if !ok {
		return herald.ErrDuplicateTrigger
	}

	if err := s.rdb.ZAdd(ctx, zClaimAll, goredis.Z{Score: scoreFromTime(c.ClaimedAt), Member: c.Key}).Err(); err != nil {
		return fmt.Errorf("herald/redis: claim trigger index: %w", err)
	}
	return nil
}

func (s *Store) ReleaseClaim(ctx context.Context, key string) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, entityKey(prefixClaim, key))
	pipe.ZRem(ctx, zClaimAll, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("herald/redis: release claim: %w", err)
	}
	return nil
}

func (s *Store) PurgeClaims(ctx context.Context, before time.Time) (int64, error) {
	keys, err := s.window(ctx, zClaimAll, nil, &before, false)
	if err != nil {
		return 0, fmt.Errorf("herald/redis: purge claims list: %w", err)
	}

	var count int64
	for _, key := range keys {
		if err := s.ReleaseClaim(ctx, key); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// ==================== Trigger Logs ====================

func (s *Store) CreateTriggerLog(ctx context.Context, l *trigger.TriggerLog) error {
	m := toTriggerLogModel(l)

	if err := s.setJSON(ctx, entityKey(prefixTriggerLog, m.ID), m); err != nil {
		return fmt.Errorf("herald/redis: create trigger log: %w", err)
	}

	z := goredis.Z{Score: scoreFromTime(m.TriggeredAt), Member: m.ID}
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zTriggerAll, z)
	pipe.ZAdd(ctx, zTriggerRule+m.AutomationID, z)
	pipe.ZAdd(ctx, recentTriggerKey(m.AutomationID, m.ActorID), z)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("herald/redis: create trigger log indexes: %w", err)
	}
	return nil
}

func (s *Store) HasRecentTrigger(ctx context.Context, automationID id.ID, actorID, text string, since time.Time) (bool, error) {
	ids, err := s.window(ctx, recentTriggerKey(automationID.String(), actorID), &since, nil, false)
	if err != nil {
		return false, fmt.Errorf("herald/redis: recent trigger: %w", err)
	}

	for _, logID := range ids {
		var m triggerLogModel
		if err := s.getJSON(ctx, entityKey(prefixTriggerLog, logID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return false, fmt.Errorf("herald/redis: recent trigger: %w", err)
		}
		if m.TriggerText == text {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListTriggerLogs(ctx context.Context, opts trigger.ListOpts) ([]*trigger.TriggerLog, error) {
	logs, err := s.scanTriggerLogs(ctx, opts)
	if err != nil {
		return nil, err
	}
	return paginate(logs, opts.Offset, opts.Limit), nil
}

func (s *Store) CountTriggerLogs(ctx context.Context, opts trigger.ListOpts) (int64, error) {
	if opts.AutomationID == nil && opts.ActorID == "" && opts.From == nil && opts.To == nil {
		count, err := s.rdb.ZCard(ctx, zTriggerAll).Result()
		if err != nil {
			return 0, fmt.Errorf("herald/redis: count trigger logs: %w", err)
		}
		return count, nil
	}

	logs, err := s.scanTriggerLogs(ctx, opts)
	if err != nil {
		return 0, err
	}
	return int64(len(logs)), nil
}

// scanTriggerLogs loads matching logs newest first.
func (s *Store) scanTriggerLogs(ctx context.Context, opts trigger.ListOpts) ([]*trigger.TriggerLog, error) {
	zKey := zTriggerAll
	switch {
	case opts.AutomationID != nil && opts.ActorID != "":
		zKey = recentTriggerKey(opts.AutomationID.String(), opts.ActorID)
	case opts.AutomationID != nil:
		zKey = zTriggerRule + opts.AutomationID.String()
	}

	ids, err := s.window(ctx, zKey, opts.From, opts.To, true)
	if err != nil {
		return nil, fmt.Errorf("herald/redis: list trigger logs: %w", err)
	}

	result := make([]*trigger.TriggerLog, 0, len(ids))
	for _, logID := range ids {
		var m triggerLogModel
		if err := s.getJSON(ctx, entityKey(prefixTriggerLog, logID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.ActorID != "" && m.ActorID != opts.ActorID {
			continue
		}
		l, err := fromTriggerLogModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, nil
}
