package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/herald"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/rule"
)

func (s *Store) CreateRule(ctx context.Context, r *rule.AutomationRule) error {
	m := toRuleModel(r)
	key := entityKey(prefixRule, m.ID)

	if err := s.setJSON(ctx, key, m); err != nil {
		return fmt.Errorf("herald/redis: create rule: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zRuleOwner+m.OwnerUserID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if m.Active {
		pipe.SAdd(ctx, sRuleActive+m.OwnerUserID, m.ID)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/redis: create rule indexes: %w", err)
	}
	return nil
}

func (s *Store) GetRule(ctx context.Context, ruleID id.ID) (*rule.AutomationRule, error) {
	m, err := s.getRuleModel(ctx, ruleID.String())
	if err != nil {
		return nil, err
	}
	return fromRuleModel(m)
}

func (s *Store) getRuleModel(ctx context.Context, ruleID string) (*ruleModel, error) {
	var m ruleModel
	if err := s.getJSON(ctx, entityKey(prefixRule, ruleID), &m); err != nil {
		if isNotFound(err) {
			return nil, herald.ErrRuleNotFound
		}
		return nil, fmt.Errorf("herald/redis: get rule: %w", err)
	}
	return &m, nil
}

func (s *Store) UpdateRule(ctx context.Context, r *rule.AutomationRule) error {
	existing, err := s.getRuleModel(ctx, r.ID.String())
	if err != nil {
		return err
	}

	m := toRuleModel(r)
	m.UpdatedAt = now()

	if err := s.setJSON(ctx, entityKey(prefixRule, m.ID), m); err != nil {
		return fmt.Errorf("herald/redis: update rule: %w", err)
	}
	return s.syncRuleIndexes(ctx, existing, m)
}

func (s *Store) DeleteRule(ctx context.Context, ruleID id.ID) error {
	existing, err := s.getRuleModel(ctx, ruleID.String())
	if err != nil {
		return err
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, entityKey(prefixRule, existing.ID))
	pipe.ZRem(ctx, zRuleOwner+existing.OwnerUserID, existing.ID)
	pipe.SRem(ctx, sRuleActive+existing.OwnerUserID, existing.ID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/redis: delete rule: %w", err)
	}
	return nil
}

func (s *Store) ListRules(ctx context.Context, ownerUserID string, opts rule.ListOpts) ([]*rule.AutomationRule, error) {
	ids, err := s.window(ctx, zRuleOwner+ownerUserID, nil, nil, true)
	if err != nil {
		return nil, fmt.Errorf("herald/redis: list rules: %w", err)
	}

	result := make([]*rule.AutomationRule, 0, len(ids))
	for _, ruleID := range ids {
		m, err := s.getRuleModel(ctx, ruleID)
		if err != nil {
			if errors.Is(err, herald.ErrRuleNotFound) {
				continue
			}
			return nil, err
		}
		if opts.Active != nil && m.Active != *opts.Active {
			continue
		}
		r, err := fromRuleModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) SetActive(ctx context.Context, ruleID id.ID, active bool) error {
	existing, err := s.getRuleModel(ctx, ruleID.String())
	if err != nil {
		return err
	}

	m := *existing
	m.Active = active
	m.UpdatedAt = now()

	if err := s.setJSON(ctx, entityKey(prefixRule, m.ID), &m); err != nil {
		return fmt.Errorf("herald/redis: set active: %w", err)
	}
	return s.syncRuleIndexes(ctx, existing, &m)
}

// syncRuleIndexes moves a rule between owner and active indexes.
func (s *Store) syncRuleIndexes(ctx context.Context, old, cur *ruleModel) error {
	pipe := s.rdb.Pipeline()
	if old.OwnerUserID != cur.OwnerUserID {
		pipe.ZRem(ctx, zRuleOwner+old.OwnerUserID, old.ID)
		pipe.ZAdd(ctx, zRuleOwner+cur.OwnerUserID, goredis.Z{Score: scoreFromTime(cur.CreatedAt), Member: cur.ID})
	}
	pipe.SRem(ctx, sRuleActive+old.OwnerUserID, old.ID)
	if cur.Active {
		pipe.SAdd(ctx, sRuleActive+cur.OwnerUserID, cur.ID)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/redis: sync rule indexes: %w", err)
	}
	return nil
}

func (s *Store) FindActiveRules(ctx context.Context, f rule.Filter) ([]*rule.AutomationRule, error) {
	owner := f.OwnerUserID
	if f.OwnerAccountExternalID != "" {
		acct, err := s.FindAccountByExternalID(ctx, f.OwnerAccountExternalID)
		if err != nil {
			if errors.Is(err, herald.ErrAccountNotFound) {
				return []*rule.AutomationRule{}, nil
			}
			return nil, err
		}
		if owner != "" && owner != acct.OwnerUserID {
			return []*rule.AutomationRule{}, nil
		}
		owner = acct.OwnerUserID
	}
	if owner == "" {
		// Active rules are indexed per owner only.
		return []*rule.AutomationRule{}, nil
	}

	ids, err := s.rdb.SMembers(ctx, sRuleActive+owner).Result()
	if err != nil {
		return nil, fmt.Errorf("herald/redis: find active rules: %w", err)
	}
	slices.Sort(ids)

	result := make([]*rule.AutomationRule, 0, len(ids))
	for _, ruleID := range ids {
		m, err := s.getRuleModel(ctx, ruleID)
		if err != nil {
			if errors.Is(err, herald.ErrRuleNotFound) {
				continue
			}
			return nil, err
		}
		if !m.Active {
			continue
		}
		r, err := fromRuleModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}
