package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/herald"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/rule"
)

// CreateRule persists a new rule.
func (s *Store) CreateRule(ctx context.Context, r *rule.AutomationRule) error {
	m := toRuleModel(r)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/mongo: create rule: %w", err)
	}

	return nil
}

// GetRule returns a rule by ID.
func (s *Store) GetRule(ctx context.Context, ruleID id.ID) (*rule.AutomationRule, error) {
	var m ruleModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": ruleID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, herald.ErrRuleNotFound
		}

		return nil, fmt.Errorf("herald/mongo: get rule: %w", err)
	}

	return fromRuleModel(&m)
}

// UpdateRule replaces a rule.
func (s *Store) UpdateRule(ctx context.Context, r *rule.AutomationRule) error {
	m := toRuleModel(r)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/mongo: update rule: %w", err)
	}

	if res.MatchedCount() == 0 {
		return herald.ErrRuleNotFound
	}

	return nil
}

// DeleteRule removes a rule.
func (s *Store) DeleteRule(ctx context.Context, ruleID id.ID) error {
	res, err := s.mdb.NewDelete((*ruleModel)(nil)).
		Filter(bson.M{"_id": ruleID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/mongo: delete rule: %w", err)
	}

	if res.DeletedCount() == 0 {
		return herald.ErrRuleNotFound
	}

	return nil
}

// ListRules returns an owner's rules, newest first.
func (s *Store) ListRules(ctx context.Context, ownerUserID string, opts rule.ListOpts) ([]*rule.AutomationRule, error) {
	var models []ruleModel

	filter := bson.M{"owner_user_id": ownerUserID}
	if opts.Active != nil {
		filter["active"] = *opts.Active
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("herald/mongo: list rules: %w", err)
	}

	return fromRuleModels(models)
}

// SetActive toggles a rule.
func (s *Store) SetActive(ctx context.Context, ruleID id.ID, active bool) error {
	res, err := s.mdb.NewUpdate((*ruleModel)(nil)).
		Filter(bson.M{"_id": ruleID.String()}).
		Set("active", active).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/mongo: set active: %w", err)
	}

	if res.MatchedCount() == 0 {
		return herald.ErrRuleNotFound
	}

	return nil
}

// FindActiveRules returns active rules for the filter, ordered by ID.
// The external account is resolved to its owner first since MongoDB has no
// subquery join on the hot path.
func (s *Store) FindActiveRules(ctx context.Context, f rule.Filter) ([]*rule.AutomationRule, error) {
	filter := bson.M{"active": true}

	if f.OwnerAccountExternalID != "" {
		acct, err := s.FindAccountByExternalID(ctx, f.OwnerAccountExternalID)
		if err != nil {
			if errors.Is(err, herald.ErrAccountNotFound) {
				return []*rule.AutomationRule{}, nil
			}

			return nil, err
		}

		if f.OwnerUserID != "" && f.OwnerUserID != acct.OwnerUserID {
			return []*rule.AutomationRule{}, nil
		}

		filter["owner_user_id"] = acct.OwnerUserID
	} else if f.OwnerUserID != "" {
		filter["owner_user_id"] = f.OwnerUserID
	}

	var models []ruleModel

	err := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("herald/mongo: find active rules: %w", err)
	}

	return fromRuleModels(models)
}

func fromRuleModels(models []ruleModel) ([]*rule.AutomationRule, error) {
	result := make([]*rule.AutomationRule, 0, len(models))

	for i := range models {
		r, err := fromRuleModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, r)
	}

	return result, nil
}
