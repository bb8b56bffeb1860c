package redis

import (
	"context"
	"fmt"

	"github.com/xraph/herald"
	"github.com/xraph/herald/account"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/internal/entity"
)

func (s *Store) UpsertAccount(ctx context.Context, a *account.ConnectedAccount) error {
	// Reuse the owner's existing link identity.
	existingID, err := s.rdb.Get(ctx, uniqueAccountOwner+a.OwnerUserID).Result()
	if err != nil && !isRedisNil(err) {
		return fmt.Errorf("herald/redis: upsert account lookup: %w", err)
	}

	var existing *accountModel
	if existingID != "" {
		var m accountModel
		if err := s.getJSON(ctx, entityKey(prefixAccount, existingID), &m); err != nil && !isNotFound(err) {
			return fmt.Errorf("herald/redis: upsert account get: %w", err)
		} else if err == nil {
			existing = &m
		}
	}

	if existing != nil {
		a.ID, _ = id.ParseAccountID(existing.ID) //nolint:errcheck // stored IDs are valid
		a.CreatedAt = existing.CreatedAt
	} else {
		a.ID = id.NewAccountID()
		a.Entity = entity.New()
	}
	a.UpdatedAt = now()

	m := toAccountModel(a)

	// Claim the external account atomically.
	ok, err := s.rdb.SetNX(ctx, uniqueAccountExternal+m.ExternalAccountID, m.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("herald/redis: upsert account index: %w", err)
	}
	if !ok {
		holder, err := s.rdb.Get(ctx, uniqueAccountExternal+m.ExternalAccountID).Result()
		if err != nil && !isRedisNil(err) {
			return fmt.Errorf("herald/redis: upsert account index: %w", err)
		}
		if holder != m.ID {
			return herald.ErrAccountTaken
		}
	}

	if err := s.setJSON(ctx, entityKey(prefixAccount, m.ID), m); err != nil {
		return fmt.Errorf("herald/redis: upsert account: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, uniqueAccountOwner+m.OwnerUserID, m.ID, 0)
	if existing != nil && existing.ExternalAccountID != m.ExternalAccountID {
		pipe.Del(ctx, uniqueAccountExternal+existing.ExternalAccountID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("herald/redis: upsert account indexes: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.ID) (*account.ConnectedAccount, error) {
	var m accountModel
	if err := s.getJSON(ctx, entityKey(prefixAccount, accountID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, herald.ErrAccountNotFound
		}
		return nil, fmt.Errorf("herald/redis: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) FindAccountByOwner(ctx context.Context, ownerUserID string) (*account.ConnectedAccount, error) {
	return s.findAccountByIndex(ctx, uniqueAccountOwner+ownerUserID)
}

func (s *Store) FindAccountByExternalID(ctx context.Context, externalAccountID string) (*account.ConnectedAccount, error) {
	return s.findAccountByIndex(ctx, uniqueAccountExternal+externalAccountID)
}

func (s *Store) findAccountByIndex(ctx context.Context, indexKey string) (*account.ConnectedAccount, error) {
	acctID, err := s.rdb.Get(ctx, indexKey).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, herald.ErrAccountNotFound
		}
		return nil, fmt.Errorf("herald/redis: find account: %w", err)
	}

	var m accountModel
	if err := s.getJSON(ctx, entityKey(prefixAccount, acctID), &m); err != nil {
		if isNotFound(err) {
			return nil, herald.ErrAccountNotFound
		}
		return nil, fmt.Errorf("herald/redis: find account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) DeleteAccount(ctx context.Context, accountID id.ID) error {
	var m accountModel
	if err := s.getJSON(ctx, entityKey(prefixAccount, accountID.String()), &m); err != nil {
		if isNotFound(err) {
			return herald.ErrAccountNotFound
		}
		return fmt.Errorf("herald/redis: delete account get: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, entityKey(prefixAccount, m.ID))
	pipe.Del(ctx, uniqueAccountOwner+m.OwnerUserID)
	pipe.Del(ctx, uniqueAccountExternal+m.ExternalAccountID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("herald/redis: delete account: %w", err)
	}
	return nil
}
