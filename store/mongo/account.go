package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/herald"
	"github.com/xraph/herald/account"
	"github.com/xraph/herald/id"
)

// UpsertAccount links an Instagram account to its owner, replacing any
// previous link for the same owner.
func (s *Store) UpsertAccount(ctx context.Context, a *account.ConnectedAccount) error {
	taken, err := s.mdb.NewFind((*accountModel)(nil)).
		Filter(bson.M{
			"external_account_id": a.ExternalAccountID,
			"owner_user_id":       bson.M{"$ne": a.OwnerUserID},
		}).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("herald/mongo: upsert account: %w", err)
	}

	if taken > 0 {
		return herald.ErrAccountTaken
	}

	t := now()

	if a.ID.IsNil() {
		a.ID = id.NewAccountID()
	}

	m := toAccountModel(a)

	_, err = s.mdb.NewUpdate(m).
		Filter(bson.M{"owner_user_id": m.OwnerUserID}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"external_account_id": m.ExternalAccountID,
				"username":            m.Username,
				"access_token":        m.AccessToken,
				"capability_scopes":   m.CapabilityScopes,
				"updated_at":          t,
			},
			"$setOnInsert": bson.M{
				"_id":        m.ID,
				"created_at": t,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/mongo: upsert account: %w", err)
	}

	stored, err := s.FindAccountByOwner(ctx, a.OwnerUserID)
	if err != nil {
		return err
	}

	a.ID = stored.ID
	a.CreatedAt = stored.CreatedAt
	a.UpdatedAt = stored.UpdatedAt

	return nil
}

// GetAccount returns an account link by ID.
func (s *Store) GetAccount(ctx context.Context, accountID id.ID) (*account.ConnectedAccount, error) {
	return s.findAccount(ctx, bson.M{"_id": accountID.String()})
}

// FindAccountByOwner returns the account linked by a dashboard user.
func (s *Store) FindAccountByOwner(ctx context.Context, ownerUserID string) (*account.ConnectedAccount, error) {
	return s.findAccount(ctx, bson.M{"owner_user_id": ownerUserID})
}

// FindAccountByExternalID returns the account a webhook is addressed to.
func (s *Store) FindAccountByExternalID(ctx context.Context, externalAccountID string) (*account.ConnectedAccount, error) {
	return s.findAccount(ctx, bson.M{"external_account_id": externalAccountID})
}

func (s *Store) findAccount(ctx context.Context, filter bson.M) (*account.ConnectedAccount, error) {
	var m accountModel

	err := s.mdb.NewFind(&m).
		Filter(filter).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, herald.ErrAccountNotFound
		}

		return nil, fmt.Errorf("herald/mongo: find account: %w", err)
	}

	return fromAccountModel(&m)
}

// DeleteAccount removes an account link.
func (s *Store) DeleteAccount(ctx context.Context, accountID id.ID) error {
	res, err := s.mdb.NewDelete((*accountModel)(nil)).
		Filter(bson.M{"_id": accountID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/mongo: delete account: %w", err)
	}

	if res.DeletedCount() == 0 {
		return herald.ErrAccountNotFound
	}

	return nil
}
