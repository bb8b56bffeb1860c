// Package account models the connected Instagram business accounts that own
// automation rules.
package account

import (
	"context"
	"errors"
	"slices"

	"github.com/xraph/herald/id"
	"github.com/xraph/herald/internal/entity"
)

// ErrNotFound is returned when no connected account matches a lookup.
var ErrNotFound = errors.New("herald: account not found")

// Capability scopes granted by the Instagram login flow.
const (
	ScopeManageMessages       = "instagram_business_manage_messages"
	ScopeManageComments       = "instagram_business_manage_comments"
	LegacyScopeManageMessages = "instagram_manage_messages"
	LegacyScopeManageComments = "instagram_manage_comments"
)

// ConnectedAccount links a dashboard user to an Instagram business account.
type ConnectedAccount struct {
	entity.Entity

	// ID is the unique TypeID for this account link.
	ID id.ID `json:"id"`

	// OwnerUserID is the dashboard user that owns the account and its rules.
	OwnerUserID string `json:"owner_user_id"`

	// ExternalAccountID is the Instagram account id webhooks are addressed to.
	ExternalAccountID string `json:"external_account_id"`

	// Username is the Instagram handle.
	Username string `json:"username,omitempty"`

	// AccessToken authorizes outbound Graph calls. Never serialized.
	AccessToken string `json:"-"`

	// CapabilityScopes are the permission scopes granted to the token.
	CapabilityScopes []string `json:"capability_scopes"`
}

// HasScope reports whether the account holds scope.
func (a *ConnectedAccount) HasScope(scope string) bool {
	return slices.Contains(a.CapabilityScopes, scope)
}

// CanMessage reports whether the account may send direct messages.
func (a *ConnectedAccount) CanMessage() bool {
	return a.HasScope(ScopeManageMessages) || a.HasScope(LegacyScopeManageMessages)
}

// CanManageComments reports whether the account may reply to comments.
func (a *ConnectedAccount) CanManageComments() bool {
	return a.HasScope(ScopeManageComments) || a.HasScope(LegacyScopeManageComments)
}

// HasCapability reports whether rules owned by this account may fire.
func (a *ConnectedAccount) HasCapability() bool {
	return a.CanMessage() && a.CanManageComments()
}

// Store defines the persistence contract for connected accounts.
type Store interface {
	// UpsertAccount creates or replaces the account linked to an owner.
	UpsertAccount(ctx context.Context, a *ConnectedAccount) error

	// GetAccount returns an account by ID.
	GetAccount(ctx context.Context, accountID id.ID) (*ConnectedAccount, error)

	// FindAccountByOwner returns the account connected by ownerUserID.
	FindAccountByOwner(ctx context.Context, ownerUserID string) (*ConnectedAccount, error)

	// FindAccountByExternalID returns the account with the given Instagram id.
	FindAccountByExternalID(ctx context.Context, externalAccountID string) (*ConnectedAccount, error)

	// DeleteAccount removes an account link.
	DeleteAccount(ctx context.Context, accountID id.ID) error
}
