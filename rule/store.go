package rule

import (
	"context"

	"github.com/xraph/herald/id"
)

// Filter narrows FindActiveRules.
type Filter struct {
	// OwnerAccountExternalID limits results to rules owned by the user that
	// connected this Instagram account.
	OwnerAccountExternalID string

	// OwnerUserID limits results to one owner.
	OwnerUserID string
}

// ListOpts configures filtering and pagination for rule listing.
type ListOpts struct {
	Offset int
	Limit  int
	Active *bool
}

// Store defines the persistence contract for automation rules.
type Store interface {
	// CreateRule persists a new rule.
	CreateRule(ctx context.Context, r *AutomationRule) error

	// GetRule returns a rule by ID.
	GetRule(ctx context.Context, ruleID id.ID) (*AutomationRule, error)

	// UpdateRule modifies an existing rule.
	UpdateRule(ctx context.Context, r *AutomationRule) error

	// DeleteRule removes a rule.
	DeleteRule(ctx context.Context, ruleID id.ID) error

	// ListRules returns an owner's rules, newest first.
	ListRules(ctx context.Context, ownerUserID string, opts ListOpts) ([]*AutomationRule, error)

	// SetActive toggles a rule.
	SetActive(ctx context.Context, ruleID id.ID, active bool) error

	// FindActiveRules returns every active rule matching the filter.
	// This is the hot path, called once per fresh event.
	FindActiveRules(ctx context.Context, f Filter) ([]*AutomationRule, error)
}
