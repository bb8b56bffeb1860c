// Package memory provides an in-memory Store implementation for tests and
// single-instance deployments.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/xraph/herald"
	"github.com/xraph/herald/account"
	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/follower"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/internal/entity"
	"github.com/xraph/herald/rule"
	heraldstore "github.com/xraph/herald/store"
	"github.com/xraph/herald/trigger"
)

// compile-time interface check.
var _ heraldstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	rules     map[string]*rule.AutomationRule      // keyed by ID string
	accounts  map[string]*account.ConnectedAccount // keyed by owner user ID
	followers map[string]*follower.Follower        // keyed by owner + actor
	claims    map[string]*trigger.Claim            // keyed by natural key
	logs      []*trigger.TriggerLog                // append only
	failures  map[string]*failure.Failure          // keyed by ID string

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		rules:     make(map[string]*rule.AutomationRule),
		accounts:  make(map[string]*account.ConnectedAccount),
		followers: make(map[string]*follower.Follower),
		claims:    make(map[string]*trigger.Claim),
		failures:  make(map[string]*failure.Failure),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports ErrStoreClosed after Close.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return herald.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// rule.Store
// ──────────────────────────────────────────────────

// CreateRule persists a new rule.
func (s *Store) CreateRule(_ context.Context, r *rule.AutomationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules[r.ID.String()] = cloneRule(r)
	return nil
}

// GetRule returns a rule by ID.
func (s *Store) GetRule(_ context.Context, ruleID id.ID) (*rule.AutomationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[ruleID.String()]
	if !ok {
		return nil, herald.ErrRuleNotFound
	}
	return cloneRule(r), nil
}

// UpdateRule modifies an existing rule.
func (s *Store) UpdateRule(_ context.Context, r *rule.AutomationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[r.ID.String()]; !ok {
		return herald.ErrRuleNotFound
	}
	s.rules[r.ID.String()] = cloneRule(r)
	return nil
}

// DeleteRule removes a rule.
func (s *Store) DeleteRule(_ context.Context, ruleID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[ruleID.String()]; !ok {
		return herald.ErrRuleNotFound
	}
	delete(s.rules, ruleID.String())
	return nil
}

// ListRules returns an owner's rules, newest first.
func (s *Store) ListRules(_ context.Context, ownerUserID string, opts rule.ListOpts) ([]*rule.AutomationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*rule.AutomationRule, 0)
	for _, r := range s.rules {
		if r.OwnerUserID != ownerUserID {
			continue
		}
		if opts.Active != nil && r.Active != *opts.Active {
			continue
		}
		result = append(result, cloneRule(r))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// SetActive toggles a rule.
func (s *Store) SetActive(_ context.Context, ruleID id.ID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[ruleID.String()]
	if !ok {
		return herald.ErrRuleNotFound
	}
	r.Active = active
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// FindActiveRules returns active rules matching the filter, ordered by ID.
func (s *Store) FindActiveRules(_ context.Context, f rule.Filter) ([]*rule.AutomationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owners map[string]struct{}
	if f.OwnerAccountExternalID != "" {
		owners = make(map[string]struct{})
		for owner, a := range s.accounts {
			if a.ExternalAccountID == f.OwnerAccountExternalID {
				owners[owner] = struct{}{}
			}
		}
	}

	result := make([]*rule.AutomationRule, 0)
	for _, r := range s.rules {
		if !r.Active {
			continue
		}
		if f.OwnerUserID != "" && r.OwnerUserID != f.OwnerUserID {
			continue
		}
		if owners != nil {
			if _, ok := owners[r.OwnerUserID]; !ok {
				continue
			}
		}
		result = append(result, cloneRule(r))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.Less(result[j].ID)
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// account.Store
// ──────────────────────────────────────────────────

// UpsertAccount creates or replaces the account linked to an owner.
func (s *Store) UpsertAccount(_ context.Context, a *account.ConnectedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for owner, existing := range s.accounts {
		if owner != a.OwnerUserID && existing.ExternalAccountID == a.ExternalAccountID {
			return herald.ErrAccountTaken
		}
	}
	if existing, ok := s.accounts[a.OwnerUserID]; ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		a.UpdatedAt = time.Now().UTC()
	}
	if a.ID.IsNil() {
		a.ID = id.NewAccountID()
	}
	if a.CreatedAt.IsZero() {
		a.Entity = entity.New()
	}
	s.accounts[a.OwnerUserID] = cloneAccount(a)
	return nil
}

// GetAccount returns an account by ID.
func (s *Store) GetAccount(_ context.Context, accountID id.ID) (*account.ConnectedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.ID.String() == accountID.String() {
			return cloneAccount(a), nil
		}
	}
	return nil, herald.ErrAccountNotFound
}

// FindAccountByOwner returns the account connected by ownerUserID.
func (s *Store) FindAccountByOwner(_ context.Context, ownerUserID string) (*account.ConnectedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[ownerUserID]
	if !ok {
		return nil, herald.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

// FindAccountByExternalID returns the account with the given Instagram id.
func (s *Store) FindAccountByExternalID(_ context.Context, externalAccountID string) (*account.ConnectedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.ExternalAccountID == externalAccountID {
			return cloneAccount(a), nil
		}
	}
	return nil, herald.ErrAccountNotFound
}

// DeleteAccount removes an account link.
func (s *Store) DeleteAccount(_ context.Context, accountID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for owner, a := range s.accounts {
		if a.ID.String() == accountID.String() {
			delete(s.accounts, owner)
			return nil
		}
	}
	return herald.ErrAccountNotFound
}

// ──────────────────────────────────────────────────
// follower.Store
// ──────────────────────────────────────────────────

func followerKey(owner, actor string) string { return owner + "\x00" + actor }

// getOrCreateFollower must be called with the write lock held.
func (s *Store) getOrCreateFollower(owner, actor string) *follower.Follower {
	key := followerKey(owner, actor)
	f, ok := s.followers[key]
	if !ok {
		f = &follower.Follower{
			Entity:      entity.New(),
			ID:          id.NewFollowerID(),
			OwnerUserID: owner,
			ActorID:     actor,
			Trust:       follower.StateUnknown,
		}
		s.followers[key] = f
	}
	return f
}

// RecordFollow upserts a follow for the owner/actor pair.
func (s *Store) RecordFollow(_ context.Context, in *follower.Follower) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.getOrCreateFollower(in.OwnerUserID, in.ActorID)
	if in.Username != "" {
		f.Username = in.Username
	}
	followed := time.Now().UTC()
	if in.FollowedAt != nil {
		followed = in.FollowedAt.UTC()
	}
	f.FollowedAt = &followed
	f.UpdatedAt = time.Now().UTC()
	in.ID = f.ID
	return nil
}

// GetFollower returns the record for an owner/actor pair.
func (s *Store) GetFollower(_ context.Context, ownerUserID, actorID string) (*follower.Follower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.followers[followerKey(ownerUserID, actorID)]
	if !ok {
		return nil, herald.ErrFollowerNotFound
	}
	cp := *f
	return &cp, nil
}

// MarkCommented records the actor's first comment time.
func (s *Store) MarkCommented(_ context.Context, ownerUserID, actorID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.getOrCreateFollower(ownerUserID, actorID)
	if f.CommentedAt == nil {
		t := at.UTC()
		f.CommentedAt = &t
		f.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// AdvanceTrust moves the pair one trust step forward.
func (s *Store) AdvanceTrust(_ context.Context, ownerUserID, actorID string) (follower.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.getOrCreateFollower(ownerUserID, actorID)
	f.Trust = f.Trust.Next()
	f.UpdatedAt = time.Now().UTC()
	return f.Trust, nil
}

// ──────────────────────────────────────────────────
// trigger.Store
// ──────────────────────────────────────────────────

// ClaimTrigger inserts a claim unless its natural key exists.
func (s *Store) ClaimTrigger(_ context.Context, c *trigger.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claims[c.Key]; ok {
		return herald.ErrDuplicateTrigger
	}
	cp := *c
	s.claims[c.Key] = &cp
	return nil
}

// ReleaseClaim removes a claim.
func (s *Store) ReleaseClaim(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.claims, key)
	return nil
}

// PurgeClaims deletes claims older than before.
func (s *Store) PurgeClaims(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for k, c := range s.claims {
		if c.ClaimedAt.Before(before) {
			delete(s.claims, k)
			count++
		}
	}
	return count, nil
}

// CreateTriggerLog appends a trigger log row.
func (s *Store) CreateTriggerLog(_ context.Context, l *trigger.TriggerLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *l
	s.logs = append(s.logs, &cp)
	return nil
}

// HasRecentTrigger reports whether a matching log exists at or after since.
func (s *Store) HasRecentTrigger(_ context.Context, automationID id.ID, actorID, text string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.logs {
		if l.AutomationID.String() == automationID.String() &&
			l.ActorID == actorID &&
			l.TriggerText == text &&
			!l.TriggeredAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// ListTriggerLogs returns trigger logs, newest first.
func (s *Store) ListTriggerLogs(_ context.Context, opts trigger.ListOpts) ([]*trigger.TriggerLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.filterLogs(opts)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TriggeredAt.After(result[j].TriggeredAt)
	})
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CountTriggerLogs returns the number of trigger logs matching opts.
func (s *Store) CountTriggerLogs(_ context.Context, opts trigger.ListOpts) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.filterLogs(opts))), nil
}

func (s *Store) filterLogs(opts trigger.ListOpts) []*trigger.TriggerLog {
	result := make([]*trigger.TriggerLog, 0, len(s.logs))
	for _, l := range s.logs {
		if opts.AutomationID != nil && l.AutomationID.String() != opts.AutomationID.String() {
			continue
		}
		if opts.ActorID != "" && l.ActorID != opts.ActorID {
			continue
		}
		if opts.From != nil && l.TriggeredAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && l.TriggeredAt.After(*opts.To) {
			continue
		}
		cp := *l
		result = append(result, &cp)
	}
	return result
}

// ──────────────────────────────────────────────────
// failure.Store
// ──────────────────────────────────────────────────

// PushFailure persists a failure record.
func (s *Store) PushFailure(_ context.Context, f *failure.Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *f
	s.failures[f.ID.String()] = &cp
	return nil
}

// GetFailure returns a failure by ID.
func (s *Store) GetFailure(_ context.Context, failureID id.ID) (*failure.Failure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.failures[failureID.String()]
	if !ok {
		return nil, herald.ErrFailureNotFound
	}
	cp := *f
	return &cp, nil
}

// ListFailures returns failures, newest first.
func (s *Store) ListFailures(_ context.Context, opts failure.ListOpts) ([]*failure.Failure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*failure.Failure, 0, len(s.failures))
	for _, f := range s.failures {
		if opts.OwnerUserID != "" && f.OwnerUserID != opts.OwnerUserID {
			continue
		}
		if opts.AutomationID != nil && f.AutomationID.String() != opts.AutomationID.String() {
			continue
		}
		if opts.From != nil && f.FailedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && f.FailedAt.After(*opts.To) {
			continue
		}
		cp := *f
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FailedAt.After(result[j].FailedAt)
	})
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CountFailures returns the total number of failure records.
func (s *Store) CountFailures(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.failures)), nil
}

// PurgeFailures deletes failures older than before.
func (s *Store) PurgeFailures(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for k, f := range s.failures {
		if f.FailedAt.Before(before) {
			delete(s.failures, k)
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func cloneRule(r *rule.AutomationRule) *rule.AutomationRule {
	cp := *r
	cp.Keywords = slices.Clone(r.Keywords)
	cp.ScopePostIDs = slices.Clone(r.ScopePostIDs)
	return &cp
}

func cloneAccount(a *account.ConnectedAccount) *account.ConnectedAccount {
	cp := *a
	cp.CapabilityScopes = slices.Clone(a.CapabilityScopes)
	return &cp
}

// applyPagination applies offset and limit to a slice.
func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
