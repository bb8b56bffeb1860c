package rule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/herald/account"
	"github.com/xraph/herald/event"
)

// AccountFinder resolves a rule owner's connected account.
type AccountFinder interface {
	FindAccountByOwner(ctx context.Context, ownerUserID string) (*account.ConnectedAccount, error)
}

// FollowerChecker reports whether an actor recently followed an owner.
type FollowerChecker interface {
	IsNewFollower(ctx context.Context, ownerUserID, actorID string) (bool, error)
}

// Reason explains why a rule was rejected for an event.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonInactive       Reason = "inactive"
	ReasonOwnership      Reason = "ownership"
	ReasonCapability     Reason = "capability"
	ReasonSelf           Reason = "self"
	ReasonReply          Reason = "reply"
	ReasonScope          Reason = "scope"
	ReasonKeyword        Reason = "keyword"
	ReasonTriggerKind    Reason = "trigger_kind"
	ReasonNotNewFollower Reason = "not_new_follower"
)

// Match is the rule selected for an event.
type Match struct {
	Rule          *AutomationRule
	Event         *event.InboundEvent
	Account       *account.ConnectedAccount
	Keywords      []KeywordMatch
	Score         float64
	IsNewFollower bool
}

// Matcher selects at most one rule per event. It has no side effects.
type Matcher struct {
	accounts  AccountFinder
	followers FollowerChecker
	logger    *slog.Logger
	now       func() time.Time
}

// NewMatcher creates a matcher. followers may be nil, in which case
// new-follower rules never match.
func NewMatcher(accounts AccountFinder, followers FollowerChecker, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		accounts:  accounts,
		followers: followers,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock used for recency scoring. Used by tests.
func (m *Matcher) SetClock(now func() time.Time) {
	m.now = now
}

// Match runs every rule through the filter pipeline and returns the highest
// scoring survivor, or nil. Exact score ties go to the lowest rule ID.
func (m *Matcher) Match(ctx context.Context, evt *event.InboundEvent, rules []*AutomationRule) (*Match, error) {
	var best *Match
	accounts := make(map[string]*account.ConnectedAccount)

	for _, r := range rules {
		cand, reason, err := m.evaluate(ctx, evt, r, accounts)
		if err != nil {
			return nil, err
		}
		if reason != ReasonNone {
			m.logger.DebugContext(ctx, "rule rejected",
				"rule_id", r.ID, "event_id", evt.EventID, "reason", string(reason))
			continue
		}
		if best == nil || better(cand, best) {
			best = cand
		}
	}
	return best, nil
}

// Evaluate runs a single rule through the filter pipeline.
func (m *Matcher) Evaluate(ctx context.Context, evt *event.InboundEvent, r *AutomationRule) (*Match, Reason, error) {
	return m.evaluate(ctx, evt, r, make(map[string]*account.ConnectedAccount))
}

func (m *Matcher) evaluate(ctx context.Context, evt *event.InboundEvent, r *AutomationRule, cache map[string]*account.ConnectedAccount) (*Match, Reason, error) {
	if !r.Active {
		return nil, ReasonInactive, nil
	}

	// 1. Ownership: the owner's connected account must be the recipient.
	acct, ok := cache[r.OwnerUserID]
	if !ok {
		found, err := m.accounts.FindAccountByOwner(ctx, r.OwnerUserID)
		if err != nil && !errors.Is(err, account.ErrNotFound) {
			return nil, ReasonNone, err
		}
		acct = found
		cache[r.OwnerUserID] = acct
	}
	if acct == nil || acct.ExternalAccountID == "" || acct.ExternalAccountID != evt.RecipientAccountID {
		return nil, ReasonOwnership, nil
	}

	// 2. Capability.
	if !acct.HasCapability() {
		return nil, ReasonCapability, nil
	}

	// 3. Anti-loop.
	if evt.IsSelf() {
		return nil, ReasonSelf, nil
	}
	if evt.IsReply() {
		return nil, ReasonReply, nil
	}

	// 4. Post scope.
	if len(r.ScopePostIDs) > 0 && (evt.Kind != event.KindComment || !r.InScope(evt.PostID)) {
		return nil, ReasonScope, nil
	}

	// 5. Keywords.
	kws := MatchKeywords(r.Keywords, evt.Text)
	if len(kws) == 0 {
		return nil, ReasonKeyword, nil
	}

	// 6. Trigger kind.
	if !r.TriggerKind.Accepts(evt.Kind) {
		return nil, ReasonTriggerKind, nil
	}
	var isNew bool
	if r.TriggerKind == TriggerNewFollowerComment {
		if m.followers == nil {
			return nil, ReasonNotNewFollower, nil
		}
		nf, err := m.followers.IsNewFollower(ctx, r.OwnerUserID, evt.ActorID)
		if err != nil {
			return nil, ReasonNone, err
		}
		if !nf {
			return nil, ReasonNotNewFollower, nil
		}
		isNew = true
	}

	return &Match{
		Rule:          r,
		Event:         evt,
		Account:       acct,
		Keywords:      kws,
		Score:         KeywordScore(kws) + RecencyBonus(m.now().Sub(r.CreatedAt)),
		IsNewFollower: isNew,
	}, ReasonNone, nil
}

func better(a, b *Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Rule.ID.Less(b.Rule.ID)
}
