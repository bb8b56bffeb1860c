package rule_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/herald/account"
	"github.com/xraph/herald/event"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/internal/entity"
	"github.com/xraph/herald/rule"
)

func ctx() context.Context { return context.Background() }

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeAccounts map[string]*account.ConnectedAccount

func (f fakeAccounts) FindAccountByOwner(_ context.Context, owner string) (*account.ConnectedAccount, error) {
	a, ok := f[owner]
	if !ok {
		return nil, account.ErrNotFound
	}
	return a, nil
}

type fakeFollowers map[string]bool

func (f fakeFollowers) IsNewFollower(_ context.Context, owner, actor string) (bool, error) {
	return f[owner+"/"+actor], nil
}

func capable(owner, external string) *account.ConnectedAccount {
	return &account.ConnectedAccount{
		OwnerUserID:       owner,
		ExternalAccountID: external,
		CapabilityScopes:  []string{account.ScopeManageMessages, account.ScopeManageComments},
	}
}

func newMatcher(accts fakeAccounts, followers fakeFollowers) *rule.Matcher {
	m := rule.NewMatcher(accts, followers, nil)
	m.SetClock(func() time.Time { return now })
	return m
}

func newRule(owner string, kind rule.TriggerKind, keywords ...string) *rule.AutomationRule {
	return &rule.AutomationRule{
		Entity:           entity.Entity{CreatedAt: now, UpdatedAt: now},
		ID:               id.NewRuleID(),
		OwnerUserID:      owner,
		Active:           true,
		TriggerKind:      kind,
		ActionKind:       rule.ActionStaticMessage,
		Keywords:         keywords,
		ResponseTemplate: "ok",
	}
}

func comment(text string) *event.InboundEvent {
	return &event.InboundEvent{
		Kind:               event.KindComment,
		EventID:            "C1",
		ActorID:            "U1",
		RecipientAccountID: "ACC1",
		Text:               text,
		PostID:             "P1",
	}
}

func TestMatchFilterPipeline(t *testing.T) {
	accts := fakeAccounts{
		"owner1": capable("owner1", "ACC1"),
		"owner2": capable("owner2", "ACC2"),
		"weak": {
			OwnerUserID:       "weak",
			ExternalAccountID: "ACC1",
			CapabilityScopes:  []string{account.ScopeManageComments},
		},
	}

	scoped := newRule("owner1", rule.TriggerComment, "price")
	scoped.ScopePostIDs = []string{"P9"}

	inactive := newRule("owner1", rule.TriggerComment, "price")
	inactive.Active = false

	tests := []struct {
		name   string
		rule   *rule.AutomationRule
		evt    func() *event.InboundEvent
		reason rule.Reason
	}{
		{"matches", newRule("owner1", rule.TriggerComment, "price"), func() *event.InboundEvent { return comment("what is the price?") }, rule.ReasonNone},
		{"inactive", inactive, func() *event.InboundEvent { return comment("price") }, rule.ReasonInactive},
		{"other account", newRule("owner2", rule.TriggerComment, "price"), func() *event.InboundEvent { return comment("price") }, rule.ReasonOwnership},
		{"unknown owner", newRule("ghost", rule.TriggerComment, "price"), func() *event.InboundEvent { return comment("price") }, rule.ReasonOwnership},
		{"missing capability", newRule("weak", rule.TriggerComment, "price"), func() *event.InboundEvent { return comment("price") }, rule.ReasonCapability},
		{"self comment", newRule("owner1", rule.TriggerComment, "price"), func() *event.InboundEvent {
			e := comment("price")
			e.ActorID = "ACC1"
			return e
		}, rule.ReasonSelf},
		{"reply", newRule("owner1", rule.TriggerComment, "price"), func() *event.InboundEvent {
			e := comment("price")
			e.ParentID = "C0"
			return e
		}, rule.ReasonReply},
		{"out of scope", scoped, func() *event.InboundEvent { return comment("price") }, rule.ReasonScope},
		{"no keyword", newRule("owner1", rule.TriggerComment, "yes"), func() *event.InboundEvent { return comment("no thanks") }, rule.ReasonKeyword},
		{"empty keywords", newRule("owner1", rule.TriggerComment), func() *event.InboundEvent { return comment("anything") }, rule.ReasonKeyword},
		{"dm rule on comment", newRule("owner1", rule.TriggerDirectMessage, "price"), func() *event.InboundEvent { return comment("price") }, rule.ReasonTriggerKind},
		{"not a new follower", newRule("owner1", rule.TriggerNewFollowerComment, "price"), func() *event.InboundEvent { return comment("price") }, rule.ReasonNotNewFollower},
	}

	m := newMatcher(accts, fakeFollowers{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, reason, err := m.Evaluate(ctx(), tt.evt(), tt.rule)
			if err != nil {
				t.Fatal(err)
			}
			if reason != tt.reason {
				t.Errorf("reason = %q, want %q", reason, tt.reason)
			}
		})
	}
}

func TestMatchNeverFiresOnSelfOrReply(t *testing.T) {
	accts := fakeAccounts{"owner1": capable("owner1", "ACC1")}
	m := newMatcher(accts, fakeFollowers{"owner1/ACC1": true, "owner1/U1": true})

	kinds := []rule.TriggerKind{rule.TriggerComment, rule.TriggerDirectMessage, rule.TriggerNewFollowerComment}
	var rules []*rule.AutomationRule
	for _, k := range kinds {
		rules = append(rules, newRule("owner1", k, "hi", "h", "i"))
	}

	self := comment("hi")
	self.ActorID = "ACC1"
	selfDM := &event.InboundEvent{Kind: event.KindDirectMessage, ActorID: "ACC1", RecipientAccountID: "ACC1", Text: "hi"}
	reply := comment("hi")
	reply.ParentID = "C0"

	for _, evt := range []*event.InboundEvent{self, selfDM, reply} {
		got, err := m.Match(ctx(), evt, rules)
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Fatalf("expected no match for %+v, got rule %s", evt, got.Rule.ID)
		}
	}
}

func TestMatchScopeEnforcement(t *testing.T) {
	accts := fakeAccounts{"owner1": capable("owner1", "ACC1")}
	m := newMatcher(accts, nil)

	r := newRule("owner1", rule.TriggerComment, "hi", "hello", "there")
	r.ScopePostIDs = []string{"P7", "P8"}

	for _, text := range []string{"hi", "hello there", "HI THERE HELLO"} {
		evt := comment(text)
		evt.PostID = "P1"
		got, err := m.Match(ctx(), evt, []*rule.AutomationRule{r})
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Fatalf("rule scoped to P7/P8 matched a comment on P1 (%q)", text)
		}
	}

	evt := comment("hi")
	evt.PostID = "P8"
	got, err := m.Match(ctx(), evt, []*rule.AutomationRule{r})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected match on an in-scope post")
	}

	dm := &event.InboundEvent{Kind: event.KindDirectMessage, ActorID: "U1", RecipientAccountID: "ACC1", Text: "hi"}
	dmRule := newRule("owner1", rule.TriggerDirectMessage, "hi")
	dmRule.ScopePostIDs = []string{"P8"}
	if got, _ := m.Match(ctx(), dm, []*rule.AutomationRule{dmRule}); got != nil {
		t.Fatal("post-scoped rule must not match a direct message")
	}
}

func TestMatchCaseInsensitive(t *testing.T) {
	accts := fakeAccounts{"owner1": capable("owner1", "ACC1")}
	m := newMatcher(accts, nil)

	tests := []struct {
		keyword string
		text    string
	}{
		{"Hello", "say HELLO please"},
		{"hello", "Say Hello Please"},
		{"HELLO", "say hello please"},
		{"PrIcE", "what's the pRiCe"},
	}
	for _, tt := range tests {
		t.Run(tt.keyword+"/"+tt.text, func(t *testing.T) {
			r := newRule("owner1", rule.TriggerComment, tt.keyword)
			got, err := m.Match(ctx(), comment(tt.text), []*rule.AutomationRule{r})
			if err != nil {
				t.Fatal(err)
			}
			if got == nil {
				t.Fatalf("keyword %q should match %q", tt.keyword, tt.text)
			}
		})
	}
}

func TestMatchPrefersRecentRule(t *testing.T) {
	accts := fakeAccounts{"owner1": capable("owner1", "ACC1")}
	m := newMatcher(accts, nil)

	a := newRule("owner1", rule.TriggerComment, "hi")
	a.CreatedAt = now.Add(-10 * 24 * time.Hour)
	b := newRule("owner1", rule.TriggerComment, "hi")
	b.CreatedAt = now

	for _, order := range [][]*rule.AutomationRule{{a, b}, {b, a}} {
		got, err := m.Match(ctx(), comment("hi there"), order)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.Rule != b {
			t.Fatalf("expected the newer rule B to win")
		}
	}
}

func TestMatchPrefersWholeWord(t *testing.T) {
	accts := fakeAccounts{"owner1": capable("owner1", "ACC1")}
	m := newMatcher(accts, nil)

	sub := newRule("owner1", rule.TriggerComment, "no")
	whole := newRule("owner1", rule.TriggerComment, "thanks")
	// Same age so only keyword points differ.
	sub.CreatedAt = now
	whole.CreatedAt = now

	got, err := m.Match(ctx(), comment("nothing, thanks"), []*rule.AutomationRule{sub, whole})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Rule != whole {
		t.Fatal("whole-word match should outscore a substring match")
	}
}

func TestMatchExactTieBreaksByLowestID(t *testing.T) {
	accts := fakeAccounts{"owner1": capable("owner1", "ACC1")}
	m := newMatcher(accts, nil)

	first := newRule("owner1", rule.TriggerComment, "hi")
	second := newRule("owner1", rule.TriggerComment, "hi")
	second.CreatedAt = first.CreatedAt

	low, high := first, second
	if second.ID.Less(first.ID) {
		low, high = second, first
	}

	for range 5 {
		got, err := m.Match(ctx(), comment("hi"), []*rule.AutomationRule{high, low})
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.Rule != low {
			t.Fatal("exact score tie must go to the lowest rule ID")
		}
	}
}

func TestMatchNewFollower(t *testing.T) {
	accts := fakeAccounts{"owner1": capable("owner1", "ACC1")}
	m := newMatcher(accts, fakeFollowers{"owner1/U1": true})

	r := newRule("owner1", rule.TriggerNewFollowerComment, "hi")
	got, err := m.Match(ctx(), comment("hi"), []*rule.AutomationRule{r})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || !got.IsNewFollower {
		t.Fatal("expected new-follower match")
	}
}

func TestScoring(t *testing.T) {
	matches := rule.MatchKeywords([]string{"no", "thanks", "zzz"}, "Nothing, THANKS!")
	if len(matches) != 2 {
		t.Fatalf("expected two keyword matches, got %d", len(matches))
	}
	if matches[0].WholeWord {
		t.Error(`"no" inside "Nothing" is only a substring match`)
	}
	if !matches[1].WholeWord {
		t.Error(`"thanks" should be a whole-word match`)
	}
	if got := rule.KeywordScore(matches); got != 15 {
		t.Errorf("KeywordScore = %v, want 15", got)
	}

	if got := rule.RecencyBonus(0); got != rule.MaxRecencyBonus {
		t.Errorf("RecencyBonus(0) = %v", got)
	}
	if rule.RecencyBonus(10*24*time.Hour) >= rule.RecencyBonus(24*time.Hour) {
		t.Error("recency bonus must decay with age")
	}
	if rule.RecencyBonus(-time.Hour) != rule.MaxRecencyBonus {
		t.Error("future creation times get the full bonus")
	}
}
