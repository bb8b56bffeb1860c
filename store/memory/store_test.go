package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/herald"
	"github.com/xraph/herald/account"
	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/follower"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/internal/entity"
	"github.com/xraph/herald/rule"
	"github.com/xraph/herald/trigger"
)

func ctx() context.Context { return context.Background() }

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	s := New()

	if err := s.Migrate(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); !errors.Is(err, herald.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// rule.Store
// ──────────────────────────────────────────────────

func newRule(owner string, active bool, keywords ...string) *rule.AutomationRule {
	return &rule.AutomationRule{
		Entity:           entity.New(),
		ID:               id.NewRuleID(),
		OwnerUserID:      owner,
		Active:           active,
		TriggerKind:      rule.TriggerComment,
		ActionKind:       rule.ActionStaticMessage,
		Keywords:         keywords,
		ResponseTemplate: "hi",
	}
}

func TestRuleCRUD(t *testing.T) {
	s := New()
	r := newRule("user-1", false, "price")

	if err := s.CreateRule(ctx(), r); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRule(ctx(), r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Keywords[0] != "price" {
		t.Fatalf("keywords = %v", got.Keywords)
	}

	// Mutating the returned copy must not leak into the store.
	got.Keywords[0] = "changed"
	again, _ := s.GetRule(ctx(), r.ID)
	if again.Keywords[0] != "price" {
		t.Fatal("store returned a shared slice")
	}

	if err := s.SetActive(ctx(), r.ID, true); err != nil {
		t.Fatal(err)
	}
	again, _ = s.GetRule(ctx(), r.ID)
	if !again.Active {
		t.Fatal("expected rule to be active")
	}

	again.Name = "renamed"
	if err := s.UpdateRule(ctx(), again); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteRule(ctx(), r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetRule(ctx(), r.ID); !errors.Is(err, herald.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
	if err := s.DeleteRule(ctx(), r.ID); !errors.Is(err, herald.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound on second delete, got %v", err)
	}
}

func TestListRulesFilterAndPagination(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		_ = s.CreateRule(ctx(), newRule("user-1", i%2 == 0, "k"))
	}
	_ = s.CreateRule(ctx(), newRule("user-2", true, "k"))

	all, err := s.ListRules(ctx(), "user-1", rule.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(all))
	}

	active := true
	onlyActive, _ := s.ListRules(ctx(), "user-1", rule.ListOpts{Active: &active})
	if len(onlyActive) != 2 {
		t.Fatalf("expected 2 active rules, got %d", len(onlyActive))
	}

	page, _ := s.ListRules(ctx(), "user-1", rule.ListOpts{Offset: 1, Limit: 1})
	if len(page) != 1 {
		t.Fatalf("expected 1 rule on page, got %d", len(page))
	}

	beyond, _ := s.ListRules(ctx(), "user-1", rule.ListOpts{Offset: 10})
	if len(beyond) != 0 {
		t.Fatalf("expected empty page, got %d", len(beyond))
	}
}

func TestFindActiveRulesByExternalAccount(t *testing.T) {
	s := New()
	_ = s.UpsertAccount(ctx(), &account.ConnectedAccount{OwnerUserID: "user-1", ExternalAccountID: "ig-1"})
	_ = s.UpsertAccount(ctx(), &account.ConnectedAccount{OwnerUserID: "user-2", ExternalAccountID: "ig-2"})

	_ = s.CreateRule(ctx(), newRule("user-1", true, "a"))
	_ = s.CreateRule(ctx(), newRule("user-1", false, "b"))
	_ = s.CreateRule(ctx(), newRule("user-2", true, "c"))

	rules, err := s.FindActiveRules(ctx(), rule.Filter{OwnerAccountExternalID: "ig-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || rules[0].Keywords[0] != "a" {
		t.Fatalf("unexpected rules: %+v", rules)
	}

	none, _ := s.FindActiveRules(ctx(), rule.Filter{OwnerAccountExternalID: "ig-unknown"})
	if len(none) != 0 {
		t.Fatalf("expected no rules, got %d", len(none))
	}

	everyone, _ := s.FindActiveRules(ctx(), rule.Filter{})
	if len(everyone) != 2 {
		t.Fatalf("expected 2 active rules, got %d", len(everyone))
	}
	if !everyone[0].ID.Less(everyone[1].ID) {
		t.Fatal("expected rules ordered by ID")
	}
}

// ──────────────────────────────────────────────────
// account.Store
// ──────────────────────────────────────────────────

func TestAccountUpsert(t *testing.T) {
	s := New()
	a := &account.ConnectedAccount{
		OwnerUserID:       "user-1",
		ExternalAccountID: "ig-1",
		Username:          "shop",
		AccessToken:       "tok-1",
	}
	if err := s.UpsertAccount(ctx(), a); err != nil {
		t.Fatal(err)
	}
	if a.ID.IsNil() {
		t.Fatal("expected ID to be assigned")
	}
	firstID := a.ID.String()

	// Re-linking the same owner keeps the ID and replaces the token.
	b := &account.ConnectedAccount{OwnerUserID: "user-1", ExternalAccountID: "ig-1", AccessToken: "tok-2"}
	if err := s.UpsertAccount(ctx(), b); err != nil {
		t.Fatal(err)
	}
	if b.ID.String() != firstID {
		t.Fatalf("expected ID %s to be kept, got %s", firstID, b.ID)
	}

	got, err := s.FindAccountByExternalID(ctx(), "ig-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != "tok-2" {
		t.Fatalf("token = %q", got.AccessToken)
	}

	taken := &account.ConnectedAccount{OwnerUserID: "user-2", ExternalAccountID: "ig-1"}
	if err := s.UpsertAccount(ctx(), taken); !errors.Is(err, herald.ErrAccountTaken) {
		t.Fatalf("expected ErrAccountTaken, got %v", err)
	}

	if _, err := s.GetAccount(ctx(), b.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteAccount(ctx(), b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindAccountByOwner(ctx(), "user-1"); !errors.Is(err, herald.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// follower.Store
// ──────────────────────────────────────────────────

func TestFollowerTrustProgression(t *testing.T) {
	s := New()

	want := []follower.State{follower.StateFirstCommenter, follower.StateTrusted, follower.StateTrusted}
	for i, w := range want {
		got, err := s.AdvanceTrust(ctx(), "user-1", "actor-1")
		if err != nil {
			t.Fatal(err)
		}
		if got != w {
			t.Fatalf("step %d: got %q, want %q", i, got, w)
		}
	}

	// Other pairs are independent.
	got, _ := s.AdvanceTrust(ctx(), "user-2", "actor-1")
	if got != follower.StateFirstCommenter {
		t.Fatalf("got %q", got)
	}
}

func TestFollowerAdvanceConcurrent(t *testing.T) {
	s := New()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		first int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, _ := s.AdvanceTrust(ctx(), "user-1", "actor-1")
			if st == follower.StateFirstCommenter {
				mu.Lock()
				first++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if first != 1 {
		t.Fatalf("expected exactly one first_commenter transition, got %d", first)
	}
}

func TestFollowerMarkCommentedKeepsFirst(t *testing.T) {
	s := New()
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	if _, err := s.GetFollower(ctx(), "user-1", "actor-1"); !errors.Is(err, herald.ErrFollowerNotFound) {
		t.Fatalf("expected ErrFollowerNotFound, got %v", err)
	}

	_ = s.MarkCommented(ctx(), "user-1", "actor-1", t1)
	_ = s.MarkCommented(ctx(), "user-1", "actor-1", t2)

	f, err := s.GetFollower(ctx(), "user-1", "actor-1")
	if err != nil {
		t.Fatal(err)
	}
	if f.CommentedAt == nil || !f.CommentedAt.Equal(t1) {
		t.Fatalf("CommentedAt = %v, want %v", f.CommentedAt, t1)
	}

	followed := t1.Add(-time.Hour)
	if err := s.RecordFollow(ctx(), &follower.Follower{OwnerUserID: "user-1", ActorID: "actor-1", FollowedAt: &followed}); err != nil {
		t.Fatal(err)
	}
	f, _ = s.GetFollower(ctx(), "user-1", "actor-1")
	if f.FollowedAt == nil || !f.FollowedAt.Equal(followed) {
		t.Fatalf("FollowedAt = %v", f.FollowedAt)
	}
}

// ──────────────────────────────────────────────────
// trigger.Store
// ──────────────────────────────────────────────────

func TestClaimTrigger(t *testing.T) {
	s := New()
	ruleID := id.NewRuleID()
	at := time.Now()

	c := trigger.NewClaim(ruleID, "actor-1", "price?", at)
	if err := s.ClaimTrigger(ctx(), c); err != nil {
		t.Fatal(err)
	}
	dup := trigger.NewClaim(ruleID, "actor-1", "price?", at)
	if err := s.ClaimTrigger(ctx(), dup); !errors.Is(err, herald.ErrDuplicateTrigger) {
		t.Fatalf("expected ErrDuplicateTrigger, got %v", err)
	}

	if err := s.ReleaseClaim(ctx(), c.Key); err != nil {
		t.Fatal(err)
	}
	if err := s.ClaimTrigger(ctx(), dup); err != nil {
		t.Fatalf("claim after release: %v", err)
	}

	n, err := s.PurgeClaims(ctx(), at.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("purged %d claims, want 1", n)
	}
}

func TestClaimTriggerConcurrent(t *testing.T) {
	s := New()
	ruleID := id.NewRuleID()
	at := time.Now()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ClaimTrigger(ctx(), trigger.NewClaim(ruleID, "actor-1", "hello", at)); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Fatalf("expected one winning claim, got %d", won)
	}
}

func TestTriggerLogs(t *testing.T) {
	s := New()
	ruleA := id.NewRuleID()
	ruleB := id.NewRuleID()
	now := time.Now().UTC()

	logs := []*trigger.TriggerLog{
		{ID: id.NewTriggerID(), AutomationID: ruleA, ActorID: "actor-1", TriggerText: "hi", TriggeredAt: now.Add(-10 * time.Minute)},
		{ID: id.NewTriggerID(), AutomationID: ruleA, ActorID: "actor-2", TriggerText: "hi", TriggeredAt: now.Add(-time.Minute)},
		{ID: id.NewTriggerID(), AutomationID: ruleB, ActorID: "actor-1", TriggerText: "hi", TriggeredAt: now},
	}
	for _, l := range logs {
		if err := s.CreateTriggerLog(ctx(), l); err != nil {
			t.Fatal(err)
		}
	}

	since := now.Add(-5 * time.Minute)
	tests := []struct {
		name  string
		rule  id.ID
		actor string
		text  string
		want  bool
	}{
		{"too old", ruleA, "actor-1", "hi", false},
		{"recent", ruleA, "actor-2", "hi", true},
		{"different text", ruleA, "actor-2", "hello", false},
		{"other rule", ruleB, "actor-1", "hi", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.HasRecentTrigger(ctx(), tt.rule, tt.actor, tt.text, since)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("HasRecentTrigger = %v, want %v", got, tt.want)
			}
		})
	}

	list, _ := s.ListTriggerLogs(ctx(), trigger.ListOpts{AutomationID: &ruleA})
	if len(list) != 2 {
		t.Fatalf("expected 2 logs for rule A, got %d", len(list))
	}
	if list[0].ActorID != "actor-2" {
		t.Fatal("expected newest first")
	}

	count, _ := s.CountTriggerLogs(ctx(), trigger.ListOpts{ActorID: "actor-1"})
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

// ──────────────────────────────────────────────────
// failure.Store
// ──────────────────────────────────────────────────

func TestFailures(t *testing.T) {
	s := New()
	now := time.Now().UTC()

	old := &failure.Failure{ID: id.NewFailureID(), OwnerUserID: "user-1", FailedAt: now.Add(-48 * time.Hour)}
	recent := &failure.Failure{ID: id.NewFailureID(), OwnerUserID: "user-1", FailedAt: now}
	other := &failure.Failure{ID: id.NewFailureID(), OwnerUserID: "user-2", FailedAt: now}
	for _, f := range []*failure.Failure{old, recent, other} {
		if err := s.PushFailure(ctx(), f); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.GetFailure(ctx(), recent.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.OwnerUserID != "user-1" {
		t.Fatalf("owner = %q", got.OwnerUserID)
	}

	list, _ := s.ListFailures(ctx(), failure.ListOpts{OwnerUserID: "user-1"})
	if len(list) != 2 || list[0].ID.String() != recent.ID.String() {
		t.Fatalf("unexpected list: %+v", list)
	}

	n, _ := s.PurgeFailures(ctx(), now.Add(-24*time.Hour))
	if n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}
	total, _ := s.CountFailures(ctx())
	if total != 2 {
		t.Fatalf("count = %d, want 2", total)
	}
	if _, err := s.GetFailure(ctx(), old.ID); !errors.Is(err, herald.ErrFailureNotFound) {
		t.Fatalf("expected ErrFailureNotFound, got %v", err)
	}
}
