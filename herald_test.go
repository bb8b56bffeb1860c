package herald_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xraph/herald"
	"github.com/xraph/herald/account"
	"github.com/xraph/herald/dedup"
	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/messaging"
	"github.com/xraph/herald/messaging/messagingtest"
	"github.com/xraph/herald/rule"
	"github.com/xraph/herald/store/memory"
	"github.com/xraph/herald/trigger"
)

func ctx() context.Context { return context.Background() }

const (
	owner     = "user-1"
	accountID = "ACC1"
)

func setup(t *testing.T, opts ...herald.Option) (*herald.Herald, *memory.Store, *messagingtest.Recorder) {
	t.Helper()
	s := memory.New()
	rec := messagingtest.NewRecorder()

	err := s.UpsertAccount(ctx(), &account.ConnectedAccount{
		OwnerUserID:       owner,
		ExternalAccountID: accountID,
		Username:          "shop",
		AccessToken:       "page-token",
		CapabilityScopes:  []string{account.ScopeManageMessages, account.ScopeManageComments},
	})
	if err != nil {
		t.Fatal(err)
	}

	base := []herald.Option{
		herald.WithStore(s),
		herald.WithMessaging(rec),
		herald.WithBaseDelay(time.Millisecond),
	}
	h, err := herald.New(append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return h, s, rec
}

func createRule(t *testing.T, h *herald.Herald, in rule.Input) *rule.AutomationRule {
	t.Helper()
	if in.OwnerUserID == "" {
		in.OwnerUserID = owner
	}
	if in.TriggerKind == "" {
		in.TriggerKind = rule.TriggerComment
	}
	r, err := h.Rules().Create(ctx(), in)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Rules().SetActive(ctx(), r.ID, true); err != nil {
		t.Fatal(err)
	}
	return r
}

func commentBody(commentID, actorID, text string) []byte {
	return []byte(fmt.Sprintf(`{"object":"instagram","entry":[{"id":%q,"time":1700000000,"changes":[
	  {"field":"comments","value":{"id":%q,"text":%q,"from":{"id":%q,"username":"alice"},"media":{"id":"P1"}}}
	]}]}`, accountID, commentID, text, actorID))
}

func messageBody(mid, senderID, text string) []byte {
	return []byte(fmt.Sprintf(`{"object":"instagram","entry":[{"id":%q,"time":1700000000,"messaging":[
	  {"sender":{"id":%q},"recipient":{"id":%q},"timestamp":1700000000000,"message":{"mid":%q,"text":%q}}
	]}]}`, accountID, senderID, accountID, mid, text))
}

func countLogs(t *testing.T, s *memory.Store) int64 {
	t.Helper()
	n, err := s.CountTriggerLogs(ctx(), trigger.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// ──────────────────────────────────────────────────
// Construction
// ──────────────────────────────────────────────────

func TestNewRequiresStoreAndMessaging(t *testing.T) {
	if _, err := herald.New(herald.WithMessaging(messagingtest.NewRecorder())); !errors.Is(err, herald.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
	if _, err := herald.New(herald.WithStore(memory.New())); !errors.Is(err, herald.ErrNoMessaging) {
		t.Fatalf("expected ErrNoMessaging, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := herald.DefaultConfig()
	if cfg.DedupTTL != 5*time.Minute || cfg.MaxAttempts != 3 || cfg.BaseDelay != time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxResponseLength != 800 {
		t.Fatalf("MaxResponseLength = %d", cfg.MaxResponseLength)
	}
}

// ──────────────────────────────────────────────────
// End-to-end
// ──────────────────────────────────────────────────

func TestCommentReplyEndToEnd(t *testing.T) {
	h, s, rec := setup(t)
	r := createRule(t, h, rule.Input{Keywords: []string{"no"}, ResponseTemplate: "Sorry to hear that!"})

	report, err := h.HandleWebhook(ctx(), commentBody("C1", "U1", "no thanks"))
	if err != nil {
		t.Fatal(err)
	}
	if report.Received != 1 || report.Responded != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	calls := rec.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	c := calls[0]
	if c.Kind != messagingtest.KindCommentReply || c.TargetID != "C1" || c.Text != "Sorry to hear that!" || c.AccessToken != "page-token" {
		t.Fatalf("unexpected call: %+v", c)
	}

	logs, err := s.ListTriggerLogs(ctx(), trigger.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 trigger log, got %d", len(logs))
	}
	if logs[0].AutomationID.String() != r.ID.String() || logs[0].ActorID != "U1" || logs[0].TriggerText != "no thanks" {
		t.Fatalf("unexpected trigger log: %+v", logs[0])
	}
}

func TestNoKeywordMatchSendsNothing(t *testing.T) {
	h, s, rec := setup(t)
	createRule(t, h, rule.Input{Keywords: []string{"yes"}, ResponseTemplate: "Great!"})

	report, err := h.HandleWebhook(ctx(), commentBody("C1", "U1", "no thanks"))
	if err != nil {
		t.Fatal(err)
	}
	if report.NoMatch != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(rec.Calls()) != 0 {
		t.Fatalf("expected no calls, got %d", len(rec.Calls()))
	}
	if countLogs(t, s) != 0 {
		t.Fatal("expected no trigger logs")
	}
}

func TestReplayedDeliverySendsOnce(t *testing.T) {
	h, s, rec := setup(t)
	createRule(t, h, rule.Input{Keywords: []string{"price"}, ResponseTemplate: "Check your DMs"})

	body := commentBody("C1", "U1", "what is the price?")
	const replays = 5
	dups := 0
	for i := 0; i < replays; i++ {
		report, err := h.HandleWebhook(ctx(), body)
		if err != nil {
			t.Fatal(err)
		}
		dups += report.Duplicates
	}

	if n := rec.Count(messagingtest.KindCommentReply); n != 1 {
		t.Fatalf("expected 1 reply, got %d", n)
	}
	if dups != replays-1 {
		t.Fatalf("expected %d duplicates, got %d", replays-1, dups)
	}
	if countLogs(t, s) != 1 {
		t.Fatal("expected exactly 1 trigger log")
	}
}

func TestDirectMessageEndToEnd(t *testing.T) {
	h, _, rec := setup(t)
	createRule(t, h, rule.Input{
		TriggerKind:      rule.TriggerDirectMessage,
		Keywords:         []string{"hours"},
		ResponseTemplate: "Hi {username}, we open at 9.",
	})

	report, err := h.HandleWebhook(ctx(), messageBody("M1", "U2", "what are your hours?"))
	if err != nil {
		t.Fatal(err)
	}
	if report.Responded != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	calls := rec.Calls()
	if len(calls) != 1 || calls[0].Kind != messagingtest.KindDirectMessage || calls[0].TargetID != "U2" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}

func TestSelfMessageIsIgnored(t *testing.T) {
	h, _, rec := setup(t)
	createRule(t, h, rule.Input{
		TriggerKind:      rule.TriggerDirectMessage,
		Keywords:         []string{"hello"},
		ResponseTemplate: "hi",
	})

	report, err := h.HandleWebhook(ctx(), messageBody("M1", accountID, "hello"))
	if err != nil {
		t.Fatal(err)
	}
	if report.Received != 0 || report.Ignored != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(rec.Calls()) != 0 {
		t.Fatal("self message must never be answered")
	}
}

func TestMalformedBody(t *testing.T) {
	h, _, _ := setup(t)

	if _, err := h.HandleWebhook(ctx(), []byte("not json")); !errors.Is(err, herald.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestHardFailureIsRecordedAndAcknowledged(t *testing.T) {
	h, s, rec := setup(t, herald.WithMaxAttempts(3))
	createRule(t, h, rule.Input{Keywords: []string{"no"}, ResponseTemplate: "Sorry"})
	rec.FailNext(messagingtest.KindCommentReply, -1, &messaging.APIError{StatusCode: 500, Message: "unavailable"})

	report, err := h.HandleWebhook(ctx(), commentBody("C1", "U1", "no"))
	if err != nil {
		t.Fatalf("HandleWebhook must acknowledge, got %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if n := rec.Count(messagingtest.KindCommentReply); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
	if countLogs(t, s) != 0 {
		t.Fatal("trigger log must not be written after a failed send")
	}

	failures, err := h.Failures().List(ctx(), failure.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 1 || failures[0].AttemptCount != 3 || failures[0].LastStatusCode != 500 {
		t.Fatalf("unexpected failures: %+v", failures)
	}

	// The errored key keeps suppressing redeliveries for the TTL.
	again, _ := h.HandleWebhook(ctx(), commentBody("C1", "U1", "no"))
	if again.Duplicates != 1 {
		t.Fatalf("expected redelivery to be suppressed, got %+v", again)
	}
}

func TestSmartFollowerRespondsOnSecondComment(t *testing.T) {
	h, _, rec := setup(t)
	smart := true
	createRule(t, h, rule.Input{Keywords: []string{"link"}, ResponseTemplate: "Here you go", SmartFollower: &smart})

	first, _ := h.HandleWebhook(ctx(), commentBody("C1", "U1", "link please"))
	if first.Pending != 1 {
		t.Fatalf("expected first comment to be pending, got %+v", first)
	}
	if len(rec.Calls()) != 0 {
		t.Fatal("no response on the first qualifying comment")
	}

	second, _ := h.HandleWebhook(ctx(), commentBody("C2", "U1", "send the link"))
	if second.Responded != 1 {
		t.Fatalf("expected second comment to be answered, got %+v", second)
	}
	if n := rec.Count(messagingtest.KindCommentReply); n != 1 {
		t.Fatalf("expected 1 reply, got %d", n)
	}
}

// failingCache is a dedup.Cache whose every call errors.
type failingCache struct{}

var _ dedup.Cache = failingCache{}

var errCacheDown = errors.New("cache down")

func (failingCache) Reserve(context.Context, string, dedup.Record, time.Duration) (bool, error) {
	return false, errCacheDown
}
func (failingCache) Mark(context.Context, string, dedup.Record) error { return errCacheDown }
func (failingCache) Release(context.Context, string) error { return errCacheDown }
func (failingCache) Sweep(context.Context, time.Time) (int, error) { return 0, errCacheDown }
func (failingCache) Len(context.Context) (int, error) { return 0, errCacheDown }

func TestDedupCacheFailureFallsBackToDurableClaim(t *testing.T) {
	h, s, rec := setup(t, herald.WithDedupCache(failingCache{}))
	createRule(t, h, rule.Input{Keywords: []string{"no"}, ResponseTemplate: "Sorry"})

	body := commentBody("C1", "U1", "no")
	first, err := h.HandleWebhook(ctx(), body)
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.HandleWebhook(ctx(), body)
	if err != nil {
		t.Fatal(err)
	}

	if first.Responded != 1 || second.Duplicates != 1 {
		t.Fatalf("unexpected reports: %+v, %+v", first, second)
	}
	if n := rec.Count(messagingtest.KindCommentReply); n != 1 {
		t.Fatalf("expected 1 reply, got %d", n)
	}
	if countLogs(t, s) != 1 {
		t.Fatal("expected 1 trigger log")
	}
}

func TestStartStop(t *testing.T) {
	h, _, _ := setup(t, herald.WithShutdownTimeout(time.Second))
	h.Start(ctx())
	h.Stop(ctx())
}

func TestPartialConfigFallsBackToDefaults(t *testing.T) {
	h, s, _ := setup(t, herald.WithConfig(herald.Config{
		DedupTTL:      time.Minute,
		MaxAttempts:   3,
		SweepInterval: 5 * time.Millisecond,
	}))

	cfg := h.Config()
	def := herald.DefaultConfig()
	if cfg.DedupTTL != time.Minute || cfg.SweepInterval != 5*time.Millisecond {
		t.Fatalf("explicit fields overwritten: %+v", cfg)
	}
	if cfg.ClaimRetention != def.ClaimRetention || cfg.ShutdownTimeout != def.ShutdownTimeout {
		t.Fatalf("zero fields not defaulted: %+v", cfg)
	}

	claim := trigger.NewClaim(id.NewRuleID(), "U1", "price?", time.Now().UTC())
	if err := s.ClaimTrigger(ctx(), claim); err != nil {
		t.Fatal(err)
	}

	h.Start(ctx())
	time.Sleep(50 * time.Millisecond)
	h.Stop(ctx())

	dup := *claim
	dup.ID = id.NewClaimID()
	if err := s.ClaimTrigger(ctx(), &dup); !errors.Is(err, trigger.ErrDuplicate) {
		t.Fatalf("live claim was purged: ClaimTrigger err = %v", err)
	}
}

func TestZeroConfigStartStop(t *testing.T) {
	h, _, _ := setup(t, herald.WithConfig(herald.Config{}))
	if h.Config().SweepInterval <= 0 {
		t.Fatal("SweepInterval must be defaulted")
	}
	h.Start(ctx())
	h.Stop(ctx())
}
