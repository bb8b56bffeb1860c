package responder_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/xraph/herald/account"
	"github.com/xraph/herald/ai"
	"github.com/xraph/herald/event"
	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/follower"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/internal/entity"
	"github.com/xraph/herald/messaging"
	"github.com/xraph/herald/messaging/messagingtest"
	"github.com/xraph/herald/responder"
	"github.com/xraph/herald/rule"
	"github.com/xraph/herald/store/memory"
	"github.com/xraph/herald/trigger"
)

func ctx() context.Context { return context.Background() }

type fixture struct {
	store     *memory.Store
	rec       *messagingtest.Recorder
	failures  *failure.Service
	followers *follower.Tracker
}

func newFixture() *fixture {
	s := memory.New()
	return &fixture{
		store:     s,
		rec:       messagingtest.NewRecorder(),
		failures:  failure.NewService(s, nil),
		followers: follower.NewTracker(s, 0),
	}
}

func (f *fixture) responder(mod func(*responder.Config)) *responder.Responder {
	cfg := responder.Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Failures:    f.failures,
		Followers:   f.followers,
	}
	if mod != nil {
		mod(&cfg)
	}
	return responder.NewResponder(f.store, f.rec, cfg, nil)
}

func newMatch(kind event.Kind, r *rule.AutomationRule) *rule.Match {
	evt := &event.InboundEvent{
		Kind:               kind,
		EventID:            "C1",
		ActorID:            "U1",
		ActorUsername:      "alice",
		RecipientAccountID: "ACC1",
		Text:               "what is the price?",
		PostID:             "P1",
		ReceivedAt:         time.Now().UTC(),
	}
	if kind == event.KindDirectMessage {
		evt.EventID = "M1"
		evt.PostID = ""
	}
	return &rule.Match{
		Rule:  r,
		Event: evt,
		Account: &account.ConnectedAccount{
			OwnerUserID:       "user-1",
			ExternalAccountID: "ACC1",
			AccessToken:       "tok",
		},
	}
}

func staticRule(template string) *rule.AutomationRule {
	return &rule.AutomationRule{
		Entity:           entity.New(),
		ID:               id.NewRuleID(),
		OwnerUserID:      "user-1",
		Active:           true,
		TriggerKind:      rule.TriggerComment,
		ActionKind:       rule.ActionStaticMessage,
		Keywords:         []string{"price"},
		ResponseTemplate: template,
	}
}

func logCount(t *testing.T, s *memory.Store) int64 {
	t.Helper()
	n, err := s.CountTriggerLogs(ctx(), trigger.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// ──────────────────────────────────────────────────
// Send paths
// ──────────────────────────────────────────────────

func TestRespondCommentReply(t *testing.T) {
	f := newFixture()
	res, err := f.responder(nil).Respond(ctx(), newMatch(event.KindComment, staticRule("Hi {username}!")))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != responder.StatusSent || res.Attempts != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	calls := f.rec.Calls()
	if len(calls) != 1 || calls[0].Kind != messagingtest.KindCommentReply || calls[0].TargetID != "C1" || calls[0].Text != "Hi alice!" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
	if res.TriggerLog == nil || res.TriggerLog.EventID != "C1" {
		t.Fatalf("expected trigger log, got %+v", res.TriggerLog)
	}
	if logCount(t, f.store) != 1 {
		t.Fatal("expected one trigger log row")
	}
}

func TestRespondDirectMessage(t *testing.T) {
	f := newFixture()
	r := staticRule("Thanks for your message")
	r.TriggerKind = rule.TriggerDirectMessage

	if _, err := f.responder(nil).Respond(ctx(), newMatch(event.KindDirectMessage, r)); err != nil {
		t.Fatal(err)
	}
	calls := f.rec.Calls()
	if len(calls) != 1 || calls[0].Kind != messagingtest.KindDirectMessage || calls[0].TargetID != "U1" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}

func TestRespondRetriesTransientErrors(t *testing.T) {
	f := newFixture()
	f.rec.FailNext(messagingtest.KindCommentReply, 2, &messaging.APIError{StatusCode: 503, Message: "busy"})

	res, err := f.responder(nil).Respond(ctx(), newMatch(event.KindComment, staticRule("ok")))
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempts != 3 || res.Status != responder.StatusSent {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRespondHardFailure(t *testing.T) {
	f := newFixture()
	f.rec.FailNext(messagingtest.KindCommentReply, -1, &messaging.APIError{StatusCode: 500, Message: "down"})
	m := newMatch(event.KindComment, staticRule("ok"))
	resp := f.responder(nil)

	res, err := resp.Respond(ctx(), m)
	if !errors.Is(err, responder.ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if res.Status != responder.StatusFailed || res.Attempts != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if logCount(t, f.store) != 0 {
		t.Fatal("no trigger log may be written for a failed send")
	}

	failures, _ := f.failures.List(ctx(), failure.ListOpts{})
	if len(failures) != 1 {
		t.Fatalf("expected one failure record, got %d", len(failures))
	}
	if fl := failures[0]; fl.Action != failure.ActionCommentReply || fl.AttemptCount != 3 || fl.LastStatusCode != 500 || fl.EventID != "C1" {
		t.Fatalf("unexpected failure: %+v", fl)
	}

	// The claim was released, so a later retry of the same firing may send.
	f.rec.FailNext(messagingtest.KindCommentReply, 0, nil)
	res, err = resp.Respond(ctx(), m)
	if err != nil || res.Status != responder.StatusSent {
		t.Fatalf("expected send after release, got %+v, %v", res, err)
	}
}

func TestRespondPermanentErrorIsNotRetried(t *testing.T) {
	f := newFixture()
	f.rec.FailNext(messagingtest.KindCommentReply, -1, &messaging.APIError{StatusCode: 400, Code: 100, Message: "invalid"})

	res, err := f.responder(nil).Respond(ctx(), newMatch(event.KindComment, staticRule("ok")))
	if !errors.Is(err, responder.ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if res.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", res.Attempts)
	}
}

// ──────────────────────────────────────────────────
// Durable duplicate check
// ──────────────────────────────────────────────────

func TestRespondDurableDuplicate(t *testing.T) {
	f := newFixture()
	resp := f.responder(nil)
	r := staticRule("ok")

	if _, err := resp.Respond(ctx(), newMatch(event.KindComment, r)); err != nil {
		t.Fatal(err)
	}

	// A second event with a new id but the same actor and text.
	m := newMatch(event.KindComment, r)
	m.Event.EventID = "C2"
	res, err := resp.Respond(ctx(), m)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != responder.StatusDuplicate {
		t.Fatalf("expected duplicate, got %s", res.Status)
	}
	if n := f.rec.Count(messagingtest.KindCommentReply); n != 1 {
		t.Fatalf("expected 1 reply, got %d", n)
	}
}

func TestRespondExistingClaimIsDuplicate(t *testing.T) {
	f := newFixture()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	resp := f.responder(nil)
	resp.SetClock(func() time.Time { return now })

	m := newMatch(event.KindComment, staticRule("ok"))
	if err := f.store.ClaimTrigger(ctx(), trigger.NewClaim(m.Rule.ID, m.Event.ActorID, m.Event.Text, now)); err != nil {
		t.Fatal(err)
	}

	res, err := resp.Respond(ctx(), m)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != responder.StatusDuplicate || len(f.rec.Calls()) != 0 {
		t.Fatalf("expected duplicate with no calls, got %+v", res)
	}
}

// ──────────────────────────────────────────────────
// Rendering
// ──────────────────────────────────────────────────

func aiRule() *rule.AutomationRule {
	r := staticRule("static")
	r.ActionKind = rule.ActionAIGenerated
	r.AIPromptTemplate = "Answer {username} politely"
	r.FallbackMessage = "Thanks {username}, we'll get back to you."
	return r
}

func TestRespondAIGenerated(t *testing.T) {
	f := newFixture()
	var gotPrompt string
	var gotUser ai.UserContext
	completer := ai.CompleterFunc(func(_ context.Context, prompt string, uc ai.UserContext) (string, error) {
		gotPrompt, gotUser = prompt, uc
		return "  It costs $10.  ", nil
	})

	res, err := f.responder(func(c *responder.Config) { c.Completer = completer }).Respond(ctx(), newMatch(event.KindComment, aiRule()))
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "It costs $10." {
		t.Fatalf("text = %q", res.Text)
	}
	if gotPrompt != "Answer alice politely" || gotUser.Text != "what is the price?" {
		t.Fatalf("unexpected completer input: %q, %+v", gotPrompt, gotUser)
	}
}

func TestRespondAITruncatesLongOutput(t *testing.T) {
	f := newFixture()
	long := strings.Repeat("é", 2000)
	completer := ai.CompleterFunc(func(context.Context, string, ai.UserContext) (string, error) {
		return long, nil
	})

	res, err := f.responder(func(c *responder.Config) { c.Completer = completer }).Respond(ctx(), newMatch(event.KindComment, aiRule()))
	if err != nil {
		t.Fatal(err)
	}
	if n := utf8.RuneCountInString(res.Text); n != responder.DefaultMaxResponseLength {
		t.Fatalf("expected %d runes, got %d", responder.DefaultMaxResponseLength, n)
	}
	if !strings.HasSuffix(res.Text, "...") {
		t.Fatal("expected ellipsis")
	}
}

func TestRespondAIFallback(t *testing.T) {
	tests := []struct {
		name      string
		completer ai.Completer
		fallback  string
		want      string
	}{
		{
			name: "provider error",
			completer: ai.CompleterFunc(func(context.Context, string, ai.UserContext) (string, error) {
				return "", errors.New("quota exceeded")
			}),
			fallback: "Thanks {username}!",
			want:     "Thanks alice!",
		},
		{
			name: "empty output",
			completer: ai.CompleterFunc(func(context.Context, string, ai.UserContext) (string, error) {
				return "   ", nil
			}),
			fallback: "Thanks!",
			want:     "Thanks!",
		},
		{
			name:     "no completer configured",
			fallback: "Fallback",
			want:     "Fallback",
		},
		{
			name: "no fallback uses response template",
			completer: ai.CompleterFunc(func(context.Context, string, ai.UserContext) (string, error) {
				return "", errors.New("down")
			}),
			want: "static",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			r := aiRule()
			r.FallbackMessage = tt.fallback

			res, err := f.responder(func(c *responder.Config) { c.Completer = tt.completer }).Respond(ctx(), newMatch(event.KindComment, r))
			if err != nil {
				t.Fatal(err)
			}
			if res.Text != tt.want {
				t.Fatalf("text = %q, want %q", res.Text, tt.want)
			}
		})
	}
}

func TestRespondEmptyResponse(t *testing.T) {
	f := newFixture()
	m := newMatch(event.KindComment, staticRule("  "))
	resp := f.responder(nil)

	if _, err := resp.Respond(ctx(), m); !errors.Is(err, responder.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	if len(f.rec.Calls()) != 0 {
		t.Fatal("nothing may be sent")
	}

	// The claim was released.
	m.Rule.ResponseTemplate = "now set"
	if res, err := resp.Respond(ctx(), m); err != nil || res.Status != responder.StatusSent {
		t.Fatalf("expected send after fixing template, got %+v, %v", res, err)
	}
}

// ──────────────────────────────────────────────────
// Followers and private replies
// ──────────────────────────────────────────────────

func TestRespondSmartFollowerStages(t *testing.T) {
	f := newFixture()
	resp := f.responder(nil)
	r := staticRule("Here is the link")
	r.SmartFollower = true

	first, err := resp.Respond(ctx(), newMatch(event.KindComment, r))
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != responder.StatusPendingTrust || first.Trust != follower.StateFirstCommenter {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if len(f.rec.Calls()) != 0 || logCount(t, f.store) != 0 {
		t.Fatal("first comment must not send or log")
	}

	// Same text again: the released claim does not block the second stage.
	second, err := resp.Respond(ctx(), newMatch(event.KindComment, r))
	if err != nil {
		t.Fatal(err)
	}
	if second.Status != responder.StatusSent || second.Trust != follower.StateTrusted {
		t.Fatalf("unexpected second result: %+v", second)
	}

	// A trusted commenter keeps receiving responses. Different text, since
	// the same text inside the duplicate window is suppressed.
	m := newMatch(event.KindComment, r)
	m.Event.EventID = "C3"
	m.Event.Text = "any discount on the price?"
	third, err := resp.Respond(ctx(), m)
	if err != nil {
		t.Fatal(err)
	}
	if third.Status != responder.StatusSent || third.Trust != follower.StateTrusted {
		t.Fatalf("unexpected third result: %+v", third)
	}
	if got := len(f.rec.Calls()); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestRespondNewFollowerMarksCommented(t *testing.T) {
	f := newFixture()
	followed := time.Now().UTC().Add(-time.Hour)
	if err := f.store.RecordFollow(ctx(), &follower.Follower{OwnerUserID: "user-1", ActorID: "U1", FollowedAt: &followed}); err != nil {
		t.Fatal(err)
	}
	isNew, _ := f.followers.IsNewFollower(ctx(), "user-1", "U1")
	if !isNew {
		t.Fatal("expected a new follower before the response")
	}

	r := staticRule("Welcome!")
	r.TriggerKind = rule.TriggerNewFollowerComment
	m := newMatch(event.KindComment, r)
	m.IsNewFollower = true

	res, err := f.responder(nil).Respond(ctx(), m)
	if err != nil {
		t.Fatal(err)
	}
	if !res.TriggerLog.IsNewFollower {
		t.Fatal("trigger log must flag the new follower")
	}

	isNew, _ = f.followers.IsNewFollower(ctx(), "user-1", "U1")
	if isNew {
		t.Fatal("follower must only be greeted once")
	}
}

func TestRespondPrivateReply(t *testing.T) {
	f := newFixture()
	r := staticRule("Check your DMs")
	r.PrivateReplyTemplate = "Here is the price list, {username}"

	if _, err := f.responder(nil).Respond(ctx(), newMatch(event.KindComment, r)); err != nil {
		t.Fatal(err)
	}
	calls := f.rec.Calls()
	if len(calls) != 2 || calls[1].Kind != messagingtest.KindPrivateReply || calls[1].Text != "Here is the price list, alice" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}

func TestRespondPrivateReplyFailureIsBestEffort(t *testing.T) {
	f := newFixture()
	f.rec.FailNext(messagingtest.KindPrivateReply, -1, &messaging.APIError{StatusCode: 400, Message: "window closed"})
	r := staticRule("Check your DMs")
	r.PrivateReplyTemplate = "Price list"

	res, err := f.responder(nil).Respond(ctx(), newMatch(event.KindComment, r))
	if err != nil {
		t.Fatalf("private reply failure must not fail the operation: %v", err)
	}
	if res.Status != responder.StatusSent || res.PrivateReplyErr == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if logCount(t, f.store) != 1 {
		t.Fatal("trigger log must still be written")
	}
}
