// Package responder executes a matched rule's action for exactly one event and
// leaves a durable trace of every successful send.
package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/herald/ai"
	"github.com/xraph/herald/event"
	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/follower"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/messaging"
	"github.com/xraph/herald/observability"
	"github.com/xraph/herald/rule"
	"github.com/xraph/herald/trigger"
)

var (
	// ErrDeliveryFailed is returned when the primary send exhausted its retries.
	ErrDeliveryFailed = errors.New("herald: response delivery failed")

	// ErrEmptyResponse is returned when a rule rendered no text to send.
	ErrEmptyResponse = errors.New("herald: rule produced an empty response")
)

// Status is the terminal outcome of Respond.
type Status string

const (
	StatusSent         Status = "sent"
	StatusDuplicate    Status = "duplicate"
	StatusPendingTrust Status = "pending_trust"
	StatusFailed       Status = "failed"
)

// Result describes what Respond did.
type Result struct {
	Status          Status
	Text            string
	Attempts        int
	Trust           follower.State
	TriggerLog      *trigger.TriggerLog
	PrivateReplyErr error
}

// FollowerTracker advances staged trust and records comments.
type FollowerTracker interface {
	Advance(ctx context.Context, ownerUserID, actorID string) (follower.State, error)
	MarkCommented(ctx context.Context, ownerUserID, actorID string) error
}

// FailureRecorder persists hard failures for operators.
type FailureRecorder interface {
	Record(ctx context.Context, f *failure.Failure) error
}

// Config holds responder configuration and optional collaborators.
type Config struct {
	// MaxAttempts is the attempt budget per outbound call.
	MaxAttempts int

	// BaseDelay is the first backoff delay; later delays double.
	BaseDelay time.Duration

	// RequestTimeout bounds each attempt.
	RequestTimeout time.Duration

	// DuplicateWindow is the lookback of the durable duplicate check.
	DuplicateWindow time.Duration

	// MaxResponseLength caps AI-generated text.
	MaxResponseLength int

	Completer ai.Completer
	Followers FollowerTracker
	Failures  FailureRecorder
	Metrics   *observability.Metrics
	Tracer    *observability.Tracer
}

// Responder executes one rule's action for one event.
type Responder struct {
	triggers  trigger.Store
	messenger messaging.Client
	retrier   *Retrier
	config    Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewResponder creates a responder.
func NewResponder(triggers trigger.Store, messenger messaging.Client, cfg Config, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = trigger.BucketWidth
	}
	if cfg.MaxResponseLength <= 0 {
		cfg.MaxResponseLength = DefaultMaxResponseLength
	}
	return &Responder{
		triggers:  triggers,
		messenger: messenger,
		retrier:   NewRetrier(cfg.MaxAttempts, cfg.BaseDelay),
		config:    cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the responder clock. Used by tests.
func (r *Responder) SetClock(now func() time.Time) {
	r.now = now
}

// Respond runs the ordered steps for m. Duplicate and pending-trust outcomes
// are not errors. A primary send that exhausts its retries records a failure
// and returns ErrDeliveryFailed.
func (r *Responder) Respond(ctx context.Context, m *rule.Match) (*Result, error) {
	evt, rl := m.Event, m.Rule

	if r.config.Tracer != nil {
		var span trace.Span
		ctx, span = r.config.Tracer.StartRespondSpan(ctx, rl.ID.String(), evt.ActorID)
		defer span.End()
	}
	now := r.now()

	// 1. Durable duplicate check: recent log read, then the natural-key claim.
	recent, err := r.triggers.HasRecentTrigger(ctx, rl.ID, evt.ActorID, evt.Text, now.Add(-r.config.DuplicateWindow))
	if err != nil {
		return nil, fmt.Errorf("herald/responder: recent trigger check: %w", err)
	}
	if recent {
		r.duplicate(ctx, m, "trigger_log")
		return &Result{Status: StatusDuplicate}, nil
	}

	claim := trigger.NewClaim(rl.ID, evt.ActorID, evt.Text, now)
	if err := r.triggers.ClaimTrigger(ctx, claim); err != nil {
		if errors.Is(err, trigger.ErrDuplicate) {
			r.duplicate(ctx, m, "trigger_claim")
			return &Result{Status: StatusDuplicate}, nil
		}
		return nil, fmt.Errorf("herald/responder: claim trigger: %w", err)
	}

	// 2. Staged trust.
	res := &Result{}
	if rl.SmartFollower && r.config.Followers != nil {
		state, err := r.config.Followers.Advance(ctx, rl.OwnerUserID, evt.ActorID)
		if err != nil {
			r.release(ctx, claim)
			return nil, fmt.Errorf("herald/responder: advance trust: %w", err)
		}
		res.Trust = state
		if state == follower.StateFirstCommenter {
			r.release(ctx, claim)
			if r.config.Metrics != nil {
				r.config.Metrics.ResponsesSkipped.Inc()
			}
			r.logger.DebugContext(ctx, "first comment recorded, response deferred",
				"automation_id", rl.ID, "actor_id", evt.ActorID)
			res.Status = StatusPendingTrust
			return res, nil
		}
	}

	// 3. Render.
	text := r.render(ctx, m)
	if strings.TrimSpace(text) == "" {
		r.release(ctx, claim)
		return nil, fmt.Errorf("%w: rule %s", ErrEmptyResponse, rl.ID)
	}
	res.Text = text

	// 4. Send with bounded retry.
	action := primaryAction(evt)
	attempts, err := r.send(ctx, m, action, text)
	res.Attempts = attempts
	if err != nil {
		r.release(ctx, claim)
		r.recordFailure(ctx, m, action, text, attempts, err)
		res.Status = StatusFailed
		return res, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	res.Status = StatusSent

	// 5. Trigger log, only after a successful send.
	entry := &trigger.TriggerLog{
		ID:            id.NewTriggerID(),
		AutomationID:  rl.ID,
		TriggerKind:   rl.TriggerKind,
		TriggerText:   evt.Text,
		ActorID:       evt.ActorID,
		ActorUsername: evt.ActorUsername,
		IsNewFollower: m.IsNewFollower,
		EventID:       evt.EventID,
		TriggeredAt:   r.now(),
	}
	if err := r.triggers.CreateTriggerLog(ctx, entry); err != nil {
		// The claim stays in place, so the send is still not repeated.
		r.logger.ErrorContext(ctx, "write trigger log failed",
			"automation_id", rl.ID, "actor_id", evt.ActorID, "error", err)
	} else {
		res.TriggerLog = entry
	}

	if rl.TriggerKind == rule.TriggerNewFollowerComment && r.config.Followers != nil {
		if err := r.config.Followers.MarkCommented(ctx, rl.OwnerUserID, evt.ActorID); err != nil {
			r.logger.WarnContext(ctx, "mark commented failed", "actor_id", evt.ActorID, "error", err)
		}
	}

	// Secondary private reply is best effort.
	if evt.Kind == event.KindComment && rl.PrivateReplyTemplate != "" && evt.EventID != "" {
		private := RenderTemplate(rl.PrivateReplyTemplate, evt)
		if _, err := r.send(ctx, m, failure.ActionPrivateReply, private); err != nil {
			res.PrivateReplyErr = err
			r.logger.WarnContext(ctx, "private reply failed",
				"automation_id", rl.ID, "event_id", evt.EventID, "error", err)
		}
	}

	r.logger.DebugContext(ctx, "response sent",
		"automation_id", rl.ID,
		"event_id", evt.EventID,
		"actor_id", evt.ActorID,
		"attempts", attempts,
	)
	return res, nil
}

func primaryAction(evt *event.InboundEvent) failure.Action {
	if evt.Kind == event.KindComment {
		return failure.ActionCommentReply
	}
	return failure.ActionDirectMessage
}

// send performs one outbound call kind under the retry policy, each attempt
// bounded by the request timeout.
func (r *Responder) send(ctx context.Context, m *rule.Match, action failure.Action, text string) (int, error) {
	evt := m.Event
	token := m.Account.AccessToken

	if action != failure.ActionDirectMessage && evt.EventID == "" {
		return 0, errors.New("herald/responder: comment id is required to reply")
	}

	start := time.Now()
	attempts, err := r.retrier.Do(ctx, func(ctx context.Context) error {
		actx, cancel := context.WithTimeout(ctx, r.config.RequestTimeout)
		defer cancel()

		var span trace.Span
		if r.config.Tracer != nil {
			actx, span = r.config.Tracer.StartSendSpan(actx, string(action))
		}

		var sendErr error
		switch action {
		case failure.ActionCommentReply:
			sendErr = r.messenger.ReplyToComment(actx, token, evt.EventID, text)
		case failure.ActionPrivateReply:
			sendErr = r.messenger.SendPrivateReplyToComment(actx, token, evt.EventID, text)
		default:
			sendErr = r.messenger.SendDirectMessage(actx, token, evt.ActorID, text)
		}

		if span != nil {
			outcome := "ok"
			if sendErr != nil {
				outcome = "error"
			}
			r.config.Tracer.EndSpan(span, outcome, sendErr)
		}
		return sendErr
	})

	if r.config.Metrics != nil {
		r.config.Metrics.RecordResponse(string(action), err == nil, time.Since(start).Seconds())
	}
	return attempts, err
}

// render produces the response text. AI failures fall back to the rule's
// static fallback message.
func (r *Responder) render(ctx context.Context, m *rule.Match) string {
	evt, rl := m.Event, m.Rule

	if rl.ActionKind != rule.ActionAIGenerated {
		return RenderTemplate(rl.ResponseTemplate, evt)
	}

	if r.config.Completer != nil {
		text, err := r.config.Completer.Complete(ctx, RenderTemplate(rl.AIPromptTemplate, evt), ai.UserContext{
			Username: evt.ActorUsername,
			Text:     evt.Text,
			Kind:     string(evt.Kind),
		})
		if err == nil && strings.TrimSpace(text) != "" {
			return Truncate(strings.TrimSpace(text), r.config.MaxResponseLength)
		}
		r.logger.WarnContext(ctx, "ai completion failed, using fallback",
			"automation_id", rl.ID, "error", err)
	}

	if rl.FallbackMessage != "" {
		return RenderTemplate(rl.FallbackMessage, evt)
	}
	return RenderTemplate(rl.ResponseTemplate, evt)
}

func (r *Responder) release(ctx context.Context, c *trigger.Claim) {
	if err := r.triggers.ReleaseClaim(ctx, c.Key); err != nil {
		r.logger.WarnContext(ctx, "release trigger claim failed", "key", c.Key, "error", err)
	}
}

func (r *Responder) duplicate(ctx context.Context, m *rule.Match, layer string) {
	if r.config.Metrics != nil {
		r.config.Metrics.RecordDuplicate(layer)
	}
	r.logger.DebugContext(ctx, "duplicate trigger suppressed",
		"automation_id", m.Rule.ID, "actor_id", m.Event.ActorID, "layer", layer)
}

func (r *Responder) recordFailure(ctx context.Context, m *rule.Match, action failure.Action, text string, attempts int, sendErr error) {
	if r.config.Failures == nil {
		r.logger.ErrorContext(ctx, "response delivery failed",
			"automation_id", m.Rule.ID, "attempts", attempts, "error", sendErr)
		return
	}
	f := &failure.Failure{
		AutomationID:   m.Rule.ID,
		OwnerUserID:    m.Rule.OwnerUserID,
		EventID:        m.Event.EventID,
		EventKind:      string(m.Event.Kind),
		ActorID:        m.Event.ActorID,
		Action:         action,
		Message:        text,
		Error:          sendErr.Error(),
		AttemptCount:   attempts,
		LastStatusCode: messaging.StatusCode(sendErr),
	}
	if err := r.config.Failures.Record(ctx, f); err != nil {
		r.logger.ErrorContext(ctx, "record failure failed", "automation_id", m.Rule.ID, "error", err)
	}
}
