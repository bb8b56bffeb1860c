package herald

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/herald/ai"
	"github.com/xraph/herald/dedup"
	"github.com/xraph/herald/event"
	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/follower"
	"github.com/xraph/herald/messaging"
	"github.com/xraph/herald/observability"
	"github.com/xraph/herald/responder"
	"github.com/xraph/herald/rule"
	"github.com/xraph/herald/store"
)

// Herald is the root webhook automation pipeline.
type Herald struct {
	config     Config
	store      store.Store
	messenger  messaging.Client
	completer  ai.Completer
	cache      dedup.Cache
	normalizer *event.Normalizer
	guard      *dedup.Guard
	followers  *follower.Tracker
	matcher    *rule.Matcher
	responder  *responder.Responder
	ruleSvc    *rule.Service
	failureSvc *failure.Service
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	logger     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Herald with the given options.
func New(opts ...Option) (*Herald, error) {
	h := &Herald{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	if h.store == nil {
		return nil, ErrNoStore
	}
	if h.messenger == nil {
		return nil, ErrNoMessaging
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.config = h.config.withDefaults()
	if err := h.wireServices(); err != nil {
		return nil, err
	}
	return h, nil
}

// wireServices initializes the internal services after options have been applied.
func (h *Herald) wireServices() error {
	normalizer, err := event.NewNormalizer()
	if err != nil {
		return fmt.Errorf("herald: compile payload schemas: %w", err)
	}
	h.normalizer = normalizer

	if h.cache == nil {
		h.cache = dedup.NewMemoryCache()
	}
	h.guard = dedup.NewGuard(h.cache, dedup.Config{
		TTL:            h.config.DedupTTL,
		SweepInterval:  h.config.SweepInterval,
		ReleaseOnError: h.config.ReleaseOnError,
	}, h.logger)

	h.followers = follower.NewTracker(h.store, h.config.NewFollowerWindow)
	h.matcher = rule.NewMatcher(h.store, h.followers, h.logger)

	h.ruleSvc = rule.NewService(h.store, h.logger)
	h.failureSvc = failure.NewService(h.store, h.logger)

	h.responder = responder.NewResponder(h.store, h.messenger, responder.Config{
		MaxAttempts:       h.config.MaxAttempts,
		BaseDelay:         h.config.BaseDelay,
		RequestTimeout:    h.config.RequestTimeout,
		DuplicateWindow:   h.config.DuplicateWindow,
		MaxResponseLength: h.config.MaxResponseLength,
		Completer:         h.completer,
		Followers:         h.followers,
		Failures:          h.failureSvc,
		Metrics:           h.metrics,
		Tracer:            h.tracer,
	}, h.logger)
	return nil
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start launches the dedup sweep and the trigger claim purge loop.
func (h *Herald) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.guard.Start(ctx)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.purgeLoop(ctx)
	}()
	h.logger.InfoContext(ctx, "herald started",
		"dedup_ttl", h.config.DedupTTL,
		"sweep_interval", h.config.SweepInterval,
	)
}

// Stop gracefully shuts down the background loops, waiting at most the
// shutdown timeout or until ctx is done.
func (h *Herald) Stop(ctx context.Context) {
	if h.cancel != nil {
		h.cancel()
	}

	done := make(chan struct{})
	go func() {
		h.guard.Stop()
		h.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(h.config.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		h.logger.InfoContext(ctx, "herald stopped")
	case <-timer.C:
		h.logger.WarnContext(ctx, "herald shutdown timed out")
	case <-ctx.Done():
		h.logger.WarnContext(ctx, "herald shutdown cancelled", "error", ctx.Err())
	}
}

func (h *Herald) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(h.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.purgeClaims(ctx)
		}
	}
}

func (h *Herald) purgeClaims(ctx context.Context) {
	n, err := h.store.PurgeClaims(ctx, time.Now().UTC().Add(-h.config.ClaimRetention))
	if err != nil {
		h.logger.WarnContext(ctx, "purge trigger claims failed", "error", err)
		return
	}
	if n > 0 {
		h.logger.DebugContext(ctx, "purged trigger claims", "count", n)
	}
	if h.metrics != nil {
		if entries, err := h.guard.Len(ctx); err == nil {
			h.metrics.TrackDedupEntries(entries)
		}
	}
}

// ──────────────────────────────────────────────────
// Pipeline
// ──────────────────────────────────────────────────

// Outcome is the terminal result of processing one event.
type Outcome string

const (
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeNoMatch      Outcome = "no_match"
	OutcomeResponded    Outcome = "responded"
	OutcomePendingTrust Outcome = "pending_trust"
	OutcomeFailed       Outcome = "failed"
)

// Report summarizes one webhook delivery.
type Report struct {
	Received   int `json:"received"`
	Failures   int `json:"failures"`
	Ignored    int `json:"ignored"`
	Duplicates int `json:"duplicates"`
	NoMatch    int `json:"no_match"`
	Responded  int `json:"responded"`
	Pending    int `json:"pending_trust"`
	Failed     int `json:"failed"`
}

// HandleWebhook normalizes a raw delivery and processes every event in it.
// Only a body that is not a webhook payload at all returns an error; failed
// events are counted in the report so the delivery can still be acknowledged.
func (h *Herald) HandleWebhook(ctx context.Context, body []byte) (*Report, error) {
	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.StartWebhookSpan(ctx, len(body))
		defer span.End()
	}

	batch, err := h.normalizer.Normalize(body)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Received: len(batch.Events),
		Failures: batch.Failures,
		Ignored:  batch.Ignored,
	}
	if h.metrics != nil && batch.Failures > 0 {
		h.metrics.RecordNormalizeFailures(batch.Failures)
	}
	if batch.Failures > 0 {
		h.logger.WarnContext(ctx, "dropped malformed webhook entries", "count", batch.Failures)
	}

	for _, evt := range batch.Events {
		outcome, err := h.Process(ctx, evt)
		if err != nil {
			h.logger.ErrorContext(ctx, "process event failed",
				"event_id", evt.EventID,
				"kind", string(evt.Kind),
				"error", err,
			)
		}
		switch outcome {
		case OutcomeDuplicate:
			report.Duplicates++
		case OutcomeNoMatch:
			report.NoMatch++
		case OutcomeResponded:
			report.Responded++
		case OutcomePendingTrust:
			report.Pending++
		default:
			report.Failed++
		}
	}
	return report, nil
}

// Process runs one event through dedup, rule matching and the responder.
// The returned error is non-nil only for OutcomeFailed.
func (h *Herald) Process(ctx context.Context, evt *event.InboundEvent) (outcome Outcome, err error) {
	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.StartProcessSpan(ctx, string(evt.Kind), evt.EventID, evt.RecipientAccountID)
		defer func() { h.tracer.EndSpan(span, string(outcome), err) }()
	}
	if h.metrics != nil {
		h.metrics.RecordEvent(string(evt.Kind))
	}

	res, err := h.guard.CheckAndReserve(ctx, evt)
	reserved := err == nil
	if err != nil {
		// Fail open: the durable claim still prevents a double send.
		h.logger.WarnContext(ctx, "dedup cache unavailable, continuing",
			"event_id", evt.EventID, "error", err)
		err = nil
	} else if !res.Fresh {
		if h.metrics != nil {
			h.metrics.RecordDuplicate("cache")
		}
		h.logger.DebugContext(ctx, "duplicate event suppressed", "key", res.Key)
		return OutcomeDuplicate, nil
	}

	outcome, err = h.dispatch(ctx, evt)

	if reserved {
		if cerr := h.guard.Complete(ctx, res.Key, err); cerr != nil {
			h.logger.WarnContext(ctx, "dedup complete failed", "key", res.Key, "error", cerr)
		}
	}
	return outcome, err
}

func (h *Herald) dispatch(ctx context.Context, evt *event.InboundEvent) (Outcome, error) {
	rules, err := h.store.FindActiveRules(ctx, rule.Filter{OwnerAccountExternalID: evt.RecipientAccountID})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("herald: find active rules: %w", err)
	}

	mctx := ctx
	var span trace.Span
	if h.tracer != nil {
		mctx, span = h.tracer.StartMatchSpan(ctx, len(rules))
	}
	m, err := h.matcher.Match(mctx, evt, rules)
	if span != nil {
		h.tracer.EndSpan(span, "", err)
	}
	if err != nil {
		return OutcomeFailed, fmt.Errorf("herald: match rules: %w", err)
	}

	if m == nil {
		if h.metrics != nil {
			h.metrics.RulesNoMatch.Inc()
		}
		return OutcomeNoMatch, nil
	}
	if h.metrics != nil {
		h.metrics.RulesMatched.Inc()
	}

	result, err := h.responder.Respond(ctx, m)
	if err != nil {
		if errors.Is(err, responder.ErrEmptyResponse) {
			h.logger.WarnContext(ctx, "matched rule has nothing to send",
				"automation_id", m.Rule.ID, "event_id", evt.EventID)
		}
		return OutcomeFailed, err
	}

	switch result.Status {
	case responder.StatusDuplicate:
		return OutcomeDuplicate, nil
	case responder.StatusPendingTrust:
		return OutcomePendingTrust, nil
	default:
		return OutcomeResponded, nil
	}
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Rules returns the rule management service.
func (h *Herald) Rules() *rule.Service {
	return h.ruleSvc
}

// Failures returns the failure record service.
func (h *Herald) Failures() *failure.Service {
	return h.failureSvc
}

// Followers returns the follower tracker.
func (h *Herald) Followers() *follower.Tracker {
	return h.followers
}

// Guard returns the dedup guard.
func (h *Herald) Guard() *dedup.Guard {
	return h.guard
}

// Store returns the underlying store.
func (h *Herald) Store() store.Store {
	return h.store
}

// Config returns the effective configuration.
func (h *Herald) Config() Config {
	return h.config
}
