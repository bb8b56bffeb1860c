package rule

import (
	"context"
	"log/slog"
	"strings"

	"github.com/xraph/herald/id"
	"github.com/xraph/herald/internal/entity"
)

// Service provides rule management for the dashboard.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new rule service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Create validates and stores a new rule. Rules start inactive.
func (svc *Service) Create(ctx context.Context, in Input) (*AutomationRule, error) {
	if in.OwnerUserID == "" {
		return nil, &ValidationError{Field: "owner_user_id", Message: "required"}
	}

	r := &AutomationRule{
		Entity:      entity.New(),
		ID:          id.NewRuleID(),
		OwnerUserID: in.OwnerUserID,
		TriggerKind: in.TriggerKind,
		ActionKind:  in.ActionKind,
	}
	if r.ActionKind == "" {
		r.ActionKind = ActionStaticMessage
	}
	apply(r, in)

	if err := Validate(r); err != nil {
		return nil, err
	}
	if err := svc.store.CreateRule(ctx, r); err != nil {
		return nil, err
	}

	svc.logger.DebugContext(ctx, "rule created", "rule_id", r.ID, "owner_user_id", r.OwnerUserID)
	return r, nil
}

// Get returns a rule by ID.
func (svc *Service) Get(ctx context.Context, ruleID id.ID) (*AutomationRule, error) {
	return svc.store.GetRule(ctx, ruleID)
}

// Update modifies an existing rule. Empty fields are left unchanged.
func (svc *Service) Update(ctx context.Context, ruleID id.ID, in Input) (*AutomationRule, error) {
	r, err := svc.store.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	if in.TriggerKind != "" {
		r.TriggerKind = in.TriggerKind
	}
	if in.ActionKind != "" {
		r.ActionKind = in.ActionKind
	}
	apply(r, in)

	if err := Validate(r); err != nil {
		return nil, err
	}
	r.Touch()
	if err := svc.store.UpdateRule(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes a rule.
func (svc *Service) Delete(ctx context.Context, ruleID id.ID) error {
	return svc.store.DeleteRule(ctx, ruleID)
}

// List returns an owner's rules.
func (svc *Service) List(ctx context.Context, ownerUserID string, opts ListOpts) ([]*AutomationRule, error) {
	return svc.store.ListRules(ctx, ownerUserID, opts)
}

// SetActive toggles a rule on or off.
func (svc *Service) SetActive(ctx context.Context, ruleID id.ID, active bool) error {
	return svc.store.SetActive(ctx, ruleID, active)
}

func apply(r *AutomationRule, in Input) {
	if in.Name != "" {
		r.Name = in.Name
	}
	if in.Keywords != nil {
		r.Keywords = NormalizeKeywords(in.Keywords)
	}
	if in.ScopePostIDs != nil {
		r.ScopePostIDs = dedupeStrings(in.ScopePostIDs)
	}
	if in.ResponseTemplate != "" {
		r.ResponseTemplate = in.ResponseTemplate
	}
	if in.AIPromptTemplate != "" {
		r.AIPromptTemplate = in.AIPromptTemplate
	}
	if in.FallbackMessage != "" {
		r.FallbackMessage = in.FallbackMessage
	}
	if in.PrivateReplyTemplate != "" {
		r.PrivateReplyTemplate = in.PrivateReplyTemplate
	}
	if in.SmartFollower != nil {
		r.SmartFollower = *in.SmartFollower
	}
}

// Validate checks that a rule can ever fire.
func Validate(r *AutomationRule) error {
	if !r.TriggerKind.Valid() {
		return &ValidationError{Field: "trigger_kind", Message: "must be comment, direct_message or new_follower_comment"}
	}
	if !r.ActionKind.Valid() {
		return &ValidationError{Field: "action_kind", Message: "must be static_message or ai_generated"}
	}
	if len(r.Keywords) == 0 {
		return &ValidationError{Field: "keywords", Message: "at least one keyword required"}
	}
	switch r.ActionKind {
	case ActionStaticMessage:
		if strings.TrimSpace(r.ResponseTemplate) == "" {
			return &ValidationError{Field: "response_template", Message: "required for static rules"}
		}
	case ActionAIGenerated:
		if strings.TrimSpace(r.AIPromptTemplate) == "" {
			return &ValidationError{Field: "ai_prompt_template", Message: "required for AI rules"}
		}
	}
	if r.TriggerKind == TriggerDirectMessage && len(r.ScopePostIDs) > 0 {
		return &ValidationError{Field: "scope_post_ids", Message: "direct message rules cannot be post-scoped"}
	}
	return nil
}

// NormalizeKeywords trims keywords and drops blanks and case-insensitive
// duplicates, keeping first-seen order.
func NormalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		k := strings.ToLower(kw)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func dedupeStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "rule validation: " + e.Field + ": " + e.Message
}
