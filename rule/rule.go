// Package rule defines automation rules, their persistence contract and the
// matcher that selects at most one rule per inbound event.
package rule

import (
	"errors"

	"github.com/xraph/herald/event"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/internal/entity"
)

// ErrNotFound is returned when a rule cannot be found.
var ErrNotFound = errors.New("herald: rule not found")

// TriggerKind selects which events a rule listens to.
type TriggerKind string

const (
	TriggerComment            TriggerKind = "comment"
	TriggerDirectMessage      TriggerKind = "direct_message"
	TriggerNewFollowerComment TriggerKind = "new_follower_comment"
)

// Valid reports whether k is a known trigger kind.
func (k TriggerKind) Valid() bool {
	switch k {
	case TriggerComment, TriggerDirectMessage, TriggerNewFollowerComment:
		return true
	}
	return false
}

// Accepts reports whether an event of kind ek can fire a rule of kind k.
// New-follower rules additionally need a follower check.
func (k TriggerKind) Accepts(ek event.Kind) bool {
	switch k {
	case TriggerComment, TriggerNewFollowerComment:
		return ek == event.KindComment
	case TriggerDirectMessage:
		return ek == event.KindDirectMessage
	}
	return false
}

// ActionKind selects how the response text is produced.
type ActionKind string

const (
	ActionStaticMessage ActionKind = "static_message"
	ActionAIGenerated   ActionKind = "ai_generated"
)

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	return k == ActionStaticMessage || k == ActionAIGenerated
}

// AutomationRule maps keywords and scope on an account's events to a response.
// The pipeline only reads rules; owners create, toggle and delete them.
type AutomationRule struct {
	entity.Entity

	// ID is the unique TypeID for this rule.
	ID id.ID `json:"id"`

	// OwnerUserID is the dashboard user that owns the rule.
	OwnerUserID string `json:"owner_user_id"`

	// Name is a human-readable label.
	Name string `json:"name,omitempty"`

	// Active gates whether the rule is considered at all.
	Active bool `json:"active"`

	// TriggerKind selects the events the rule listens to.
	TriggerKind TriggerKind `json:"trigger_kind"`

	// ActionKind selects static or AI-generated responses.
	ActionKind ActionKind `json:"action_kind"`

	// Keywords are matched case-insensitively as substrings of the event text.
	// A rule with no keywords never matches.
	Keywords []string `json:"keywords"`

	// ScopePostIDs limits the rule to comments on these posts. Empty means unrestricted.
	ScopePostIDs []string `json:"scope_post_ids,omitempty"`

	// ResponseTemplate is the static response text.
	ResponseTemplate string `json:"response_template,omitempty"`

	// AIPromptTemplate is the prompt sent to the AI completer.
	AIPromptTemplate string `json:"ai_prompt_template,omitempty"`

	// FallbackMessage is sent when AI generation fails.
	FallbackMessage string `json:"fallback_message,omitempty"`

	// PrivateReplyTemplate, when set on comment rules, is sent as a private
	// reply after the public response.
	PrivateReplyTemplate string `json:"private_reply_template,omitempty"`

	// SmartFollower delays responses until an actor's second qualifying comment.
	SmartFollower bool `json:"smart_follower"`
}

// InScope reports whether postID is allowed by the rule's post scope.
func (r *AutomationRule) InScope(postID string) bool {
	if len(r.ScopePostIDs) == 0 {
		return true
	}
	if postID == "" {
		return false
	}
	for _, p := range r.ScopePostIDs {
		if p == postID {
			return true
		}
	}
	return false
}
