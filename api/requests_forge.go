package api

import (
	"github.com/xraph/herald/rule"
)

// ---------------------------------------------------------------------------
// Rule requests
// ---------------------------------------------------------------------------

// CreateRuleForgeRequest binds the body for POST /rules.
type CreateRuleForgeRequest struct {
	OwnerUserID          string           `description:"Owning dashboard user"            json:"owner_user_id"`
	Name                 string           `description:"Human-readable label"             json:"name,omitempty"`
	TriggerKind          rule.TriggerKind `description:"comment, direct_message or new_follower_comment" json:"trigger_kind"`
	ActionKind           rule.ActionKind  `description:"static_message or ai_generated"   json:"action_kind,omitempty"`
	Keywords             []string         `description:"Keywords matched on word boundaries" json:"keywords"`
	ScopePostIDs         []string         `description:"Restrict to these posts"          json:"scope_post_ids,omitempty"`
	ResponseTemplate     string           `description:"Static response template"         json:"response_template,omitempty"`
	AIPromptTemplate     string           `description:"Prompt sent to the AI completer"  json:"ai_prompt_template,omitempty"`
	FallbackMessage      string           `description:"Sent when AI generation fails"    json:"fallback_message,omitempty"`
	PrivateReplyTemplate string           `description:"Private reply sent after a comment reply" json:"private_reply_template,omitempty"`
	SmartFollower        *bool            `description:"Stage replies by follower trust"  json:"smart_follower,omitempty"`
}

func (req *CreateRuleForgeRequest) input() rule.Input {
	return rule.Input{
		OwnerUserID:          req.OwnerUserID,
		Name:                 req.Name,
		TriggerKind:          req.TriggerKind,
		ActionKind:           req.ActionKind,
		Keywords:             req.Keywords,
		ScopePostIDs:         req.ScopePostIDs,
		ResponseTemplate:     req.ResponseTemplate,
		AIPromptTemplate:     req.AIPromptTemplate,
		FallbackMessage:      req.FallbackMessage,
		PrivateReplyTemplate: req.PrivateReplyTemplate,
		SmartFollower:        req.SmartFollower,
	}
}

// ListRulesForgeRequest binds query parameters for GET /rules.
type ListRulesForgeRequest struct {
	OwnerUserID string `description:"Owning dashboard user"  query:"owner_user_id"`
	Active      string `description:"Filter by active flag"  query:"active"`
	Offset      int    `description:"Pagination offset"      query:"offset"`
	Limit       int    `description:"Page size (default 50)" query:"limit"`
}

// GetRuleForgeRequest binds the path for GET /rules/:ruleId.
type GetRuleForgeRequest struct {
	RuleID string `description:"Rule identifier" path:"ruleId"`
}

// UpdateRuleForgeRequest binds path + body for PUT /rules/:ruleId.
type UpdateRuleForgeRequest struct {
	RuleID string `description:"Rule identifier" path:"ruleId"`
	CreateRuleForgeRequest
}

// DeleteRuleForgeRequest binds the path for DELETE /rules/:ruleId.
type DeleteRuleForgeRequest struct {
	RuleID string `description:"Rule identifier" path:"ruleId"`
}

// SetRuleActiveForgeRequest binds path + body for PATCH /rules/:ruleId/active.
type SetRuleActiveForgeRequest struct {
	RuleID string `description:"Rule identifier"      path:"ruleId"`
	Active bool   `description:"Whether the rule fires" json:"active"`
}

// ---------------------------------------------------------------------------
// Account requests
// ---------------------------------------------------------------------------

// UpsertAccountForgeRequest binds the body for PUT /accounts.
type UpsertAccountForgeRequest struct {
	OwnerUserID       string   `description:"Owning dashboard user"       json:"owner_user_id"`
	ExternalAccountID string   `description:"Instagram account id"        json:"external_account_id"`
	Username          string   `description:"Instagram handle"            json:"username,omitempty"`
	AccessToken       string   `description:"Graph API access token"      json:"access_token"`
	CapabilityScopes  []string `description:"Granted permission scopes"   json:"capability_scopes"`
}

// ---------------------------------------------------------------------------
// Trigger log requests
// ---------------------------------------------------------------------------

// ListTriggerLogsForgeRequest binds query parameters for GET /trigger-logs.
type ListTriggerLogsForgeRequest struct {
	AutomationID string `description:"Filter by rule"          query:"automation_id"`
	ActorID      string `description:"Filter by actor"         query:"actor_id"`
	From         string `description:"Start time (RFC3339)"    query:"from"`
	To           string `description:"End time (RFC3339)"      query:"to"`
	Offset       int    `description:"Pagination offset"       query:"offset"`
	Limit        int    `description:"Page size (default 50)"  query:"limit"`
}

// ---------------------------------------------------------------------------
// Failure requests
// ---------------------------------------------------------------------------

// ListFailuresForgeRequest binds query parameters for GET /failures.
type ListFailuresForgeRequest struct {
	OwnerUserID  string `description:"Filter by owner"         query:"owner_user_id"`
	AutomationID string `description:"Filter by rule"          query:"automation_id"`
	From         string `description:"Start time (RFC3339)"    query:"from"`
	To           string `description:"End time (RFC3339)"      query:"to"`
	Offset       int    `description:"Pagination offset"       query:"offset"`
	Limit        int    `description:"Page size (default 50)"  query:"limit"`
}

// GetFailureForgeRequest binds the path for GET /failures/:failureId.
type GetFailureForgeRequest struct {
	FailureID string `description:"Failure identifier" path:"failureId"`
}

// PurgeFailuresForgeRequest binds query parameters for DELETE /failures.
type PurgeFailuresForgeRequest struct {
	Before string `description:"Delete failures older than this time (RFC3339)" query:"before"`
}

// PurgeFailuresForgeResponse is the response for DELETE /failures.
type PurgeFailuresForgeResponse struct {
	Purged int64 `json:"purged"`
}

// ---------------------------------------------------------------------------
// Stats requests
// ---------------------------------------------------------------------------

// StatsForgeRequest is empty: GET /stats has no parameters.
type StatsForgeRequest struct{}

// StatsForgeResponse is the response for GET /stats.
type StatsForgeResponse struct {
	TriggerLogs  int64 `json:"trigger_logs"`
	Failures     int64 `json:"failures"`
	DedupEntries int   `json:"dedup_entries"`
}
