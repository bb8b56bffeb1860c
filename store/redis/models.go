package redis

import (
	"fmt"
	"time"

	"github.com/xraph/herald/account"
	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/internal/entity"
	"github.com/xraph/herald/rule"
	"github.com/xraph/herald/trigger"
)

// Models are the JSON representations stored in Redis.

// --- Rule models ---

type ruleModel struct {
	ID                   string    `json:"id"`
	OwnerUserID          string    `json:"owner_user_id"`
	Name                 string    `json:"name"`
	Active               bool      `json:"active"`
	TriggerKind          string    `json:"trigger_kind"`
	ActionKind           string    `json:"action_kind"`
	Keywords             []string  `json:"keywords"`
	ScopePostIDs         []string  `json:"scope_post_ids"`
	ResponseTemplate     string    `json:"response_template"`
	AIPromptTemplate     string    `json:"ai_prompt_template"`
	FallbackMessage      string    `json:"fallback_message"`
	PrivateReplyTemplate string    `json:"private_reply_template"`
	SmartFollower        bool      `json:"smart_follower"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func toRuleModel(r *rule.AutomationRule) *ruleModel {
	return &ruleModel{
		ID:                   r.ID.String(),
		OwnerUserID:          r.OwnerUserID,
		Name:                 r.Name,
		Active:               r.Active,
		TriggerKind:          string(r.TriggerKind),
		ActionKind:           string(r.ActionKind),
		Keywords:             nonNil(r.Keywords),
		ScopePostIDs:         nonNil(r.ScopePostIDs),
		ResponseTemplate:     r.ResponseTemplate,
		AIPromptTemplate:     r.AIPromptTemplate,
		FallbackMessage:      r.FallbackMessage,
		PrivateReplyTemplate: r.PrivateReplyTemplate,
		SmartFollower:        r.SmartFollower,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func fromRuleModel(m *ruleModel) (*rule.AutomationRule, error) {
	ruleID, err := id.ParseRuleID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse rule ID %q: %w", m.ID, err)
	}
	return &rule.AutomationRule{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                   ruleID,
		OwnerUserID:          m.OwnerUserID,
		Name:                 m.Name,
		Active:               m.Active,
		TriggerKind:          rule.TriggerKind(m.TriggerKind),
		ActionKind:           rule.ActionKind(m.ActionKind),
		Keywords:             m.Keywords,
		ScopePostIDs:         m.ScopePostIDs,
		ResponseTemplate:     m.ResponseTemplate,
		AIPromptTemplate:     m.AIPromptTemplate,
		FallbackMessage:      m.FallbackMessage,
		PrivateReplyTemplate: m.PrivateReplyTemplate,
		SmartFollower:        m.SmartFollower,
	}, nil
}

// --- Account models ---

type accountModel struct {
	ID                string    `json:"id"`
	OwnerUserID       string    `json:"owner_user_id"`
	ExternalAccountID string    `json:"external_account_id"`
	Username          string    `json:"username"`
	AccessToken       string    `json:"access_token"`
	CapabilityScopes  []string  `json:"capability_scopes"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toAccountModel(a *account.ConnectedAccount) *accountModel {
	return &accountModel{
		ID:                a.ID.String(),
		OwnerUserID:       a.OwnerUserID,
		ExternalAccountID: a.ExternalAccountID,
		Username:          a.Username,
		AccessToken:       a.AccessToken,
		CapabilityScopes:  nonNil(a.CapabilityScopes),
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.ConnectedAccount, error) {
	acctID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse account ID %q: %w", m.ID, err)
	}
	return &account.ConnectedAccount{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                acctID,
		OwnerUserID:       m.OwnerUserID,
		ExternalAccountID: m.ExternalAccountID,
		Username:          m.Username,
		AccessToken:       m.AccessToken,
		CapabilityScopes:  m.CapabilityScopes,
	}, nil
}

// --- Trigger models ---

type claimModel struct {
	ID           string    `json:"id"`
	Key          string    `json:"key"`
	AutomationID string    `json:"automation_id"`
	ActorID      string    `json:"actor_id"`
	TextHash     string    `json:"text_hash"`
	Bucket       int64     `json:"bucket"`
	ClaimedAt    time.Time `json:"claimed_at"`
}

func toClaimModel(c *trigger.Claim) *claimModel {
	return &claimModel{
		ID:           c.ID.String(),
		Key:          c.Key,
		AutomationID: c.AutomationID.String(),
		ActorID:      c.ActorID,
		TextHash:     c.TextHash,
		Bucket:       c.Bucket,
		ClaimedAt:    c.ClaimedAt,
	}
}

type triggerLogModel struct {
	ID            string    `json:"id"`
	AutomationID  string    `json:"automation_id"`
	TriggerKind   string    `json:"trigger_kind"`
	TriggerText   string    `json:"trigger_text"`
	ActorID       string    `json:"actor_id"`
	ActorUsername string    `json:"actor_username"`
	IsNewFollower bool      `json:"is_new_follower"`
	EventID       string    `json:"event_id"`
	TriggeredAt   time.Time `json:"triggered_at"`
}

func toTriggerLogModel(l *trigger.TriggerLog) *triggerLogModel {
	return &triggerLogModel{
		ID:            l.ID.String(),
		AutomationID:  l.AutomationID.String(),
		TriggerKind:   string(l.TriggerKind),
		TriggerText:   l.TriggerText,
		ActorID:       l.ActorID,
		ActorUsername: l.ActorUsername,
		IsNewFollower: l.IsNewFollower,
		EventID:       l.EventID,
		TriggeredAt:   l.TriggeredAt,
	}
}

func fromTriggerLogModel(m *triggerLogModel) (*trigger.TriggerLog, error) {
	logID, err := id.ParseTriggerID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse trigger ID %q: %w", m.ID, err)
	}
	ruleID, err := id.ParseRuleID(m.AutomationID)
	if err != nil {
		return nil, fmt.Errorf("parse automation ID %q: %w", m.AutomationID, err)
	}
	return &trigger.TriggerLog{
		ID:            logID,
		AutomationID:  ruleID,
		TriggerKind:   rule.TriggerKind(m.TriggerKind),
		TriggerText:   m.TriggerText,
		ActorID:       m.ActorID,
		ActorUsername: m.ActorUsername,
		IsNewFollower: m.IsNewFollower,
		EventID:       m.EventID,
		TriggeredAt:   m.TriggeredAt,
	}, nil
}

// --- Failure models ---

type failureModel struct {
	ID             string    `json:"id"`
	AutomationID   string    `json:"automation_id"`
	OwnerUserID    string    `json:"owner_user_id"`
	EventID        string    `json:"event_id"`
	EventKind      string    `json:"event_kind"`
	ActorID        string    `json:"actor_id"`
	Action         string    `json:"action"`
	Message        string    `json:"message"`
	Error          string    `json:"error"`
	AttemptCount   int       `json:"attempt_count"`
	LastStatusCode int       `json:"last_status_code"`
	FailedAt       time.Time `json:"failed_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toFailureModel(f *failure.Failure) *failureModel {
	return &failureModel{
		ID:             f.ID.String(),
		AutomationID:   f.AutomationID.String(),
		OwnerUserID:    f.OwnerUserID,
		EventID:        f.EventID,
		EventKind:      f.EventKind,
		ActorID:        f.ActorID,
		Action:         string(f.Action),
		Message:        f.Message,
		Error:          f.Error,
		AttemptCount:   f.AttemptCount,
		LastStatusCode: f.LastStatusCode,
		FailedAt:       f.FailedAt,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

func fromFailureModel(m *failureModel) (*failure.Failure, error) {
	failID, err := id.ParseFailureID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse failure ID %q: %w", m.ID, err)
	}
	ruleID, err := id.ParseRuleID(m.AutomationID)
	if err != nil {
		return nil, fmt.Errorf("parse automation ID %q: %w", m.AutomationID, err)
	}
	return &failure.Failure{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             failID,
		AutomationID:   ruleID,
		OwnerUserID:    m.OwnerUserID,
		EventID:        m.EventID,
		EventKind:      m.EventKind,
		ActorID:        m.ActorID,
		Action:         failure.Action(m.Action),
		Message:        m.Message,
		Error:          m.Error,
		AttemptCount:   m.AttemptCount,
		LastStatusCode: m.LastStatusCode,
		FailedAt:       m.FailedAt,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
