package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/herald/account"
	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/follower"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/internal/entity"
	"github.com/xraph/herald/rule"
	"github.com/xraph/herald/trigger"
)

// --- Rule models ---

type ruleModel struct {
	grove.BaseModel `grove:"table:herald_rules"`

	ID                   string    `grove:"id,pk"`
	OwnerUserID          string    `grove:"owner_user_id"`
	Name                 string    `grove:"name"`
	Active               bool      `grove:"active"`
	TriggerKind          string    `grove:"trigger_kind"`
	ActionKind           string    `grove:"action_kind"`
	Keywords             string    `grove:"keywords"`
	ScopePostIDs         string    `grove:"scope_post_ids"`
	ResponseTemplate     string    `grove:"response_template"`
	AIPromptTemplate     string    `grove:"ai_prompt_template"`
	FallbackMessage      string    `grove:"fallback_message"`
	PrivateReplyTemplate string    `grove:"private_reply_template"`
	SmartFollower        bool      `grove:"smart_follower"`
	CreatedAt            time.Time `grove:"created_at"`
	UpdatedAt            time.Time `grove:"updated_at"`
}

func toRuleModel(r *rule.AutomationRule) *ruleModel {
	return &ruleModel{
		ID:                   r.ID.String(),
		OwnerUserID:          r.OwnerUserID,
		Name:                 r.Name,
		Active:               r.Active,
		TriggerKind:          string(r.TriggerKind),
		ActionKind:           string(r.ActionKind),
		Keywords:             encodeStrings(r.Keywords),
		ScopePostIDs:         encodeStrings(r.ScopePostIDs),
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
	keywords, err := decodeStrings(m.Keywords)
	if err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	scope, err := decodeStrings(m.ScopePostIDs)
	if err != nil {
		return nil, fmt.Errorf("decode scope post IDs: %w", err)
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
		Keywords:             keywords,
		ScopePostIDs:         scope,
		ResponseTemplate:     m.ResponseTemplate,
		AIPromptTemplate:     m.AIPromptTemplate,
		FallbackMessage:      m.FallbackMessage,
		PrivateReplyTemplate: m.PrivateReplyTemplate,
		SmartFollower:        m.SmartFollower,
	}, nil
}

// --- Account models ---

type accountModel struct {
	grove.BaseModel `grove:"table:herald_accounts"`

	ID                string    `grove:"id,pk"`
	OwnerUserID       string    `grove:"owner_user_id,unique"`
	ExternalAccountID string    `grove:"external_account_id,unique"`
	Username          string    `grove:"username"`
	AccessToken       string    `grove:"access_token"`
	CapabilityScopes  string    `grove:"capability_scopes"`
	CreatedAt         time.Time `grove:"created_at"`
	UpdatedAt         time.Time `grove:"updated_at"`
}

func toAccountModel(a *account.ConnectedAccount) *accountModel {
	return &accountModel{
		ID:                a.ID.String(),
		OwnerUserID:       a.OwnerUserID,
		ExternalAccountID: a.ExternalAccountID,
		Username:          a.Username,
		AccessToken:       a.AccessToken,
		CapabilityScopes:  encodeStrings(a.CapabilityScopes),
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.ConnectedAccount, error) {
	acctID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse account ID %q: %w", m.ID, err)
	}
	scopes, err := decodeStrings(m.CapabilityScopes)
	if err != nil {
		return nil, fmt.Errorf("decode capability scopes: %w", err)
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
		CapabilityScopes:  scopes,
	}, nil
}

// --- Follower models ---

type followerModel struct {
	grove.BaseModel `grove:"table:herald_followers"`

	ID          string     `grove:"id,pk"`
	OwnerUserID string     `grove:"owner_user_id"`
	ActorID     string     `grove:"actor_id"`
	Username    string     `grove:"username"`
	FollowedAt  *time.Time `grove:"followed_at"`
	CommentedAt *time.Time `grove:"commented_at"`
	Trust       string     `grove:"trust"`
	CreatedAt   time.Time  `grove:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"`
}

func fromFollowerModel(m *followerModel) (*follower.Follower, error) {
	flwID, err := id.ParseFollowerID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse follower ID %q: %w", m.ID, err)
	}
	return &follower.Follower{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          flwID,
		OwnerUserID: m.OwnerUserID,
		ActorID:     m.ActorID,
		Username:    m.Username,
		FollowedAt:  m.FollowedAt,
		CommentedAt: m.CommentedAt,
		Trust:       follower.State(m.Trust),
	}, nil
}

// --- Trigger models ---

type claimModel struct {
	grove.BaseModel `grove:"table:herald_trigger_claims"`

	ID           string    `grove:"id,pk"`
	Key          string    `grove:"key,unique"`
	AutomationID string    `grove:"automation_id"`
	ActorID      string    `grove:"actor_id"`
	TextHash     string    `grove:"text_hash"`
	Bucket       int64     `grove:"bucket"`
	ClaimedAt    time.Time `grove:"claimed_at"`
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
	grove.BaseModel `grove:"table:herald_trigger_logs"`

	ID            string    `grove:"id,pk"`
	AutomationID  string    `grove:"automation_id"`
	TriggerKind   string    `grove:"trigger_kind"`
	TriggerText   string    `grove:"trigger_text"`
	ActorID       string    `grove:"actor_id"`
	ActorUsername string    `grove:"actor_username"`
	IsNewFollower bool      `grove:"is_new_follower"`
	EventID       string    `grove:"event_id"`
	TriggeredAt   time.Time `grove:"triggered_at"`
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
	grove.BaseModel `grove:"table:herald_failures"`

	ID             string    `grove:"id,pk"`
	AutomationID   string    `grove:"automation_id"`
	OwnerUserID    string    `grove:"owner_user_id"`
	EventID        string    `grove:"event_id"`
	EventKind      string    `grove:"event_kind"`
	ActorID        string    `grove:"actor_id"`
	Action         string    `grove:"action"`
	Message        string    `grove:"message"`
	Error          string    `grove:"error"`
	AttemptCount   int       `grove:"attempt_count"`
	LastStatusCode int       `grove:"last_status_code"`
	FailedAt       time.Time `grove:"failed_at"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
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

func encodeStrings(s []string) string {
	if len(s) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(s) //nolint:errcheck // []string always marshals
	return string(b)
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var s []string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, err
	}
	return s, nil
}
