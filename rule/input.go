package rule

// Input is the creation/update payload for rules.
type Input struct {
	OwnerUserID          string      `json:"owner_user_id"`
	Name                 string      `json:"name"`
	TriggerKind          TriggerKind `json:"trigger_kind"`
	ActionKind           ActionKind  `json:"action_kind"`
	Keywords             []string    `json:"keywords"`
	ScopePostIDs         []string    `json:"scope_post_ids,omitempty"`
	ResponseTemplate     string      `json:"response_template"`
	AIPromptTemplate     string      `json:"ai_prompt_template"`
	FallbackMessage      string      `json:"fallback_message"`
	PrivateReplyTemplate string      `json:"private_reply_template"`
	SmartFollower        *bool       `json:"smart_follower,omitempty"`
}
