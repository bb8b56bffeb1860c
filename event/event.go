// Package event turns raw Instagram webhook deliveries into canonical
// InboundEvent records.
package event

import "time"

// Kind identifies the type of an inbound event.
type Kind string

const (
	// KindComment is a comment left on a post owned by the receiving account.
	KindComment Kind = "comment"

	// KindDirectMessage is a direct message sent to the receiving account.
	KindDirectMessage Kind = "direct_message"
)

// Valid reports whether k is a known event kind.
func (k Kind) Valid() bool {
	return k == KindComment || k == KindDirectMessage
}

// InboundEvent is one normalized comment or direct message notification.
// It is constructed per webhook delivery and never persisted directly.
type InboundEvent struct {
	// Kind is the event type.
	Kind Kind `json:"kind"`

	// EventID is the provider-assigned comment or message id. May be empty.
	EventID string `json:"event_id,omitempty"`

	// ActorID is the external user who produced the event.
	ActorID string `json:"actor_id"`

	// ActorUsername is the actor's handle, when the provider sends it.
	ActorUsername string `json:"actor_username,omitempty"`

	// RecipientAccountID is the external id of the account that received the event.
	RecipientAccountID string `json:"recipient_account_id"`

	// Text is the raw comment or message body.
	Text string `json:"text"`

	// PostID identifies the media a comment is attached to.
	PostID string `json:"post_id,omitempty"`

	// ParentID is set when the comment is a reply to another comment.
	ParentID string `json:"parent_id,omitempty"`

	// ReceivedAt is the ingestion timestamp.
	ReceivedAt time.Time `json:"received_at"`
}

// IsReply reports whether the event is a reply to another comment.
func (e *InboundEvent) IsReply() bool {
	return e.ParentID != ""
}

// IsSelf reports whether the receiving account produced the event itself.
func (e *InboundEvent) IsSelf() bool {
	return e.ActorID != "" && e.ActorID == e.RecipientAccountID
}
