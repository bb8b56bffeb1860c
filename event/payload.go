package event

import "encoding/json"

// Webhook object types sent by the Graph API.
const (
	ObjectInstagram = "instagram"
	ObjectPage      = "page"
)

// Change fields that carry comment notifications.
const (
	FieldComments     = "comments"
	FieldLiveComments = "live_comments"
)

// Payload is the top-level body of an Instagram webhook delivery.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the notifications for one business account.
type Entry struct {
	ID        string            `json:"id"`
	Time      int64             `json:"time"`
	Changes   []json.RawMessage `json:"changes,omitempty"`
	Messaging []json.RawMessage `json:"messaging,omitempty"`
}

// Change is one field-level notification inside an entry.
type Change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// User is a sender or recipient reference.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// Media identifies the post a comment belongs to.
type Media struct {
	ID               string `json:"id"`
	MediaProductType string `json:"media_product_type,omitempty"`
}

// CommentValue is the value of a "comments" change.
type CommentValue struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	From     User   `json:"from"`
	Media    Media  `json:"media"`
	ParentID string `json:"parent_id,omitempty"`
}

// Messaging is one direct-message notification.
type Messaging struct {
	Sender    User     `json:"sender"`
	Recipient User     `json:"recipient"`
	Timestamp int64    `json:"timestamp"`
	Message   *Message `json:"message,omitempty"`
}

// Message is the message body of a messaging notification.
type Message struct {
	MID    string `json:"mid"`
	Text   string `json:"text,omitempty"`
	IsEcho bool   `json:"is_echo,omitempty"`
}
