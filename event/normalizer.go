package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrMalformedPayload is returned when a delivery body is not a webhook payload at all.
var ErrMalformedPayload = errors.New("herald: malformed webhook payload")

// Batch is the result of normalizing one webhook delivery.
type Batch struct {
	// Events are the sub-events that passed validation, in payload order.
	Events []*InboundEvent

	// Failures counts sub-entries dropped for missing or invalid fields.
	Failures int

	// Ignored counts well-formed sub-entries that are not triggers
	// (echoes, read receipts, unsupported change fields).
	Ignored int
}

// Normalizer maps raw deliveries to InboundEvents. It is safe for
// concurrent use.
type Normalizer struct {
	comment   *jsonschema.Schema
	messaging *jsonschema.Schema
	now       func() time.Time
}

// NewNormalizer compiles the payload schemas.
func NewNormalizer() (*Normalizer, error) {
	comment, err := compileSchema(commentSchemaURL, commentSchema)
	if err != nil {
		return nil, err
	}
	messaging, err := compileSchema(messagingSchemaURL, messagingSchema)
	if err != nil {
		return nil, err
	}
	return &Normalizer{
		comment:   comment,
		messaging: messaging,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Normalize splits raw into zero or more events. A body that does not decode
// as a webhook payload returns ErrMalformedPayload; individual malformed
// sub-entries are dropped and counted instead.
func (n *Normalizer) Normalize(raw []byte) (*Batch, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.Object != ObjectInstagram && p.Object != ObjectPage {
		return nil, fmt.Errorf("%w: unsupported object %q", ErrMalformedPayload, p.Object)
	}

	b := &Batch{}
	received := n.now()

	for i := range p.Entry {
		entry := &p.Entry[i]
		if entry.ID == "" {
			b.Failures += len(entry.Changes) + len(entry.Messaging)
			continue
		}

		for _, rawChange := range entry.Changes {
			evt, ok, err := n.normalizeComment(entry, rawChange, received)
			switch {
			case err != nil:
				b.Failures++
			case !ok:
				b.Ignored++
			default:
				b.Events = append(b.Events, evt)
			}
		}

		for _, rawMsg := range entry.Messaging {
			evt, ok, err := n.normalizeMessage(entry, rawMsg, received)
			switch {
			case err != nil:
				b.Failures++
			case !ok:
				b.Ignored++
			default:
				b.Events = append(b.Events, evt)
			}
		}
	}

	return b, nil
}

func (n *Normalizer) normalizeComment(entry *Entry, raw json.RawMessage, received time.Time) (*InboundEvent, bool, error) {
	var c Change
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, false, err
	}
	if c.Field != FieldComments && c.Field != FieldLiveComments {
		return nil, false, nil
	}
	if err := validate(n.comment, c.Value); err != nil {
		return nil, false, err
	}

	var v CommentValue
	if err := json.Unmarshal(c.Value, &v); err != nil {
		return nil, false, err
	}

	return &InboundEvent{
		Kind:               KindComment,
		EventID:            v.ID,
		ActorID:            v.From.ID,
		ActorUsername:      v.From.Username,
		RecipientAccountID: entry.ID,
		Text:               v.Text,
		PostID:             v.Media.ID,
		ParentID:           v.ParentID,
		ReceivedAt:         received,
	}, true, nil
}

func (n *Normalizer) normalizeMessage(entry *Entry, raw json.RawMessage, received time.Time) (*InboundEvent, bool, error) {
	if err := validate(n.messaging, raw); err != nil {
		return nil, false, err
	}

	var m Messaging
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false, err
	}

	// Reads, reactions and postbacks carry no message body.
	if m.Message == nil || m.Message.Text == "" {
		return nil, false, nil
	}
	// Never treat the account's own outgoing message as a trigger.
	if m.Message.IsEcho || m.Sender.ID == entry.ID {
		return nil, false, nil
	}

	return &InboundEvent{
		Kind:               KindDirectMessage,
		EventID:            m.Message.MID,
		ActorID:            m.Sender.ID,
		RecipientAccountID: m.Recipient.ID,
		Text:               m.Message.Text,
		ReceivedAt:         received,
	}, true, nil
}
