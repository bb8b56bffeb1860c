package event_test

import (
	"errors"
	"testing"

	"github.com/xraph/herald/event"
)

func newNormalizer(t *testing.T) *event.Normalizer {
	t.Helper()
	n, err := event.NewNormalizer()
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	return n
}

func TestNormalizeComment(t *testing.T) {
	n := newNormalizer(t)

	body := []byte(`{
	  "object": "instagram",
	  "entry": [{
	    "id": "ACC1",
	    "time": 1700000000,
	    "changes": [{
	      "field": "comments",
	      "value": {
	        "id": "C1",
	        "text": "no thanks",
	        "from": {"id": "U1", "username": "alice"},
	        "media": {"id": "P1", "media_product_type": "FEED"}
	      }
	    }]
	  }]
	}`)

	b, err := n.Normalize(body)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(b.Events) != 1 || b.Failures != 0 {
		t.Fatalf("expected 1 event and no failures, got %d events, %d failures", len(b.Events), b.Failures)
	}

	evt := b.Events[0]
	if evt.Kind != event.KindComment {
		t.Errorf("kind = %q", evt.Kind)
	}
	if evt.EventID != "C1" || evt.ActorID != "U1" || evt.ActorUsername != "alice" {
		t.Errorf("unexpected identity fields: %+v", evt)
	}
	if evt.RecipientAccountID != "ACC1" || evt.PostID != "P1" || evt.Text != "no thanks" {
		t.Errorf("unexpected target fields: %+v", evt)
	}
	if evt.IsReply() {
		t.Error("top-level comment must not be a reply")
	}
	if evt.ReceivedAt.IsZero() {
		t.Error("ReceivedAt must be set")
	}
}

func TestNormalizeReplyCarriesParent(t *testing.T) {
	n := newNormalizer(t)

	body := []byte(`{"object":"instagram","entry":[{"id":"ACC1","changes":[
	  {"field":"comments","value":{"id":"C2","text":"hi","parent_id":"C1","from":{"id":"U1"},"media":{"id":"P1"}}}
	]}]}`)

	b, err := n.Normalize(body)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(b.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(b.Events))
	}
	if b.Events[0].ParentID != "C1" || !b.Events[0].IsReply() {
		t.Errorf("expected reply with parent C1, got %+v", b.Events[0])
	}
}

func TestNormalizeMessages(t *testing.T) {
	n := newNormalizer(t)

	body := []byte(`{"object":"instagram","entry":[{"id":"ACC1","time":1700000000,"messaging":[
	  {"sender":{"id":"U1"},"recipient":{"id":"ACC1"},"timestamp":1700000000000,"message":{"mid":"M1","text":"price?"}},
	  {"sender":{"id":"ACC1"},"recipient":{"id":"U1"},"timestamp":1700000000001,"message":{"mid":"M2","text":"thanks","is_echo":true}},
	  {"sender":{"id":"ACC1"},"recipient":{"id":"U1"},"timestamp":1700000000002,"message":{"mid":"M3","text":"sent from app"}},
	  {"sender":{"id":"U1"},"recipient":{"id":"ACC1"},"timestamp":1700000000003,"read":{"mid":"M2"}}
	]}]}`)

	b, err := n.Normalize(body)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(b.Events) != 1 {
		t.Fatalf("expected only the inbound message, got %d events", len(b.Events))
	}
	if b.Ignored != 3 {
		t.Errorf("Ignored = %d, want 3", b.Ignored)
	}

	evt := b.Events[0]
	if evt.Kind != event.KindDirectMessage || evt.EventID != "M1" || evt.ActorID != "U1" {
		t.Errorf("unexpected event: %+v", evt)
	}
	if evt.RecipientAccountID != "ACC1" || evt.PostID != "" {
		t.Errorf("unexpected target fields: %+v", evt)
	}
}

func TestNormalizeDropsMalformedEntries(t *testing.T) {
	n := newNormalizer(t)

	tests := []struct {
		name string
		body string
	}{
		{"comment missing from", `{"object":"instagram","entry":[{"id":"ACC1","changes":[{"field":"comments","value":{"id":"C1","text":"hi","media":{"id":"P1"}}}]}]}`},
		{"comment text not a string", `{"object":"instagram","entry":[{"id":"ACC1","changes":[{"field":"comments","value":{"id":"C1","text":5,"from":{"id":"U1"},"media":{"id":"P1"}}}]}]}`},
		{"comment empty actor", `{"object":"instagram","entry":[{"id":"ACC1","changes":[{"field":"comments","value":{"text":"hi","from":{"id":""},"media":{"id":"P1"}}}]}]}`},
		{"message missing sender", `{"object":"instagram","entry":[{"id":"ACC1","messaging":[{"recipient":{"id":"ACC1"},"message":{"mid":"M1","text":"hi"}}]}]}`},
		{"entry without id", `{"object":"instagram","entry":[{"messaging":[{"sender":{"id":"U1"},"recipient":{"id":"ACC1"},"message":{"mid":"M1","text":"hi"}}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := n.Normalize([]byte(tt.body))
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if len(b.Events) != 0 {
				t.Errorf("expected no events, got %d", len(b.Events))
			}
			if b.Failures != 1 {
				t.Errorf("Failures = %d, want 1", b.Failures)
			}
		})
	}
}

func TestNormalizeMixedBatchKeepsValidEntries(t *testing.T) {
	n := newNormalizer(t)

	body := []byte(`{"object":"instagram","entry":[{"id":"ACC1","changes":[
	  {"field":"comments","value":{"id":"C1","text":"hi","from":{"id":"U1"},"media":{"id":"P1"}}},
	  {"field":"comments","value":{"id":"C2","from":{"id":"U2"},"media":{"id":"P1"}}},
	  {"field":"mentions","value":{"media_id":"P9"}}
	]}]}`)

	b, err := n.Normalize(body)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(b.Events) != 1 || b.Failures != 1 || b.Ignored != 1 {
		t.Fatalf("got events=%d failures=%d ignored=%d", len(b.Events), b.Failures, b.Ignored)
	}
}

func TestNormalizeRejectsNonPayload(t *testing.T) {
	n := newNormalizer(t)

	for _, body := range []string{`not json`, `{"object":"user","entry":[]}`} {
		if _, err := n.Normalize([]byte(body)); !errors.Is(err, event.ErrMalformedPayload) {
			t.Errorf("Normalize(%q) error = %v, want ErrMalformedPayload", body, err)
		}
	}
}
