package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/herald/observability"
)

func TestTracerSpans(t *testing.T) {
	tr := observability.NewTracer()
	ctx := context.Background()

	ctx, webhook := tr.StartWebhookSpan(ctx, 128)
	ctx, process := tr.StartProcessSpan(ctx, "comment", "C1", "ACC1")
	ctx, respond := tr.StartRespondSpan(ctx, "rule_x", "U1")
	_, send := tr.StartSendSpan(ctx, "comment_reply")

	tr.EndSpan(send, "failed", errors.New("boom"))
	tr.EndSpan(respond, "sent", nil)
	tr.EndSpan(process, "responded", nil)
	tr.EndSpan(webhook, "ok", nil)

	if webhook.IsRecording() {
		t.Fatal("ended span must not be recording")
	}
}
