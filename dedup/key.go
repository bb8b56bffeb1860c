package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/xraph/herald/event"
)

// fingerprintTextLen bounds how much of the text feeds the fallback fingerprint.
const fingerprintTextLen = 100

// Key returns the idempotency key for evt: kind plus provider event id, or a
// content fingerprint of actor, text and target when the provider sent no id.
// The fingerprint has no per-request component, so identical redeliveries
// produce identical keys.
func Key(evt *event.InboundEvent) string {
	if evt.EventID != "" {
		return string(evt.Kind) + ":" + evt.EventID
	}

	text := evt.Text
	if r := []rune(text); len(r) > fingerprintTextLen {
		text = string(r[:fingerprintTextLen])
	}

	sum := sha256.Sum256([]byte(strings.Join([]string{
		string(evt.Kind),
		evt.ActorID,
		evt.RecipientAccountID,
		evt.PostID,
		text,
	}, "\x1f")))

	return string(evt.Kind) + ":fp:" + hex.EncodeToString(sum[:16])
}
