package responder

import (
	"strings"

	"github.com/xraph/herald/event"
)

// DefaultMaxResponseLength caps AI-generated responses, in characters.
const DefaultMaxResponseLength = 800

const ellipsis = "..."

// RenderTemplate substitutes {username} and {text} in tmpl.
func RenderTemplate(tmpl string, evt *event.InboundEvent) string {
	username := evt.ActorUsername
	if username == "" {
		username = "there"
	}
	return strings.NewReplacer(
		"{username}", username,
		"{text}", evt.Text,
	).Replace(tmpl)
}

// Truncate caps s at limit characters, ending with an ellipsis when cut.
func Truncate(s string, limit int) string {
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return string(r[:limit])
	}
	return string(r[:limit-len(ellipsis)]) + ellipsis
}
