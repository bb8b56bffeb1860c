// Package ai produces AI-generated responses for automation rules.
package ai

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned when a provider produced no text.
var ErrEmptyCompletion = errors.New("herald: empty ai completion")

// UserContext describes the event the response is written for.
type UserContext struct {
	Username string
	Text     string
	Kind     string
}

// Completer generates response text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, uc UserContext) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string, uc UserContext) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, prompt string, uc UserContext) (string, error) {
	return f(ctx, prompt, uc)
}
