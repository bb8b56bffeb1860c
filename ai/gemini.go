package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModels are tried in order until one returns text.
var DefaultGeminiModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}

// compile-time interface check
var _ Completer = (*Gemini)(nil)

// Gemini implements Completer with Google's Gemini API.
type Gemini struct {
	client *genai.Client
	models []string
}

// NewGemini creates a Gemini completer. models defaults to DefaultGeminiModels.
func NewGemini(ctx context.Context, apiKey string, models ...string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("ai: gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: create gemini client: %w", err)
	}

	if len(models) == 0 {
		models = DefaultGeminiModels
	}
	return &Gemini{client: client, models: models}, nil
}

// Complete implements Completer. Quota and unknown-model errors fall through
// to the next configured model.
func (g *Gemini) Complete(ctx context.Context, prompt string, uc UserContext) (string, error) {
	full := BuildPrompt(prompt, uc)

	var lastErr error
	for _, model := range g.models {
		result, err := g.client.Models.GenerateContent(ctx, model, genai.Text(full), nil)
		if err != nil {
			if fallthroughError(err) {
				lastErr = err
				continue
			}
			return "", fmt.Errorf("ai: gemini %s: %w", model, err)
		}

		if result != nil && len(result.Candidates) > 0 &&
			result.Candidates[0].Content != nil && len(result.Candidates[0].Content.Parts) > 0 {
			if text := strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text); text != "" {
				return text, nil
			}
		}
		lastErr = ErrEmptyCompletion
	}

	if lastErr == nil {
		lastErr = ErrEmptyCompletion
	}
	return "", fmt.Errorf("ai: all gemini models failed: %w", lastErr)
}

func fallthroughError(err error) bool {
	s := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "exhausted", "404", "not found"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// BuildPrompt appends the event context to the rule's prompt.
func BuildPrompt(prompt string, uc UserContext) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(prompt))
	b.WriteString("\n\nReply to this Instagram ")
	if uc.Kind == "direct_message" {
		b.WriteString("direct message")
	} else {
		b.WriteString("comment")
	}
	if uc.Username != "" {
		b.WriteString(" from @")
		b.WriteString(uc.Username)
	}
	b.WriteString(". Answer with the reply text only, under 800 characters.\n\nMessage: ")
	b.WriteString(uc.Text)
	return b.String()
}
