package ai_test

import (
	"context"
	"strings"
	"testing"

	"github.com/xraph/herald/ai"
)

func TestBuildPrompt(t *testing.T) {
	got := ai.BuildPrompt("  You are a friendly shop assistant. ", ai.UserContext{
		Username: "alice",
		Text:     "how much is shipping?",
		Kind:     "comment",
	})

	for _, want := range []string{
		"You are a friendly shop assistant.",
		"Instagram comment from @alice",
		"Message: how much is shipping?",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt %q missing %q", got, want)
		}
	}

	dm := ai.BuildPrompt("p", ai.UserContext{Kind: "direct_message", Text: "hi"})
	if !strings.Contains(dm, "Instagram direct message.") {
		t.Errorf("unexpected direct message prompt %q", dm)
	}
}

func TestCompleterFunc(t *testing.T) {
	var c ai.Completer = ai.CompleterFunc(func(_ context.Context, prompt string, uc ai.UserContext) (string, error) {
		return prompt + ":" + uc.Text, nil
	})
	got, err := c.Complete(context.Background(), "p", ai.UserContext{Text: "t"})
	if err != nil || got != "p:t" {
		t.Fatalf("Complete = %q, %v", got, err)
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	if _, err := ai.NewGemini(context.Background(), ""); err == nil {
		t.Fatal("expected error without api key")
	}
}
