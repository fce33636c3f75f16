package session

import (
	"context"

	"github.com/matiasleandrokruk/convo/internal/infra/llm"
)

// Completer produces the next assistant reply for a transcript.
type Completer interface {
	Complete(ctx context.Context, turns []Turn) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, turns []Turn) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, turns []Turn) (string, error) {
	return f(ctx, turns)
}

// ProviderCompleter sends the transcript to an llm.LLMProvider. The optional
// system prompt is prepended to the request only, never to the transcript.
type ProviderCompleter struct {
	Provider     llm.LLMProvider
	Model        string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
}

// Complete forwards the whole transcript in order. Failures that are not
// already a *llm.ProviderError are tagged with the provider's name.
func (c ProviderCompleter) Complete(ctx context.Context, turns []Turn) (string, error) {
	msgs := Messages(turns)
	if c.SystemPrompt != "" {
		msgs = append([]llm.Message{{Role: llm.RoleSystem, Content: c.SystemPrompt}}, msgs...)
	}

	resp, err := c.Provider.ChatCompletion(ctx, llm.ChatRequest{
		Model:       c.Model,
		Messages:    msgs,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if _, ok := llm.AsProviderError(err); ok {
			return "", err
		}
		return "", &llm.ProviderError{Provider: c.Provider.ModelInfo().Provider, Kind: llm.KindNetwork, Err: err}
	}
	return resp.Content, nil
}
