package session

import (
	"context"
	"errors"
	"testing"

	"github.com/matiasleandrokruk/convo/internal/infra/llm"
)

type fakeProvider struct {
	got  llm.ChatRequest
	resp *llm.ChatResponse
	err  error
}

func (f *fakeProvider) ChatCompletion(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.got = req
	return f.resp, f.err
}
func (f *fakeProvider) Embed(context.Context, llm.EmbedRequest) (*llm.EmbedResponse, error) {
	return nil, errors.New("unused")
}
func (f *fakeProvider) ModelInfo() llm.ModelMeta          { return llm.ModelMeta{Provider: "fake"} }
func (f *fakeProvider) HealthCheck(context.Context) error { return nil }

func TestProviderCompleter_PrependsSystemPromptOnlyToRequest(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{resp: &llm.ChatResponse{Content: "pong"}}
	c := ProviderCompleter{Provider: fp, Model: "m", SystemPrompt: "be brief", MaxTokens: 64}

	reply, err := c.Complete(context.Background(), []Turn{{RoleUser, "ping"}, {RoleAssistant, "pong"}, {RoleUser, "again"}})
	if err != nil || reply != "pong" {
		t.Fatalf("Complete = (%q, %v)", reply, err)
	}
	msgs := fp.got.Messages
	if len(msgs) != 4 || msgs[0].Role != llm.RoleSystem || msgs[2].Role != llm.RoleAssistant || msgs[3].Content != "again" {
		t.Errorf("unexpected request messages: %+v", msgs)
	}
	if fp.got.Model != "m" || fp.got.MaxTokens != 64 {
		t.Errorf("unexpected request: %+v", fp.got)
	}
}

func TestProviderCompleter_TagsForeignErrorsWithProvider(t *testing.T) {
	t.Parallel()

	c := ProviderCompleter{Provider: &fakeProvider{err: errors.New("dial tcp: refused")}}
	_, err := c.Complete(context.Background(), []Turn{{RoleUser, "hi"}})
	pe, ok := llm.AsProviderError(err)
	if !ok || pe.Provider != "fake" || pe.Kind != llm.KindNetwork {
		t.Fatalf("expected fake/network ProviderError, got %v", err)
	}
}
