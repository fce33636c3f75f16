package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/convo/internal/domain/knowledge"
	"github.com/matiasleandrokruk/convo/internal/domain/session"
	"github.com/matiasleandrokruk/convo/internal/infra/config"
	"github.com/matiasleandrokruk/convo/internal/infra/llm"
	"github.com/matiasleandrokruk/convo/internal/infra/sqlite"
)

// Provider keys accepted by LLM_PROVIDER and --provider.
const (
	providerOllama    = "ollama"
	providerGemini    = "gemini"
	providerAnthropic = "anthropic"
)

// llmFlags are the per-invocation overrides shared by every command that
// talks to a provider.
type llmFlags struct {
	provider string
	model    string
}

// register adds --provider, and --model when modelUsage is non-empty.
func (f *llmFlags) register(cmd *cobra.Command, modelUsage string) {
	cmd.Flags().StringVar(&f.provider, "provider", "", "LLM provider: ollama, gemini or anthropic (default $LLM_PROVIDER)")
	if modelUsage != "" {
		cmd.Flags().StringVar(&f.model, "model", "", modelUsage)
	}
}

// newRouter registers every provider. Providers are cheap to build; a missing
// API key only surfaces as an auth ProviderError when the provider is called.
func newRouter(cfg config.Config) *llm.Router {
	return llm.NewRouter(map[string]llm.LLMProvider{
		providerOllama:    llm.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaChatModel, cfg.OllamaModel, cfg.LLMTimeout),
		providerGemini:    llm.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEmbedModel, cfg.LLMTimeout),
		providerAnthropic: llm.NewAnthropicProvider("", cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.LLMTimeout),
	}, cfg.LLMProvider)
}

func (f *llmFlags) provide(ctx context.Context, cfg config.Config) (llm.LLMProvider, error) {
	p, err := newRouter(cfg).RouteNamed(ctx, f.provider)
	if err != nil {
		return nil, fmt.Errorf("select provider: %w", err)
	}
	return p, nil
}

// completer resolves the chat completer; --model overrides the chat model.
func (f *llmFlags) completer(ctx context.Context, cfg config.Config) (session.ProviderCompleter, error) {
	p, err := f.provide(ctx, cfg)
	if err != nil {
		return session.ProviderCompleter{}, err
	}
	return session.ProviderCompleter{
		Provider:     p,
		Model:        f.model,
		SystemPrompt: cfg.ChatSystemPrompt,
	}, nil
}

// embedder resolves the embedding pipeline; --model overrides the embedding model.
func (f *llmFlags) embedder(ctx context.Context, cfg config.Config) (*knowledge.Embedder, error) {
	p, err := f.provide(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return knowledge.NewEmbedder(p, f.model), nil
}

// openStore opens (and migrates) the document database at path.
func openStore(path string) (*sql.DB, *knowledge.Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open document store: %w", err)
	}
	return db, knowledge.NewStore(db), nil
}
