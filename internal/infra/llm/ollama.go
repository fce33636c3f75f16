// Package llm: Ollama HTTP adapter.
// OllamaProvider calls the local Ollama REST API.
// Endpoints used:
//   - POST /api/embeddings : single text embedding
//   - POST /api/chat       : non-streaming chat completion
//   - GET  /api/tags       : health check (lists available models)
package llm

import (
	"context"
	"errors"
	"time"
)

const providerOllama = "ollama"

// OllamaProvider implements LLMProvider against a running Ollama instance.
type OllamaProvider struct {
	chatModel  string
	embedModel string
	http       jsonClient
}

// NewOllamaProvider creates an OllamaProvider. A zero timeout uses DefaultTimeout.
func NewOllamaProvider(baseURL, chatModel, embedModel string, timeout time.Duration) *OllamaProvider {
	return &OllamaProvider{
		chatModel:  chatModel,
		embedModel: embedModel,
		http:       newJSONClient(providerOllama, baseURL, timeout),
	}
}

// ─── internal Ollama JSON types ──────────────────────────────────────────────

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	DoneReason      string            `json:"done_reason"`
	Done            bool              `json:"done"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
}

// ─── LLMProvider implementation ─────────────────────────────────────────────

// Embed computes embeddings for each text via POST /api/embeddings (one call per text).
// Ollama does not support batch embeddings in a single call.
func (p *OllamaProvider) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	if len(req.Texts) == 0 {
		return &EmbedResponse{Embeddings: [][]float32{}}, nil
	}

	model := req.Model
	if model == "" {
		model = p.embedModel
	}

	embeddings := make([][]float32, 0, len(req.Texts))
	for _, text := range req.Texts {
		var out ollamaEmbedResponse
		if err := p.http.post(ctx, "/api/embeddings", ollamaEmbedRequest{Model: model, Prompt: text}, &out); err != nil {
			return nil, err
		}
		if len(out.Embedding) == 0 {
			return nil, malformedError(providerOllama, "POST /api/embeddings", errors.New("empty embedding"))
		}
		embeddings = append(embeddings, out.Embedding)
	}
	return &EmbedResponse{Embeddings: embeddings}, nil
}

// ChatCompletion performs a non-streaming chat via POST /api/chat.
func (p *OllamaProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.chatModel
	}

	msgs := make([]ollamaChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = ollamaChatMessage{Role: string(m.Role), Content: m.Content}
	}

	var out ollamaChatResponse
	err := p.http.post(ctx, "/api/chat", ollamaChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   false,
		Options:  buildChatOptions(req),
	}, &out)
	if err != nil {
		return nil, err
	}
	if !out.Done && out.Message.Role == "" {
		return nil, malformedError(providerOllama, "POST /api/chat", errors.New("response carries no message"))
	}
	return &ChatResponse{
		Content:    out.Message.Content,
		StopReason: out.DoneReason,
		Tokens:     out.PromptEvalCount + out.EvalCount,
	}, nil
}

// buildChatOptions converts ChatRequest fields into Ollama options map.
func buildChatOptions(req ChatRequest) map[string]any {
	opts := map[string]any{}
	if req.Temperature != 0 {
		opts["temperature"] = req.Temperature
	}
	if req.MaxTokens != 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

// ModelInfo returns static metadata for this provider/model.
func (p *OllamaProvider) ModelInfo() ModelMeta {
	return ModelMeta{
		ID:         p.chatModel,
		EmbedModel: p.embedModel,
		Provider:   providerOllama,
		MaxTokens:  4096,
	}
}

// HealthCheck calls GET /api/tags: returns nil if Ollama is reachable.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	return p.http.get(ctx, "/api/tags", nil)
}
