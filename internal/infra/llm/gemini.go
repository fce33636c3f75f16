// Package llm: Gemini REST adapter.
// Endpoints used (v1beta):
//   - POST /v1beta/models/{model}:generateContent
//   - POST /v1beta/models/{model}:embedContent
//   - GET  /v1beta/models/{model} : health check
package llm

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	providerGemini = "gemini"

	// DefaultGeminiBaseURL is the public Generative Language API endpoint.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
)

// GeminiProvider implements LLMProvider against the Gemini API.
type GeminiProvider struct {
	chatModel  string
	embedModel string
	http       jsonClient
}

// NewGeminiProvider creates a GeminiProvider authenticated with apiKey.
func NewGeminiProvider(baseURL, apiKey, chatModel, embedModel string, timeout time.Duration) *GeminiProvider {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	c := newJSONClient(providerGemini, strings.TrimRight(baseURL, "/"), timeout)
	c.headers["x-goog-api-key"] = apiKey
	return &GeminiProvider{
		chatModel:  trimModelPrefix(chatModel),
		embedModel: trimModelPrefix(embedModel),
		http:       c,
	}
}

// ─── internal Gemini JSON types ──────────────────────────────────────────────

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiGenerateRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// ─── LLMProvider implementation ─────────────────────────────────────────────

// ChatCompletion calls generateContent. Assistant turns are sent with the
// Gemini role "model"; leading system messages become systemInstruction.
func (p *GeminiProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := trimModelPrefix(req.Model)
	if model == "" {
		model = p.chatModel
	}

	system, rest := SplitSystem(req.Messages)
	body := geminiGenerateRequest{Contents: make([]geminiContent, 0, len(rest))}
	if system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	for _, m := range rest {
		body.Contents = append(body.Contents, geminiContent{
			Role:  geminiRole(m.Role),
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	if req.Temperature != 0 || req.MaxTokens != 0 {
		body.GenerationConfig = &geminiGenerationConfig{Temperature: req.Temperature, MaxOutputTokens: req.MaxTokens}
	}

	path := "/v1beta/models/" + model + ":generateContent"
	var out geminiGenerateResponse
	if err := p.http.post(ctx, path, body, &out); err != nil {
		return nil, err
	}
	if len(out.Candidates) == 0 {
		return nil, malformedError(providerGemini, "POST "+path, errors.New("no candidates in response"))
	}

	cand := out.Candidates[0]
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		b.WriteString(part.Text)
	}
	return &ChatResponse{
		Content:    b.String(),
		StopReason: cand.FinishReason,
		Tokens:     out.UsageMetadata.TotalTokenCount,
	}, nil
}

// Embed calls embedContent once per text.
func (p *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	if len(req.Texts) == 0 {
		return &EmbedResponse{Embeddings: [][]float32{}}, nil
	}
	model := trimModelPrefix(req.Model)
	if model == "" {
		model = p.embedModel
	}

	path := "/v1beta/models/" + model + ":embedContent"
	embeddings := make([][]float32, 0, len(req.Texts))
	for _, text := range req.Texts {
		var out geminiEmbedResponse
		err := p.http.post(ctx, path, geminiEmbedRequest{
			Model:   "models/" + model,
			Content: geminiContent{Parts: []geminiPart{{Text: text}}},
		}, &out)
		if err != nil {
			return nil, err
		}
		if len(out.Embedding.Values) == 0 {
			return nil, malformedError(providerGemini, "POST "+path, errors.New("empty embedding"))
		}
		embeddings = append(embeddings, out.Embedding.Values)
	}
	return &EmbedResponse{Embeddings: embeddings}, nil
}

// ModelInfo returns static metadata for this provider/model.
func (p *GeminiProvider) ModelInfo() ModelMeta {
	return ModelMeta{
		ID:         p.chatModel,
		EmbedModel: p.embedModel,
		Provider:   providerGemini,
		MaxTokens:  1048576,
	}
}

// HealthCheck fetches the chat model resource.
func (p *GeminiProvider) HealthCheck(ctx context.Context) error {
	return p.http.get(ctx, "/v1beta/models/"+p.chatModel, nil)
}

func geminiRole(r Role) string {
	if r == RoleAssistant {
		return "model"
	}
	return "user"
}

// trimModelPrefix accepts both "embedding-001" and "models/embedding-001".
func trimModelPrefix(model string) string {
	return strings.TrimPrefix(model, "models/")
}
