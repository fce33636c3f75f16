// Package llm: Anthropic Messages API adapter built on anthropic-sdk-go.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	providerAnthropic = "anthropic"

	// defaultAnthropicMaxTokens is required by the Messages API.
	defaultAnthropicMaxTokens = 1024
)

// ErrEmbeddingsUnsupported is wrapped when a provider has no embedding endpoint.
var ErrEmbeddingsUnsupported = errors.New("embeddings not supported by provider")

// AnthropicProvider implements LLMProvider for Claude models.
// Embed always fails: the Messages API exposes no embedding endpoint.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
	hasKey bool
}

// NewAnthropicProvider creates an AnthropicProvider. baseURL is optional and
// used by tests; SDK retries are disabled so a failure surfaces on the first
// attempt.
func NewAnthropicProvider(baseURL, apiKey, model string, timeout time.Duration) *AnthropicProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
		hasKey: apiKey != "",
	}
}

// ChatCompletion calls POST /v1/messages.
func (p *AnthropicProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	system, rest := SplitSystem(req.Messages)
	msgs := make([]anthropic.MessageParam, 0, len(rest))
	for _, m := range rest {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
			continue
		}
		msgs = append(msgs, anthropic.NewUserMessage(block))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.classify(ctx, err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return &ChatResponse{
		Content:    b.String(),
		StopReason: string(msg.StopReason),
		Tokens:     int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}, nil
}

// Embed is not available on the Messages API.
func (p *AnthropicProvider) Embed(_ context.Context, _ EmbedRequest) (*EmbedResponse, error) {
	return nil, &ProviderError{Provider: providerAnthropic, Kind: KindUnsupported, Err: ErrEmbeddingsUnsupported}
}

// ModelInfo returns static metadata for this provider/model.
func (p *AnthropicProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: p.model, Provider: providerAnthropic, MaxTokens: 200000}
}

// HealthCheck only verifies that credentials are configured; the API has no
// free unauthenticated check.
func (p *AnthropicProvider) HealthCheck(_ context.Context) error {
	if !p.hasKey {
		return &ProviderError{Provider: providerAnthropic, Kind: KindAuth, Err: errors.New("ANTHROPIC_API_KEY not set")}
	}
	return nil
}

func (p *AnthropicProvider) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   providerAnthropic,
			Kind:       KindFromStatus(apiErr.StatusCode),
			StatusCode: apiErr.StatusCode,
			Err:        err,
		}
	}
	return networkError(providerAnthropic, "POST /v1/messages", err)
}
