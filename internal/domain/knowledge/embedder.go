package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/matiasleandrokruk/convo/internal/infra/llm"
)

const (
	embedMaxAttempts = 3
	embedBaseDelay   = 100 * time.Millisecond
)

// Embedder turns text into vectors through an LLMProvider.
// Batch calls are retried with exponential backoff (100ms, 200ms, ...).
type Embedder struct {
	Provider llm.LLMProvider
	// Model overrides the provider's embedding model when non-empty.
	Model string

	MaxAttempts int
	BaseDelay   time.Duration
}

// NewEmbedder returns an Embedder with the default retry policy.
func NewEmbedder(provider llm.LLMProvider, model string) *Embedder {
	return &Embedder{
		Provider:    provider,
		Model:       model,
		MaxAttempts: embedMaxAttempts,
		BaseDelay:   embedBaseDelay,
	}
}

// ModelName is the embedding model recorded alongside stored vectors.
func (e *Embedder) ModelName() string {
	if e.Model != "" {
		return e.Model
	}
	return e.Provider.ModelInfo().EmbedModel
}

// EmbedQuery embeds a single text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in order, returning one vector per text.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	attempts := e.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := e.BaseDelay

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}

		resp, err := e.Provider.Embed(ctx, llm.EmbedRequest{Model: e.Model, Texts: texts})
		if err == nil {
			if len(resp.Embeddings) != len(texts) {
				return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(resp.Embeddings), len(texts))
			}
			return resp.Embeddings, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if pe, ok := llm.AsProviderError(err); ok && pe.Kind == llm.KindUnsupported {
			break
		}
	}
	return nil, fmt.Errorf("embed: %w", lastErr)
}
