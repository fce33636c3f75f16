package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/matiasleandrokruk/convo/internal/infra/llm"
	"github.com/matiasleandrokruk/convo/internal/infra/sqlite"
)

// fakeEmbedProvider returns vectors derived from text length and fails the
// first failFirst calls, or every call whose text contains failOn.
type fakeEmbedProvider struct {
	calls     atomic.Int32
	failFirst int32
	failOn    string
	err       error
}

func (f *fakeEmbedProvider) ChatCompletion(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEmbedProvider) Embed(_ context.Context, req llm.EmbedRequest) (*llm.EmbedResponse, error) {
	n := f.calls.Add(1)
	if n <= f.failFirst {
		return nil, f.failure()
	}
	out := make([][]float32, len(req.Texts))
	for i, text := range req.Texts {
		if f.failOn != "" && strings.Contains(text, f.failOn) {
			return nil, f.failure()
		}
		out[i] = []float32{float32(len(text)), 1}
	}
	return &llm.EmbedResponse{Embeddings: out}, nil
}

func (f *fakeEmbedProvider) failure() error {
	if f.err != nil {
		return f.err
	}
	return &llm.ProviderError{Provider: "fake", Kind: llm.KindServer, StatusCode: 500, Err: errors.New("boom")}
}

func (f *fakeEmbedProvider) ModelInfo() llm.ModelMeta {
	return llm.ModelMeta{ID: "fake-chat", EmbedModel: "fake-embed", Provider: "fake"}
}

func (f *fakeEmbedProvider) HealthCheck(context.Context) error { return nil }

func mustOpenStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := sqlite.Open(sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), db
}

func fastEmbedder(p llm.LLMProvider) *Embedder {
	e := NewEmbedder(p, "")
	e.BaseDelay = 0
	return e
}
