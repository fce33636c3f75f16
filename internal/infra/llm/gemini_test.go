package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeminiProvider_ChatCompletion_MapsRolesAndSystem(t *testing.T) {
	t.Parallel()

	var got geminiGenerateRequest
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"New "},{"text":"Delhi"}]},"finishReason":"STOP"}],"usageMetadata":{"totalTokenCount":12}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "secret", "models/gemini-2.5-flash", "embedding-001", 0)
	resp, err := p.ChatCompletion(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "capital of india?"},
			{Role: RoleAssistant, Content: "New Delhi"},
			{Role: RoleUser, Content: "again?"},
		},
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if resp.Content != "New Delhi" || resp.StopReason != "STOP" || resp.Tokens != 12 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if gotPath != "/v1beta/models/gemini-2.5-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("api key header = %q", gotKey)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "be brief" {
		t.Errorf("system instruction not set: %+v", got.SystemInstruction)
	}
	if len(got.Contents) != 3 || got.Contents[1].Role != "model" || got.Contents[2].Role != "user" {
		t.Errorf("unexpected contents: %+v", got.Contents)
	}
	if got.GenerationConfig != nil {
		t.Errorf("generationConfig must be omitted when unset")
	}
}

func TestGeminiProvider_ChatCompletion_NoCandidates_IsMalformed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "k", "gemini-2.5-flash", "embedding-001", 0)
	_, err := p.ChatCompletion(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	pe, ok := AsProviderError(err)
	if !ok || pe.Kind != KindMalformed || pe.Provider != "gemini" {
		t.Fatalf("expected malformed gemini error, got %v", err)
	}
}

func TestGeminiProvider_ChatCompletion_Forbidden_IsAuth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "bad", "gemini-2.5-flash", "embedding-001", 0)
	_, err := p.ChatCompletion(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	pe, ok := AsProviderError(err)
	if !ok || pe.Kind != KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestGeminiProvider_Embed(t *testing.T) {
	t.Parallel()

	var got geminiEmbedRequest
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"embedding":{"values":[0.25,-0.5]}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "k", "gemini-2.5-flash", "models/embedding-001", 0)
	resp, err := p.Embed(context.Background(), EmbedRequest{Texts: []string{"Delhi is the capital of India."}})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(resp.Embeddings) != 1 || resp.Embeddings[0][1] != -0.5 {
		t.Errorf("unexpected embeddings: %v", resp.Embeddings)
	}
	if gotPath != "/v1beta/models/embedding-001:embedContent" || got.Model != "models/embedding-001" {
		t.Errorf("unexpected request: path=%q model=%q", gotPath, got.Model)
	}
}

func TestGeminiProvider_ModelInfo(t *testing.T) {
	t.Parallel()

	meta := NewGeminiProvider("", "k", "gemini-2.5-flash", "embedding-001", 0).ModelInfo()
	if meta.Provider != "gemini" || meta.ID != "gemini-2.5-flash" || meta.EmbedModel != "embedding-001" {
		t.Errorf("unexpected meta: %+v", meta)
	}
}
