package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/convo/internal/domain/knowledge"
	"github.com/matiasleandrokruk/convo/internal/infra/llm"
)

func newToolsRouter(e Embedder, l knowledge.Loader, i Ingestor) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/prompts/render", NewPromptHandler(nil).Render)
	r.Post("/records/validate", NewRecordHandler(nil).Validate)
	kh := NewKnowledgeHandler(e, l, i)
	r.Post("/embeddings", kh.Embed)
	r.Post("/documents", kh.Load)
	return r
}

// ─── ask ───

func TestAskHandler(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Post("/ask", NewAskHandler(echoCompleter()).Ask)

	rr := do(t, r, http.MethodPost, "/ask", `{"prompt":"What is the capital of France?"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rr.Code, rr.Body)
	}
	if got := decode[map[string]string](t, rr)["reply"]; got != "echo: What is the capital of France?" {
		t.Errorf("reply = %q", got)
	}

	if rr := do(t, r, http.MethodPost, "/ask", `{"prompt":""}`, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("empty prompt status = %d; want 400", rr.Code)
	}

	r = chi.NewRouter()
	r.Post("/ask", NewAskHandler(failingCompleter(llm.KindAuth)).Ask)
	if rr := do(t, r, http.MethodPost, "/ask", `{"prompt":"x"}`, ""); rr.Code != http.StatusBadGateway {
		t.Errorf("provider failure status = %d; want 502", rr.Code)
	}
}

// ─── prompts ───

func TestPromptHandler_RenderDefault(t *testing.T) {
	t.Parallel()

	r := newToolsRouter(nil, nil, nil)
	rr := do(t, r, http.MethodPost, "/prompts/render", `{"variables":{"domain":"cricket","topic":"Dusra"}}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rr.Code, rr.Body)
	}
	got := decode[renderResponse](t, rr)
	if len(got.Messages) != 2 {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if got.Messages[0].Role != llm.RoleSystem || got.Messages[0].Content != "You are a helpful cricket expert" {
		t.Errorf("system message = %+v", got.Messages[0])
	}
	if got.Messages[1].Role != llm.RoleUser || got.Messages[1].Content != "Explain in simple terms,what is Dusra" {
		t.Errorf("user message = %+v", got.Messages[1])
	}
	if got.Text == "" || got.Template != "domain-expert" {
		t.Errorf("response = %+v", got)
	}
}

func TestPromptHandler_InlineTemplate(t *testing.T) {
	t.Parallel()

	r := newToolsRouter(nil, nil, nil)
	body := `{"template":{"name":"t","messages":[{"role":"human","template":"Hi {name} {{literal}}"}]},"variables":{"name":"Ada"}}`
	rr := do(t, r, http.MethodPost, "/prompts/render", body, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rr.Code, rr.Body)
	}
	if got := decode[renderResponse](t, rr).Messages[0].Content; got != "Hi Ada {literal}" {
		t.Errorf("content = %q", got)
	}
}

func TestPromptHandler_Errors(t *testing.T) {
	t.Parallel()

	r := newToolsRouter(nil, nil, nil)

	rr := do(t, r, http.MethodPost, "/prompts/render", `{"variables":{"domain":"x"}}`, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing variable status = %d; want 422", rr.Code)
	}
	if missing := decode[map[string]any](t, rr)["missing"]; missing == nil {
		t.Errorf("missing variable body lacks names: %s", rr.Body)
	}

	rr = do(t, r, http.MethodPost, "/prompts/render", `{"template":{"messages":[{"role":"user","template":"{oops"}]}}`, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("syntax error status = %d; want 422", rr.Code)
	}

	rr = do(t, r, http.MethodPost, "/prompts/render", `{"template":{"messages":[{"role":"robot","template":"x"}]}}`, "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown role status = %d; want 400", rr.Code)
	}

	rr = do(t, r, http.MethodPost, "/prompts/render", `not json`, "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d; want 400", rr.Code)
	}
}

// ─── records ───

func TestRecordHandler_ValidateDefault(t *testing.T) {
	t.Parallel()

	r := newToolsRouter(nil, nil, nil)
	rr := do(t, r, http.MethodPost, "/records/validate", `{"record":{"name":"nitish"}}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rr.Code, rr.Body)
	}
	got := decode[map[string]any](t, rr)
	values, _ := got["values"].(map[string]any)
	if got["schema"] != "Student" || values["name"] != "nitish" {
		t.Errorf("object = %v", got)
	}
}

func TestRecordHandler_ValidationError(t *testing.T) {
	t.Parallel()

	r := newToolsRouter(nil, nil, nil)
	rr := do(t, r, http.MethodPost, "/records/validate", `{"record":{"name":32}}`, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d; want 422", rr.Code)
	}
	details, _ := decode[map[string]any](t, rr)["details"].([]any)
	if len(details) != 1 {
		t.Errorf("details = %v; want one field error", details)
	}
}

func TestRecordHandler_InlineSchemaWithDefault(t *testing.T) {
	t.Parallel()

	r := newToolsRouter(nil, nil, nil)
	body := `{"schema":{"name":"Person","fields":[{"name":"age","type":"int","default":18}]},"record":{}}`
	rr := do(t, r, http.MethodPost, "/records/validate", body, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rr.Code, rr.Body)
	}
	values, _ := decode[map[string]any](t, rr)["values"].(map[string]any)
	if values["age"] != float64(18) {
		t.Errorf("age = %v; want default 18", values["age"])
	}
}

func TestRecordHandler_BadRequests(t *testing.T) {
	t.Parallel()

	r := newToolsRouter(nil, nil, nil)
	for _, body := range []string{`{}`, `{"record":[1,2]}`, `{"schema":{"name":"S","fields":[{"name":"x","type":"date"}]},"record":{}}`} {
		if rr := do(t, r, http.MethodPost, "/records/validate", body, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d; want 400", body, rr.Code)
		}
	}
}

// ─── embeddings and documents ───

func TestKnowledgeHandler_Embed(t *testing.T) {
	t.Parallel()

	r := newToolsRouter(stubEmbedder{vec: []float32{0.5, -1}}, nil, nil)
	rr := do(t, r, http.MethodPost, "/embeddings", `{"text":"hello"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decode[embedResponse](t, rr)
	if got.Dimensions != 2 || got.Embedding[1] != -1 {
		t.Errorf("response = %+v", got)
	}

	if rr := do(t, r, http.MethodPost, "/embeddings", `{"text":"  "}`, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("blank text status = %d; want 400", rr.Code)
	}
}

func TestKnowledgeHandler_EmbedProviderError(t *testing.T) {
	t.Parallel()

	pe := &llm.ProviderError{Provider: "anthropic", Kind: llm.KindUnsupported, Err: llm.ErrEmbeddingsUnsupported}
	r := newToolsRouter(stubEmbedder{err: pe}, nil, nil)
	if rr := do(t, r, http.MethodPost, "/embeddings", `{"text":"x"}`, ""); rr.Code != http.StatusBadGateway {
		t.Errorf("status = %d; want 502", rr.Code)
	}
}

func TestKnowledgeHandler_LoadWithoutStore(t *testing.T) {
	t.Parallel()

	r := newToolsRouter(nil, stubLoader{doc: &knowledge.Document{Content: "page text"}}, nil)
	rr := do(t, r, http.MethodPost, "/documents", `{"url":"https://example.com/a"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rr.Code, rr.Body)
	}
	got := decode[documentResponse](t, rr)
	if got.Document.Content != "page text" || got.Document.Metadata[knowledge.MetaSource] != "https://example.com/a" {
		t.Errorf("document = %+v", got.Document)
	}
}

func TestKnowledgeHandler_LoadWithStore(t *testing.T) {
	t.Parallel()

	res := &knowledge.IngestResult{
		Document: &knowledge.Document{ID: "doc-1", Content: "x"},
		Chunks:   make([]knowledge.StoredChunk, 3),
		Embedded: 2,
		Failed:   1,
	}
	r := newToolsRouter(nil, nil, stubIngestor{res: res})
	rr := do(t, r, http.MethodPost, "/documents", `{"url":"https://example.com"}`, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d; want 201", rr.Code)
	}
	got := decode[documentResponse](t, rr)
	if got.Chunks != 3 || got.Embedded != 2 || got.Failed != 1 || got.Document.ID != "doc-1" {
		t.Errorf("response = %+v", got)
	}
}

func TestKnowledgeHandler_LoadErrors(t *testing.T) {
	t.Parallel()

	fetchErr := &knowledge.FetchError{URL: "https://example.com", StatusCode: 404}
	r := newToolsRouter(nil, stubLoader{err: fetchErr}, nil)

	if rr := do(t, r, http.MethodPost, "/documents", `{"url":"https://example.com"}`, ""); rr.Code != http.StatusBadGateway {
		t.Errorf("upstream 404 status = %d; want 502", rr.Code)
	}
	for _, u := range []string{"", "ftp://example.com", "/relative", "https://"} {
		body := `{"url":"` + u + `"}`
		if rr := do(t, r, http.MethodPost, "/documents", body, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("url %q: status = %d; want 400", u, rr.Code)
		}
	}

	r = newToolsRouter(nil, stubLoader{err: errors.New("parse failure")}, nil)
	if rr := do(t, r, http.MethodPost, "/documents", `{"url":"https://example.com"}`, ""); rr.Code != http.StatusInternalServerError {
		t.Errorf("other error status = %d; want 500", rr.Code)
	}
}
