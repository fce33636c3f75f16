package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/matiasleandrokruk/convo/internal/domain/knowledge"
	"github.com/matiasleandrokruk/convo/internal/domain/prompt"
	"github.com/matiasleandrokruk/convo/internal/domain/schema"
	"github.com/matiasleandrokruk/convo/internal/domain/session"
	"github.com/matiasleandrokruk/convo/internal/infra/llm"
)

// ─── One-shot completion ───

// AskHandler answers single prompts with no session state.
type AskHandler struct {
	completer session.Completer
}

// NewAskHandler creates an AskHandler.
func NewAskHandler(c session.Completer) *AskHandler { return &AskHandler{completer: c} }

type askRequest struct {
	Prompt string `json:"prompt"`
}

// Ask handles POST /api/v1/ask.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	reply, err := session.Ask(r.Context(), h.completer, req.Prompt)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// ─── Prompt rendering ───

// PromptHandler renders chat prompt templates.
type PromptHandler struct {
	fallback *prompt.ChatTemplate
}

// NewPromptHandler uses fallback when a request carries no template.
func NewPromptHandler(fallback *prompt.ChatTemplate) *PromptHandler {
	if fallback == nil {
		fallback = prompt.Default()
	}
	return &PromptHandler{fallback: fallback}
}

type templateBody struct {
	Name     string `json:"name"`
	Messages []struct {
		Role     string `json:"role"`
		Template string `json:"template"`
	} `json:"messages"`
}

type renderRequest struct {
	Template  *templateBody     `json:"template,omitempty"`
	Variables map[string]string `json:"variables"`
}

type messageItem struct {
	Role    llm.Role `json:"role"`
	Content string   `json:"content"`
}

type renderResponse struct {
	Template string        `json:"template"`
	Messages []messageItem `json:"messages"`
	Text     string        `json:"text"`
}

// Render handles POST /api/v1/prompts/render.
func (h *PromptHandler) Render(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tmpl := h.fallback
	if req.Template != nil {
		msgs := make([]prompt.MessageTemplate, len(req.Template.Messages))
		for i, m := range req.Template.Messages {
			msgs[i] = prompt.MessageTemplate{Role: llm.Role(m.Role), Template: m.Template}
		}
		t, err := prompt.New(req.Template.Name, msgs...)
		if err != nil {
			var syntax *prompt.SyntaxError
			if errors.As(err, &syntax) {
				writeDomainError(w, err)
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		tmpl = t
	}

	rendered, err := tmpl.Render(req.Variables)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]messageItem, len(rendered))
	for i, m := range rendered {
		items[i] = messageItem{Role: m.Role, Content: m.Content}
	}
	writeJSON(w, http.StatusOK, renderResponse{
		Template: tmpl.Name,
		Messages: items,
		Text:     prompt.FormatMessages(rendered),
	})
}

// ─── Record validation ───

// RecordHandler validates records against a schema.
type RecordHandler struct {
	fallback *schema.Schema
}

// NewRecordHandler uses fallback when a request carries no schema.
func NewRecordHandler(fallback *schema.Schema) *RecordHandler {
	if fallback == nil {
		fallback = schema.Default()
	}
	return &RecordHandler{fallback: fallback}
}

type schemaBody struct {
	Name   string         `json:"name"`
	Fields []schema.Field `json:"fields"`
}

type validateRequest struct {
	Schema *schemaBody     `json:"schema,omitempty"`
	Record json.RawMessage `json:"record"`
}

// Validate handles POST /api/v1/records/validate.
func (h *RecordHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Record) == 0 {
		writeError(w, http.StatusBadRequest, "record is required")
		return
	}

	s := h.fallback
	if req.Schema != nil {
		built, err := schema.New(req.Schema.Name, req.Schema.Fields...)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s = built
	}

	record, err := schema.DecodeRecord(req.Record)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	obj, err := s.Validate(record)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// ─── Embeddings and documents ───

// Embedder is the subset of *knowledge.Embedder the API uses.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Ingestor is the subset of *knowledge.Ingestor the API uses.
type Ingestor interface {
	Ingest(ctx context.Context, url string) (*knowledge.IngestResult, error)
}

// KnowledgeHandler serves embeddings and web page loading. ingestor may be
// nil, in which case documents are loaded but not stored.
type KnowledgeHandler struct {
	embedder Embedder
	loader   knowledge.Loader
	ingestor Ingestor
}

// NewKnowledgeHandler creates a KnowledgeHandler.
func NewKnowledgeHandler(embedder Embedder, loader knowledge.Loader, ingestor Ingestor) *KnowledgeHandler {
	return &KnowledgeHandler{embedder: embedder, loader: loader, ingestor: ingestor}
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding  []float32 `json:"embedding"`
	Dimensions int       `json:"dimensions"`
}

// Embed handles POST /api/v1/embeddings.
func (h *KnowledgeHandler) Embed(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	vec, err := h.embedder.EmbedQuery(r.Context(), req.Text)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, embedResponse{Embedding: vec, Dimensions: len(vec)})
}

type documentRequest struct {
	URL string `json:"url"`
}

type documentResponse struct {
	Document *knowledge.Document `json:"document"`
	Chunks   int                 `json:"chunks,omitempty"`
	Embedded int                 `json:"embedded,omitempty"`
	Failed   int                 `json:"failed,omitempty"`
}

// Load handles POST /api/v1/documents.
func (h *KnowledgeHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.ingestor != nil {
		res, err := h.ingestor.Ingest(r.Context(), req.URL)
		if err != nil {
			writeLoadError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, documentResponse{
			Document: res.Document, Chunks: len(res.Chunks), Embedded: res.Embedded, Failed: res.Failed,
		})
		return
	}

	doc, err := h.loader.Load(r.Context(), req.URL)
	if err != nil {
		writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{Document: doc})
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("url must be an absolute http(s) URL")
	}
	return nil
}

// writeLoadError reports upstream fetch failures as 502; everything else
// goes through writeDomainError.
func writeLoadError(w http.ResponseWriter, err error) {
	var fe *knowledge.FetchError
	if errors.As(err, &fe) {
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "upstream_status": fe.StatusCode})
		return
	}
	writeDomainError(w, err)
}
