// Package mcpserver exposes the convo single-call tools over the Model
// Context Protocol so MCP clients can drive them on stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/matiasleandrokruk/convo/internal/domain/knowledge"
	"github.com/matiasleandrokruk/convo/internal/domain/prompt"
	"github.com/matiasleandrokruk/convo/internal/domain/schema"
	"github.com/matiasleandrokruk/convo/internal/domain/session"
	"github.com/matiasleandrokruk/convo/internal/version"
)

// Embedder embeds one text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Deps are the services behind the tools. Template and Schema fall back to
// the built-in defaults.
type Deps struct {
	Completer session.Completer
	Embedder  Embedder
	Loader    knowledge.Loader
	Template  *prompt.ChatTemplate
	Schema    *schema.Schema
	Logger    *slog.Logger
}

// ─── tool inputs and outputs ───

type AskInput struct {
	Prompt string `json:"prompt" jsonschema:"the prompt to send to the model"`
}

type AskOutput struct {
	Reply string `json:"reply"`
}

type EmbedInput struct {
	Text string `json:"text" jsonschema:"the text to embed"`
}

type EmbedOutput struct {
	Embedding  []float32 `json:"embedding"`
	Dimensions int       `json:"dimensions"`
}

type RenderInput struct {
	Variables map[string]string `json:"variables" jsonschema:"values for the template placeholders"`
}

type RenderOutput struct {
	Template string `json:"template"`
	Text     string `json:"text"`
}

type ValidateInput struct {
	Record map[string]any `json:"record" jsonschema:"the record to validate"`
}

type ValidateOutput struct {
	Schema string         `json:"schema"`
	Values map[string]any `json:"values"`
}

type LoadInput struct {
	URL string `json:"url" jsonschema:"absolute http(s) URL of the page"`
}

type LoadOutput struct {
	Content  string            `json:"page_content"`
	Metadata map[string]string `json:"metadata"`
}

// New builds an MCP server with every tool registered.
func New(deps Deps) *mcp.Server {
	t := &tools{deps: deps}
	if t.deps.Template == nil {
		t.deps.Template = prompt.Default()
	}
	if t.deps.Schema == nil {
		t.deps.Schema = schema.Default()
	}
	if t.deps.Logger == nil {
		t.deps.Logger = slog.Default()
	}

	server := mcp.NewServer(&mcp.Implementation{Name: "convo", Version: version.Version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Send one prompt to the configured model and return its reply. No history is kept.",
	}, t.ask)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "embed",
		Description: "Return the embedding vector for a text.",
	}, t.embed)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "render_prompt",
		Description: fmt.Sprintf("Render the %q chat prompt template. Variables: %s.", t.deps.Template.Name, strings.Join(t.deps.Template.InputVariables(), ", ")),
	}, t.render)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_record",
		Description: fmt.Sprintf("Validate a record against the %q schema, applying defaults.", t.deps.Schema.Name),
	}, t.validate)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "load_page",
		Description: "Fetch a web page and return its visible text and metadata.",
	}, t.load)

	return server
}

// Serve runs the server on stdin/stdout until the client disconnects or ctx ends.
func Serve(ctx context.Context, deps Deps) error {
	return New(deps).Run(ctx, &mcp.StdioTransport{})
}

type tools struct {
	deps Deps
}

func (t *tools) ask(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, AskOutput, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, AskOutput{}, errors.New("prompt is required")
	}
	if t.deps.Completer == nil {
		return nil, AskOutput{}, errors.New("no completion provider configured")
	}
	reply, err := session.Ask(ctx, t.deps.Completer, in.Prompt)
	if err != nil {
		t.deps.Logger.Warn("mcp ask failed", "error", err)
		return nil, AskOutput{}, err
	}
	return textResult(reply), AskOutput{Reply: reply}, nil
}

func (t *tools) embed(ctx context.Context, _ *mcp.CallToolRequest, in EmbedInput) (*mcp.CallToolResult, EmbedOutput, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, EmbedOutput{}, errors.New("text is required")
	}
	if t.deps.Embedder == nil {
		return nil, EmbedOutput{}, errors.New("no embedding provider configured")
	}
	vec, err := t.deps.Embedder.EmbedQuery(ctx, in.Text)
	if err != nil {
		return nil, EmbedOutput{}, err
	}
	out := EmbedOutput{Embedding: vec, Dimensions: len(vec)}
	return jsonResult(out), out, nil
}

func (t *tools) render(_ context.Context, _ *mcp.CallToolRequest, in RenderInput) (*mcp.CallToolResult, RenderOutput, error) {
	msgs, err := t.deps.Template.Render(in.Variables)
	if err != nil {
		return nil, RenderOutput{}, err
	}
	out := RenderOutput{Template: t.deps.Template.Name, Text: prompt.FormatMessages(msgs)}
	return textResult(out.Text), out, nil
}

func (t *tools) validate(_ context.Context, _ *mcp.CallToolRequest, in ValidateInput) (*mcp.CallToolResult, ValidateOutput, error) {
	if in.Record == nil {
		in.Record = map[string]any{}
	}
	obj, err := t.deps.Schema.Validate(in.Record)
	if err != nil {
		return nil, ValidateOutput{}, err
	}
	out := ValidateOutput{Schema: obj.Schema, Values: obj.Values}
	return jsonResult(out), out, nil
}

func (t *tools) load(ctx context.Context, _ *mcp.CallToolRequest, in LoadInput) (*mcp.CallToolResult, LoadOutput, error) {
	if !strings.HasPrefix(in.URL, "http://") && !strings.HasPrefix(in.URL, "https://") {
		return nil, LoadOutput{}, errors.New("url must be an absolute http(s) URL")
	}
	if t.deps.Loader == nil {
		return nil, LoadOutput{}, errors.New("no page loader configured")
	}
	doc, err := t.deps.Loader.Load(ctx, in.URL)
	if err != nil {
		return nil, LoadOutput{}, err
	}
	out := LoadOutput{Content: doc.Content, Metadata: doc.Metadata}
	return textResult(doc.Content), out, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func jsonResult(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return textResult(fmt.Sprint(v))
	}
	return textResult(string(b))
}
