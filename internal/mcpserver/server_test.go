package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/matiasleandrokruk/convo/internal/domain/knowledge"
	"github.com/matiasleandrokruk/convo/internal/domain/session"
	"github.com/matiasleandrokruk/convo/internal/infra/llm"
)

type stubEmbedder struct{ vec []float32 }

func (s stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) { return s.vec, nil }

type stubLoader struct{}

func (stubLoader) Load(_ context.Context, url string) (*knowledge.Document, error) {
	return &knowledge.Document{Content: "page body", Metadata: map[string]string{knowledge.MetaSource: url}}, nil
}

func testDeps() Deps {
	return Deps{
		Completer: session.CompleterFunc(func(_ context.Context, turns []session.Turn) (string, error) {
			return "reply to " + turns[0].Content, nil
		}),
		Embedder: stubEmbedder{vec: []float32{1, 2, 3}},
		Loader:   stubLoader{},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// connect starts the server on in-memory transports and returns a client session.
func connect(t *testing.T, deps Deps) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	ct, st := mcp.NewInMemoryTransports()
	ss, err := New(deps).Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

// call returns the first text content and whether the call failed, either
// as a protocol error or as a tool error result.
func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return err.Error(), true
	}
	var text string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			text = tc.Text
			break
		}
	}
	return text, res.IsError
}

func TestListTools(t *testing.T) {
	t.Parallel()

	cs := connect(t, testDeps())
	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := "ask,embed,load_page,render_prompt,validate_record"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("tools = %s; want %s", got, want)
	}
}

func TestAskTool(t *testing.T) {
	t.Parallel()

	cs := connect(t, testDeps())
	text, failed := call(t, cs, "ask", map[string]any{"prompt": "What is the capital of France?"})
	if failed || text != "reply to What is the capital of France?" {
		t.Errorf("ask = %q (failed=%v)", text, failed)
	}

	if _, failed := call(t, cs, "ask", map[string]any{"prompt": "  "}); !failed {
		t.Error("blank prompt did not fail")
	}
}

func TestAskTool_ProviderError(t *testing.T) {
	t.Parallel()

	deps := testDeps()
	deps.Completer = session.CompleterFunc(func(context.Context, []session.Turn) (string, error) {
		return "", &llm.ProviderError{Provider: "ollama", Kind: llm.KindNetwork, Err: errors.New("connection refused")}
	})
	cs := connect(t, deps)

	text, failed := call(t, cs, "ask", map[string]any{"prompt": "hi"})
	if !failed || !strings.Contains(text, "connection refused") {
		t.Errorf("ask = %q (failed=%v); want provider failure", text, failed)
	}
}

func TestEmbedTool(t *testing.T) {
	t.Parallel()

	cs := connect(t, testDeps())
	text, failed := call(t, cs, "embed", map[string]any{"text": "hello"})
	if failed {
		t.Fatalf("embed failed: %s", text)
	}
	var out EmbedOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	if out.Dimensions != 3 || out.Embedding[2] != 3 {
		t.Errorf("embed = %+v", out)
	}
}

func TestRenderPromptTool(t *testing.T) {
	t.Parallel()

	cs := connect(t, testDeps())
	text, failed := call(t, cs, "render_prompt", map[string]any{
		"variables": map[string]any{"domain": "cricket", "topic": "Dusra"},
	})
	want := "System: You are a helpful cricket expert\nHuman: Explain in simple terms,what is Dusra\n"
	if failed || text != want {
		t.Errorf("render_prompt = %q (failed=%v); want %q", text, failed, want)
	}

	text, failed = call(t, cs, "render_prompt", map[string]any{"variables": map[string]any{"domain": "x"}})
	if !failed || !strings.Contains(text, "topic") {
		t.Errorf("missing variable = %q (failed=%v); want error naming topic", text, failed)
	}
}

func TestValidateRecordTool(t *testing.T) {
	t.Parallel()

	cs := connect(t, testDeps())
	text, failed := call(t, cs, "validate_record", map[string]any{"record": map[string]any{"name": "nitish"}})
	if failed {
		t.Fatalf("validate_record failed: %s", text)
	}
	var out ValidateOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	if out.Schema != "Student" || out.Values["name"] != "nitish" {
		t.Errorf("validate_record = %+v", out)
	}

	text, failed = call(t, cs, "validate_record", map[string]any{"record": map[string]any{"name": 32}})
	if !failed || !strings.Contains(text, "name") {
		t.Errorf("invalid record = %q (failed=%v); want validation error", text, failed)
	}
}

func TestLoadPageTool(t *testing.T) {
	t.Parallel()

	cs := connect(t, testDeps())
	text, failed := call(t, cs, "load_page", map[string]any{"url": "https://example.com"})
	if failed || text != "page body" {
		t.Errorf("load_page = %q (failed=%v)", text, failed)
	}

	if _, failed := call(t, cs, "load_page", map[string]any{"url": "file:///etc/passwd"}); !failed {
		t.Error("non-http url did not fail")
	}
}

func TestTools_MissingDependencies(t *testing.T) {
	t.Parallel()

	cs := connect(t, Deps{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	for name, args := range map[string]map[string]any{
		"ask":       {"prompt": "hi"},
		"embed":     {"text": "hi"},
		"load_page": {"url": "https://example.com"},
	} {
		if text, failed := call(t, cs, name, args); !failed || !strings.Contains(text, "configured") {
			t.Errorf("%s without deps = %q (failed=%v)", name, text, failed)
		}
	}
}
