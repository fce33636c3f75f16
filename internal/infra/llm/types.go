// Package llm defines the model-agnostic LLM provider abstraction.
// All types here are shared between the provider interface and adapters.
package llm

// Role tags a message with its author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single turn in a conversation (role + content).
type Message struct {
	Role    Role
	Content string
}

// ChatRequest is the input for a non-streaming chat completion.
type ChatRequest struct {
	// Model overrides the provider default when non-empty.
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// ChatResponse is the output from a non-streaming chat completion.
type ChatResponse struct {
	Content    string // The assistant message text.
	StopReason string // Provider-specific, e.g. "stop", "STOP", "end_turn".
	Tokens     int    // Total tokens consumed (prompt + completion), 0 if unknown.
}

// EmbedRequest is the input for a batch embedding call.
type EmbedRequest struct {
	// Model overrides the provider default when non-empty.
	Model string
	Texts []string
}

// EmbedResponse is the output from a batch embedding call.
// Embeddings[i] corresponds to Texts[i] in the request.
type EmbedResponse struct {
	Embeddings [][]float32
	Tokens     int
}

// ModelMeta describes the model / provider identity.
type ModelMeta struct {
	ID         string // chat model, e.g. "llama3.2:3b", "gemini-2.5-flash"
	EmbedModel string // empty when the provider cannot embed
	Provider   string // "ollama" | "gemini" | "anthropic"
	MaxTokens  int    // Maximum context window size.
}

// SplitSystem separates leading system messages from the conversation.
// Gemini and Anthropic carry the system prompt outside the message list.
func SplitSystem(msgs []Message) (system string, rest []Message) {
	i := 0
	for ; i < len(msgs) && msgs[i].Role == RoleSystem; i++ {
		if system != "" {
			system += "\n\n"
		}
		system += msgs[i].Content
	}
	return system, msgs[i:]
}
