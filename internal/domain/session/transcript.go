// Package session implements the conversational session: an append-only,
// role-tagged transcript that is resent in full to a completion provider on
// every turn until the user types the sentinel.
package session

import "github.com/matiasleandrokruk/convo/internal/infra/llm"

// Role is the explicit author tag stored on every turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one contribution to the conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is the ordered, append-only turn list owned by one Session.
// It is not safe for concurrent use; Session serializes access.
type Transcript struct {
	turns []Turn
}

// Append adds a turn and returns its index.
func (t *Transcript) Append(turn Turn) int {
	t.turns = append(t.turns, turn)
	return len(t.turns) - 1
}

// Turns returns a copy of every turn in insertion order.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of turns.
func (t *Transcript) Len() int { return len(t.turns) }

// Messages converts turns to provider messages, preserving order.
func Messages(turns []Turn) []llm.Message {
	out := make([]llm.Message, len(turns))
	for i, turn := range turns {
		role := llm.RoleUser
		if turn.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		out[i] = llm.Message{Role: role, Content: turn.Content}
	}
	return out
}
