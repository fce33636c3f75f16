// Package prompt renders chat prompt templates: an ordered list of
// (role, template) pairs whose {name} placeholders are filled from a
// variable map. "{{" and "}}" produce literal braces.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matiasleandrokruk/convo/internal/infra/llm"
)

// MessageTemplate is one templated chat message.
type MessageTemplate struct {
	Role     llm.Role
	Template string
}

// ChatTemplate is a parsed, ready-to-render chat prompt.
type ChatTemplate struct {
	Name     string
	messages []compiledMessage
	vars     []string
}

type compiledMessage struct {
	role     llm.Role
	segments []segment
}

// segment is either literal text or a variable reference.
type segment struct {
	text     string
	variable string
}

// MissingVariableError is returned by Render when a placeholder has no value.
type MissingVariableError struct {
	Names []string
}

func (e *MissingVariableError) Error() string {
	return "prompt: missing variables: " + strings.Join(e.Names, ", ")
}

// SyntaxError reports a malformed template.
type SyntaxError struct {
	Message int // index of the offending message
	Offset  int // byte offset within its template
	Reason  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("prompt: message %d offset %d: %s", e.Message, e.Offset, e.Reason)
}

// ParseRole accepts the canonical roles plus the "human" and "ai" aliases.
func ParseRole(s string) (llm.Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "system":
		return llm.RoleSystem, nil
	case "user", "human":
		return llm.RoleUser, nil
	case "assistant", "ai":
		return llm.RoleAssistant, nil
	default:
		return "", fmt.Errorf("prompt: unknown role %q", s)
	}
}

// New compiles the given messages. At least one message is required.
func New(name string, msgs ...MessageTemplate) (*ChatTemplate, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("prompt: template %q has no messages", name)
	}
	t := &ChatTemplate{Name: name, messages: make([]compiledMessage, 0, len(msgs))}
	seen := map[string]bool{}
	for i, m := range msgs {
		role, err := ParseRole(string(m.Role))
		if err != nil {
			return nil, err
		}
		segs, err := parse(i, m.Template)
		if err != nil {
			return nil, err
		}
		for _, s := range segs {
			if s.variable != "" && !seen[s.variable] {
				seen[s.variable] = true
				t.vars = append(t.vars, s.variable)
			}
		}
		t.messages = append(t.messages, compiledMessage{role: role, segments: segs})
	}
	return t, nil
}

// InputVariables lists placeholder names in first-seen order.
func (t *ChatTemplate) InputVariables() []string {
	out := make([]string, len(t.vars))
	copy(out, t.vars)
	return out
}

// Render substitutes every placeholder. Unused variables are ignored; all
// missing ones are reported together, sorted by name.
func (t *ChatTemplate) Render(vars map[string]string) ([]llm.Message, error) {
	var missing []string
	for _, name := range t.vars {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingVariableError{Names: missing}
	}

	out := make([]llm.Message, len(t.messages))
	for i, m := range t.messages {
		var b strings.Builder
		for _, s := range m.segments {
			if s.variable != "" {
				b.WriteString(vars[s.variable])
				continue
			}
			b.WriteString(s.text)
		}
		out[i] = llm.Message{Role: m.role, Content: b.String()}
	}
	return out, nil
}

// FormatMessages renders messages the way chat transcripts are usually shown:
// "System: ...", "Human: ...", "AI: ...", one per line.
func FormatMessages(msgs []llm.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			b.WriteString("System: ")
		case llm.RoleAssistant:
			b.WriteString("AI: ")
		default:
			b.WriteString("Human: ")
		}
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

func parse(msgIdx int, tmpl string) ([]segment, error) {
	var segs []segment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '}':
			return nil, &SyntaxError{Message: msgIdx, Offset: i, Reason: "single '}' must be escaped as '}}'"}
		case c == '{':
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return nil, &SyntaxError{Message: msgIdx, Offset: i, Reason: "unclosed '{'"}
			}
			name := strings.TrimSpace(tmpl[i+1 : i+1+end])
			if !validName(name) {
				return nil, &SyntaxError{Message: msgIdx, Offset: i, Reason: fmt.Sprintf("invalid variable name %q", name)}
			}
			flush()
			segs = append(segs, segment{variable: name})
			i += end + 1
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return segs, nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
