package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/matiasleandrokruk/convo/internal/infra/llm"
)

// templateFile is the YAML shape of a chat template:
//
//	name: explainer
//	messages:
//	  - role: system
//	    template: You are a helpful {domain} expert
type templateFile struct {
	Name     string `yaml:"name"`
	Messages []struct {
		Role     string `yaml:"role"`
		Template string `yaml:"template"`
	} `yaml:"messages"`
}

// Load decodes a YAML template. Unknown keys are rejected.
func Load(r io.Reader) (*ChatTemplate, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f templateFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("prompt: empty template document")
		}
		return nil, fmt.Errorf("prompt: decode yaml: %w", err)
	}

	msgs := make([]MessageTemplate, len(f.Messages))
	for i, m := range f.Messages {
		msgs[i] = MessageTemplate{Role: llm.Role(m.Role), Template: m.Template}
	}
	return New(f.Name, msgs...)
}

// LoadFile reads a YAML template from path.
func LoadFile(path string) (*ChatTemplate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: open %q: %w", path, err)
	}
	defer f.Close() //nolint:errcheck
	return Load(f)
}

// Default is the built-in "domain expert" template.
func Default() *ChatTemplate {
	t, err := New("domain-expert",
		MessageTemplate{Role: "system", Template: "You are a helpful {domain} expert"},
		MessageTemplate{Role: "human", Template: "Explain in simple terms,what is {topic}"},
	)
	if err != nil {
		panic(err)
	}
	return t
}
