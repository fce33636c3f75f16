package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// schemaFile is the YAML shape of a schema:
//
//	name: Student
//	fields:
//	  - name: name
//	    type: string
//	    required: true
type schemaFile struct {
	Name   string  `yaml:"name"`
	Fields []Field `yaml:"fields"`
}

// Load decodes a YAML schema. Unknown keys are rejected.
func Load(r io.Reader) (*Schema, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f schemaFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("schema: empty schema document")
		}
		return nil, fmt.Errorf("schema: decode yaml: %w", err)
	}
	return New(f.Name, f.Fields...)
}

// LoadFile reads a YAML schema from path.
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: open %q: %w", path, err)
	}
	defer f.Close() //nolint:errcheck
	return Load(f)
}

// DecodeRecord parses a JSON object, keeping numbers as json.Number so
// int/float checks see the literal the caller wrote.
func DecodeRecord(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("schema: decode record: %w", err)
	}
	if rec == nil {
		return nil, errors.New("schema: record must be a JSON object")
	}
	return rec, nil
}

// Default is the built-in Student schema with one required string field.
func Default() *Schema {
	s, err := New("Student", Field{Name: "name", Type: TypeString, Required: true})
	if err != nil {
		panic(err)
	}
	return s
}
