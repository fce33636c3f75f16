// Package schema validates flat key/value records against a typed field list
// and returns the validated object or every field that failed.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// FieldType is the declared type of a field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
)

// Field declares one record key.
type Field struct {
	Name     string    `yaml:"name" json:"name"`
	Type     FieldType `yaml:"type" json:"type"`
	Required bool      `yaml:"required" json:"required"`
	Default  any       `yaml:"default,omitempty" json:"default,omitempty"`
}

// Schema is a named, ordered field list.
type Schema struct {
	Name   string
	Fields []Field
}

// Object is a validated record. Order follows the schema.
type Object struct {
	Schema string         `json:"schema"`
	Values map[string]any `json:"values"`
	Order  []string       `json:"-"`
}

// FieldError describes why one field failed.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every failing field, schema order first, then
// unknown keys sorted by name.
type ValidationError struct {
	Schema string       `json:"schema"`
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Reason
	}
	return fmt.Sprintf("%d validation error(s) for %s: %s", len(e.Errors), e.Schema, strings.Join(parts, "; "))
}

// New checks the field declarations: non-empty unique names, known types and
// defaults that match their type.
func New(name string, fields ...Field) (*Schema, error) {
	if name == "" {
		return nil, fmt.Errorf("schema: name is required")
	}
	seen := make(map[string]bool, len(fields))
	out := make([]Field, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema %s: field %d has no name", name, i)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("schema %s: duplicate field %q", name, f.Name)
		}
		seen[f.Name] = true
		switch f.Type {
		case TypeString, TypeInt, TypeFloat, TypeBool:
		default:
			return nil, fmt.Errorf("schema %s: field %q has unknown type %q", name, f.Name, f.Type)
		}
		if f.Default != nil {
			v, reason := coerce(f.Type, f.Default)
			if reason != "" {
				return nil, fmt.Errorf("schema %s: default of %q: %s", name, f.Name, reason)
			}
			f.Default = v
		}
		out[i] = f
	}
	return &Schema{Name: name, Fields: out}, nil
}

// Validate checks record against the schema. Defaults fill absent optional
// fields; a null optional field counts as absent; unknown keys are rejected.
func (s *Schema) Validate(record map[string]any) (*Object, error) {
	obj := &Object{Schema: s.Name, Values: make(map[string]any, len(s.Fields))}
	var errs []FieldError
	known := make(map[string]bool, len(s.Fields))

	for _, f := range s.Fields {
		known[f.Name] = true
		raw, present := record[f.Name]
		if present && raw == nil && !f.Required {
			present = false
		}
		if !present {
			switch {
			case f.Default != nil:
				obj.Values[f.Name] = f.Default
				obj.Order = append(obj.Order, f.Name)
			case f.Required:
				errs = append(errs, FieldError{Field: f.Name, Reason: "field required"})
			}
			continue
		}
		v, reason := coerce(f.Type, raw)
		if reason != "" {
			errs = append(errs, FieldError{Field: f.Name, Reason: reason})
			continue
		}
		obj.Values[f.Name] = v
		obj.Order = append(obj.Order, f.Name)
	}

	var extras []string
	for k := range record {
		if !known[k] {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	for _, k := range extras {
		errs = append(errs, FieldError{Field: k, Reason: "extra field not permitted"})
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Schema: s.Name, Errors: errs}
	}
	return obj, nil
}

// coerce converts v to the Go type for t, or returns a reason.
// Whole numbers are accepted as int; ints are accepted as float.
// Strings are never converted to numbers or bools.
func coerce(t FieldType, v any) (any, string) {
	if v == nil {
		return nil, "value must not be null"
	}
	switch t {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, ""
		}
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, ""
		}
	case TypeInt:
		if n, ok := toInt(v); ok {
			return n, ""
		}
		if f, ok := toFloat(v); ok && !isWhole(f) {
			return nil, "fractional value is not a valid int"
		}
	case TypeFloat:
		if f, ok := toFloat(v); ok {
			return f, ""
		}
	}
	return nil, fmt.Sprintf("expected %s, got %s", t, describe(v))
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	case float64:
		if isWhole(n) && math.Abs(n) < 1<<53 {
			return int64(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil && isWhole(f) && math.Abs(f) < 1<<53 {
			return int64(f), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isWhole(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f)
}

func describe(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int32, int64, uint64, float32, float64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
