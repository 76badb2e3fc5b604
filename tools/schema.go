package tools

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldType is the JSON type of a tool argument.
type FieldType string

const (
	String     FieldType = "string"
	Integer    FieldType = "integer"
	Boolean    FieldType = "boolean"
	StringList FieldType = "array"
)

// Field declares one named tool argument.
//
// Zero values mean "no constraint" except for Min and Max, which are
// pointers because zero is a meaningful bound.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Required    bool
	Default     any

	// Enum restricts string values. FoldCase accepts any casing and
	// normalizes to the listed spelling.
	Enum     []string
	FoldCase bool

	// Pattern applies to strings and to each item of a StringList.
	// Hint, when set, replaces the generic pattern mismatch message.
	Pattern string
	Hint    string

	MinLength int
	MaxLength int
	Min       *int
	Max       *int
	MinItems  int
	MaxItems  int

	// Check runs after schema validation on values the caller supplied.
	Check func(v any) error
}

// Bound returns a pointer to n for Field.Min and Field.Max.
func Bound(n int) *int {
	return &n
}

func (f Field) schema() map[string]any {
	s := map[string]any{"type": string(f.Type)}
	if f.Description != "" {
		s["description"] = f.Description
	}
	if f.Default != nil {
		s["default"] = f.Default
	}
	if len(f.Enum) > 0 {
		s["enum"] = f.Enum
	}

	str := s
	if f.Type == StringList {
		str = map[string]any{"type": "string"}
		s["items"] = str
		if f.MinItems > 0 {
			s["minItems"] = f.MinItems
		}
		if f.MaxItems > 0 {
			s["maxItems"] = f.MaxItems
		}
	}
	if f.Pattern != "" {
		str["pattern"] = f.Pattern
	}
	if f.MinLength > 0 {
		str["minLength"] = f.MinLength
	}
	if f.MaxLength > 0 {
		str["maxLength"] = f.MaxLength
	}

	if f.Min != nil {
		s["minimum"] = *f.Min
	}
	if f.Max != nil {
		s["maximum"] = *f.Max
	}
	return s
}

// parameters renders the JSON Schema object for a field list. The result
// only contains maps, slices, and scalars so encoding/json serializes it
// byte-for-byte identically every time.
func parameters(fields []Field) map[string]any {
	properties := make(map[string]any, len(fields))
	required := []string{}
	for _, f := range fields {
		properties[f.Name] = f.schema()
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func compile(name string, params map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, name, err)
	}
	schema, err := jsonschema.CompileString("tool_"+name+".json", string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, name, err)
	}
	return schema, nil
}
