package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Args holds validated tool arguments, with defaults applied.
type Args map[string]any

// Has reports whether name has a value.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// String returns the named value as a string, or "" when absent.
func (a Args) String(name string) string {
	switch v := a[name].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the named value as an int, or 0 when absent.
func (a Args) Int(name string) int {
	switch v := a[name].(type) {
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		f, _ := v.Float64()
		return int(f)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Bool returns the named value as a bool, or false when absent.
func (a Args) Bool(name string) bool {
	v, _ := a[name].(bool)
	return v
}

// Strings returns the named value as a string slice, or nil when absent.
func (a Args) Strings(name string) []string {
	switch v := a[name].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Validate checks raw JSON arguments against the named tool's schema.
//
// JSON null, and the string "null" some models emit for omitted values, count
// as absent. Undeclared fields are dropped. Values are coerced where the
// intent is unambiguous ("5" for an integer, 6 for a string enum), enums
// marked FoldCase are normalized, and defaults fill missing optional fields
// once everything else passes.
func (r *Registry) Validate(name string, raw json.RawMessage) (Args, error) {
	e, err := r.get(name)
	if err != nil {
		return nil, err
	}
	return e.validate(raw)
}

func (e *entry) validate(raw json.RawMessage) (Args, error) {
	invalid := &ValidationError{Tool: e.spec.Name}

	input, err := decodeObject(raw)
	if err != nil {
		invalid.Fields = append(invalid.Fields, FieldError{Message: err.Error()})
		return nil, invalid
	}

	args := make(Args, len(e.spec.Fields))
	for _, f := range e.spec.Fields {
		v, present := input[f.Name]
		if present && isNull(v) {
			present = false
		}
		if !present {
			if f.Required {
				invalid.Fields = append(invalid.Fields, FieldError{Field: f.Name, Message: "field required"})
			}
			continue
		}
		args[f.Name] = normalize(f, coerce(f, v))
	}

	invalid.Fields = append(invalid.Fields, e.schemaErrors(args)...)

	if len(invalid.Fields) == 0 {
		for _, f := range e.spec.Fields {
			v, present := args[f.Name]
			if !present || f.Check == nil {
				continue
			}
			if err := f.Check(v); err != nil {
				invalid.Fields = append(invalid.Fields, FieldError{Field: f.Name, Message: err.Error()})
			}
		}
	}

	if len(invalid.Fields) > 0 {
		return nil, invalid
	}

	for _, f := range e.spec.Fields {
		if _, present := args[f.Name]; !present && f.Default != nil {
			args[f.Name] = f.Default
		}
	}

	if e.spec.Check != nil {
		if err := e.spec.Check(args); err != nil {
			invalid.Fields = append(invalid.Fields, FieldError{Message: err.Error()})
			return nil, invalid
		}
	}

	return args, nil
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.New("arguments are not valid JSON")
	}
	switch obj := v.(type) {
	case map[string]any:
		return obj, nil
	case nil:
		return map[string]any{}, nil
	default:
		return nil, errors.New("arguments must be a JSON object")
	}
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.EqualFold(strings.TrimSpace(s), "null")
}

func coerce(f Field, v any) any {
	switch f.Type {
	case Integer:
		switch n := v.(type) {
		case string:
			if _, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return json.Number(strings.TrimSpace(n))
			}
		case json.Number:
			// 5.0 and 5e1 are integers to the schema; store them as 5 and 50.
			if _, err := n.Int64(); err != nil {
				if f, err := n.Float64(); err == nil && f == math.Trunc(f) {
					return json.Number(strconv.FormatInt(int64(f), 10))
				}
			}
		}
	case Boolean:
		if s, ok := v.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return b
			}
		}
	case String:
		if n, ok := v.(json.Number); ok && len(f.Enum) > 0 {
			return n.String()
		}
	case StringList:
		if s, ok := v.(string); ok {
			return []any{s}
		}
	}
	return v
}

func normalize(f Field, v any) any {
	s, ok := v.(string)
	if !ok || !f.FoldCase {
		return v
	}
	for _, option := range f.Enum {
		if strings.EqualFold(strings.TrimSpace(s), option) {
			return option
		}
	}
	return v
}

func (e *entry) schemaErrors(args Args) []FieldError {
	err := e.schema.Validate(map[string]any(args))
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []FieldError{{Message: err.Error()}}
	}

	var fields []FieldError
	seen := make(map[string]bool)
	for _, leaf := range leaves(verr) {
		field := strings.SplitN(strings.TrimPrefix(leaf.InstanceLocation, "/"), "/", 2)[0]
		if field == "" {
			continue
		}
		msg := e.message(field, leaf)
		if key := field + "\x00" + msg; !seen[key] {
			seen[key] = true
			fields = append(fields, FieldError{Field: field, Message: msg})
		}
	}
	sort.SliceStable(fields, func(i, j int) bool {
		return e.position(fields[i].Field) < e.position(fields[j].Field)
	})
	return fields
}

func (e *entry) message(field string, leaf *jsonschema.ValidationError) string {
	if strings.HasSuffix(leaf.KeywordLocation, "/pattern") {
		for _, f := range e.spec.Fields {
			if f.Name == field && f.Hint != "" {
				return f.Hint
			}
		}
	}
	return leaf.Message
}

func (e *entry) position(field string) int {
	for i, f := range e.spec.Fields {
		if f.Name == field {
			return i
		}
	}
	return len(e.spec.Fields)
}

func leaves(verr *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(verr.Causes) == 0 {
		return []*jsonschema.ValidationError{verr}
	}
	var out []*jsonschema.ValidationError
	for _, cause := range verr.Causes {
		out = append(out, leaves(cause)...)
	}
	return out
}
