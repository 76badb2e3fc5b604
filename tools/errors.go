package tools

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the tool registry and executor.
var (
	ErrNotFound         = errors.New("tool not found")
	ErrAlreadyExists    = errors.New("tool already registered")
	ErrEmptyName        = errors.New("tool name is empty")
	ErrNoHandler        = errors.New("tool has no handler")
	ErrInvalidSchema    = errors.New("invalid tool schema")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrToolTimeout      = errors.New("tool call timed out")
	ErrToolPanic        = errors.New("tool panicked")
)

// FieldError describes a problem with one argument. Field is empty for
// problems with the argument object as a whole.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ValidationError is returned when arguments do not satisfy a tool schema.
// Its text is fed back to the reasoning step, so it names every offending
// field.
type ValidationError struct {
	Tool   string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidArguments
}
