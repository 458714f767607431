package schema

import (
	"fmt"
	"sort"
	"strings"
)

// FieldError describes a single constraint violation at a path inside the
// configuration mapping, e.g. "llm_parameters.temperature".
type FieldError struct {
	Path    string
	Message string
}

func (e FieldError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationError aggregates every field-level violation found in one pass so
// callers can render a complete per-field report.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("invalid configuration (%d error(s)): %s", len(e.Fields), strings.Join(msgs, "; "))
}

// newValidationError sorts field errors by path so output is deterministic
// regardless of map iteration order.
func newValidationError(fields []FieldError) *ValidationError {
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Path < fields[j].Path })
	return &ValidationError{Fields: fields}
}
