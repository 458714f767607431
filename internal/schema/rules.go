package schema

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// The validator is driven by declarative entity descriptors: each entity
// lists its fields (name, kind, required, default, constraints) and one
// generic walker interprets them. Adding a field to the schema means adding
// one descriptor line, not another hand-written check.

type kind int

const (
	kindAny kind = iota
	kindString
	kindInt
	kindFloat
	kindBool
	kindStringList
	kindStringMap
	kindAnyMap
	kindObject
	kindObjectList
	kindObjectMap
	kindCustom
)

// check validates a single raw value; it returns a constraint message or ""
// when the value passes.
type check func(v any) string

type field struct {
	name     string
	kind     kind
	required bool
	// def is injected into the mapping when the key is absent, so defaults
	// survive serialization and an explicit zero is distinguishable from a
	// missing key. nil means "leave absent".
	def    any
	entity *entity
	checks []check
	// custom takes over validation entirely for kindCustom fields.
	custom func(path string, v any) []FieldError
}

type entity struct {
	// open entities accept arbitrary extra keys.
	open   bool
	fields []field
	// verify runs after field checks, for rules spanning multiple fields.
	verify []func(path string, m map[string]any) []FieldError
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

// validateEntity walks one mapping level against its descriptor, appending
// every violation found. It mutates m to inject defaults for absent keys.
func validateEntity(path string, m map[string]any, e *entity) []FieldError {
	var errs []FieldError

	if !e.open {
		known := make(map[string]bool, len(e.fields))
		for _, f := range e.fields {
			known[f.name] = true
		}
		for key := range m {
			if !known[key] {
				errs = append(errs, FieldError{Path: joinPath(path, key), Message: "unknown field"})
			}
		}
	}

	for _, f := range e.fields {
		fpath := joinPath(path, f.name)
		v, present := m[f.name]
		if present && v == nil {
			// Explicit null is treated as absent, matching the
			// serializer's omission of empty optional sections.
			present = false
			delete(m, f.name)
		}
		if !present {
			if f.required {
				errs = append(errs, FieldError{Path: fpath, Message: "required field missing"})
				continue
			}
			if f.def != nil {
				m[f.name] = cloneValue(f.def)
				v = m[f.name]
				present = true
			} else {
				continue
			}
		}
		errs = append(errs, validateField(fpath, v, f)...)
	}

	for _, fn := range e.verify {
		errs = append(errs, fn(path, m)...)
	}
	return errs
}

func validateField(path string, v any, f field) []FieldError {
	var errs []FieldError

	fail := func(msg string) []FieldError {
		return append(errs, FieldError{Path: path, Message: msg})
	}

	switch f.kind {
	case kindAny:
		// no shape requirement

	case kindString:
		if _, ok := v.(string); !ok {
			return fail(fmt.Sprintf("expected string, got %s", typeName(v)))
		}

	case kindInt:
		if _, ok := asInt(v); !ok {
			return fail(fmt.Sprintf("expected integer, got %s", typeName(v)))
		}

	case kindFloat:
		if _, ok := asFloat(v); !ok {
			return fail(fmt.Sprintf("expected number, got %s", typeName(v)))
		}

	case kindBool:
		if _, ok := v.(bool); !ok {
			return fail(fmt.Sprintf("expected boolean, got %s", typeName(v)))
		}

	case kindStringList:
		list, ok := v.([]any)
		if !ok {
			return fail(fmt.Sprintf("expected list of strings, got %s", typeName(v)))
		}
		for i, item := range list {
			if _, ok := item.(string); !ok {
				errs = append(errs, FieldError{
					Path:    fmt.Sprintf("%s[%d]", path, i),
					Message: fmt.Sprintf("expected string, got %s", typeName(item)),
				})
			}
		}

	case kindStringMap:
		mm, ok := v.(map[string]any)
		if !ok {
			return fail(fmt.Sprintf("expected mapping of strings, got %s", typeName(v)))
		}
		for key, item := range mm {
			if _, ok := item.(string); !ok {
				errs = append(errs, FieldError{
					Path:    joinPath(path, key),
					Message: fmt.Sprintf("expected string, got %s", typeName(item)),
				})
			}
		}

	case kindAnyMap:
		if _, ok := v.(map[string]any); !ok {
			return fail(fmt.Sprintf("expected mapping, got %s", typeName(v)))
		}

	case kindObject:
		mm, ok := v.(map[string]any)
		if !ok {
			return fail(fmt.Sprintf("expected mapping, got %s", typeName(v)))
		}
		errs = append(errs, validateEntity(path, mm, f.entity)...)

	case kindObjectList:
		list, ok := v.([]any)
		if !ok {
			return fail(fmt.Sprintf("expected list, got %s", typeName(v)))
		}
		for i, item := range list {
			ipath := fmt.Sprintf("%s[%d]", path, i)
			mm, ok := item.(map[string]any)
			if !ok {
				errs = append(errs, FieldError{Path: ipath, Message: fmt.Sprintf("expected mapping, got %s", typeName(item))})
				continue
			}
			errs = append(errs, validateEntity(ipath, mm, f.entity)...)
		}

	case kindObjectMap:
		mm, ok := v.(map[string]any)
		if !ok {
			return fail(fmt.Sprintf("expected mapping, got %s", typeName(v)))
		}
		for key, item := range mm {
			kpath := joinPath(path, key)
			obj, ok := item.(map[string]any)
			if !ok {
				errs = append(errs, FieldError{Path: kpath, Message: fmt.Sprintf("expected mapping, got %s", typeName(item))})
				continue
			}
			errs = append(errs, validateEntity(kpath, obj, f.entity)...)
		}

	case kindCustom:
		return append(errs, f.custom(path, v)...)
	}

	for _, c := range f.checks {
		if msg := c(v); msg != "" {
			errs = append(errs, FieldError{Path: path, Message: msg})
		}
	}
	return errs
}

// --- constraint helpers ---

func strLen(min, max int) check {
	return func(v any) string {
		s, ok := v.(string)
		if !ok {
			return ""
		}
		n := len([]rune(s))
		if n < min || n > max {
			return fmt.Sprintf("length must be between %d and %d characters, got %d", min, max, n)
		}
		return ""
	}
}

func pattern(re *regexp.Regexp, desc string) check {
	return func(v any) string {
		s, ok := v.(string)
		if !ok {
			return ""
		}
		if !re.MatchString(s) {
			return fmt.Sprintf("%q does not match required pattern (%s)", s, desc)
		}
		return ""
	}
}

func intRange(min, max int64) check {
	return func(v any) string {
		n, ok := asInt(v)
		if !ok {
			return ""
		}
		if n < min || n > max {
			return fmt.Sprintf("must be between %d and %d, got %d", min, max, n)
		}
		return ""
	}
}

func intMin(min int64) check {
	return func(v any) string {
		n, ok := asInt(v)
		if !ok {
			return ""
		}
		if n < min {
			return fmt.Sprintf("must be at least %d, got %d", min, n)
		}
		return ""
	}
}

func floatRange(min, max float64) check {
	return func(v any) string {
		f, ok := asFloat(v)
		if !ok {
			return ""
		}
		if f < min || f > max {
			return fmt.Sprintf("must be between %g and %g, got %g", min, max, f)
		}
		return ""
	}
}

func minItems(n int) check {
	return func(v any) string {
		list, ok := v.([]any)
		if !ok {
			return ""
		}
		if len(list) < n {
			return fmt.Sprintf("must contain at least %d item(s), got %d", n, len(list))
		}
		return ""
	}
}

func maxItems(n int) check {
	return func(v any) string {
		list, ok := v.([]any)
		if !ok {
			return ""
		}
		if len(list) > n {
			return fmt.Sprintf("must contain at most %d item(s), got %d", n, len(list))
		}
		return ""
	}
}

func oneOf(values []string) check {
	return func(v any) string {
		s, ok := v.(string)
		if !ok {
			return ""
		}
		for _, allowed := range values {
			if s == allowed {
				return ""
			}
		}
		return fmt.Sprintf("%q is not one of: %s", s, strings.Join(values, ", "))
	}
}

func isTimestamp() check {
	return func(v any) string {
		s, ok := v.(string)
		if !ok {
			return ""
		}
		if _, err := parseTimestamp(s); err != nil {
			return err.Error()
		}
		return ""
	}
}

// --- value coercion ---

// asInt accepts the integer representations the two decoders produce:
// json gives float64, yaml gives int. Whole-valued floats count.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int, int64, uint64:
		return "number"
	case []any:
		return "list"
	case map[string]any:
		return "mapping"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// cloneValue deep-copies maps and slices so injected defaults are never
// shared between documents.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return v
	}
}
