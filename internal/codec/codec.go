// Package codec detects, parses, and serializes the two configuration file
// encodings: JSON (strict) and YAML (permissive). Detection is content-based,
// never extension-based.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Format identifies a configuration file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat converts a user-supplied format name into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected json or yaml)", s)
	}
}

// Extension returns the file extension (without dot) for the format.
func (f Format) Extension() string {
	return string(f)
}

// ParseError wraps an underlying decoder failure so callers can distinguish
// malformed input from schema-invalid input.
type ParseError struct {
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse as %s: %v", strings.ToUpper(string(e.Format)), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Detect reports whether content looks like JSON or YAML. Content whose
// trimmed form starts with '{' or '[' is tried as strict JSON first; if that
// parse fails the content falls through to YAML, which accepts nearly
// anything.
func Detect(content string) Format {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if json.Valid([]byte(content)) {
			return FormatJSON
		}
	}
	return FormatYAML
}

// Parse decodes content in whichever format Detect reports. The result must
// be a mapping at the root; an empty or null YAML document parses to an empty
// mapping.
func Parse(content string) (map[string]any, error) {
	switch Detect(content) {
	case FormatJSON:
		var m map[string]any
		if err := json.Unmarshal([]byte(content), &m); err != nil {
			return nil, &ParseError{Format: FormatJSON, Err: err}
		}
		return m, nil
	default:
		var raw any
		if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
			return nil, &ParseError{Format: FormatYAML, Err: err}
		}
		if raw == nil {
			return map[string]any{}, nil
		}
		m, ok := normalizeYAML(raw).(map[string]any)
		if !ok {
			return nil, &ParseError{Format: FormatYAML, Err: fmt.Errorf("content must be a mapping at the root level")}
		}
		return m, nil
	}
}

// Serialize encodes v into the requested format. time.Time values inside
// maps and slices are converted to RFC 3339 text first. JSON output is
// 2-space indented and keeps non-ASCII characters literal; YAML output is
// block style with key order following struct declaration order.
func Serialize(v any, format Format) (string, error) {
	v = normalizeTimestamps(v)

	switch format {
	case FormatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return "", fmt.Errorf("encoding JSON: %w", err)
		}
		// Encoder.Encode appends a trailing newline; keep output stable
		// with and without it.
		return strings.TrimRight(buf.String(), "\n"), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return "", fmt.Errorf("encoding YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("encoding YAML: %w", err)
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}

// normalizeYAML rewrites yaml.v3's map[string]any values recursively so the
// result is shaped identically to a decoded JSON document.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	case time.Time:
		// yaml.v3 decodes ISO-8601 scalars into time.Time; keep them as
		// text so validation sees the same value either way.
		return t.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

func normalizeTimestamps(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeTimestamps(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeTimestamps(val)
		}
		return out
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return v
	}
}
