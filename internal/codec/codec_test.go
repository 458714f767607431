package codec

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Format
	}{
		{"json object", `{"a": 1}`, FormatJSON},
		{"json array", `[1, 2]`, FormatJSON},
		{"json with leading space", "  \n{\"a\": 1}", FormatJSON},
		{"yaml mapping", "a: 1\nb: 2", FormatYAML},
		{"braces but not json", "not json {", FormatYAML},
		{"broken json falls through", `{"a": }`, FormatYAML},
		{"empty", "", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.content); got != tt.want {
				t.Errorf("Detect(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"json", "JSON", " yaml ", "yml"} {
		if _, err := ParseFormat(s); err != nil {
			t.Errorf("ParseFormat(%q): %v", s, err)
		}
	}
	if _, err := ParseFormat("toml"); err == nil {
		t.Error("ParseFormat(toml) should fail")
	}
}

func TestParseJSON(t *testing.T) {
	m, err := Parse(`{"name": "test", "count": 3}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m["name"] != "test" {
		t.Errorf("name = %v", m["name"])
	}
}

func TestParseYAML(t *testing.T) {
	m, err := Parse("name: test\nnested:\n  key: value\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	nested, ok := m["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested = %T, want map[string]any", m["nested"])
	}
	if nested["key"] != "value" {
		t.Errorf("nested.key = %v", nested["key"])
	}
}

func TestParseYAMLTimestampBecomesString(t *testing.T) {
	m, err := Parse("created: 2025-01-15T10:00:00Z\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s, ok := m["created"].(string); !ok || s != "2025-01-15T10:00:00Z" {
		t.Errorf("created = %v (%T), want RFC 3339 string", m["created"], m["created"])
	}
}

func TestParseEmptyYAML(t *testing.T) {
	m, err := Parse("")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m) != 0 {
		t.Errorf("empty document parsed to %v, want empty mapping", m)
	}
}

func TestParseScalarRootRejected(t *testing.T) {
	_, err := Parse("just a string")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if perr.Format != FormatYAML {
		t.Errorf("format = %q, want yaml", perr.Format)
	}
}

func TestSerializeJSON(t *testing.T) {
	out, err := Serialize(map[string]any{"name": "café"}, FormatJSON)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !strings.Contains(out, "café") {
		t.Errorf("non-ASCII should stay literal, got %q", out)
	}
	if !strings.Contains(out, "  \"name\"") {
		t.Errorf("expected 2-space indent, got %q", out)
	}
}

func TestSerializeNormalizesTimestamps(t *testing.T) {
	ts := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	v := map[string]any{
		"created": ts,
		"history": []any{ts},
	}

	for _, format := range []Format{FormatJSON, FormatYAML} {
		out, err := Serialize(v, format)
		if err != nil {
			t.Fatalf("Serialize(%s): %v", format, err)
		}
		if !strings.Contains(out, "2025-01-15T10:00:00Z") {
			t.Errorf("%s output missing RFC 3339 timestamp: %q", format, out)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	src := map[string]any{
		"name":  "round-trip",
		"count": float64(3),
		"tags":  []any{"a", "b"},
		"inner": map[string]any{"flag": true},
	}

	for _, format := range []Format{FormatJSON, FormatYAML} {
		out, err := Serialize(src, format)
		if err != nil {
			t.Fatalf("Serialize(%s): %v", format, err)
		}
		if got := Detect(out); got != format {
			t.Errorf("Detect after Serialize(%s) = %q", format, got)
		}
		back, err := Parse(out)
		if err != nil {
			t.Fatalf("Parse(%s): %v", format, err)
		}
		if back["name"] != "round-trip" || len(back["tags"].([]any)) != 2 {
			t.Errorf("%s round trip lost content: %v", format, back)
		}
	}
}
