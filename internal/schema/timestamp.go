package schema

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are accepted on input, tried in order. Output is always
// RFC 3339. The second layout covers ISO-8601 strings without a zone
// designator, which older tooling wrote.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// Timestamp is a time.Time that round-trips through both file formats as an
// ISO-8601 string.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to second granularity, which is the resolution
// the round-trip guarantee is defined at.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Second)}
}

func parseTimestamp(s string) (Timestamp, error) {
	trimmed := strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return Timestamp{t.UTC()}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid ISO-8601 timestamp %q", s)
}

func (t Timestamp) String() string {
	return t.UTC().Format(time.RFC3339)
}

// Equal compares at second granularity.
func (t Timestamp) Equal(other Timestamp) bool {
	return t.UTC().Truncate(time.Second).Equal(other.UTC().Truncate(time.Second))
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := parseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalYAML() (any, error) {
	return t.String(), nil
}

func (t *Timestamp) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := parseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
