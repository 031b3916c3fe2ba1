// Package jsonutil provides JSON helpers for spanview.
//
// Span tags, process tags, and log fields are persisted as JSON text
// columns; tag values captured from instrumentation are often JSON
// documents themselves and are pretty-printed in detail rows.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeNullable marshals v into a JSON string suitable for a nullable
// TEXT column. Nil slices and maps encode as SQL NULL.
func EncodeNullable(v interface{}) (*string, error) {
	if isEmpty(v) {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding json column: %w", err)
	}
	s := string(b)
	return &s, nil
}

// DecodeNullable unmarshals a nullable TEXT column into v.
// A NULL or empty column leaves v untouched.
func DecodeNullable(s *string, v interface{}) error {
	if s == nil || *s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(*s), v); err != nil {
		return fmt.Errorf("decoding json column: %w", err)
	}
	return nil
}

// LooksLikeJSON reports whether s is a JSON object or array.
func LooksLikeJSON(s string) bool {
	t := strings.TrimSpace(s)
	if len(t) < 2 {
		return false
	}
	if !(t[0] == '{' && t[len(t)-1] == '}') && !(t[0] == '[' && t[len(t)-1] == ']') {
		return false
	}
	return json.Valid([]byte(t))
}

// PrettyJSON formats a JSON string with indentation for display.
// Returns the original string if it's not valid JSON.
func PrettyJSON(s string) string {
	if !LooksLikeJSON(s) {
		return s
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(strings.TrimSpace(s)), "", "  "); err != nil {
		return s
	}
	return buf.String()
}

// CompactJSON minifies a JSON string by removing whitespace.
func CompactJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}

func isEmpty(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case []interface{}:
		return len(x) == 0
	case map[string]string:
		return len(x) == 0
	case map[string]interface{}:
		return len(x) == 0
	}
	b, err := json.Marshal(v)
	return err == nil && (string(b) == "null" || string(b) == "[]" || string(b) == "{}")
}
