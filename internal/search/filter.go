// Package search finds the spans of a trace that match a free-text
// filter, and tracks asynchronous search requests so only the most
// recent result is applied.
package search

import (
	"strings"

	"github.com/Mr-Dark-debug/spanview/internal/trace"
	"github.com/Mr-Dark-debug/spanview/internal/waterfall"
)

// Filter returns the ids of the spans matching text, or nil when text
// has no terms.
//
// text is split on whitespace. A span matches when any term is a
// case-insensitive substring of its operation, its service, or the key
// or value of one of its tags, log fields or process tags, or when a
// term equals its span id ignoring leading zeros. A term of the form
// "-key" excludes that tag key from matching.
func Filter(tr *trace.Trace, text string) waterfall.IDSet {
	var include, exclude []string
	for _, w := range strings.Fields(text) {
		if strings.HasPrefix(w, "-") {
			if k := strings.ToLower(w[1:]); k != "" {
				exclude = append(exclude, k)
			}
			continue
		}
		include = append(include, strings.ToLower(w))
	}
	if len(include) == 0 && len(exclude) == 0 {
		return nil
	}

	m := matcher{include: include, exclude: exclude}
	out := waterfall.IDSet{}
	if tr == nil {
		return out
	}
	for _, s := range tr.Spans {
		if m.span(s) {
			out[s.SpanID] = struct{}{}
		}
	}
	return out
}

type matcher struct {
	include []string
	exclude []string
}

func (m matcher) text(s string) bool {
	s = strings.ToLower(s)
	for _, f := range m.include {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

func (m matcher) keyValues(kvs []trace.KeyValue) bool {
	for _, kv := range kvs {
		key := strings.ToLower(kv.Key)
		excluded := false
		for _, e := range m.exclude {
			if e == key {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		if m.text(kv.Key) || m.text(kv.Value) {
			return true
		}
	}
	return false
}

func (m matcher) span(s *trace.Span) bool {
	if m.text(s.OperationName) || m.text(s.Process.ServiceName) {
		return true
	}
	if m.keyValues(s.Tags) || m.keyValues(s.Process.Tags) {
		return true
	}
	for _, l := range s.Logs {
		if m.keyValues(l.Fields) {
			return true
		}
	}
	id := strings.TrimLeft(strings.ToLower(s.SpanID), "0")
	for _, f := range m.include {
		if strings.TrimLeft(f, "0") == id {
			return true
		}
	}
	return false
}
