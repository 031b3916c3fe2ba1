// Package trace turns stored spans into the ordered span sequence the
// waterfall consumes: depth-first pre-order, each span annotated with
// its depth and whether it has children.
package trace

import (
	"fmt"
	"sort"

	"github.com/Mr-Dark-debug/spanview/internal/database"
)

// KeyValue is a tag, process tag, or log field.
type KeyValue = database.KeyValue

// Process describes the emitting service of a span.
type Process struct {
	ServiceName string
	Tags        []KeyValue
}

// Log is a timestamped span event.
type Log struct {
	Timestamp int64
	Fields    []KeyValue
}

// Span kinds as recorded by OTLP instrumentation.
const (
	KindClient   = "client"
	KindServer   = "server"
	KindProducer = "producer"
	KindConsumer = "consumer"
	KindInternal = "internal"
)

// Span is one entry of the span sequence. Depth and HasChildren are
// the only fields the index mapping relies on.
type Span struct {
	SpanID        string
	TraceID       string
	ParentSpanID  string
	OperationName string
	Process       Process
	Kind          string
	StartTime     int64 // Unix nanoseconds
	Duration      int64 // nanoseconds
	StatusCode    string
	StatusMessage string
	Tags          []KeyValue
	Logs          []Log

	Depth             int
	HasChildren       bool
	RelativeStartTime int64 // nanoseconds since trace start
}

// EndTime returns the span's end in Unix nanoseconds.
func (s *Span) EndTime() int64 {
	return s.StartTime + s.Duration
}

// IsError reports whether the span failed, either through its status
// or an "error=true" tag.
func (s *Span) IsError() bool {
	if database.IsErrorStatus(s.StatusCode) {
		return true
	}
	for _, kv := range s.Tags {
		if kv.Key == "error" && (kv.Value == "true" || kv.Value == "1") {
			return true
		}
	}
	return false
}

// ServiceStat counts the spans emitted by one service.
type ServiceStat struct {
	Name       string
	SpanCount  int
	ErrorCount int
}

// Trace is a transformed trace: metadata plus the ordered span sequence.
type Trace struct {
	TraceID   string
	TraceName string
	Spans     []*Span
	StartTime int64
	EndTime   int64
	Duration  int64
	Services  []ServiceStat
}

// SpanIndex returns the position of spanID in the sequence, or -1.
func (t *Trace) SpanIndex(spanID string) int {
	for i, s := range t.Spans {
		if s.SpanID == spanID {
			return i
		}
	}
	return -1
}

// New builds a Trace around an already ordered span sequence and fills
// in the time bounds and service stats. The ordering is trusted.
func New(traceID string, spans []*Span) *Trace {
	t := &Trace{TraceID: traceID, Spans: spans}
	t.computeBounds()
	return t
}

// Transform orders stored spans depth-first by parent links. Children
// are ordered by start time; spans whose parent is missing from the
// trace become additional roots.
func Transform(rec *database.Trace, rows []*database.Span) (*Trace, error) {
	if rec == nil {
		return nil, fmt.Errorf("transforming trace: nil trace record")
	}

	byID := make(map[string]*Span, len(rows))
	order := make([]*Span, 0, len(rows))
	for _, r := range rows {
		if _, dup := byID[r.SpanID]; dup {
			return nil, fmt.Errorf("transforming trace %s: duplicate span id %s", rec.TraceID, r.SpanID)
		}
		s := fromRecord(r)
		byID[s.SpanID] = s
		order = append(order, s)
	}

	children := make(map[string][]*Span)
	var roots []*Span
	for _, s := range order {
		if s.ParentSpanID == "" || s.ParentSpanID == s.SpanID || byID[s.ParentSpanID] == nil {
			roots = append(roots, s)
			continue
		}
		children[s.ParentSpanID] = append(children[s.ParentSpanID], s)
	}

	byStart := func(list []*Span) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].StartTime < list[j].StartTime
		})
	}
	byStart(roots)

	seq := make([]*Span, 0, len(order))
	visited := make(map[string]bool, len(order))
	var walk func(s *Span, depth int)
	walk = func(s *Span, depth int) {
		if visited[s.SpanID] {
			return
		}
		visited[s.SpanID] = true
		s.Depth = depth
		kids := children[s.SpanID]
		byStart(kids)
		pending := make([]*Span, 0, len(kids))
		for _, c := range kids {
			if !visited[c.SpanID] {
				pending = append(pending, c)
			}
		}
		s.HasChildren = len(pending) > 0
		seq = append(seq, s)
		for _, c := range pending {
			walk(c, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}

	// Parent cycles leave spans unreachable from any root.
	for _, s := range order {
		if !visited[s.SpanID] {
			walk(s, 0)
		}
	}

	t := New(rec.TraceID, seq)
	if len(seq) > 0 {
		t.TraceName = seq[0].Process.ServiceName + ": " + seq[0].OperationName
	}
	return t, nil
}

func (t *Trace) computeBounds() {
	if len(t.Spans) == 0 {
		return
	}
	t.StartTime = t.Spans[0].StartTime
	t.EndTime = t.Spans[0].EndTime()
	for _, s := range t.Spans {
		if s.StartTime < t.StartTime {
			t.StartTime = s.StartTime
		}
		if end := s.EndTime(); end > t.EndTime {
			t.EndTime = end
		}
	}
	t.Duration = t.EndTime - t.StartTime

	stats := make(map[string]*ServiceStat)
	var names []string
	for _, s := range t.Spans {
		s.RelativeStartTime = s.StartTime - t.StartTime
		name := s.Process.ServiceName
		st, ok := stats[name]
		if !ok {
			st = &ServiceStat{Name: name}
			stats[name] = st
			names = append(names, name)
		}
		st.SpanCount++
		if s.IsError() {
			st.ErrorCount++
		}
	}
	sort.Strings(names)
	t.Services = make([]ServiceStat, 0, len(names))
	for _, n := range names {
		t.Services = append(t.Services, *stats[n])
	}
}

func fromRecord(r *database.Span) *Span {
	s := &Span{
		SpanID:        r.SpanID,
		TraceID:       r.TraceID,
		OperationName: r.OperationName,
		Process:       Process{ServiceName: r.ServiceName, Tags: r.ProcessTags},
		Kind:          r.Kind,
		StartTime:     r.StartTime,
		Duration:      r.DurationNs,
		StatusCode:    r.StatusCode,
		Tags:          r.Tags,
	}
	if r.ParentSpanID != nil {
		s.ParentSpanID = *r.ParentSpanID
	}
	if r.StatusMessage != nil {
		s.StatusMessage = *r.StatusMessage
	}
	for _, l := range r.Logs {
		s.Logs = append(s.Logs, Log{Timestamp: l.Timestamp, Fields: l.Fields})
	}
	return s
}
