package waterfall

import (
	"fmt"

	"github.com/Mr-Dark-debug/spanview/internal/trace"
)

const fixtureBase = int64(1_000_000)

// fixtureDepths is the depth-first shape of the ten-span fixture trace:
//
//	span-0
//	  span-1
//	    span-2
//	    span-3
//	  span-4
//	    span-5
//	      span-6
//	  span-7
//	  span-8
//	    span-9
var fixtureDepths = []int{0, 1, 2, 2, 1, 2, 3, 1, 1, 2}

// newFixtureTrace returns the ten-span trace. Every span ends at
// fixtureBase+1000; span i starts at fixtureBase+i*100.
func newFixtureTrace() *trace.Trace {
	spans := make([]*trace.Span, len(fixtureDepths))
	for i, d := range fixtureDepths {
		spans[i] = &trace.Span{
			SpanID:        fmt.Sprintf("span-%d", i),
			TraceID:       "trace-1",
			OperationName: fmt.Sprintf("op-%d", i),
			Process:       trace.Process{ServiceName: "svc"},
			Kind:          trace.KindInternal,
			StartTime:     fixtureBase + int64(i)*100,
			Duration:      1000 - int64(i)*100,
			StatusCode:    "STATUS_CODE_OK",
			Depth:         d,
		}
	}
	markParents(spans)
	return trace.New("trace-1", spans)
}

// withCollapsedInsert inserts a collapsed parent and two hidden
// descendants at position 1, returning the new sequence and the id of
// the inserted parent.
func withCollapsedInsert(tr *trace.Trace) ([]*trace.Span, string) {
	const id = "some-id"
	inserted := []*trace.Span{
		{SpanID: id, Depth: 1, StartTime: fixtureBase, Duration: 10},
		{SpanID: "hidden-a", Depth: 2, StartTime: fixtureBase, Duration: 5},
		{SpanID: "hidden-b", Depth: 3, StartTime: fixtureBase, Duration: 2},
	}
	spans := make([]*trace.Span, 0, len(tr.Spans)+len(inserted))
	spans = append(spans, tr.Spans[0])
	spans = append(spans, inserted...)
	spans = append(spans, tr.Spans[1:]...)
	markParents(spans)
	return spans, id
}

func markParents(spans []*trace.Span) {
	for i, s := range spans {
		s.HasChildren = i+1 < len(spans) && spans[i+1].Depth > s.Depth
	}
}

func spanIDs(spans []*trace.Span) []string {
	ids := make([]string, len(spans))
	for i, s := range spans {
		ids[i] = s.SpanID
	}
	return ids
}
