package waterfall

import (
	"fmt"

	"github.com/Mr-Dark-debug/spanview/internal/trace"
)

// NumTicks is the number of timeline ticks drawn on every bar row.
const NumTicks = 5

// RPCInfo describes the server side of a collapsed client span.
type RPCInfo struct {
	ServiceName   string
	OperationName string
	ViewStart     float64
	ViewEnd       float64
}

// BarRow is everything a painter needs to draw a span's bar row.
type BarRow struct {
	Span               *trace.Span
	Depth              int
	IsParent           bool
	IsChildrenExpanded bool
	IsDetailExpanded   bool
	IsFilteredOut      bool
	NumTicks           int
	ShowErrorIcon      bool
	ColumnDivision     float64

	// ViewStart and ViewEnd place the span inside the view range; values
	// outside 0..1 mean the span is partly or fully out of view.
	ViewStart float64
	ViewEnd   float64
	RPC       *RPCInfo

	OnChildrenToggled func(spanID string)
	OnDetailToggled   func(spanID string)
}

// DetailRow is everything a painter needs to draw a span's detail row.
type DetailRow struct {
	Span           *trace.Span
	DetailState    *DetailState
	IsFilteredOut  bool
	ColumnDivision float64
	TraceStartTime int64

	OnDetailToggled func(spanID string)
	LogItemToggle   func(spanID string, logIndex int)
	LogsToggle      func(spanID string)
	ProcessToggle   func(spanID string)
	TagsToggle      func(spanID string)
}

// RowElement is a rendered row. Exactly one of Bar and Detail is set,
// matching Kind.
type RowElement struct {
	Key      string
	RowIndex int
	Kind     RowKind
	Bar      *BarRow
	Detail   *DetailRow
}

// RenderRow describes the row at rowIndex. key is the identity the list
// view uses for the row and is carried through unchanged.
func (c *Coordinator) RenderRow(key string, rowIndex int) (RowElement, error) {
	l := c.Layout()
	row, err := l.Row(rowIndex)
	if err != nil {
		return RowElement{}, fmt.Errorf("rendering row %q: %w", key, err)
	}
	el := RowElement{Key: key, RowIndex: rowIndex, Kind: row.Kind}
	if row.Kind == RowDetail {
		el.Detail = c.detailRow(row.SpanIndex)
	} else {
		el.Bar = c.barRow(row.SpanIndex)
	}
	return el, nil
}

func (c *Coordinator) isFilteredOut(spanID string) bool {
	return c.props.FindMatches != nil && !c.props.FindMatches.Has(spanID)
}

func (c *Coordinator) barRow(spanIndex int) *BarRow {
	p := c.props
	spans := p.Trace.Spans
	span := spans[spanIndex]
	collapsed := p.ChildrenHidden.Has(span.SpanID)
	bounds := viewedBounds(p.Trace, p.ViewRange)
	start, end := bounds(span.StartTime, span.EndTime())

	bar := &BarRow{
		Span:               span,
		Depth:              span.Depth,
		IsParent:           span.HasChildren,
		IsChildrenExpanded: !collapsed,
		IsDetailExpanded:   p.DetailStates.Has(span.SpanID),
		IsFilteredOut:      c.isFilteredOut(span.SpanID),
		NumTicks:           NumTicks,
		ShowErrorIcon:      span.IsError() || (collapsed && containsErrorSpan(spans, spanIndex)),
		ColumnDivision:     p.SpanNameColumnWidth,
		ViewStart:          start,
		ViewEnd:            end,
		OnChildrenToggled:  p.Toggles.Children,
		OnDetailToggled:    p.Toggles.Detail,
	}
	if collapsed {
		if server := findServerChild(spans, spanIndex); server != nil {
			rs, re := bounds(server.StartTime, server.EndTime())
			bar.RPC = &RPCInfo{
				ServiceName:   server.Process.ServiceName,
				OperationName: server.OperationName,
				ViewStart:     rs,
				ViewEnd:       re,
			}
		}
	}
	return bar
}

func (c *Coordinator) detailRow(spanIndex int) *DetailRow {
	p := c.props
	span := p.Trace.Spans[spanIndex]
	return &DetailRow{
		Span:            span,
		DetailState:     p.DetailStates[span.SpanID],
		IsFilteredOut:   c.isFilteredOut(span.SpanID),
		ColumnDivision:  p.SpanNameColumnWidth,
		TraceStartTime:  p.Trace.StartTime,
		OnDetailToggled: p.Toggles.Detail,
		LogItemToggle:   p.Toggles.DetailLogItem,
		LogsToggle:      p.Toggles.DetailLogs,
		ProcessToggle:   p.Toggles.DetailProcess,
		TagsToggle:      p.Toggles.DetailTags,
	}
}

// viewedBounds returns a function placing an absolute time interval
// inside the view range as fractions of the visible window.
func viewedBounds(tr *trace.Trace, vr ViewRange) func(start, end int64) (float64, float64) {
	lo, hi := float64(tr.StartTime), float64(tr.EndTime)
	duration := hi - lo
	viewMin := lo + vr.Start*duration
	viewMax := hi - (1-vr.End)*duration
	window := viewMax - viewMin
	return func(start, end int64) (float64, float64) {
		if window <= 0 {
			return 0, 1
		}
		return (float64(start) - viewMin) / window, (float64(end) - viewMin) / window
	}
}

// containsErrorSpan reports whether any span in the subtree block below
// spans[parent] failed.
func containsErrorSpan(spans []*trace.Span, parent int) bool {
	depth := spans[parent].Depth
	for i := parent + 1; i < len(spans) && spans[i].Depth > depth; i++ {
		if spans[i].IsError() {
			return true
		}
	}
	return false
}

// findServerChild returns the first direct server-kind child of a
// client-kind span, or nil.
func findServerChild(spans []*trace.Span, parent int) *trace.Span {
	span := spans[parent]
	if span.Kind != trace.KindClient {
		return nil
	}
	for i := parent + 1; i < len(spans) && spans[i].Depth > span.Depth; i++ {
		if spans[i].Depth == span.Depth+1 && spans[i].Kind == trace.KindServer {
			return spans[i]
		}
	}
	return nil
}
