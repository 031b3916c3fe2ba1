package waterfall

import (
	"github.com/Mr-Dark-debug/spanview/internal/trace"
)

// TraceSink receives the id of the trace being viewed.
type TraceSink interface {
	SetActiveTrace(traceID string)
}

// Matcher runs a text search over a trace. Results are delivered back
// through Props.FindMatches by the host, possibly later.
type Matcher interface {
	Find(tr *trace.Trace, text string)
}

// RowPosition is a row's offset and height within the scrollable content.
type RowPosition struct {
	Top    int
	Height int
}

// ListView is the windowing component rendering the rows.
type ListView interface {
	ViewHeight() int
	TopVisibleIndex() int
	BottomVisibleIndex() int
	RowPosition(rowIndex int) RowPosition
}

// AccessorRegistry consumes the accessor bundle, typically to drive
// scroll-to-span navigation. Implementations must be comparable; a
// pointer receiver is the usual choice.
type AccessorRegistry interface {
	RegisterAccessors(Accessors)
}

// Accessors is the bundle published to the AccessorRegistry. The
// functions read the coordinator's state at call time.
type Accessors struct {
	ViewHeight             func() int
	TopRowIndexVisible     func() int
	BottomRowIndexVisible  func() int
	RowPosition            func(rowIndex int) RowPosition
	ViewRange              func() ViewRange
	SearchedSpanIDs        func() IDSet
	CollapsedChildren      func() IDSet
	MapRowIndexToSpanIndex func(rowIndex int) (int, error)
	MapSpanIndexToRowIndex func(spanIndex int) (int, error)
}

// Toggles are the host callbacks handed to rendered rows.
type Toggles struct {
	Children      func(spanID string)
	Detail        func(spanID string)
	DetailTags    func(spanID string)
	DetailProcess func(spanID string)
	DetailLogs    func(spanID string)
	DetailLogItem func(spanID string, logIndex int)
}

// Props is the complete input state of a Coordinator.
type Props struct {
	Trace          *trace.Trace
	ChildrenHidden IDSet
	DetailStates   DetailStates
	ViewRange      ViewRange

	// FindMatches is nil when no search is active.
	FindMatches IDSet
	TextFilter  string

	// SpanNameColumnWidth is the fraction of the row width given to the
	// span name column.
	SpanNameColumnWidth float64

	Registry AccessorRegistry
	Toggles  Toggles
}

type publication struct {
	listView ListView
	registry AccessorRegistry
}

// Coordinator holds the current Props and reacts to their changes: it
// reports the active trace, triggers searches and publishes accessors.
// It is not safe for concurrent use.
type Coordinator struct {
	sink    TraceSink
	matcher Matcher

	props    Props
	listView ListView

	// last (list view, registry) pair the accessors were published for
	published publication

	activeTraceID string
	hasActive     bool
}

// NewCoordinator applies the initial props. sink and matcher may be nil.
func NewCoordinator(sink TraceSink, matcher Matcher, props Props) *Coordinator {
	c := &Coordinator{sink: sink, matcher: matcher}
	c.apply(props, true)
	return c
}

// SetProps replaces the props and runs the change reactions.
func (c *Coordinator) SetProps(props Props) {
	c.apply(props, false)
}

// Props returns the current props.
func (c *Coordinator) Props() Props { return c.props }

// SetListView attaches the windowing component. Passing nil detaches it.
func (c *Coordinator) SetListView(lv ListView) {
	c.listView = lv
	c.publish()
}

func (c *Coordinator) apply(next Props, initial bool) {
	prev := c.props
	c.props = next

	traceChanged := initial || prev.Trace != next.Trace
	if next.Trace != nil && (!c.hasActive || next.Trace.TraceID != c.activeTraceID) {
		c.activeTraceID = next.Trace.TraceID
		c.hasActive = true
		if c.sink != nil {
			c.sink.SetActiveTrace(next.Trace.TraceID)
		}
	}

	textChanged := initial || prev.TextFilter != next.TextFilter
	if (traceChanged || textChanged) && next.TextFilter != "" && next.Trace != nil && c.matcher != nil {
		c.matcher.Find(next.Trace, next.TextFilter)
	}

	c.publish()
}

func (c *Coordinator) publish() {
	cur := publication{listView: c.listView, registry: c.props.Registry}
	if cur == c.published {
		return
	}
	c.published = cur
	if cur.listView == nil || cur.registry == nil {
		return
	}
	cur.registry.RegisterAccessors(c.Accessors())
}

// Accessors builds the bundle for the attached list view. It returns the
// zero bundle when no list view is attached.
func (c *Coordinator) Accessors() Accessors {
	if c.listView == nil {
		return Accessors{}
	}
	lv := c.listView
	return Accessors{
		ViewHeight:             lv.ViewHeight,
		TopRowIndexVisible:     lv.TopVisibleIndex,
		BottomRowIndexVisible:  lv.BottomVisibleIndex,
		RowPosition:            lv.RowPosition,
		ViewRange:              c.ViewRange,
		SearchedSpanIDs:        c.SearchedSpanIDs,
		CollapsedChildren:      c.CollapsedChildren,
		MapRowIndexToSpanIndex: c.RowIndexToSpanIndex,
		MapSpanIndexToRowIndex: c.SpanIndexToRowIndex,
	}
}

// Layout returns the mapping input derived from the current props.
func (c *Coordinator) Layout() Layout {
	var spans []*trace.Span
	if c.props.Trace != nil {
		spans = c.props.Trace.Spans
	}
	return Layout{Spans: spans, Collapsed: c.props.ChildrenHidden, Details: c.props.DetailStates}
}

func (c *Coordinator) ViewRange() ViewRange     { return c.props.ViewRange }
func (c *Coordinator) SearchedSpanIDs() IDSet   { return c.props.FindMatches }
func (c *Coordinator) CollapsedChildren() IDSet { return c.props.ChildrenHidden }
func (c *Coordinator) RowCount() int            { return c.Layout().RowCount() }

func (c *Coordinator) RowIndexToSpanIndex(rowIndex int) (int, error) {
	return c.Layout().RowIndexToSpanIndex(rowIndex)
}

func (c *Coordinator) SpanIndexToRowIndex(spanIndex int) (int, error) {
	return c.Layout().SpanIndexToRowIndex(spanIndex)
}

func (c *Coordinator) KeyFromIndex(rowIndex int) (string, error) {
	return c.Layout().KeyFromIndex(rowIndex)
}

func (c *Coordinator) IndexFromKey(key string) (int, error) {
	return c.Layout().IndexFromKey(key)
}
