// Package scroll moves the waterfall viewport between spans. Manager is
// the accessor registry of a waterfall.Coordinator: it navigates with
// whatever accessor bundle was published last.
package scroll

import (
	"errors"
	"fmt"

	"github.com/Mr-Dark-debug/spanview/internal/trace"
	"github.com/Mr-Dark-debug/spanview/internal/waterfall"
)

// ErrNoAccessors is returned when navigation is requested before a
// coordinator published its accessors.
var ErrNoAccessors = errors.New("scroll: accessors not registered")

// Scroller moves the viewport of the list view, in lines.
type Scroller interface {
	ScrollTo(y int)
	ScrollBy(dy int)
}

// Manager implements waterfall.AccessorRegistry.
type Manager struct {
	trace     *trace.Trace
	scroller  Scroller
	accessors *waterfall.Accessors
}

// NewManager returns a manager driving scroller.
func NewManager(tr *trace.Trace, scroller Scroller) *Manager {
	return &Manager{trace: tr, scroller: scroller}
}

// SetTrace switches the trace being navigated.
func (m *Manager) SetTrace(tr *trace.Trace) {
	m.trace = tr
}

// RegisterAccessors stores the bundle used by later navigation calls.
func (m *Manager) RegisterAccessors(a waterfall.Accessors) {
	m.accessors = &a
}

// HasAccessors reports whether a bundle was registered.
func (m *Manager) HasAccessors() bool {
	return m.accessors != nil
}

// ScrollPageDown scrolls by most of a view height.
func (m *Manager) ScrollPageDown() error {
	if m.accessors == nil {
		return ErrNoAccessors
	}
	m.scroller.ScrollBy(pageStep(m.accessors.ViewHeight()))
	return nil
}

// ScrollPageUp scrolls back by most of a view height.
func (m *Manager) ScrollPageUp() error {
	if m.accessors == nil {
		return ErrNoAccessors
	}
	m.scroller.ScrollBy(-pageStep(m.accessors.ViewHeight()))
	return nil
}

func pageStep(viewHeight int) int {
	step := viewHeight * 95 / 100
	if step < 1 {
		step = 1
	}
	return step
}

// ScrollToNextVisibleSpan scrolls past the bottom visible row to the next
// span that is inside the view range and, while a search is active,
// matches it.
func (m *Manager) ScrollToNextVisibleSpan() error {
	return m.scrollToVisibleSpan(1)
}

// ScrollToPrevVisibleSpan is ScrollToNextVisibleSpan moving upwards from
// the top visible row.
func (m *Manager) ScrollToPrevVisibleSpan() error {
	return m.scrollToVisibleSpan(-1)
}

func (m *Manager) scrollToVisibleSpan(direction int) error {
	xrs := m.accessors
	if xrs == nil {
		return ErrNoAccessors
	}
	if m.trace == nil || len(m.trace.Spans) == 0 {
		return nil
	}
	spans := m.trace.Spans
	up := direction < 0

	boundaryRow := xrs.BottomRowIndexVisible()
	if up {
		boundaryRow = xrs.TopRowIndexVisible()
	}
	spanIndex, err := xrs.MapRowIndexToSpanIndex(boundaryRow)
	if err != nil {
		return fmt.Errorf("locating boundary row: %w", err)
	}
	last := len(spans) - 1
	if (spanIndex == 0 && up) || (spanIndex == last && !up) {
		return nil
	}
	// start one span inside the window unless already at an edge
	from := spanIndex
	if spanIndex != 0 && spanIndex != last {
		from -= direction
	}

	vr := xrs.ViewRange()
	checkRange := !vr.IsFull()
	var viewStart, viewEnd int64
	if checkRange {
		d := float64(m.trace.Duration)
		viewStart = m.trace.StartTime + int64(d*vr.Start)
		viewEnd = m.trace.StartTime + int64(d*vr.End)
	}
	matches := xrs.SearchedSpanIDs()
	layout := waterfall.Layout{Spans: spans, Collapsed: xrs.CollapsedChildren()}
	visible := layout.Visibility()

	edge := len(spans)
	if up {
		edge = -1
	}
	next, found := 0, false
	for i := from + direction; i != edge; i += direction {
		s := spans[i]
		if checkRange && (s.StartTime > viewEnd || s.EndTime() < viewStart) {
			continue
		}
		if matches != nil && !matches.Has(s.SpanID) {
			continue
		}
		next, found = i, true
		break
	}
	if !found {
		next = edge - direction
	}
	if !visible[next] {
		next = visibleAncestor(visible, next)
	}

	row, err := xrs.MapSpanIndexToRowIndex(next)
	if err != nil {
		return fmt.Errorf("locating span %d: %w", next, err)
	}
	m.scrollPast(row, direction)
	return nil
}

// visibleAncestor returns the collapsed ancestor hiding spans[i]: in a
// depth-first sequence it is the nearest visible span before i.
func visibleAncestor(visible []bool, i int) int {
	for j := i - 1; j >= 0; j-- {
		if visible[j] {
			return j
		}
	}
	return 0
}

// scrollPast positions the row half a view height inside the window on
// the side it is moving towards.
func (m *Manager) scrollPast(rowIndex, direction int) {
	xrs := m.accessors
	pos := xrs.RowPosition(rowIndex)
	vh := xrs.ViewHeight()
	y := pos.Top
	if direction > 0 {
		y += pos.Height - vh
	}
	y += direction * vh / 2
	m.scroller.ScrollTo(y)
}
