// Package waterfall maps a depth-first span sequence onto the rows of a
// virtualized waterfall view. A visible span owns one bar row and, when
// its detail is expanded, a detail row directly below it. Spans inside a
// collapsed subtree own no rows.
//
// Every mapping is recomputed from the current Layout on each call; no
// row table is cached between calls.
package waterfall

import (
	"fmt"

	"github.com/Mr-Dark-debug/spanview/internal/trace"
)

// RowKind distinguishes the two kinds of rows a span can own.
type RowKind int

const (
	RowBar RowKind = iota
	RowDetail
)

func (k RowKind) String() string {
	switch k {
	case RowBar:
		return "bar"
	case RowDetail:
		return "detail"
	default:
		return fmt.Sprintf("RowKind(%d)", int(k))
	}
}

// Row identifies one visible row.
type Row struct {
	Kind      RowKind
	SpanIndex int
}

// Layout is the input of every mapping: the span sequence in depth-first
// pre-order plus the two expansion sets. The ordering is assumed, never
// checked.
type Layout struct {
	Spans     []*trace.Span
	Collapsed IDSet
	Details   DetailStates
}

func (l Layout) rowsFor(spanIndex int) int {
	if l.Details.Has(l.Spans[spanIndex].SpanID) {
		return 2
	}
	return 1
}

// RowCount returns the number of visible rows.
func (l Layout) RowCount() int {
	n := 0
	l.scan(func(i int) bool {
		n += l.rowsFor(i)
		return true
	})
	return n
}

// Row resolves rowIndex to its owning span and row kind.
func (l Layout) Row(rowIndex int) (Row, error) {
	if rowIndex < 0 {
		return Row{}, &IndexMappingError{Op: "row", Index: rowIndex, Reason: "negative row index"}
	}
	var (
		row   Row
		found bool
		n     int
	)
	l.scan(func(i int) bool {
		if n == rowIndex {
			row, found = Row{Kind: RowBar, SpanIndex: i}, true
			return false
		}
		n++
		if l.Details.Has(l.Spans[i].SpanID) {
			if n == rowIndex {
				row, found = Row{Kind: RowDetail, SpanIndex: i}, true
				return false
			}
			n++
		}
		return true
	})
	if !found {
		return Row{}, &IndexMappingError{
			Op:     "row",
			Index:  rowIndex,
			Reason: fmt.Sprintf("out of range, %d rows visible", n),
		}
	}
	return row, nil
}

// RowIndexToSpanIndex returns the index of the span owning rowIndex.
// Bar and detail rows of the same span map to the same span index.
func (l Layout) RowIndexToSpanIndex(rowIndex int) (int, error) {
	row, err := l.Row(rowIndex)
	if err != nil {
		return -1, err
	}
	return row.SpanIndex, nil
}

// SpanIndexToRowIndex returns the index of the bar row of the span at
// spanIndex. A span hidden by a collapsed ancestor has no row and is
// reported as an error; use LookupRowIndex to probe without failing.
func (l Layout) SpanIndexToRowIndex(spanIndex int) (int, error) {
	if spanIndex < 0 || spanIndex >= len(l.Spans) {
		return -1, &IndexMappingError{
			Op:     "span",
			Index:  spanIndex,
			Reason: fmt.Sprintf("out of range, trace has %d spans", len(l.Spans)),
		}
	}
	row, ok := l.LookupRowIndex(spanIndex)
	if !ok {
		return -1, &IndexMappingError{Op: "span", Index: spanIndex, Reason: "hidden by a collapsed ancestor"}
	}
	return row, nil
}

// LookupRowIndex is SpanIndexToRowIndex without the error: ok is false
// when the span is out of range or hidden.
func (l Layout) LookupRowIndex(spanIndex int) (rowIndex int, ok bool) {
	if spanIndex < 0 || spanIndex >= len(l.Spans) {
		return -1, false
	}
	n := 0
	l.scan(func(i int) bool {
		if i >= spanIndex {
			ok = i == spanIndex
			return false
		}
		n += l.rowsFor(i)
		return true
	})
	if !ok {
		return -1, false
	}
	return n, true
}
