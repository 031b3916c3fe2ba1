package tui

import (
	"sort"

	"github.com/Mr-Dark-debug/spanview/internal/waterfall"
)

// rowList is the windowing component of the waterfall. Rows have
// variable heights in lines; only the rows intersecting the viewport
// are painted. It implements waterfall.ListView and scroll.Scroller.
type rowList struct {
	tops    []int
	heights []int
	total   int

	offset     int // first visible line
	viewHeight int
}

// setRowHeights replaces the measured heights and keeps the offset in
// range.
func (l *rowList) setRowHeights(heights []int) {
	l.heights = heights
	l.tops = make([]int, len(heights))
	y := 0
	for i, h := range heights {
		l.tops[i] = y
		y += h
	}
	l.total = y
	l.ScrollTo(l.offset)
}

// setViewHeight sets the number of lines available to rows.
func (l *rowList) setViewHeight(h int) {
	if h < 1 {
		h = 1
	}
	l.viewHeight = h
	l.ScrollTo(l.offset)
}

func (l *rowList) rowCount() int { return len(l.heights) }

// ── waterfall.ListView ──

func (l *rowList) ViewHeight() int { return l.viewHeight }

func (l *rowList) TopVisibleIndex() int {
	if len(l.heights) == 0 {
		return 0
	}
	i := sort.Search(len(l.tops), func(i int) bool {
		return l.tops[i]+l.heights[i] > l.offset
	})
	return clamp(i, 0, len(l.tops)-1)
}

func (l *rowList) BottomVisibleIndex() int {
	if len(l.heights) == 0 {
		return 0
	}
	last := l.offset + l.viewHeight - 1
	i := sort.Search(len(l.tops), func(i int) bool {
		return l.tops[i] > last
	}) - 1
	return clamp(i, 0, len(l.tops)-1)
}

func (l *rowList) RowPosition(rowIndex int) waterfall.RowPosition {
	if rowIndex < 0 || rowIndex >= len(l.tops) {
		return waterfall.RowPosition{}
	}
	return waterfall.RowPosition{Top: l.tops[rowIndex], Height: l.heights[rowIndex]}
}

// ── scroll.Scroller ──

// ScrollTo moves the viewport so line y is at its top.
func (l *rowList) ScrollTo(y int) {
	maxOffset := l.total - l.viewHeight
	if maxOffset < 0 {
		maxOffset = 0
	}
	l.offset = clamp(y, 0, maxOffset)
}

func (l *rowList) ScrollBy(dy int) {
	l.ScrollTo(l.offset + dy)
}

// ensureVisible scrolls the minimum amount that brings rowIndex into
// view. A row taller than the viewport shows its first lines.
func (l *rowList) ensureVisible(rowIndex int) {
	if rowIndex < 0 || rowIndex >= len(l.tops) {
		return
	}
	top, bottom := l.tops[rowIndex], l.tops[rowIndex]+l.heights[rowIndex]
	switch {
	case top < l.offset:
		l.ScrollTo(top)
	case bottom > l.offset+l.viewHeight:
		y := bottom - l.viewHeight
		if y > top {
			y = top
		}
		l.ScrollTo(y)
	}
}

// clampIndex pulls rowIndex into the visible window.
func (l *rowList) clampIndex(rowIndex int) int {
	if len(l.heights) == 0 {
		return 0
	}
	return clamp(rowIndex, l.TopVisibleIndex(), l.BottomVisibleIndex())
}
