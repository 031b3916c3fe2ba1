package tui

import (
	"math"
	"strings"

	"github.com/Mr-Dark-debug/spanview/internal/waterfall"
	"github.com/Mr-Dark-debug/spanview/pkg/timeutil"
	"github.com/charmbracelet/lipgloss"
)

// segment is a run of text drawn in one style.
type segment struct {
	text  string
	style lipgloss.Style
}

// renderSegments joins segments. Selected and filtered-out rows drop the
// per-segment colors for a single row style.
func renderSegments(segs []segment, selected, filtered bool) string {
	if selected || filtered {
		var b strings.Builder
		for _, s := range segs {
			b.WriteString(s.text)
		}
		if selected {
			return rowSelectedStyle.Render(b.String())
		}
		return rowFilteredStyle.Render(b.String())
	}
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.style.Render(s.text))
	}
	return b.String()
}

// fitSegments truncates or pads segs to exactly n runes.
func fitSegments(segs []segment, n int) []segment {
	out := make([]segment, 0, len(segs)+1)
	left := n
	for _, s := range segs {
		if left <= 0 {
			break
		}
		s.text = truncate(s.text, left)
		left -= len([]rune(s.text))
		out = append(out, s)
	}
	if left > 0 {
		out = append(out, segment{text: strings.Repeat(" ", left), style: rowNormalStyle})
	}
	return out
}

// columns splits width into the span name column and the timeline
// column, leaving one cell for the divider.
func columns(division float64, width int) (nameW, timeW int) {
	nameW = int(division * float64(width))
	if width > 24 {
		nameW = clamp(nameW, 10, width-12)
	}
	timeW = width - nameW - 1
	if timeW < 1 {
		timeW = 1
	}
	return nameW, timeW
}

// ────────────────────────────────────────────────────────────
// Tick header
// ────────────────────────────────────────────────────────────

// renderTicks draws the column titles and the offset of every tick
// relative to the trace start.
func renderTicks(m *Model, width int) string {
	nameW, timeW := columns(m.opts.SpanNameColumnWidth, width)
	tr := m.state.trace
	vr := m.state.viewRange

	title := "Service & Operation"
	if !vr.IsFull() {
		title += " (zoomed)"
	}
	head := panelTitleStyle.Render(padRight(title, nameW))

	buf := []rune(strings.Repeat(" ", timeW))
	labels := timeutil.TickLabels(tr.Duration, vr.Start, vr.End, waterfall.NumTicks)
	for i, label := range labels {
		pos := i * timeW / waterfall.NumTicks
		r := []rune(label)
		if pos+len(r) > timeW {
			pos = timeW - len(r)
		}
		if pos < 0 {
			continue
		}
		copy(buf[pos:], r)
	}
	return head + tickStyle.Render("│") + tickLabelStyle.Render(string(buf))
}

// ────────────────────────────────────────────────────────────
// Bar rows
// ────────────────────────────────────────────────────────────

// paintBar draws a span's bar row: the indented name column and its
// bar placed on the timeline.
func paintBar(b *waterfall.BarRow, width int, selected, matched bool) string {
	nameW, timeW := columns(b.ColumnDivision, width)
	span := b.Span

	depth := b.Depth
	if depth*2 > nameW/2 {
		depth = nameW / 4
	}
	toggle := "  "
	if b.IsParent {
		toggle = "▸ "
		if b.IsChildrenExpanded {
			toggle = "▾ "
		}
	}

	name := []segment{
		{strings.Repeat("  ", depth), rowNormalStyle},
		{toggle, treeToggleStyle},
	}
	if b.ShowErrorIcon {
		name = append(name, segment{"! ", errorIconStyle})
	}
	serviceStyle := lipgloss.NewStyle().Foreground(serviceColor(span.Process.ServiceName))
	if matched {
		serviceStyle = rowMatchStyle
	}
	name = append(name,
		segment{span.Process.ServiceName, serviceStyle},
		segment{" " + span.OperationName, rowNormalStyle},
	)
	if b.RPC != nil {
		name = append(name, segment{" → " + b.RPC.ServiceName, rpcStyle})
	}

	segs := fitSegments(name, nameW)
	segs = append(segs, segment{"│", tickStyle})
	segs = append(segs, barTimeline(b, timeW)...)
	return renderSegments(segs, selected, b.IsFilteredOut)
}

const (
	cellBlank = iota
	cellTick
	cellBar
	cellRPC
	cellLabel
)

// barTimeline lays the span bar, the collapsed RPC bar and the duration
// label over the tick grid.
func barTimeline(b *waterfall.BarRow, timeW int) []segment {
	cells := []rune(strings.Repeat(" ", timeW))
	kinds := make([]int, timeW)

	ticks := b.NumTicks
	if ticks <= 0 {
		ticks = waterfall.NumTicks
	}
	for i := 1; i < ticks; i++ {
		pos := i * timeW / ticks
		if pos < timeW {
			cells[pos], kinds[pos] = '┊', cellTick
		}
	}

	start, end, ok := barCells(b.ViewStart, b.ViewEnd, timeW)
	if ok {
		for i := start; i < end; i++ {
			cells[i], kinds[i] = '█', cellBar
		}
		if b.RPC != nil {
			if rs, re, ok := barCells(b.RPC.ViewStart, b.RPC.ViewEnd, timeW); ok {
				for i := rs; i < re; i++ {
					cells[i], kinds[i] = '▓', cellRPC
				}
			}
		}
	}

	label := []rune(timeutil.FormatDuration(b.Span.Duration))
	pos := -1
	switch {
	case !ok:
		if b.ViewEnd < 0 {
			pos = 0
		} else {
			pos = timeW - len(label)
		}
	case end+1+len(label) <= timeW:
		pos = end + 1
	case start-1-len(label) >= 0:
		pos = start - 1 - len(label)
	}
	if pos >= 0 && pos+len(label) <= timeW {
		for i, r := range label {
			cells[pos+i], kinds[pos+i] = r, cellLabel
		}
	}

	barStyle := lipgloss.NewStyle().Foreground(serviceColor(b.Span.Process.ServiceName))
	if b.Span.IsError() {
		barStyle = barErrorStyle
	}
	styleOf := func(kind int) lipgloss.Style {
		switch kind {
		case cellTick:
			return tickStyle
		case cellBar:
			return barStyle
		case cellRPC:
			return lipgloss.NewStyle().Foreground(serviceColor(b.RPC.ServiceName))
		case cellLabel:
			return durationStyle
		default:
			return rowNormalStyle
		}
	}

	var segs []segment
	for i := 0; i < timeW; {
		j := i
		for j < timeW && kinds[j] == kinds[i] {
			j++
		}
		segs = append(segs, segment{string(cells[i:j]), styleOf(kinds[i])})
		i = j
	}
	return segs
}

// barCells maps a view-relative interval onto timeline cells. ok is
// false when the interval lies entirely outside the view.
func barCells(viewStart, viewEnd float64, timeW int) (start, end int, ok bool) {
	if viewEnd < 0 || viewStart > 1 {
		return 0, 0, false
	}
	start = int(clampFrac(viewStart) * float64(timeW))
	end = int(math.Ceil(clampFrac(viewEnd) * float64(timeW)))
	if start >= timeW {
		start = timeW - 1
	}
	if end <= start {
		end = start + 1
	}
	if end > timeW {
		end = timeW
	}
	return start, end, true
}

// ────────────────────────────────────────────────────────────
// Waterfall
// ────────────────────────────────────────────────────────────

// paintRow draws a rendered row as one or more lines.
func paintRow(m *Model, el waterfall.RowElement, width int, selected bool) []string {
	if el.Kind == waterfall.RowDetail {
		return detailLines(el.Detail, width, selected)
	}
	matched := m.state.findMatches.Has(el.Bar.Span.SpanID)
	return []string{paintBar(el.Bar, width, selected, matched)}
}

// measureRows recomputes every row's height. Bar rows take one line;
// detail rows as many as their open sections need.
func (m *Model) measureRows() {
	l := m.coord.Layout()
	visible := l.Visibility()
	heights := make([]int, 0, len(visible))
	for i, s := range l.Spans {
		if !visible[i] {
			continue
		}
		heights = append(heights, 1)
		if !l.Details.Has(s.SpanID) {
			continue
		}
		rowIndex := len(heights)
		h := 1
		el, err := m.coord.RenderRow(waterfall.FormatKey(s.SpanID, waterfall.RowDetail), rowIndex)
		if err == nil {
			h = len(detailLines(el.Detail, m.width, false))
		}
		heights = append(heights, h)
	}
	m.list.setRowHeights(heights)
}

// renderWaterfall paints the tick header and the rows intersecting the
// viewport. Rows outside it are never rendered.
func renderWaterfall(m *Model, width, height int) string {
	if m.coord == nil || m.state.trace == nil {
		return emptyStateStyle.Render("No trace loaded.")
	}
	if len(m.state.trace.Spans) == 0 {
		return emptyStateStyle.Render("No spans in this trace.")
	}

	out := []string{renderTicks(m, width)}
	viewHeight := height - 1

	if m.list.rowCount() > 0 {
		top, bottom := m.list.TopVisibleIndex(), m.list.BottomVisibleIndex()
		var lines []string
		for r := top; r <= bottom; r++ {
			key, err := m.coord.KeyFromIndex(r)
			if err != nil {
				break
			}
			el, err := m.coord.RenderRow(key, r)
			if err != nil {
				break
			}
			lines = append(lines, paintRow(m, el, width, r == m.cursor)...)
		}
		skip := m.list.offset - m.list.RowPosition(top).Top
		if skip > 0 && skip <= len(lines) {
			lines = lines[skip:]
		}
		if len(lines) > viewHeight {
			lines = lines[:viewHeight]
		}
		out = append(out, lines...)
	}

	for len(out) < height {
		out = append(out, "")
	}
	return strings.Join(out, "\n")
}
