package tui

import (
	"fmt"
	"strings"

	"github.com/Mr-Dark-debug/spanview/pkg/timeutil"
	"github.com/charmbracelet/lipgloss"
)

// renderTraceList renders the trace selection screen.
func renderTraceList(m *Model) string {
	if len(m.traces) == 0 {
		empty := emptyStateStyle.Render(
			"No traces found.\n\n" +
				"Import an OTLP JSON export with\n" +
				"  spanview import traces.jsonl\n" +
				"then press r to reload.")
		return lipgloss.Place(
			m.width,
			m.height-3, // minus header + footer
			lipgloss.Center,
			lipgloss.Center,
			empty,
		)
	}

	title := panelTitleStyle.Render("Traces")
	count := traceDimStyle.Render(fmt.Sprintf("  %d shown", len(m.traces)))

	lines := []string{title + count, ""}

	// Visible range for scrolling
	maxVisible := m.height - 6
	if maxVisible < 5 {
		maxVisible = 5
	}

	startIdx := 0
	if m.selectedTrace >= maxVisible {
		startIdx = m.selectedTrace - maxVisible + 1
	}
	endIdx := startIdx + maxVisible
	if endIdx > len(m.traces) {
		endIdx = len(m.traces)
	}

	for i := startIdx; i < endIdx; i++ {
		t := m.traces[i]

		statusDot := traceStatusOk.Render("●")
		if t.Status == "error" {
			statusDot = traceStatusFail.Render("●")
		}

		root := t.RootService
		if t.RootOperation != "" {
			root += ": " + t.RootOperation
		}
		if root == "" {
			root = "<missing root>"
		}

		id := traceDimStyle.Render(shortID(t.TraceID, 10))
		ts := traceDimStyle.Render(timeutil.FormatTimestampFull(t.StartTime))
		meta := traceDimStyle.Render(fmt.Sprintf("%d spans  %s",
			t.SpanCount, timeutil.FormatDuration(t.EndTime-t.StartTime)))

		content := fmt.Sprintf("%s  %s  %s  %s  %s", statusDot, truncate(root, 48), meta, id, ts)

		if i == m.selectedTrace {
			lines = append(lines, traceSelectedStyle.Width(m.width-4).Render(content))
		} else {
			lines = append(lines, traceItemStyle.Width(m.width-4).Render(content))
		}
	}

	return strings.Join(lines, "\n")
}
