package tui

import (
	"fmt"
	"strings"

	"github.com/Mr-Dark-debug/spanview/pkg/timeutil"
	"github.com/charmbracelet/lipgloss"
)

// renderHeader produces the top bar:
//
//	SPANVIEW  |  frontend: GET /users  |  42 spans  |  3 services  |  1.2s
func renderHeader(m *Model) string {
	brand := headerBrandStyle.Render("SPANVIEW")
	sep := headerSepStyle.Render(" │ ")

	parts := []string{brand}

	if tr := m.state.trace; tr != nil && !m.showTraceList {
		name := tr.TraceName
		if name == "" {
			name = shortID(m.sink.traceID, 16)
		}
		parts = append(parts, sep, headerMetaStyle.Render(name))
		parts = append(parts, sep, headerMetaStyle.Render(fmt.Sprintf("%d spans", len(tr.Spans))))
		parts = append(parts, sep, headerMetaStyle.Render(fmt.Sprintf("%d services", len(tr.Services))))
		parts = append(parts, sep, headerMetaStyle.Render(timeutil.FormatDuration(tr.Duration)))

		if m.stats != nil && m.stats.ErrorSpans > 0 {
			parts = append(parts, sep, headerErrorStyle.Render(fmt.Sprintf("%d errors", m.stats.ErrorSpans)))
		}
	} else {
		parts = append(parts, sep, headerMetaStyle.Render("Trace Explorer"))
	}

	return headerBarStyle.Width(m.width).Render(strings.Join(parts, ""))
}

// renderFooter produces the bottom status bar with keyboard hints.
func renderFooter(m *Model) string {
	var left, right string

	switch {
	case m.searchMode:
		cursor := searchCursorStyle.Render(" ")
		left = searchBarStyle.Render(fmt.Sprintf("/ %s%s", m.searchQuery, cursor))
		right = renderHints([]hint{
			{"enter", "search"},
			{"esc", "clear"},
		})
	case m.showTraceList:
		if m.statusMsg != "" {
			left = statusStyle.Render(m.statusMsg)
		}
		right = renderHints([]hint{
			{"↑↓", "navigate"},
			{"enter", "open"},
			{"r", "reload"},
			{"q", "quit"},
		})
	default:
		if m.statusMsg != "" {
			left = statusStyle.Render(m.statusMsg)
		}
		right = renderHints([]hint{
			{"↑↓", "move"},
			{"space", "detail"},
			{"h/l", "fold"},
			{"/", "search"},
			{"n/N", "match"},
			{"[ ]", "zoom"},
			{"esc", "back"},
		})
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return lipgloss.NewStyle().
		Background(colorBgSurface).
		Width(m.width).
		Render(bar)
}

type hint struct {
	key  string
	desc string
}

func renderHints(hints []hint) string {
	var parts []string
	for _, h := range hints {
		parts = append(parts,
			hintKeyStyle.Render(h.key)+" "+hintDescStyle.Render(h.desc))
	}
	return strings.Join(parts, hintDescStyle.Render("  "))
}
