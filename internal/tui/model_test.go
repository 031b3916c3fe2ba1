package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Dark-debug/spanview/internal/database"
	"github.com/Mr-Dark-debug/spanview/internal/trace"
	"github.com/Mr-Dark-debug/spanview/internal/waterfall"
)

// testTrace is
//
//	root
//	  a
//	    a1
//	    a2
//	  b (checkout)
func testTrace() *trace.Trace {
	mk := func(id, service, op string, depth int, parent bool, start, dur int64) *trace.Span {
		return &trace.Span{
			SpanID:        id,
			TraceID:       "trace-1",
			OperationName: op,
			Process:       trace.Process{ServiceName: service},
			StartTime:     start,
			Duration:      dur,
			Depth:         depth,
			HasChildren:   parent,
			Tags:          []trace.KeyValue{{Key: "component", Value: "test"}},
		}
	}
	return trace.New("trace-1", []*trace.Span{
		mk("root", "frontend", "root-op", 0, true, 0, 1000),
		mk("a", "backend", "a-op", 1, true, 100, 500),
		mk("a1", "backend", "a1-op", 2, false, 150, 100),
		mk("a2", "backend", "a2-op", 2, false, 300, 100),
		mk("b", "billing", "checkout", 1, false, 700, 200),
	})
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		m, _ = update(t, m, keyMsg(k))
	}
	return m
}

func openModel(t *testing.T) Model {
	t.Helper()
	m := NewModel(nil, DefaultOptions())
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	m, _ = update(t, m, traceLoadedMsg{trace: testTrace()})
	return m
}

func TestOpenTrace(t *testing.T) {
	m := openModel(t)

	assert.False(t, m.showTraceList)
	assert.Equal(t, 5, m.list.rowCount())
	assert.Equal(t, "trace-1", m.sink.traceID)
	assert.True(t, m.scroller.HasAccessors())
	assert.Equal(t, 0, m.cursor)
}

func TestCollapseAndExpand(t *testing.T) {
	m := openModel(t)

	m = press(t, m, "j", "h")
	assert.True(t, m.state.collapsed.Has("a"))
	assert.Equal(t, 3, m.list.rowCount())
	assert.Equal(t, 1, m.cursor)

	// collapsing an already collapsed span does nothing
	m = press(t, m, "h")
	assert.True(t, m.state.collapsed.Has("a"))

	m = press(t, m, "l")
	assert.False(t, m.state.collapsed.Has("a"))
	assert.Equal(t, 5, m.list.rowCount())

	// leaves ignore enter
	m = press(t, m, "j", "enter")
	assert.Equal(t, 5, m.list.rowCount())
}

func TestDetailToggles(t *testing.T) {
	m := openModel(t)

	m = press(t, m, " ")
	require.True(t, m.state.details.Has("root"))
	assert.Equal(t, 6, m.list.rowCount())
	assert.Greater(t, m.list.RowPosition(1).Height, 1)
	assert.Equal(t, 0, m.cursor)

	height := m.list.RowPosition(1).Height
	m = press(t, m, "j", "t")
	assert.True(t, m.state.details["root"].TagsOpen)
	assert.Equal(t, 1, m.cursor, "cursor stays on the detail row")
	assert.Equal(t, height+1, m.list.RowPosition(1).Height, "one line per tag")

	m = press(t, m, "p", "o")
	assert.True(t, m.state.details["root"].ProcessOpen)
	assert.True(t, m.state.details["root"].LogsOpen)

	m = press(t, m, " ")
	assert.False(t, m.state.details.Has("root"))
	assert.Equal(t, 5, m.list.rowCount())
	assert.Equal(t, 0, m.cursor)
}

func TestSearch(t *testing.T) {
	m := openModel(t)

	m = press(t, m, "/", "check", "out")
	assert.True(t, m.searchMode)
	m, cmd := update(t, m, keyMsg("enter"))
	require.NotNil(t, cmd, "committing a search starts a matcher command")
	assert.Equal(t, "checkout", m.state.textFilter)

	msg := cmd()
	m, _ = update(t, m, msg)
	require.NotNil(t, m.state.findMatches)
	assert.True(t, m.state.findMatches.Has("b"))
	assert.Len(t, m.state.findMatches, 1)

	m = press(t, m, "n")
	assert.NotContains(t, m.statusMsg, "Error")

	// clearing the search drops late results
	m = press(t, m, "/")
	m, _ = update(t, m, keyMsg("esc"))
	assert.Nil(t, m.state.findMatches)
	m, _ = update(t, m, msg)
	assert.Nil(t, m.state.findMatches)
}

func TestSearchCarriesToNextTrace(t *testing.T) {
	m := openModel(t)
	m = press(t, m, "/", "backend")
	m, cmd := update(t, m, keyMsg("enter"))
	require.NotNil(t, cmd)

	m, cmd = update(t, m, traceLoadedMsg{trace: testTrace()})
	require.NotNil(t, cmd, "a new trace is searched with the current text")
	m, _ = update(t, m, cmd())
	assert.Len(t, m.state.findMatches, 3)
}

func TestZoom(t *testing.T) {
	m := openModel(t)

	m = press(t, m, "]")
	assert.InDelta(t, 0.25, m.state.viewRange.Start, 1e-9)
	assert.InDelta(t, 0.75, m.state.viewRange.End, 1e-9)
	assert.Equal(t, m.state.viewRange, m.coord.ViewRange())

	m = press(t, m, ">")
	assert.InDelta(t, 0.375, m.state.viewRange.Start, 1e-9)

	m = press(t, m, "0")
	assert.Equal(t, waterfall.FullViewRange, m.state.viewRange)

	m = press(t, m, "[")
	assert.Equal(t, waterfall.FullViewRange, m.state.viewRange)
}

func TestViewRendersVisibleRows(t *testing.T) {
	m := openModel(t)
	out := m.View()
	assert.Contains(t, out, "SPANVIEW")
	assert.Contains(t, out, "root-op")
	assert.Contains(t, out, "checkout")

	m = press(t, m, "esc")
	assert.True(t, m.showTraceList)
	assert.Contains(t, m.View(), "No traces found")
}

func TestLoadTraceFromStore(t *testing.T) {
	store, err := database.NewDBService(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	parent := "s1"
	require.NoError(t, store.BatchInsertSpans([]*database.Span{
		{SpanID: "s1", TraceID: "t1", ServiceName: "api", OperationName: "GET", StartTime: 10, DurationNs: 100},
		{SpanID: "s2", TraceID: "t1", ParentSpanID: &parent, ServiceName: "db", OperationName: "SELECT", StartTime: 20, DurationNs: 50},
	}))
	require.NoError(t, store.InsertTrace(&database.Trace{TraceID: "t1", RootService: "api", StartTime: 10, EndTime: 110, SpanCount: 2}))

	m := NewModel(store, DefaultOptions())
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 20})
	m, _ = update(t, m, m.Init()())
	require.Len(t, m.traces, 1)

	m, cmd := update(t, m, keyMsg("enter"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	require.NotNil(t, m.state.trace)
	assert.Equal(t, 2, m.list.rowCount())
	assert.Equal(t, 1, m.state.trace.Spans[1].Depth)
	require.NotNil(t, m.stats)
	assert.Equal(t, 2, m.stats.TotalSpans)
}

func TestRowList(t *testing.T) {
	l := &rowList{}
	l.setViewHeight(2)
	l.setRowHeights([]int{1, 3, 1, 1})

	assert.Equal(t, 0, l.TopVisibleIndex())
	assert.Equal(t, 1, l.BottomVisibleIndex())
	assert.Equal(t, waterfall.RowPosition{Top: 1, Height: 3}, l.RowPosition(1))
	assert.Equal(t, waterfall.RowPosition{}, l.RowPosition(9))

	l.ScrollTo(2)
	assert.Equal(t, 1, l.TopVisibleIndex())
	assert.Equal(t, 1, l.BottomVisibleIndex())

	l.ScrollTo(100)
	assert.Equal(t, 4, l.offset)
	assert.Equal(t, 2, l.TopVisibleIndex())
	assert.Equal(t, 3, l.BottomVisibleIndex())

	l.ensureVisible(0)
	assert.Equal(t, 0, l.offset)
	l.ensureVisible(1)
	assert.Equal(t, 1, l.offset, "a tall row shows its first lines")

	l.ScrollBy(-10)
	assert.Equal(t, 0, l.offset)
	assert.Equal(t, 1, l.clampIndex(3))
}
