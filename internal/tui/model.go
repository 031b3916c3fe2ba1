package tui

import (
	"fmt"
	"log"
	"strings"

	"github.com/Mr-Dark-debug/spanview/internal/database"
	"github.com/Mr-Dark-debug/spanview/internal/scroll"
	"github.com/Mr-Dark-debug/spanview/internal/search"
	"github.com/Mr-Dark-debug/spanview/internal/trace"
	"github.com/Mr-Dark-debug/spanview/internal/waterfall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ────────────────────────────────────────────────────────────
// Options
// ────────────────────────────────────────────────────────────

// Options configures the waterfall.
type Options struct {
	// SpanNameColumnWidth is the fraction of the width given to span names.
	SpanNameColumnWidth float64
	// ViewRange is the initial zoom window.
	ViewRange waterfall.ViewRange
	// TraceLimit caps the trace list.
	TraceLimit int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		SpanNameColumnWidth: 0.25,
		ViewRange:           waterfall.FullViewRange,
		TraceLimit:          100,
	}
}

// ────────────────────────────────────────────────────────────
// Model
// ────────────────────────────────────────────────────────────

// Model is the root BubbleTea model for the spanview TUI.
// The waterfall is driven by a waterfall.Coordinator; the model owns
// the host state it reads and re-submits props after every change.
type Model struct {
	store database.Store
	opts  Options

	// Data
	traces []*database.Trace
	stats  *database.TraceStats

	// Waterfall
	state    *waterfallState
	coord    *waterfall.Coordinator
	list     *rowList
	scroller *scroll.Manager
	matcher  *asyncMatcher
	sink     *activeTraceSink
	cursor   int // row index

	// UI state
	selectedTrace int
	width         int
	height        int
	showTraceList bool
	searchMode    bool
	searchQuery   string

	// Status
	statusMsg string
	err       error
}

// NewModel creates a new TUI model backed by the given store.
func NewModel(store database.Store, opts Options) Model {
	def := DefaultOptions()
	if opts.SpanNameColumnWidth <= 0 || opts.SpanNameColumnWidth >= 1 {
		opts.SpanNameColumnWidth = def.SpanNameColumnWidth
	}
	if opts.ViewRange.Start < 0 || opts.ViewRange.End > 1 || opts.ViewRange.End <= opts.ViewRange.Start {
		opts.ViewRange = def.ViewRange
	}
	if opts.TraceLimit <= 0 {
		opts.TraceLimit = def.TraceLimit
	}

	list := &rowList{viewHeight: 1}
	return Model{
		store:         store,
		opts:          opts,
		state:         newWaterfallState(opts.ViewRange),
		list:          list,
		scroller:      scroll.NewManager(nil, list),
		matcher:       &asyncMatcher{},
		sink:          &activeTraceSink{},
		showTraceList: true,
		statusMsg:     "Loading traces...",
	}
}

// ────────────────────────────────────────────────────────────
// Messages
// ────────────────────────────────────────────────────────────

type tracesLoadedMsg []*database.Trace
type traceLoadedMsg struct {
	trace *trace.Trace
	stats *database.TraceStats
}
type searchResultMsg search.Result
type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// ────────────────────────────────────────────────────────────
// Init
// ────────────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return m.loadTraces()
}

func (m Model) loadTraces() tea.Cmd {
	return func() tea.Msg {
		traces, err := m.store.QueryTraces(database.TraceFilter{Limit: m.opts.TraceLimit})
		if err != nil {
			return errMsg{err}
		}
		return tracesLoadedMsg(traces)
	}
}

func (m Model) loadTrace(traceID string) tea.Cmd {
	return func() tea.Msg {
		rec, err := m.store.GetTrace(traceID)
		if err != nil {
			return errMsg{err}
		}
		rows, err := m.store.QueryTimeline(traceID)
		if err != nil {
			return errMsg{err}
		}
		tr, err := trace.Transform(rec, rows)
		if err != nil {
			return errMsg{err}
		}
		stats, err := m.store.GetTraceStats(traceID)
		if err != nil {
			return errMsg{err}
		}
		return traceLoadedMsg{trace: tr, stats: stats}
	}
}

// ────────────────────────────────────────────────────────────
// Props
// ────────────────────────────────────────────────────────────

func (m *Model) props() waterfall.Props {
	s := m.state
	return waterfall.Props{
		Trace:               s.trace,
		ChildrenHidden:      s.collapsed,
		DetailStates:        s.details,
		ViewRange:           s.viewRange,
		FindMatches:         s.findMatches,
		TextFilter:          s.textFilter,
		SpanNameColumnWidth: m.opts.SpanNameColumnWidth,
		Registry:            m.scroller,
		Toggles:             s.toggles(),
	}
}

// sync pushes the current state to the coordinator, re-measures the
// rows and returns the search command the push may have started.
func (m *Model) sync() tea.Cmd {
	if m.coord == nil {
		m.coord = waterfall.NewCoordinator(m.sink, m.matcher, m.props())
		m.coord.SetListView(m.list)
	} else {
		m.coord.SetProps(m.props())
	}
	m.measureRows()
	if n := m.list.rowCount(); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	return m.matcher.take()
}

func (m *Model) bodyHeight() int {
	return m.height - 2 // header + footer
}

func (m *Model) resizeList() {
	m.list.setViewHeight(m.bodyHeight() - 1) // tick header
	if m.coord != nil {
		m.measureRows()
		m.list.ensureVisible(m.cursor)
	}
}

// ────────────────────────────────────────────────────────────
// Update
// ────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeList()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tracesLoadedMsg:
		m.traces = []*database.Trace(msg)
		if m.selectedTrace >= len(m.traces) {
			m.selectedTrace = 0
		}
		if len(m.traces) > 0 {
			m.statusMsg = fmt.Sprintf("%d traces", len(m.traces))
		} else {
			m.statusMsg = "No traces"
		}
		return m, nil

	case traceLoadedMsg:
		return m, m.openTrace(msg)

	case searchResultMsg:
		res := search.Result(msg)
		if !m.matcher.tracker.Accept(res) || m.state.trace == nil || res.TraceID != m.state.trace.TraceID {
			return m, nil
		}
		m.state.findMatches = res.Matches
		log.Printf("[DEBUG] Search %q matched %d spans", res.Text, len(res.Matches))
		m.statusMsg = fmt.Sprintf("%d matches for %q", len(res.Matches), res.Text)
		return m, m.sync()

	case errMsg:
		m.err = msg.err
		m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		log.Printf("[ERROR] %v", msg.err)
		return m, nil
	}

	return m, nil
}

// openTrace shows a freshly loaded trace from its first row.
func (m *Model) openTrace(msg traceLoadedMsg) tea.Cmd {
	m.state.reset(msg.trace)
	m.stats = msg.stats
	m.scroller.SetTrace(msg.trace)
	m.showTraceList = false
	m.cursor = 0
	m.list.ScrollTo(0)
	m.err = nil
	m.statusMsg = fmt.Sprintf("%d spans  %d services", len(msg.trace.Spans), len(msg.trace.Services))
	return m.sync()
}

// handleKey routes keyboard input based on current mode.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.searchMode {
		return m.handleSearchKey(msg)
	}

	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	}

	if m.showTraceList {
		switch key {
		case "j", "down":
			if m.selectedTrace < len(m.traces)-1 {
				m.selectedTrace++
			}
		case "k", "up":
			if m.selectedTrace > 0 {
				m.selectedTrace--
			}
		case "r":
			m.statusMsg = "Loading traces..."
			return m, m.loadTraces()
		case "enter":
			if m.selectedTrace < len(m.traces) {
				m.statusMsg = "Loading trace..."
				return m, m.loadTrace(m.traces[m.selectedTrace].TraceID)
			}
		}
		return m, nil
	}

	return m.handleWaterfallKey(key)
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter:
		m.searchMode = false
		return m, m.setTextFilter(strings.TrimSpace(m.searchQuery))
	case tea.KeyEsc:
		m.searchMode = false
		m.searchQuery = ""
		return m, m.setTextFilter("")
	case tea.KeyBackspace:
		if r := []rune(m.searchQuery); len(r) > 0 {
			m.searchQuery = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.searchQuery += " "
	case tea.KeyRunes:
		m.searchQuery += string(msg.Runes)
	}
	return m, nil
}

// setTextFilter starts a search for text, or clears the search when
// text is empty.
func (m *Model) setTextFilter(text string) tea.Cmd {
	m.state.textFilter = text
	if text == "" {
		m.state.findMatches = nil
		m.matcher.tracker.Cancel()
		m.statusMsg = "Search cleared"
	} else {
		m.statusMsg = fmt.Sprintf("Searching %q...", text)
	}
	if m.coord == nil {
		return nil
	}
	return m.sync()
}

func (m Model) handleWaterfallKey(key string) (tea.Model, tea.Cmd) {
	last := m.list.rowCount() - 1

	switch key {
	case "esc":
		m.showTraceList = true
		return m, nil

	case "/":
		m.searchMode = true
		m.searchQuery = m.state.textFilter
		return m, nil

	case "j", "down":
		m.moveCursor(m.cursor + 1)
	case "k", "up":
		m.moveCursor(m.cursor - 1)
	case "g", "home":
		m.moveCursor(0)
	case "G", "end":
		m.moveCursor(last)

	case "pgdown", "ctrl+d":
		m.navigate(m.scroller.ScrollPageDown)
	case "pgup", "ctrl+u":
		m.navigate(m.scroller.ScrollPageUp)
	case "n":
		m.navigate(m.scroller.ScrollToNextVisibleSpan)
	case "N":
		m.navigate(m.scroller.ScrollToPrevVisibleSpan)

	case " ", "space":
		return m, m.toggleAtCursor(func(bar *waterfall.BarRow, _ *waterfall.DetailRow) {
			bar.OnDetailToggled(bar.Span.SpanID)
		})
	case "enter":
		return m, m.toggleAtCursor(func(bar *waterfall.BarRow, _ *waterfall.DetailRow) {
			if bar.IsParent {
				bar.OnChildrenToggled(bar.Span.SpanID)
			}
		})
	case "h", "left":
		return m, m.toggleAtCursor(func(bar *waterfall.BarRow, _ *waterfall.DetailRow) {
			if bar.IsParent && bar.IsChildrenExpanded {
				bar.OnChildrenToggled(bar.Span.SpanID)
			}
		})
	case "l", "right":
		return m, m.toggleAtCursor(func(bar *waterfall.BarRow, _ *waterfall.DetailRow) {
			if bar.IsParent && !bar.IsChildrenExpanded {
				bar.OnChildrenToggled(bar.Span.SpanID)
			}
		})
	case "t":
		return m, m.toggleAtCursor(func(_ *waterfall.BarRow, d *waterfall.DetailRow) {
			if d != nil {
				d.TagsToggle(d.Span.SpanID)
			}
		})
	case "p":
		return m, m.toggleAtCursor(func(_ *waterfall.BarRow, d *waterfall.DetailRow) {
			if d != nil {
				d.ProcessToggle(d.Span.SpanID)
			}
		})
	case "o":
		return m, m.toggleAtCursor(func(_ *waterfall.BarRow, d *waterfall.DetailRow) {
			if d != nil {
				d.LogsToggle(d.Span.SpanID)
			}
		})
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		logIndex := int(key[0] - '1')
		return m, m.toggleAtCursor(func(_ *waterfall.BarRow, d *waterfall.DetailRow) {
			if d != nil && d.DetailState != nil && d.DetailState.LogsOpen && logIndex < len(d.Span.Logs) {
				d.LogItemToggle(d.Span.SpanID, logIndex)
			}
		})

	case "]":
		m.state.zoom(0.5)
		return m, m.sync()
	case "[":
		m.state.zoom(2)
		return m, m.sync()
	case "<":
		m.state.pan(-0.25)
		return m, m.sync()
	case ">":
		m.state.pan(0.25)
		return m, m.sync()
	case "0":
		m.state.viewRange = waterfall.FullViewRange
		return m, m.sync()
	}
	return m, nil
}

func (m *Model) moveCursor(row int) {
	if m.list.rowCount() == 0 {
		return
	}
	m.cursor = clamp(row, 0, m.list.rowCount()-1)
	m.list.ensureVisible(m.cursor)
}

// navigate runs a scroll manager operation and keeps the cursor inside
// the new window.
func (m *Model) navigate(op func() error) {
	if m.coord == nil {
		return
	}
	if err := op(); err != nil {
		m.statusMsg = fmt.Sprintf("Error: %v", err)
		return
	}
	m.cursor = m.list.clampIndex(m.cursor)
}

// cursorRows resolves the bar row of the span under the cursor and its
// detail row when expanded. The cursor may sit on either.
func (m *Model) cursorRows() (bar *waterfall.BarRow, detail *waterfall.DetailRow, spanIndex int, ok bool) {
	if m.coord == nil || m.list.rowCount() == 0 {
		return nil, nil, 0, false
	}
	spanIndex, err := m.coord.RowIndexToSpanIndex(m.cursor)
	if err != nil {
		return nil, nil, 0, false
	}
	barIndex, err := m.coord.SpanIndexToRowIndex(spanIndex)
	if err != nil {
		return nil, nil, 0, false
	}
	id := m.state.trace.Spans[spanIndex].SpanID
	el, err := m.coord.RenderRow(waterfall.FormatKey(id, waterfall.RowBar), barIndex)
	if err != nil {
		return nil, nil, 0, false
	}
	bar = el.Bar
	if bar.IsDetailExpanded {
		del, err := m.coord.RenderRow(waterfall.FormatKey(id, waterfall.RowDetail), barIndex+1)
		if err == nil {
			detail = del.Detail
		}
	}
	return bar, detail, spanIndex, true
}

// toggleAtCursor lets fn fire row callbacks for the span under the
// cursor, then re-syncs and keeps the cursor on that span's bar row.
func (m *Model) toggleAtCursor(fn func(bar *waterfall.BarRow, detail *waterfall.DetailRow)) tea.Cmd {
	bar, detail, spanIndex, ok := m.cursorRows()
	if !ok {
		return nil
	}
	onDetail := m.cursorIsDetail()
	fn(bar, detail)
	cmd := m.sync()
	if row, ok := m.coord.Layout().LookupRowIndex(spanIndex); ok {
		if onDetail && m.state.details.Has(bar.Span.SpanID) {
			row++
		}
		m.cursor = row
	}
	m.list.ensureVisible(m.cursor)
	return cmd
}

func (m *Model) cursorIsDetail() bool {
	key, err := m.coord.KeyFromIndex(m.cursor)
	if err != nil {
		return false
	}
	_, kind, err := waterfall.ParseKey(key)
	return err == nil && kind == waterfall.RowDetail
}

// ────────────────────────────────────────────────────────────
// View
// ────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	header := renderHeader(&m)
	footer := renderFooter(&m)

	var body string
	if m.showTraceList {
		body = renderTraceList(&m)
	} else {
		body = renderWaterfall(&m, m.width, m.bodyHeight())
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}
