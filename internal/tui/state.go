package tui

import (
	"log"
	"math"

	"github.com/Mr-Dark-debug/spanview/internal/search"
	"github.com/Mr-Dark-debug/spanview/internal/trace"
	"github.com/Mr-Dark-debug/spanview/internal/waterfall"

	tea "github.com/charmbracelet/bubbletea"
)

// minViewWidth bounds zooming in.
const minViewWidth = 1.0 / 64

// waterfallState is the host state the coordinator props are built
// from. Toggle callbacks replace its sets and maps rather than mutating
// them, so props handed out earlier stay unchanged.
type waterfallState struct {
	trace       *trace.Trace
	collapsed   waterfall.IDSet
	details     waterfall.DetailStates
	viewRange   waterfall.ViewRange
	findMatches waterfall.IDSet
	textFilter  string
}

func newWaterfallState(vr waterfall.ViewRange) *waterfallState {
	return &waterfallState{details: waterfall.DetailStates{}, viewRange: vr}
}

// reset switches to tr. The search text survives so the new trace is
// searched too.
func (s *waterfallState) reset(tr *trace.Trace) {
	s.trace = tr
	s.collapsed = nil
	s.details = waterfall.DetailStates{}
	s.findMatches = nil
}

func (s *waterfallState) toggleChildren(spanID string) {
	s.collapsed = s.collapsed.Toggle(spanID)
}

func (s *waterfallState) toggleDetail(spanID string) {
	next := s.copyDetails()
	if _, ok := next[spanID]; ok {
		delete(next, spanID)
	} else {
		next[spanID] = waterfall.NewDetailState()
	}
	s.details = next
}

// updateDetail applies fn to an open detail state.
func (s *waterfallState) updateDetail(spanID string, fn func(*waterfall.DetailState) *waterfall.DetailState) {
	cur, ok := s.details[spanID]
	if !ok {
		return
	}
	next := s.copyDetails()
	next[spanID] = fn(cur)
	s.details = next
}

func (s *waterfallState) copyDetails() waterfall.DetailStates {
	next := make(waterfall.DetailStates, len(s.details)+1)
	for id, d := range s.details {
		next[id] = d
	}
	return next
}

func (s *waterfallState) toggles() waterfall.Toggles {
	return waterfall.Toggles{
		Children: s.toggleChildren,
		Detail:   s.toggleDetail,
		DetailTags: func(id string) {
			s.updateDetail(id, (*waterfall.DetailState).ToggleTags)
		},
		DetailProcess: func(id string) {
			s.updateDetail(id, (*waterfall.DetailState).ToggleProcess)
		},
		DetailLogs: func(id string) {
			s.updateDetail(id, (*waterfall.DetailState).ToggleLogs)
		},
		DetailLogItem: func(id string, logIndex int) {
			s.updateDetail(id, func(d *waterfall.DetailState) *waterfall.DetailState {
				return d.ToggleLogItem(logIndex)
			})
		},
	}
}

// zoom scales the view range around its center. factor < 1 zooms in.
func (s *waterfallState) zoom(factor float64) {
	vr := s.viewRange
	w := math.Min(1, math.Max(minViewWidth, (vr.End-vr.Start)*factor))
	center := (vr.Start + vr.End) / 2
	start := math.Min(math.Max(center-w/2, 0), 1-w)
	s.viewRange = waterfall.ViewRange{Start: start, End: start + w}
}

// pan shifts the view range by a fraction of its width.
func (s *waterfallState) pan(frac float64) {
	vr := s.viewRange
	w := vr.End - vr.Start
	start := math.Min(math.Max(vr.Start+w*frac, 0), 1-w)
	s.viewRange = waterfall.ViewRange{Start: start, End: start + w}
}

// ────────────────────────────────────────────────────────────
// Coordinator collaborators
// ────────────────────────────────────────────────────────────

// asyncMatcher turns the coordinator's Find calls into bubbletea
// commands. Results come back as searchResultMsg; stale ones are dropped
// through the tracker.
type asyncMatcher struct {
	tracker search.Tracker
	pending tea.Cmd
}

func (a *asyncMatcher) Find(tr *trace.Trace, text string) {
	req := a.tracker.Begin(tr, text)
	a.pending = func() tea.Msg {
		return searchResultMsg(req.Run())
	}
}

// take returns the command of the last Find, once.
func (a *asyncMatcher) take() tea.Cmd {
	cmd := a.pending
	a.pending = nil
	return cmd
}

// activeTraceSink records the trace the waterfall shows.
type activeTraceSink struct {
	traceID string
}

func (s *activeTraceSink) SetActiveTrace(traceID string) {
	s.traceID = traceID
	log.Printf("[INFO] Viewing trace %s", traceID)
}
