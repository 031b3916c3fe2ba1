package scroll

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Dark-debug/spanview/internal/trace"
	"github.com/Mr-Dark-debug/spanview/internal/waterfall"
)

type recordingScroller struct {
	to []int
	by []int
}

func (s *recordingScroller) ScrollTo(y int)  { s.to = append(s.to, y) }
func (s *recordingScroller) ScrollBy(dy int) { s.by = append(s.by, dy) }

type stubListView struct {
	height, top, bottom int
}

func (v *stubListView) ViewHeight() int         { return v.height }
func (v *stubListView) TopVisibleIndex() int    { return v.top }
func (v *stubListView) BottomVisibleIndex() int { return v.bottom }
func (v *stubListView) RowPosition(rowIndex int) waterfall.RowPosition {
	return waterfall.RowPosition{Top: rowIndex, Height: 1}
}

// newTestTrace builds ten spans shaped
// 0 ( 1 (2 3) 4 (5 (6)) 7 8 (9) ), span i covering [100*i, 1000).
func newTestTrace() *trace.Trace {
	depths := []int{0, 1, 2, 2, 1, 2, 3, 1, 1, 2}
	spans := make([]*trace.Span, len(depths))
	for i, d := range depths {
		spans[i] = &trace.Span{
			SpanID:    fmt.Sprintf("span-%d", i),
			StartTime: int64(i) * 100,
			Duration:  1000 - int64(i)*100,
			Depth:     d,
		}
	}
	for i, s := range spans {
		s.HasChildren = i+1 < len(spans) && spans[i+1].Depth > s.Depth
	}
	return trace.New("t1", spans)
}

type harness struct {
	tr       *trace.Trace
	scroller *recordingScroller
	manager  *Manager
	lv       *stubListView
	coord    *waterfall.Coordinator
}

func newHarness(t *testing.T, props waterfall.Props, lv *stubListView) *harness {
	t.Helper()
	h := &harness{tr: newTestTrace(), scroller: &recordingScroller{}, lv: lv}
	h.manager = NewManager(h.tr, h.scroller)
	props.Trace = h.tr
	props.Registry = h.manager
	if props.ViewRange == (waterfall.ViewRange{}) {
		props.ViewRange = waterfall.FullViewRange
	}
	h.coord = waterfall.NewCoordinator(nil, nil, props)
	h.coord.SetListView(lv)
	require.True(t, h.manager.HasAccessors())
	return h
}

func TestScrollToNextVisibleSpan(t *testing.T) {
	h := newHarness(t, waterfall.Props{}, &stubListView{height: 4, top: 0, bottom: 3})
	require.NoError(t, h.manager.ScrollToNextVisibleSpan())
	assert.Equal(t, []int{2}, h.scroller.to)
}

func TestScrollToNextVisibleSpan_SkipsNonMatches(t *testing.T) {
	h := newHarness(t, waterfall.Props{FindMatches: waterfall.NewIDSet("span-7")},
		&stubListView{height: 4, top: 0, bottom: 3})
	require.NoError(t, h.manager.ScrollToNextVisibleSpan())
	assert.Equal(t, []int{6}, h.scroller.to)
}

func TestScrollToPrevVisibleSpan(t *testing.T) {
	h := newHarness(t, waterfall.Props{FindMatches: waterfall.NewIDSet("span-1")},
		&stubListView{height: 4, top: 5, bottom: 8})
	require.NoError(t, h.manager.ScrollToPrevVisibleSpan())
	assert.Equal(t, []int{-1}, h.scroller.to)
}

func TestScrollToNextVisibleSpan_LandsOnCollapsedAncestor(t *testing.T) {
	h := newHarness(t, waterfall.Props{
		ChildrenHidden: waterfall.NewIDSet("span-1"),
		FindMatches:    waterfall.NewIDSet("span-2"),
	}, &stubListView{height: 4, top: 0, bottom: 1})
	require.NoError(t, h.manager.ScrollToNextVisibleSpan())
	// span-2 is hidden under span-1, which owns row 1
	assert.Equal(t, []int{0}, h.scroller.to)
}

func TestScrollToNextVisibleSpan_NoMatchGoesToEnd(t *testing.T) {
	h := newHarness(t, waterfall.Props{FindMatches: waterfall.IDSet{}},
		&stubListView{height: 4, top: 0, bottom: 3})
	require.NoError(t, h.manager.ScrollToNextVisibleSpan())
	assert.Equal(t, []int{8}, h.scroller.to)
}

func TestScrollToNextVisibleSpan_RespectsViewRange(t *testing.T) {
	h := newHarness(t, waterfall.Props{ViewRange: waterfall.ViewRange{Start: 0, End: 0.35}},
		&stubListView{height: 4, top: 1, bottom: 4})
	require.NoError(t, h.manager.ScrollToNextVisibleSpan())
	// nothing after span-3 starts inside the range
	assert.Equal(t, []int{8}, h.scroller.to)
}

func TestScrollToNextVisibleSpan_AtEdge(t *testing.T) {
	h := newHarness(t, waterfall.Props{}, &stubListView{height: 4, top: 6, bottom: 9})
	require.NoError(t, h.manager.ScrollToNextVisibleSpan())
	assert.Empty(t, h.scroller.to)

	h.lv.top = 0
	require.NoError(t, h.manager.ScrollToPrevVisibleSpan())
	assert.Empty(t, h.scroller.to)
}

func TestScrollPage(t *testing.T) {
	h := newHarness(t, waterfall.Props{}, &stubListView{height: 20})
	require.NoError(t, h.manager.ScrollPageDown())
	require.NoError(t, h.manager.ScrollPageUp())
	assert.Equal(t, []int{19, -19}, h.scroller.by)
}

func TestManager_NoAccessors(t *testing.T) {
	m := NewManager(newTestTrace(), &recordingScroller{})
	assert.ErrorIs(t, m.ScrollToNextVisibleSpan(), ErrNoAccessors)
	assert.ErrorIs(t, m.ScrollToPrevVisibleSpan(), ErrNoAccessors)
	assert.ErrorIs(t, m.ScrollPageDown(), ErrNoAccessors)
}

func TestManager_BoundaryRowError(t *testing.T) {
	h := newHarness(t, waterfall.Props{}, &stubListView{height: 4, bottom: 42})
	err := h.manager.ScrollToNextVisibleSpan()
	assert.ErrorIs(t, err, waterfall.ErrInvalidArgument)
}
