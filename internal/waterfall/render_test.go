package waterfall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Dark-debug/spanview/internal/trace"
)

func TestRenderRow_Bar(t *testing.T) {
	tr := newFixtureTrace()
	c := NewCoordinator(nil, nil, Props{Trace: tr, ViewRange: FullViewRange, SpanNameColumnWidth: 0.3})

	el, err := c.RenderRow("some-key", 1)
	require.NoError(t, err)
	assert.Equal(t, "some-key", el.Key)
	assert.Equal(t, RowBar, el.Kind)
	require.NotNil(t, el.Bar)
	assert.Nil(t, el.Detail)

	bar := el.Bar
	assert.Same(t, tr.Spans[1], bar.Span)
	assert.Equal(t, 1, bar.Depth)
	assert.True(t, bar.IsParent)
	assert.True(t, bar.IsChildrenExpanded)
	assert.False(t, bar.IsDetailExpanded)
	assert.False(t, bar.IsFilteredOut)
	assert.False(t, bar.ShowErrorIcon)
	assert.Equal(t, 5, bar.NumTicks)
	assert.Equal(t, 0.3, bar.ColumnDivision)
	assert.InDelta(t, 0.1, bar.ViewStart, 1e-9)
	assert.InDelta(t, 1.0, bar.ViewEnd, 1e-9)
	assert.Nil(t, bar.RPC)
}

func TestRenderRow_Detail(t *testing.T) {
	tr := newFixtureTrace()
	state := NewDetailState().ToggleTags()
	c := NewCoordinator(nil, nil, Props{
		Trace:        tr,
		DetailStates: DetailStates{"span-1": state},
	})

	el, err := c.RenderRow("span-1--detail", 2)
	require.NoError(t, err)
	assert.Equal(t, RowDetail, el.Kind)
	require.NotNil(t, el.Detail)
	assert.Nil(t, el.Bar)
	assert.Same(t, tr.Spans[1], el.Detail.Span)
	assert.Same(t, state, el.Detail.DetailState)
	assert.Equal(t, tr.StartTime, el.Detail.TraceStartTime)

	bar, err := c.RenderRow("span-1--bar", 1)
	require.NoError(t, err)
	assert.True(t, bar.Bar.IsDetailExpanded)
}

func TestRenderRow_FilteredOut(t *testing.T) {
	tr := newFixtureTrace()
	c := NewCoordinator(nil, nil, Props{
		Trace:        tr,
		FindMatches:  NewIDSet("span-0", "span-1"),
		DetailStates: DetailStates{"span-2": NewDetailState()},
	})

	for rowIndex, want := range []bool{false, false, true, true, true} {
		el, err := c.RenderRow("k", rowIndex)
		require.NoError(t, err)
		if el.Bar != nil {
			assert.Equal(t, want, el.Bar.IsFilteredOut, "row %d", rowIndex)
		} else {
			assert.Equal(t, want, el.Detail.IsFilteredOut, "row %d", rowIndex)
		}
	}

	// an empty match set filters out every row; nil filters none
	c.SetProps(Props{Trace: tr, FindMatches: IDSet{}})
	el, err := c.RenderRow("k", 0)
	require.NoError(t, err)
	assert.True(t, el.Bar.IsFilteredOut)
}

func TestRenderRow_CollapsedErrorAndRPC(t *testing.T) {
	tr := newFixtureTrace()
	tr.Spans[4].Kind = trace.KindClient
	tr.Spans[5].Kind = trace.KindServer
	tr.Spans[5].Process.ServiceName = "backend"
	tr.Spans[6].StatusCode = "STATUS_CODE_ERROR"

	c := NewCoordinator(nil, nil, Props{Trace: tr, ViewRange: FullViewRange})
	el, err := c.RenderRow("k", 4)
	require.NoError(t, err)
	assert.False(t, el.Bar.ShowErrorIcon, "expanded parent shows no error of its children")
	assert.Nil(t, el.Bar.RPC)

	c.SetProps(Props{Trace: tr, ViewRange: FullViewRange, ChildrenHidden: NewIDSet("span-4")})
	el, err = c.RenderRow("k", 4)
	require.NoError(t, err)
	bar := el.Bar
	assert.False(t, bar.IsChildrenExpanded)
	assert.True(t, bar.ShowErrorIcon)
	require.NotNil(t, bar.RPC)
	assert.Equal(t, "backend", bar.RPC.ServiceName)
	assert.Equal(t, "op-5", bar.RPC.OperationName)
	assert.InDelta(t, 0.5, bar.RPC.ViewStart, 1e-9)
	assert.InDelta(t, 1.0, bar.RPC.ViewEnd, 1e-9)
}

func TestRenderRow_ViewRange(t *testing.T) {
	tr := newFixtureTrace()
	c := NewCoordinator(nil, nil, Props{Trace: tr, ViewRange: ViewRange{Start: 0.5, End: 1}})

	el, err := c.RenderRow("k", 1)
	require.NoError(t, err)
	assert.InDelta(t, -0.8, el.Bar.ViewStart, 1e-9)
	assert.InDelta(t, 1.0, el.Bar.ViewEnd, 1e-9)

	el, err = c.RenderRow("k", 9)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, el.Bar.ViewStart, 1e-9)
}

func TestRenderRow_Toggles(t *testing.T) {
	var toggled []string
	record := func(prefix string) func(string) {
		return func(id string) { toggled = append(toggled, prefix+id) }
	}
	tr := newFixtureTrace()
	c := NewCoordinator(nil, nil, Props{
		Trace:        tr,
		DetailStates: DetailStates{"span-0": NewDetailState()},
		Toggles: Toggles{
			Children:      record("children:"),
			Detail:        record("detail:"),
			DetailTags:    record("tags:"),
			DetailProcess: record("process:"),
			DetailLogs:    record("logs:"),
			DetailLogItem: func(id string, i int) { toggled = append(toggled, "log:"+id) },
		},
	})

	bar, err := c.RenderRow("k", 0)
	require.NoError(t, err)
	bar.Bar.OnChildrenToggled("span-0")
	bar.Bar.OnDetailToggled("span-0")

	detail, err := c.RenderRow("k", 1)
	require.NoError(t, err)
	detail.Detail.TagsToggle("span-0")
	detail.Detail.ProcessToggle("span-0")
	detail.Detail.LogsToggle("span-0")
	detail.Detail.LogItemToggle("span-0", 0)
	detail.Detail.OnDetailToggled("span-0")

	assert.Equal(t, []string{
		"children:span-0", "detail:span-0",
		"tags:span-0", "process:span-0", "logs:span-0", "log:span-0", "detail:span-0",
	}, toggled)
}

func TestRenderRow_OutOfRange(t *testing.T) {
	c := NewCoordinator(nil, nil, Props{Trace: newFixtureTrace()})
	_, err := c.RenderRow("k", 10)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
