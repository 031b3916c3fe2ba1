package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Dark-debug/spanview/internal/trace"
	"github.com/Mr-Dark-debug/spanview/internal/waterfall"
)

func rowsTrace() *trace.Trace {
	mk := func(id, op string, depth int, parent bool, status string) *trace.Span {
		return &trace.Span{
			SpanID:        id,
			OperationName: op,
			Process:       trace.Process{ServiceName: "svc"},
			StartTime:     int64(depth * 10),
			Duration:      100,
			Depth:         depth,
			HasChildren:   parent,
			StatusCode:    status,
		}
	}
	return trace.New("t", []*trace.Span{
		mk("root", "GET /", 0, true, ""),
		mk("db", "query", 1, true, ""),
		mk("conn", "connect", 2, false, "STATUS_CODE_ERROR"),
		mk("cache", "lookup", 1, false, ""),
	})
}

func kinds(rows []rowOutput) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Key
	}
	return out
}

func TestBuildRows_Expanded(t *testing.T) {
	rows, err := buildRows(rowsTrace(), rowsOptions{Expand: []string{"db"}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"root--bar", "db--bar", "db--detail", "conn--bar", "cache--bar",
	}, kinds(rows))
	assert.Equal(t, "detail", rows[2].Kind)
	assert.Equal(t, 1, rows[2].SpanIndex)
	assert.True(t, rows[3].Error)
}

func TestBuildRows_Collapsed(t *testing.T) {
	rows, err := buildRows(rowsTrace(), rowsOptions{Collapse: []string{"db"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"root--bar", "db--bar", "cache--bar"}, kinds(rows))
	assert.True(t, rows[1].Collapsed)
	assert.True(t, rows[1].Error, "collapsed span shows descendant errors")
	assert.Equal(t, 3, rows[2].SpanIndex)

	rows, err = buildRows(rowsTrace(), rowsOptions{CollapseAll: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"root--bar"}, kinds(rows))
}

func TestBuildRows_Filter(t *testing.T) {
	rows, err := buildRows(rowsTrace(), rowsOptions{Filter: "lookup"})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.Equal(t, r.Operation == "lookup", r.Match, r.Key)
	}
}

func TestBuildRows_UnknownSpan(t *testing.T) {
	_, err := buildRows(rowsTrace(), rowsOptions{Expand: []string{"nope"}})
	assert.ErrorContains(t, err, "expanding span nope")

	_, err = buildRows(rowsTrace(), rowsOptions{Collapse: []string{"nope"}})
	assert.ErrorContains(t, err, "collapsing span nope")
}

func TestPrintRows(t *testing.T) {
	rows, err := buildRows(rowsTrace(), rowsOptions{ViewRange: waterfall.FullViewRange})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printRows(&buf, rows))
	out := buf.String()
	assert.Contains(t, out, "OPERATION")
	assert.Contains(t, out, "connect")
	assert.Contains(t, out, "error")
}
