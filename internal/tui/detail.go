package tui

import (
	"fmt"
	"strings"

	"github.com/Mr-Dark-debug/spanview/internal/trace"
	"github.com/Mr-Dark-debug/spanview/internal/waterfall"
	"github.com/Mr-Dark-debug/spanview/pkg/jsonutil"
	"github.com/Mr-Dark-debug/spanview/pkg/timeutil"
)

// detailLines renders a span's detail row. The section headers carry
// the key that toggles them; the line count depends only on the span
// and its detail state.
func detailLines(d *waterfall.DetailRow, width int, selected bool) []string {
	span := d.Span
	state := d.DetailState
	if state == nil {
		state = waterfall.NewDetailState()
	}

	inner := width - 2
	if inner < 10 {
		inner = 10
	}
	gutter := detailGutterStyle.Render("│ ")
	if selected {
		gutter = rowSelectedStyle.Render("│") + " "
	}

	var lines []string
	add := func(s string) { lines = append(lines, gutter+s) }

	add(detailSectionStyle.Render(truncate(span.OperationName, inner/2)) +
		"  " + detailDimStyle.Render(truncate(span.Process.ServiceName, inner/2-2)))

	kind := span.Kind
	if kind == "" {
		kind = "-"
	}
	add(detailField("Duration", timeutil.FormatDuration(span.Duration)) + "  " +
		detailField("Start", "+"+timeutil.FormatDuration(span.StartTime-d.TraceStartTime)) + "  " +
		detailField("Kind", kind))

	if span.IsError() {
		msg := span.StatusMessage
		if msg == "" {
			msg = span.StatusCode
		}
		add(detailErrorStyle.Render(truncate("Error: "+msg, inner)))
	}

	for _, l := range kvSection("Tags", "t", state.TagsOpen, span.Tags, inner) {
		add(l)
	}
	for _, l := range kvSection("Process", "p", state.ProcessOpen, span.Process.Tags, inner) {
		add(l)
	}
	for _, l := range logSection(span, state, d.TraceStartTime, inner) {
		add(l)
	}

	add(detailDimStyle.Render("SpanID ") + detailValueStyle.Render(span.SpanID))
	return lines
}

func detailField(label, value string) string {
	return detailLabelStyle.Render(label) + " " + detailValueStyle.Render(value)
}

func sectionHeader(title, key string, open bool, count int) string {
	marker := "▸"
	if open {
		marker = "▾"
	}
	return detailSectionStyle.Render(fmt.Sprintf("%s %s (%d)", marker, title, count)) +
		detailDimStyle.Render(fmt.Sprintf(" [%s]", key))
}

// kvSection shows a one-line summary when closed and one pair per line
// when open. JSON values are pretty-printed.
func kvSection(title, key string, open bool, kvs []trace.KeyValue, width int) []string {
	header := sectionHeader(title, key, open, len(kvs))
	if !open {
		if len(kvs) == 0 {
			return []string{header}
		}
		pairs := make([]string, len(kvs))
		for i, kv := range kvs {
			pairs[i] = kv.Key + "=" + jsonutil.CompactJSON(kv.Value)
		}
		summary := truncate(strings.Join(pairs, "  "), width-len(title)-12)
		return []string{header + "  " + detailDimStyle.Render(summary)}
	}

	lines := []string{header}
	for _, kv := range kvs {
		lines = append(lines, kvLines(kv, "    ", width)...)
	}
	return lines
}

func kvLines(kv trace.KeyValue, indent string, width int) []string {
	prefix := indent + kv.Key + " = "
	if !jsonutil.LooksLikeJSON(kv.Value) {
		return []string{detailLabelStyle.Render(indent+kv.Key) + " = " +
			detailValueStyle.Render(truncate(kv.Value, width-len([]rune(prefix))))}
	}
	pretty := strings.Split(jsonutil.PrettyJSON(kv.Value), "\n")
	lines := []string{detailLabelStyle.Render(indent+kv.Key) + " ="}
	for _, p := range pretty {
		lines = append(lines, detailValueStyle.Render(truncate(indent+"  "+p, width)))
	}
	return lines
}

// logSection lists span logs by offset from the trace start. Open log
// items show every field on its own line.
func logSection(span *trace.Span, state *waterfall.DetailState, traceStart int64, width int) []string {
	lines := []string{sectionHeader("Logs", "o", state.LogsOpen, len(span.Logs))}
	if !state.LogsOpen {
		return lines
	}
	for i, l := range span.Logs {
		marker := "▸"
		if state.IsLogItemOpen(i) {
			marker = "▾"
		}
		offset := "+" + timeutil.FormatDuration(l.Timestamp-traceStart)
		head := fmt.Sprintf("  %s [%d] %s", marker, i+1, offset)
		if !state.IsLogItemOpen(i) {
			pairs := make([]string, len(l.Fields))
			for j, f := range l.Fields {
				pairs[j] = f.Key + "=" + f.Value
			}
			summary := truncate(strings.Join(pairs, "  "), width-len([]rune(head))-2)
			lines = append(lines, detailValueStyle.Render(head)+"  "+detailDimStyle.Render(summary))
			continue
		}
		lines = append(lines, detailValueStyle.Render(head))
		for _, f := range l.Fields {
			lines = append(lines, kvLines(f, "      ", width)...)
		}
	}
	return lines
}
