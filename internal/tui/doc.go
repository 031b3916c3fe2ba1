// Package tui implements the spanview terminal user interface.
//
// It is built with Charmbracelet's BubbleTea and Lipgloss and hosts a
// waterfall.Coordinator: the model owns the collapse, detail, zoom and
// search state, hands it to the coordinator as props, and paints only
// the rows the coordinator maps into the viewport.
//
// Component architecture:
//
//	model.go      root model, message routing, Init/Update
//	state.go      host state, row toggles, async search
//	listview.go   variable-height row window (ListView + Scroller)
//	timeline.go   tick header and bar rows
//	detail.go     detail rows: tags, process, logs
//	header.go     top bar with trace context, footer with hints
//	tracelist.go  trace selector (initial screen)
//	theme.go      centralized color + style definitions
//	helpers.go    truncation and clamping
package tui
