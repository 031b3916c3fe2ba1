package tui

import (
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"
)

// ────────────────────────────────────────────────────────────
// Color Palette (GitHub Dark)
// ────────────────────────────────────────────────────────────
//
// All colors are defined here. No ad-hoc color literals anywhere.

var (
	// Base
	colorBg        = lipgloss.Color("#0d1117")
	colorBgSurface = lipgloss.Color("#1c2128")

	// Text
	colorText      = lipgloss.Color("#e6edf3")
	colorTextDim   = lipgloss.Color("#8b949e")
	colorTextMuted = lipgloss.Color("#484f58")

	// Accents
	colorBlue   = lipgloss.Color("#58a6ff")
	colorGreen  = lipgloss.Color("#3fb950")
	colorRed    = lipgloss.Color("#f85149")
	colorYellow = lipgloss.Color("#d29922")
	colorPurple = lipgloss.Color("#bc8cff")
	colorCyan   = lipgloss.Color("#76e3ea")
	colorOrange = lipgloss.Color("#f0883e")
	colorPink   = lipgloss.Color("#f778ba")

	// Structural
	colorDivider   = lipgloss.Color("#30363d")
	colorHighlight = lipgloss.Color("#1f6feb")
)

// serviceColors cycles through accents so each service keeps one color
// for the whole session.
var serviceColors = []lipgloss.Color{
	colorBlue, colorGreen, colorPurple, colorCyan, colorYellow, colorOrange, colorPink,
}

// serviceColor picks a stable color for a service name.
func serviceColor(service string) lipgloss.Color {
	h := fnv.New32a()
	h.Write([]byte(service))
	return serviceColors[h.Sum32()%uint32(len(serviceColors))]
}

// ────────────────────────────────────────────────────────────
// Component Styles
// ────────────────────────────────────────────────────────────

// Header bar
var (
	headerBarStyle = lipgloss.NewStyle().
			Background(colorBgSurface).
			Foreground(colorText).
			Padding(0, 1)

	headerBrandStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorBlue)

	headerSepStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	headerMetaStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	headerErrorStyle = lipgloss.NewStyle().
				Foreground(colorRed)
)

// Panel chrome
var (
	panelTitleStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)
)

// Waterfall rows
var (
	rowNormalStyle = lipgloss.NewStyle().
			Foreground(colorText)

	rowSelectedStyle = lipgloss.NewStyle().
				Background(colorHighlight).
				Foreground(colorText).
				Bold(true)

	rowFilteredStyle = lipgloss.NewStyle().
				Foreground(colorTextMuted)

	rowMatchStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	treeToggleStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	errorIconStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	rpcStyle = lipgloss.NewStyle().
			Foreground(colorTextDim).
			Italic(true)

	tickStyle = lipgloss.NewStyle().
			Foreground(colorDivider)

	tickLabelStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	barErrorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	durationStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)
)

// Detail rows
var (
	detailLabelStyle = lipgloss.NewStyle().
				Foreground(colorBlue)

	detailValueStyle = lipgloss.NewStyle().
				Foreground(colorText)

	detailSectionStyle = lipgloss.NewStyle().
				Foreground(colorCyan).
				Bold(true)

	detailGutterStyle = lipgloss.NewStyle().
				Foreground(colorDivider)

	detailDimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	detailErrorStyle = lipgloss.NewStyle().
				Foreground(colorRed)
)

// Footer / status bar
var (
	statusStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorBgSurface).
			Padding(0, 1)

	hintKeyStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	hintDescStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)
)

// Trace list
var (
	traceItemStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Padding(0, 1)

	traceSelectedStyle = lipgloss.NewStyle().
				Background(colorHighlight).
				Foreground(colorText).
				Bold(true).
				Padding(0, 1)

	traceStatusOk = lipgloss.NewStyle().
			Foreground(colorGreen)

	traceStatusFail = lipgloss.NewStyle().
			Foreground(colorRed)

	traceDimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	emptyStateStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Padding(2, 4)
)

// Search bar
var (
	searchBarStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorBgSurface).
			Padding(0, 1)

	searchCursorStyle = lipgloss.NewStyle().
				Background(colorBlue).
				Foreground(colorBg)
)
