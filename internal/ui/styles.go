package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

const (
	checkMark = "[OK]"
	crossMark = "[!!]"
	skipMark  = "[--]"
	warnMark  = "[??]"
)

// styles are bound to one renderer so color output follows the writer,
// not the process stdout.
type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	ready   lipgloss.Style
	failed  lipgloss.Style
	warning lipgloss.Style
	dim     lipgloss.Style
	label   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title: r.NewStyle().
			Bold(true).
			Foreground(colorWhite),
		section: r.NewStyle().
			Bold(true).
			Foreground(colorBlue),
		ready: r.NewStyle().
			Foreground(colorGreen),
		failed: r.NewStyle().
			Foreground(colorRed),
		warning: r.NewStyle().
			Foreground(colorYellow),
		dim: r.NewStyle().
			Foreground(colorDim),
		label: r.NewStyle().
			Width(16),
	}
}
