// SPDX-License-Identifier: MIT
package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FFFF")).
			Bold(true)

	axisStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	markerColor = lipgloss.Color("#00FFFF")
)

// magma is a 16-step approximation of matplotlib's magma colormap, dark to
// bright.
var magma = [...]lipgloss.Color{
	"#000004", "#0c0926", "#221150", "#3b0f70",
	"#51127c", "#661a80", "#7b2382", "#932b80",
	"#a8327d", "#c03a76", "#d6456c", "#e8575f",
	"#f5705b", "#fa8d63", "#fdac76", "#fcfdbf",
}

// cellStyles[level][marked] is precomputed so View does not build styles.
var cellStyles = func() [len(magma)][2]lipgloss.Style {
	var s [len(magma)][2]lipgloss.Style
	for i, c := range magma {
		s[i][0] = lipgloss.NewStyle().Background(c)
		s[i][1] = lipgloss.NewStyle().Background(c).Foreground(markerColor).Bold(true)
	}
	return s
}()
