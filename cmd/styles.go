package cmd

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/observables/internal/script"
)

var (
	headingColor = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7D79F6"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	notifyColor  = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}
	addedColor   = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}
	removedColor = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(headingColor)
	stepStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	notifyStyle  = lipgloss.NewStyle().Foreground(notifyColor)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(removedColor)
	addedStyle   = lipgloss.NewStyle().Foreground(addedColor)
	removedStyle = lipgloss.NewStyle().Foreground(removedColor)
)

func render(style lipgloss.Style) func(string) string {
	return func(s string) string { return style.Render(s) }
}

func reportStyles() script.Styles {
	return script.Styles{
		Heading: render(headingStyle),
		Step:    render(stepStyle),
		Notify:  render(notifyStyle),
		Error:   render(errorStyle),
		Added:   render(addedStyle),
		Removed: render(removedStyle),
	}
}
