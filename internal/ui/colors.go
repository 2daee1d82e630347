package ui

import "github.com/charmbracelet/lipgloss"

// Color palette using ANSI color codes for terminal compatibility.

// Semantic colors for status indication
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// Success renders s in the success color.
func Success(s string) string {
	return lipgloss.NewStyle().Foreground(ColorSuccess).Render(s)
}

// Failure renders s in the error color.
func Failure(s string) string {
	return lipgloss.NewStyle().Foreground(ColorError).Render(s)
}

// Warning renders s in the warning color.
func Warning(s string) string {
	return lipgloss.NewStyle().Foreground(ColorWarning).Render(s)
}

// Muted renders s in the muted color.
func Muted(s string) string {
	return lipgloss.NewStyle().Foreground(ColorMuted).Render(s)
}
