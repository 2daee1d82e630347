package monitor

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/dutctl/internal/ui"
)

// Dashboard styles, built on the CLI palette.
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ui.ColorPrimary).
			Bold(true).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted).
			Padding(0, 1)

	OnlineStyle = lipgloss.NewStyle().
			Foreground(ui.ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ui.ColorError)

	TunnelDownStyle = lipgloss.NewStyle().
			Foreground(ui.ColorWarning)
)

// stateSymbol is the unstyled state marker; table cells are truncated by
// width, so escape codes can't go in them.
func stateSymbol(s State) string {
	switch s {
	case StateOnline:
		return ui.SymbolComplete
	case StateTunnelDown:
		return ui.SymbolSkipped
	default:
		return ui.SymbolFail
	}
}

func stateStyle(s State) lipgloss.Style {
	switch s {
	case StateOnline:
		return OnlineStyle
	case StateTunnelDown:
		return TunnelDownStyle
	default:
		return ErrorStyle
	}
}
