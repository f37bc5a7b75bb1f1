package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/yllada/teleport-manager/common"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#1F6FEB")).
			Padding(0, 1)

	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#2EA043")).Bold(true)
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8B949E"))
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922"))

	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#58A6FF"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E7681"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#30363D")).
			Padding(1, 2)
)

// StateStyle returns the style used to render a tunnel state.
func StateStyle(state common.TunnelState) lipgloss.Style {
	switch state {
	case common.StateActive:
		return activeStyle
	case common.StateActivating, common.StateDeactivating:
		return pendingStyle
	default:
		return inactiveStyle
	}
}
