package style

import (
	"github.com/charmbracelet/lipgloss"
)

var palette = DefaultPalette()

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(palette.Accent).
			Bold(true).
			Padding(0, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.Accent)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.Faint).
			Padding(0, 2).
			Margin(0, 1, 0, 0)

	PanelTitleStyle = lipgloss.NewStyle().
			Foreground(palette.Section).
			Bold(true)
)

var (
	LabelStyle = lipgloss.NewStyle().
			Foreground(palette.Label)

	ValueStyle = lipgloss.NewStyle().
			Foreground(palette.Value).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(palette.Faint)
)

var (
	SuccessStyle = lipgloss.NewStyle().
			Foreground(palette.OK).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(palette.Failed).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(palette.Throttled).
			Bold(true)
)
