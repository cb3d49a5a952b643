// internal/ui/style/palette.go
package style

import "github.com/charmbracelet/lipgloss"

// Palette maps crawler states to colors.
type Palette struct {
	Accent  lipgloss.Color // headers, sparkline
	Section lipgloss.Color // panel titles

	OK        lipgloss.Color // sweep finished, request succeeded
	Failed    lipgloss.Color // request or persistence failures
	Throttled lipgloss.Color // upstream 403, skipped rounds
	Note      lipgloss.Color // informational log lines

	Value lipgloss.Color
	Label lipgloss.Color
	Faint lipgloss.Color // timestamps, borders, debug lines
}

// DefaultPalette is tuned for dark terminals.
func DefaultPalette() Palette {
	return Palette{
		Accent:  lipgloss.Color("#00E5FF"),
		Section: lipgloss.Color("#FF1B6B"),

		OK:        lipgloss.Color("#2AFFAA"),
		Failed:    lipgloss.Color("#FF5555"),
		Throttled: lipgloss.Color("#FFB500"),
		Note:      lipgloss.Color("#3B82F6"),

		Value: lipgloss.Color("#ECEFF4"),
		Label: lipgloss.Color("#B4BCC8"),
		Faint: lipgloss.Color("#6C7280"),
	}
}
