package component

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/logger"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/ui/style"
)

// LogPanel renders the newest crawler log entries, newest last.
type LogPanel struct {
	entries   []logger.LogEntry
	height    int
	showDebug bool
	styles    logPanelStyle
}

type logPanelStyle struct {
	timestamp lipgloss.Style
	name      lipgloss.Style
	error     lipgloss.Style
	warning   lipgloss.Style
	info      lipgloss.Style
	debug     lipgloss.Style
}

// NewLogPanel creates a panel showing at most height lines.
func NewLogPanel(height int) *LogPanel {
	palette := style.DefaultPalette()
	return &LogPanel{
		height: height,
		styles: logPanelStyle{
			timestamp: lipgloss.NewStyle().Foreground(palette.Faint),
			name:      lipgloss.NewStyle().Foreground(palette.Label),
			error:     lipgloss.NewStyle().Foreground(palette.Failed).Bold(true),
			warning:   lipgloss.NewStyle().Foreground(palette.Throttled).Bold(true),
			info:      lipgloss.NewStyle().Foreground(palette.Note),
			debug:     lipgloss.NewStyle().Foreground(palette.Faint),
		},
	}
}

// SetEntries replaces the displayed entries.
func (p *LogPanel) SetEntries(entries []logger.LogEntry) {
	p.entries = entries
}

// ToggleDebug shows or hides DEBUG entries.
func (p *LogPanel) ToggleDebug() {
	p.showDebug = !p.showDebug
}

func (p *LogPanel) View() string {
	var lines []string
	for _, e := range p.entries {
		if strings.EqualFold(e.Level, "debug") && !p.showDebug {
			continue
		}
		lines = append(lines, p.format(e))
	}
	if len(lines) == 0 {
		return p.styles.debug.Render("no log entries")
	}
	if p.height > 0 && len(lines) > p.height {
		lines = lines[len(lines)-p.height:]
	}
	return strings.Join(lines, "\n")
}

func (p *LogPanel) format(e logger.LogEntry) string {
	var msg string
	switch strings.ToUpper(e.Level) {
	case "ERROR", "DPANIC", "PANIC", "FATAL":
		msg = p.styles.error.Render(e.Message)
	case "WARN":
		msg = p.styles.warning.Render(e.Message)
	case "DEBUG":
		msg = p.styles.debug.Render(e.Message)
	default:
		msg = p.styles.info.Render(e.Message)
	}
	name := ""
	if e.Logger != "" {
		name = p.styles.name.Render(e.Logger) + " "
	}
	return fmt.Sprintf("%s %s%s", p.styles.timestamp.Render(e.Timestamp.Format("15:04:05")), name, msg)
}
