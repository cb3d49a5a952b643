package component

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/ui/style"
)

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline is a one-line graph of the most recent values, e.g. round durations.
type Sparkline struct {
	data  []float64
	width int
	color lipgloss.Color
}

// NewSparkline creates a new sparkline component
func NewSparkline(width int) *Sparkline {
	if width <= 0 {
		width = 1
	}
	return &Sparkline{
		width: width,
		color: style.DefaultPalette().Accent,
	}
}

// Add appends a value, keeping only the last width points.
func (s *Sparkline) Add(value float64) *Sparkline {
	s.data = append(s.data, value)
	if len(s.data) > s.width {
		s.data = s.data[len(s.data)-s.width:]
	}
	return s
}

// Len returns the number of points held.
func (s *Sparkline) Len() int {
	return len(s.data)
}

// Last returns the newest value, or 0 when empty.
func (s *Sparkline) Last() float64 {
	if len(s.data) == 0 {
		return 0
	}
	return s.data[len(s.data)-1]
}

// SetColor sets the color for the sparkline
func (s *Sparkline) SetColor(color lipgloss.Color) *Sparkline {
	s.color = color
	return s
}

// View renders the sparkline
func (s *Sparkline) View() string {
	return lipgloss.NewStyle().Foreground(s.color).Render(s.blocks())
}

func (s *Sparkline) blocks() string {
	if len(s.data) == 0 {
		return strings.Repeat("▁", s.width)
	}

	lo, hi := s.data[0], s.data[0]
	for _, v := range s.data {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	var b strings.Builder
	for _, v := range s.data {
		idx := len(sparkChars) / 2
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkChars)-1))
		}
		b.WriteRune(sparkChars[idx])
	}
	for i := len(s.data); i < s.width; i++ {
		b.WriteRune(' ')
	}
	return b.String()
}
