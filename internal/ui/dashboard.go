// internal/ui/dashboard.go
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/control"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/logger"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/ui/component"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/ui/style"
)

const (
	callTimeout = 5 * time.Second
	logLines    = 12
)

// ControlClient is the admin surface the dashboard polls.
type ControlClient interface {
	Status(ctx context.Context) (*control.Status, error)
	UpdateIntervals(ctx context.Context, update control.IntervalUpdate) (control.Intervals, error)
	Logs(ctx context.Context, limit int) ([]logger.LogEntry, error)
}

// Dashboard is the bubbletea model of the crawler status screen.
type Dashboard struct {
	client  ControlClient
	refresh time.Duration
	keys    KeyMap
	help    help.Model

	status    *control.Status
	fetchedAt time.Time
	err       error

	roundTimes *component.Sparkline
	lastRound  string
	logs       *component.LogPanel
	showLogs   bool
	logsOff    bool

	width  int
	height int
}

// NewDashboard creates a dashboard polling client every refresh.
func NewDashboard(client ControlClient, refresh time.Duration) *Dashboard {
	if refresh <= 0 {
		refresh = 2 * time.Second
	}
	return &Dashboard{
		client:     client,
		refresh:    refresh,
		keys:       DefaultKeyMap(),
		help:       help.New(),
		roundTimes: component.NewSparkline(40),
		logs:       component.NewLogPanel(logLines),
		showLogs:   true,
	}
}

func (m *Dashboard) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), m.fetchLogs(), m.tick())
}

func (m *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		return m, tea.Batch(m.fetchStatus(), m.fetchLogs(), m.tick())

	case StatusMsg:
		m.err = nil
		m.status = msg.Status
		m.fetchedAt = msg.At
		if pc := msg.Status.PositionCrawl; pc.LastUpdate != "" && pc.LastUpdate != m.lastRound {
			m.lastRound = pc.LastUpdate
			m.roundTimes.Add(pc.LastCrawlTime)
		}

	case LogsMsg:
		m.logs.SetEntries(msg.Entries)

	case IntervalsMsg:
		if m.status != nil {
			m.status.Intervals = msg.Intervals
		}

	case ErrMsg:
		if errors.Is(msg.Err, ErrLogsDisabled) {
			m.logsOff = true
			return m, nil
		}
		m.err = msg.Err

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Dashboard) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Refresh):
		return tea.Batch(m.fetchStatus(), m.fetchLogs())
	case key.Matches(msg, m.keys.ToggleLogs):
		m.showLogs = !m.showLogs
	case key.Matches(msg, m.keys.Debug):
		m.logs.ToggleDebug()
	case key.Matches(msg, m.keys.Faster):
		return m.shiftPositionInterval(-1)
	case key.Matches(msg, m.keys.Slower):
		return m.shiftPositionInterval(1)
	}
	return nil
}

func (m *Dashboard) shiftPositionInterval(delta int) tea.Cmd {
	if m.status == nil {
		return nil
	}
	next := m.status.Intervals.Position + delta
	if next < 0 {
		return nil
	}
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		intervals, err := client.UpdateIntervals(ctx, control.IntervalUpdate{Position: &next})
		if err != nil {
			return ErrMsg{Err: err}
		}
		return IntervalsMsg{Intervals: intervals}
	}
}

func (m *Dashboard) fetchStatus() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		status, err := client.Status(ctx)
		if err != nil {
			return ErrMsg{Err: err}
		}
		return StatusMsg{Status: status, At: time.Now()}
	}
}

func (m *Dashboard) fetchLogs() tea.Cmd {
	if m.logsOff {
		return nil
	}
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		entries, err := client.Logs(ctx, logLines*2)
		if err != nil {
			return ErrMsg{Err: err}
		}
		return LogsMsg{Entries: entries}
	}
}

func (m *Dashboard) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Dashboard) View() string {
	var sections []string

	header := "📊 Leaderboard crawler"
	if !m.fetchedAt.IsZero() {
		header += style.MutedStyle.Render("  updated " + m.fetchedAt.Format("15:04:05"))
	}
	sections = append(sections, style.HeaderStyle.Render(header))

	if m.err != nil {
		sections = append(sections, style.ErrorStyle.Render("⚠ "+m.err.Error()))
	}

	if m.status == nil {
		sections = append(sections, style.MutedStyle.Render("waiting for status..."))
	} else {
		sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top,
			m.intervalsPanel(m.status.Intervals),
			m.rankPanel(m.status.RankCrawl),
			m.positionPanel(m.status.PositionCrawl),
		))
	}

	if m.showLogs && !m.logsOff {
		sections = append(sections, style.PanelStyle.Render(
			style.PanelTitleStyle.Render("Recent logs")+"\n"+m.logs.View()))
	}

	sections = append(sections, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func panel(title string, rows [][2]string) string {
	lines := []string{style.PanelTitleStyle.Render(title)}
	for _, r := range rows {
		lines = append(lines, style.LabelStyle.Render(r[0]+": ")+style.ValueStyle.Render(r[1]))
	}
	return style.PanelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Dashboard) intervalsPanel(iv control.Intervals) string {
	return panel("Intervals (s)", [][2]string{
		{"rank", fmt.Sprint(iv.Rank)},
		{"user", fmt.Sprint(iv.User)},
		{"position", fmt.Sprint(iv.Position)},
	})
}

func (m *Dashboard) rankPanel(rc control.RankCrawlStatus) string {
	return panel("Rank crawl", [][2]string{
		{"traders", fmt.Sprint(rc.TotalTraderCount)},
		{"last rank sweep", orDash(rc.LastRankUpdate)},
		{"rank lists", fmt.Sprintf("%d in %.1fs", rc.LastRankCount, rc.LastRankTimeSpan)},
		{"last info sweep", orDash(rc.LastUsersUpdate)},
		{"users", fmt.Sprintf("%d in %.1fs", rc.LastUsersCount, rc.LastUsersTimeSpan)},
	})
}

func (m *Dashboard) positionPanel(pc control.PositionCrawlStatus) string {
	failed := fmt.Sprintf("%d (total %d)", pc.LastCrawlFail, pc.TotalFailed)
	if pc.LastCrawlFail > 0 {
		failed = style.WarningStyle.Render(failed)
	}
	return panel("Position crawl", [][2]string{
		{"shared traders", fmt.Sprint(pc.CurrentShareTraderCount)},
		{"last round", orDash(pc.LastUpdate)},
		{"crawled", fmt.Sprintf("%d in %.1fs", pc.LastCrawlCount, pc.LastCrawlTime)},
		{"failed", failed},
		{"rounds", fmt.Sprintf("%d (skipped %d)", pc.TotalTimes, pc.SkippedRounds)},
		{"pending events", fmt.Sprint(pc.PendingEvents)},
		{"round time", m.roundTimes.View()},
	})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
