package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/ui"
)

func main() {
	addr := flag.String("addr", "http://localhost:8090", "crawler admin server URL")
	refresh := flag.Duration("refresh", 2*time.Second, "status poll period")
	flag.Parse()

	client := ui.NewClient(*addr, 5*time.Second)
	program := tea.NewProgram(ui.NewDashboard(client, *refresh), tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "💥 TUI application failed: %v\n", err)
		os.Exit(1)
	}
}
