package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/ghbridge/pkg/client"
)

const (
	pollRate       = 2 * time.Second
	maxEntries     = 30
	viewportHeight = 20
	fetchTimeout   = 1500 * time.Millisecond
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	entryTimeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(10)
	entryPatternStyle = lipgloss.NewStyle().Width(20).Bold(true)
	entryCountStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Width(16)

	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

type tickMsg time.Time

type dataMsg struct {
	status  client.Status
	journal []client.Materialization
	stats   []client.PatternStat
	err     error
}

type model struct {
	api      *client.Client
	spinner  spinner.Model
	viewport viewport.Model
	status   client.Status
	journal  []client.Materialization
	stats    []client.PatternStat
	err      error
	ready    bool
}

func initialModel(api *client.Client) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		api:     api,
		spinner: s,
	}
}

func newViewport(width int) viewport.Model {
	vp := viewport.New(width, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)
	return vp
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(m.api),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, fetchData(m.api)
		}
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(m.api), tick())

	case dataMsg:
		if !m.ready {
			m.viewport = newViewport(100)
			m.ready = true
		}
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.journal = msg.journal
			m.stats = msg.stats
			m.viewport.SetContent(renderJournal(m.journal))
		}

	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = newViewport(msg.Width)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
	}

	return m, tea.Batch(cmds...)
}

func renderJournal(entries []client.Materialization) string {
	if len(entries) == 0 {
		return subtleStyle.Render("No materializations yet.")
	}
	var sb strings.Builder
	for _, e := range entries {
		outcome := passStyle.Render("ok")
		if !e.Succeeded {
			outcome = failStyle.Render(fmt.Sprintf("failed in %s at %s: %s", e.FailedPhase, e.FailedRef, e.FailureReason))
		}
		fmt.Fprintf(&sb, "%s %s %s %s\n",
			entryTimeStyle.Render(e.StartedAt.Local().Format("15:04:05")),
			entryPatternStyle.Render(e.Pattern),
			entryCountStyle.Render(fmt.Sprintf("%d nodes %d wires", e.NodeCount, e.EdgeCount)),
			outcome,
		)
	}
	return sb.String()
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Connecting to %s...", m.spinner.View(), m.api.Endpoint())
	}

	var top strings.Builder
	top.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Canvas Host") + "\n\n")
	if m.status.Connected {
		top.WriteString(okStyle.Render("● connected") + "\n")
	} else {
		top.WriteString(errorStyle.Render("● disconnected") + " " + subtleStyle.Render(m.status.Error) + "\n")
	}
	source := m.status.KnowledgeSource
	if m.status.KnowledgeDegraded {
		source += " (fallback)"
	}
	top.WriteString(subtleStyle.Render("knowledge: "+source) + "\n\n")

	top.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Patterns") + "\n\n")
	if len(m.stats) == 0 {
		top.WriteString(subtleStyle.Render("No patterns used yet."))
	}
	for _, s := range m.stats {
		fmt.Fprintf(&top, "• %-20s %3d runs  %3d failed\n", s.Pattern, s.Runs, s.Failures)
	}
	topPane := paneStyle.Render(top.String())

	header := headerStyle.Render(fmt.Sprintf("%s Materialization Journal", m.spinner.View()))

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %d Entries • %d Patterns", len(m.journal), len(m.stats)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress r to refresh, q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, m.viewport.View(), footer)
}

// Commands

func fetchData(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		status, err := api.Ping(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		journal, err := api.Journal(ctx, maxEntries)
		if err != nil {
			return dataMsg{err: err}
		}
		stats, err := api.PatternStats(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{status: status, journal: journal, stats: stats}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	endpoint := os.Getenv("GHBRIDGE_API_URL")
	flag.StringVar(&endpoint, "endpoint", endpoint, "ghbridge HTTP API base URL")
	flag.Parse()

	p := tea.NewProgram(initialModel(client.NewClient(endpoint)), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "ghbridge-tui: %v\n", err)
		os.Exit(1)
	}
}
