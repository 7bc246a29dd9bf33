// Package tui is a terminal dashboard over the Q-value store. A
// sidebar lists agent types with their entry counts; the main pane
// shows the highest-valued entries for the selected type and
// refreshes on a timer.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/clawinfra/qbank/internal/agenttype"
	"github.com/clawinfra/qbank/internal/qstore"
)

// ─────────────────────────────────────────────────────
// Styles
// ─────────────────────────────────────────────────────

var (
	primaryColor   = lipgloss.Color("#7C3AED") // violet
	secondaryColor = lipgloss.Color("#06B6D4") // cyan
	mutedColor     = lipgloss.Color("#6B7280") // gray
	successColor   = lipgloss.Color("#10B981") // green
	errorColor     = lipgloss.Color("#EF4444") // red

	sidebarStyle = lipgloss.NewStyle().
			Width(30).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 1)

	sidebarTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	selectedType = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	typeLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	emptyType = lipgloss.NewStyle().
			Foreground(mutedColor)

	countStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	tableBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor)

	tableHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondaryColor)

	positiveValue = lipgloss.NewStyle().
			Foreground(successColor)

	negativeValue = lipgloss.NewStyle().
			Foreground(errorColor)

	rowText = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#E5E7EB"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// ─────────────────────────────────────────────────────
// Messages
// ─────────────────────────────────────────────────────

type refreshMsg struct {
	stats   qstore.Stats
	entries []qstore.Entry
	err     error
}

type tickMsg struct{}

// ─────────────────────────────────────────────────────
// Model
// ─────────────────────────────────────────────────────

// Model is the Bubble Tea model for the Q-bank dashboard.
type Model struct {
	store  *qstore.Store
	logger *slog.Logger

	types    []agenttype.AgentType
	selected int

	stats   qstore.Stats
	entries []qstore.Entry
	lastErr error

	table  viewport.Model
	width  int
	height int
	ready  bool
}

// New creates a dashboard over store. The agent type list is fixed at
// the closed enum; types with no entries render dimmed.
func New(store *qstore.Store, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	return Model{
		store:  store,
		logger: logger.With("component", "tui"),
		types:  agenttype.All(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// refreshCmd queries the store off the Update loop.
func (m Model) refreshCmd() tea.Cmd {
	store := m.store
	at := m.types[m.selected]
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		stats, err := store.Stats(ctx)
		if err != nil {
			return refreshMsg{err: err}
		}
		entries, err := store.Snapshot(ctx, at)
		if err != nil {
			return refreshMsg{err: err}
		}
		return refreshMsg{stats: stats, entries: entries}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				return m, m.refreshCmd()
			}
		case "down", "j":
			if m.selected < len(m.types)-1 {
				m.selected++
				return m, m.refreshCmd()
			}
		case "r":
			return m, m.refreshCmd()
		}

	case refreshMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			m.logger.Error("refresh failed", "error", msg.err)
		} else {
			m.lastErr = nil
			m.stats = msg.stats
			m.entries = msg.entries
		}
		if m.ready {
			m.table.SetContent(m.renderTable())
		}
		return m, nil

	case tickMsg:
		cmds = append(cmds, tickCmd(), m.refreshCmd())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		tableW := m.width - 35 // sidebar + borders
		tableH := m.height - 6 // header + footer

		if !m.ready {
			m.table = viewport.New(tableW, tableH)
			m.table.SetContent(m.renderTable())
			m.ready = true
		} else {
			m.table.Width = tableW
			m.table.Height = tableH
			m.table.SetContent(m.renderTable())
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing Q-bank dashboard..."
	}

	header := headerStyle.Width(m.width).Render(
		fmt.Sprintf("  qbank  │  %d entries  │  %d visits",
			m.stats.TotalEntries, m.stats.TotalVisits),
	)

	sidebar := m.renderSidebar()
	table := tableBorder.Width(m.width - 34).Render(m.table.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", table)

	footerText := "  ↑↓/jk: agent type │ r: refresh │ q: quit"
	if m.lastErr != nil {
		footerText = "  " + errStyle.Render(fmt.Sprintf("store error: %v", m.lastErr))
	}
	footer := footerStyle.Render(footerText)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// ─────────────────────────────────────────────────────
// Rendering helpers
// ─────────────────────────────────────────────────────

func (m Model) renderSidebar() string {
	var sb strings.Builder

	sb.WriteString(sidebarTitle.Render("  Agent Types"))
	sb.WriteString("\n")

	for i, at := range m.types {
		count := m.stats.PerAgentType[at]

		cursor := "  "
		label := typeLabel.Render(string(at))
		if i == m.selected {
			cursor = "▸ "
			label = selectedType.Render(string(at))
		} else if count == 0 {
			label = emptyType.Render(string(at))
		}

		sb.WriteString(fmt.Sprintf("%s%s %s\n",
			cursor, label, countStyle.Render(fmt.Sprintf("(%d)", count))))
	}

	return sidebarStyle.Height(m.height - 4).Render(sb.String())
}

func (m Model) renderTable() string {
	if len(m.entries) == 0 {
		return lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(1).
			Render("No Q-values for this agent type yet.")
	}

	entries := make([]qstore.Entry, len(m.entries))
	copy(entries, m.entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Value > entries[j].Value
	})

	var sb strings.Builder
	sb.WriteString(tableHeader.Render(fmt.Sprintf(" %-14s %-14s %10s %8s %s",
		"STATE", "ACTION", "VALUE", "VISITS", "UPDATED")))
	sb.WriteString("\n")

	for _, e := range entries {
		valStyle := positiveValue
		if e.Value < 0 {
			valStyle = negativeValue
		}
		sb.WriteString(fmt.Sprintf(" %s %s %s %s %s\n",
			rowText.Render(fmt.Sprintf("%-14s", shortHash(e.StateHash))),
			rowText.Render(fmt.Sprintf("%-14s", shortHash(e.ActionHash))),
			valStyle.Render(fmt.Sprintf("%10.3f", e.Value)),
			rowText.Render(fmt.Sprintf("%8d", e.VisitCount)),
			countStyle.Render(e.UpdatedAt.Format("15:04:05"))))
	}

	return sb.String()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12] + "…"
	}
	return h
}

// Run starts the dashboard and blocks until the user quits.
func Run(store *qstore.Store, logger *slog.Logger) error {
	p := tea.NewProgram(New(store, logger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
