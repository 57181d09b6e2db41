package dashboardui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kestrelrun/genie/internal/batch"
	"github.com/kestrelrun/genie/internal/config"
	"github.com/kestrelrun/genie/internal/dashboard"
)

// refreshInterval is how often the model polls its snapshot funcs. The
// aggregator snapshot is an in-memory read and the batch manager re-reads
// its batch files from disk on each call; a plain tea.Tick loop polls both
// instead of a push channel.
const refreshInterval = 500 * time.Millisecond

// StatesFunc returns the current snapshot of per-pane dashboard state.
type StatesFunc func() []dashboard.WorkerDashboardState

// BatchesFunc returns the current snapshot of tracked batches.
type BatchesFunc func() []batch.Batch

// SummaryFunc folds a batch's per-wish sub-states into a Summary.
type SummaryFunc func(batch.Batch) batch.Summary

type tickMsg time.Time

// Model is a bubbletea.Model rendering live worker and batch state. It holds
// no mutable harness state of its own — every tick it re-reads the
// aggregator and batch manager through the injected snapshot functions,
// matching the teacher's convention of keeping bubbletea models as thin
// render layers over state owned elsewhere (board.Model over a
// bql.BQLExecutor).
type Model struct {
	states   StatesFunc
	batches  BatchesFunc
	summary  SummaryFunc
	styles   Styles
	width    int
	height   int
	quitting bool
}

// New constructs a dashboard Model. states, batches and summary must be
// non-nil; theme selects the color preset used for status rendering.
func New(states StatesFunc, batches BatchesFunc, summary SummaryFunc, theme config.ThemeConfig) Model {
	return Model{
		states:  states,
		batches: batches,
		summary: summary,
		styles:  BuildStyles(theme),
	}
}

// Init starts the refresh tick loop.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles window resizes, quit keys, and refresh ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case tickMsg:
		return m, tick()
	}
	return m, nil
}

// View renders the worker table followed by a batch summary section.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Header.Render("WORKERS"))
	b.WriteString("\n")
	b.WriteString(m.renderWorkerTable())
	b.WriteString("\n\n")
	b.WriteString(m.styles.Header.Render("BATCHES"))
	b.WriteString("\n")
	b.WriteString(m.renderBatches())
	b.WriteString("\n")
	b.WriteString(m.styles.Dim.Render("q: quit"))
	return b.String()
}

func (m Model) renderWorkerTable() string {
	states := m.states()
	if len(states) == 0 {
		return m.styles.Dim.Render("  no workers observed yet")
	}

	sort.Slice(states, func(i, j int) bool { return states[i].PaneID < states[j].PaneID })

	header := fmt.Sprintf("  %-8s %-9s %-12s %-20s %s", "PANE", "STATUS", "WISH", "LAST ACTIVITY", "LAST EVENT")
	rows := make([]string, 0, len(states)+1)
	rows = append(rows, m.styles.Dim.Render(header))

	for _, s := range states {
		lastEvent := "-"
		if s.LastEvent != nil {
			lastEvent = string(s.LastEvent.Type)
			if s.LastEvent.ToolName != "" {
				lastEvent += ":" + s.LastEvent.ToolName
			}
		}
		activity := "-"
		if !s.LastActivityAt.IsZero() {
			activity = s.LastActivityAt.Format(time.RFC3339)
		}
		line := fmt.Sprintf("  %-8s %-9s %-12s %-20s %s",
			s.PaneID, s.Status, orDash(s.WishID), activity, lastEvent)
		rows = append(rows, m.styles.ForStatus(s.Status).Render(line))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderBatches() string {
	batches := m.batches()
	if len(batches) == 0 {
		return m.styles.Dim.Render("  no batches")
	}

	sort.Slice(batches, func(i, j int) bool { return batches[i].ID < batches[j].ID })

	var rows []string
	for _, b := range batches {
		s := m.summary(b)
		line := fmt.Sprintf("  %-6s %-9s total=%-3d running=%-3d waiting=%-3d complete=%-3d failed=%-3d cancelled=%d",
			b.ID, b.Status, s.Total, s.Running, s.Waiting, s.Complete, s.Failed, s.Cancelled)
		rows = append(rows, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
