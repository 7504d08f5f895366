package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"ember/internal/asyncrt"
	"ember/internal/scenario"
)

type dashboardModel struct {
	title   string
	samples <-chan scenario.Snapshot
	spinner spinner.Model
	prog    progress.Model
	last    scenario.Snapshot
	prev    scenario.Snapshot
	rows    []counterRow
	width   int
	done    bool
	failed  bool
}

type counterRow struct {
	label string
	value func(s asyncrt.Stats) uint64
}

type sampleMsg scenario.Snapshot

// DoneMsg ends the dashboard. Err marks the run as failed.
type DoneMsg struct {
	Final asyncrt.Stats
	Err   error
}

// NewDashboardModel returns a Bubble Tea model that renders executor
// counters from samples until the channel closes or a DoneMsg arrives.
func NewDashboardModel(title string, samples <-chan scenario.Snapshot) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	return &dashboardModel{
		title:   title,
		samples: samples,
		spinner: sp,
		prog:    prog,
		rows:    defaultRows(),
		width:   80,
	}
}

func defaultRows() []counterRow {
	return []counterRow{
		{"spawns", func(s asyncrt.Stats) uint64 { return s.Spawns }},
		{"polls", func(s asyncrt.Stats) uint64 { return s.Polls }},
		{"claims", func(s asyncrt.Stats) uint64 { return s.Claims }},
		{"wakes", func(s asyncrt.Stats) uint64 { return s.Wakes }},
		{"requeues", func(s asyncrt.Stats) uint64 { return s.Requeues }},
		{"parks", func(s asyncrt.Stats) uint64 { return s.Parks }},
		{"timer fires", func(s asyncrt.Stats) uint64 { return s.TimerFires }},
		{"completions", func(s asyncrt.Stats) uint64 { return s.Completions }},
	}
}

func (m *dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForSample())
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sampleMsg:
		cmd := m.applySample(scenario.Snapshot(msg))
		return m, tea.Batch(cmd, m.listenForSample())
	case DoneMsg:
		m.prev = m.last
		m.last.Stats = msg.Final
		m.done = true
		m.failed = msg.Err != nil
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *dashboardModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	switch {
	case m.done && m.failed:
		header = fmt.Sprintf("failed: %s", header)
	case m.done:
		header = fmt.Sprintf("done: %s", header)
	default:
		header = fmt.Sprintf("%s %s (%s)", m.spinner.View(), header, m.last.Elapsed.Truncate(time.Millisecond))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(truncate(header, m.width)))
	b.WriteString("\n\n")

	for _, row := range m.rows {
		cur := row.value(m.last.Stats)
		line := fmt.Sprintf("  %s %12d", styleLabel(row.label).Render(fmt.Sprintf("%12s", row.label)), cur)
		if delta := cur - row.value(m.prev.Stats); delta > 0 && !m.done {
			line += fmt.Sprintf("  +%d", delta)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "  %s %12d\n", styleLabel("live").Render(fmt.Sprintf("%12s", "live")), m.last.Stats.Live)

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *dashboardModel) listenForSample() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.samples
		if !ok {
			return nil
		}
		return sampleMsg(snap)
	}
}

// applySample records a sample and moves the bar to the completed share of
// spawned tasks.
func (m *dashboardModel) applySample(s scenario.Snapshot) tea.Cmd {
	m.prev = m.last
	m.last = s
	return m.prog.SetPercent(completion(s.Stats))
}

func completion(s asyncrt.Stats) float64 {
	if s.Spawns == 0 {
		return 0
	}
	return float64(s.Completions) / float64(s.Spawns)
}

func styleLabel(label string) lipgloss.Style {
	switch label {
	case "completions":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "parks", "live":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	case "wakes", "requeues":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
