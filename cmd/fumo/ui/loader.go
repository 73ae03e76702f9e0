package ui

import (
	"fmt"
	"strings"

	"fumo/internal/loading"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SnapshotMsg carries a loading state update into the Bubble Tea loop.
type SnapshotMsg loading.Snapshot

// subClosedMsg signals that the orchestrator closed the subscription.
type subClosedMsg struct{}

// LoaderModel renders the loading sequence: a spinner, a time-based
// progress bar, and the step checklist. It consumes snapshots from an
// Orchestrator subscription and stays on screen while OverallLoading
// is true.
type LoaderModel struct {
	snap    loading.Snapshot
	spinner spinner.Model
	bar     progress.Model
	styles  Styles
	width   int
	height  int

	sub    <-chan loading.Snapshot
	cancel func()
	closed bool
}

// NewLoaderModel subscribes to orch and returns a model primed with the
// current snapshot.
func NewLoaderModel(orch *loading.Orchestrator, styles Styles) LoaderModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	bar := progress.New(progress.WithDefaultGradient())

	sub, cancel := orch.Subscribe()

	return LoaderModel{
		snap:    orch.Snapshot(),
		spinner: sp,
		bar:     bar,
		styles:  styles,
		width:   80,
		height:  24,
		sub:     sub,
		cancel:  cancel,
	}
}

// Init starts the spinner and the snapshot pump.
func (m LoaderModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForSnapshot())
}

func (m LoaderModel) waitForSnapshot() tea.Cmd {
	sub := m.sub
	return func() tea.Msg {
		snap, ok := <-sub
		if !ok {
			return subClosedMsg{}
		}
		return SnapshotMsg(snap)
	}
}

// Update handles messages.
func (m LoaderModel) Update(msg tea.Msg) (LoaderModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		barWidth := msg.Width - 8
		if barWidth > 60 {
			barWidth = 60
		}
		if barWidth > 0 {
			m.bar.Width = barWidth
		}
		return m, nil

	case SnapshotMsg:
		m.snap = loading.Snapshot(msg)
		return m, m.waitForSnapshot()

	case subClosedMsg:
		m.closed = true
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// Done reports whether the loading sequence (including any suspense
// overlay) has finished.
func (m LoaderModel) Done() bool {
	return !m.snap.OverallLoading
}

// Snapshot returns the last state the model has seen.
func (m LoaderModel) Snapshot() loading.Snapshot {
	return m.snap
}

// Close cancels the underlying subscription.
func (m *LoaderModel) Close() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// View renders the loader centered in the available space.
func (m LoaderModel) View() string {
	title := m.styles.Title.Render("Fumo")

	label := m.snap.CurrentStep
	if label == "" {
		label = "Starting"
	}
	status := fmt.Sprintf("%s %s", m.spinner.View(), m.styles.Body.Render(label))
	if !m.snap.SequenceRunning && m.snap.SuspenseActive {
		status = fmt.Sprintf("%s %s", m.spinner.View(), m.styles.Muted.Render("Loading content"))
	}

	bar := m.bar.ViewAs(m.snap.Progress / 100)
	pct := m.styles.Muted.Render(fmt.Sprintf("%3.0f%%", m.snap.Progress))

	blocks := []string{
		title,
		status,
		lipgloss.JoinHorizontal(lipgloss.Center, bar, " ", pct),
	}
	if checklist := m.renderChecklist(); checklist != "" {
		blocks = append(blocks, "", checklist)
	}

	content := lipgloss.JoinVertical(lipgloss.Center, blocks...)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m LoaderModel) renderChecklist() string {
	if len(m.snap.Steps) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, step := range m.snap.Steps {
		icon := "○"
		style := m.styles.Muted
		switch {
		case step.Completed && step.Satisfied:
			icon = "✓"
			style = m.styles.Success
		case step.Completed:
			icon = "✗"
			style = m.styles.Warning
		case m.snap.SequenceRunning && step.DisplayName == m.snap.CurrentStep:
			icon = "▶"
			style = m.styles.Info
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(style.Render(fmt.Sprintf(" %s %s", icon, step.DisplayName)))
	}
	return sb.String()
}
