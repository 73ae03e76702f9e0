package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fumo/cmd/fumo/ui"
	"fumo/internal/config"
	"fumo/internal/loading"
	"fumo/internal/logging"
	"fumo/internal/probe"
	"fumo/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// lazyMountDelay simulates the mount time of the lazily loaded detail
// page; while it elapses the suspense flag keeps the loader on screen.
const lazyMountDelay = 600 * time.Millisecond

// lazyMountedMsg fires when the lazy page has finished "mounting".
type lazyMountedMsg struct{ generation int }

// themeChangedMsg fires when the watched theme file changes on disk.
type themeChangedMsg struct{ path string }

// appModel is the top-level interactive model. It gates the main screen
// behind the loading sequence and owns the orchestrator lifecycle.
type appModel struct {
	ctx    context.Context
	orch   *loading.Orchestrator
	loader ui.LoaderModel
	styles ui.Styles

	history *store.HistoryStore
	watcher *probe.ThemeWatcher

	renderer *glamour.TermRenderer

	width  int
	height int

	// Lazy detail page state. Opening it raises the suspense flag until
	// the simulated mount completes; closing it clears the flag.
	lazyOpen       bool
	lazyGeneration int
	lazyContent    string
}

func newAppModel(ctx context.Context, orch *loading.Orchestrator, hist *store.HistoryStore, watcher *probe.ThemeWatcher, cfg *config.Config) appModel {
	styles := ui.NewStyles(ui.ResolveTheme(cfg.UI.Theme))

	var renderer *glamour.TermRenderer
	if styles.Theme.IsDark {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
	} else {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath("light"),
			glamour.WithWordWrap(80),
		)
	}

	return appModel{
		ctx:      ctx,
		orch:     orch,
		loader:   ui.NewLoaderModel(orch, styles),
		styles:   styles,
		history:  hist,
		watcher:  watcher,
		renderer: renderer,
		width:    80,
		height:   24,
	}
}

func (m appModel) Init() tea.Cmd {
	m.orch.Start(m.ctx)
	cmds := []tea.Cmd{m.loader.Init()}
	if m.watcher != nil {
		cmds = append(cmds, m.waitForThemeChange())
	}
	return tea.Batch(cmds...)
}

func (m appModel) waitForThemeChange() tea.Cmd {
	events := m.watcher.Events()
	return func() tea.Msg {
		path, ok := <-events
		if !ok {
			return nil
		}
		return themeChangedMsg{path: path}
	}
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case themeChangedMsg:
		// A theme swap re-runs the whole sequence so the new theme is
		// probed and applied behind the loader.
		logging.Boot("theme changed on disk, restarting sequence: %s", msg.path)
		m.orch.Restart(m.ctx)
		m.closeLazy()
		return m, m.waitForThemeChange()

	case lazyMountedMsg:
		// Stale timers from a page that was closed (or reopened) in the
		// meantime must not clear the flag for the current page.
		if m.lazyOpen && msg.generation == m.lazyGeneration {
			m.orch.SetSuspenseLoading(false)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.loader, cmd = m.loader.Update(msg)
	return m, cmd
}

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "r":
		m.orch.Restart(m.ctx)
		m.closeLazy()
		return m, nil

	case "f":
		m.orch.ForceComplete()
		return m, nil

	case "l":
		if !m.loader.Done() && !m.lazyOpen {
			// The main screen is not up yet; nothing to lazily open.
			return m, nil
		}
		if m.lazyOpen {
			m.closeLazy()
			return m, nil
		}
		m.lazyOpen = true
		m.lazyGeneration++
		gen := m.lazyGeneration
		m.lazyContent = m.renderLazyPage()
		m.orch.SetSuspenseLoading(true)
		return m, tea.Tick(lazyMountDelay, func(time.Time) tea.Msg {
			return lazyMountedMsg{generation: gen}
		})
	}
	return m, nil
}

func (m *appModel) closeLazy() {
	if !m.lazyOpen {
		return
	}
	m.lazyOpen = false
	m.lazyGeneration++
	m.orch.SetSuspenseLoading(false)
}

func (m appModel) View() string {
	if !m.loader.Done() {
		return m.loader.View()
	}
	if m.lazyOpen {
		return m.renderWithFooter(m.lazyContent)
	}
	return m.renderWithFooter(m.renderReadyScreen())
}

func (m appModel) renderWithFooter(content string) string {
	footer := m.styles.Footer.Render("r restart · f force-complete · l detail page · q quit")
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}

func (m appModel) renderReadyScreen() string {
	snap := m.loader.Snapshot()

	var md strings.Builder
	md.WriteString("# Fumo\n\n")
	md.WriteString("All readiness conditions have been processed.\n\n")
	md.WriteString("| Step | Outcome |\n|------|--------|\n")
	for _, step := range snap.Steps {
		outcome := "skipped"
		switch {
		case step.Completed && step.Satisfied:
			outcome = "ready"
		case step.Completed:
			outcome = "forced through"
		}
		fmt.Fprintf(&md, "| %s | %s |\n", step.DisplayName, outcome)
	}

	if m.renderer != nil {
		if out, err := m.renderer.Render(md.String()); err == nil {
			return out
		}
	}
	return md.String()
}

func (m appModel) renderLazyPage() string {
	var md strings.Builder
	md.WriteString("# Recent runs\n\n")

	runs, err := m.history.Recent(m.ctx, 10)
	if err != nil {
		md.WriteString(fmt.Sprintf("History unavailable: %v\n", err))
	} else if len(runs) == 0 {
		md.WriteString("No completed runs recorded yet.\n")
	} else {
		md.WriteString("| Run | Duration | Steps | Forced |\n|-----|----------|-------|--------|\n")
		for _, run := range runs {
			fmt.Fprintf(&md, "| %.8s | %s | %d | %v |\n",
				run.ID, run.Duration.Round(time.Millisecond), len(run.Steps), run.Forced)
		}
	}

	if m.renderer != nil {
		if out, err := m.renderer.Render(md.String()); err == nil {
			return out
		}
	}
	return md.String()
}
