package ui

import (
	"context"
	"strings"
	"testing"

	"fumo/internal/loading"

	tea "github.com/charmbracelet/bubbletea"
)

func newTestLoader(t *testing.T) (LoaderModel, *loading.Orchestrator) {
	t.Helper()
	opts := loading.DefaultOptions()
	opts.Conditions = []loading.Condition{
		{ID: "a", DisplayName: "First thing"},
		{ID: "b", DisplayName: "Second thing"},
	}
	orch := loading.New(opts)
	t.Cleanup(orch.Close)

	m := NewLoaderModel(orch, NewStyles(LightTheme()))
	t.Cleanup(m.Close)
	return m, orch
}

func TestLoaderModel_SnapshotMsg(t *testing.T) {
	t.Parallel()
	m, _ := newTestLoader(t)

	snap := loading.Snapshot{
		SequenceRunning: true,
		Progress:        42,
		CurrentStep:     "Second thing",
		OverallLoading:  true,
	}
	m, cmd := m.Update(SnapshotMsg(snap))

	if m.Snapshot().CurrentStep != "Second thing" {
		t.Errorf("Expected current step to update, got %q", m.Snapshot().CurrentStep)
	}
	if m.Done() {
		t.Error("Model should not report done while loading")
	}
	if cmd == nil {
		t.Error("Expected the snapshot pump to re-arm")
	}
}

func TestLoaderModel_Done(t *testing.T) {
	t.Parallel()
	m, _ := newTestLoader(t)

	m, _ = m.Update(SnapshotMsg(loading.Snapshot{
		Progress:       100,
		CurrentStep:    loading.ReadyLabel,
		OverallLoading: false,
	}))

	if !m.Done() {
		t.Error("Model should report done once OverallLoading clears")
	}
}

func TestLoaderModel_SuspenseKeepsLoaderVisible(t *testing.T) {
	t.Parallel()
	m, _ := newTestLoader(t)

	m, _ = m.Update(SnapshotMsg(loading.Snapshot{
		Progress:       100,
		CurrentStep:    loading.ReadyLabel,
		SuspenseActive: true,
		OverallLoading: true,
	}))

	if m.Done() {
		t.Error("Suspense alone should keep the loader on screen")
	}
	if !strings.Contains(m.View(), "Loading content") {
		t.Error("Expected suspense label in view")
	}
}

func TestLoaderModel_ViewShowsSteps(t *testing.T) {
	t.Parallel()
	m, _ := newTestLoader(t)

	m, _ = m.Update(SnapshotMsg(loading.Snapshot{
		SequenceRunning: true,
		CurrentStep:     "Second thing",
		Steps: []loading.Step{
			{ID: "a", DisplayName: "First thing", Completed: true, Satisfied: true},
			{ID: "b", DisplayName: "Second thing"},
		},
		OverallLoading: true,
	}))

	view := m.View()
	if !strings.Contains(view, "First thing") || !strings.Contains(view, "Second thing") {
		t.Errorf("Expected both steps in view, got:\n%s", view)
	}
	if !strings.Contains(view, "✓") {
		t.Error("Expected completed marker in view")
	}
	if !strings.Contains(view, "▶") {
		t.Error("Expected active marker in view")
	}
}

func TestLoaderModel_WindowSize(t *testing.T) {
	t.Parallel()
	m, _ := newTestLoader(t)

	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 120 || m.height != 40 {
		t.Errorf("Expected 120x40, got %dx%d", m.width, m.height)
	}

	// Should not panic on degenerate sizes.
	m, _ = m.Update(tea.WindowSizeMsg{Width: 0, Height: 0})
	_ = m.View()
}

func TestLoaderModel_PumpDeliversRealSnapshots(t *testing.T) {
	t.Parallel()
	m, orch := newTestLoader(t)

	orch.Start(context.Background())

	pump := m.waitForSnapshot()
	msg := pump()
	if _, ok := msg.(SnapshotMsg); !ok {
		t.Fatalf("Expected a SnapshotMsg from the pump, got %T", msg)
	}
}

func TestLoaderModel_PumpStopsAfterClose(t *testing.T) {
	t.Parallel()
	opts := loading.DefaultOptions()
	orch := loading.New(opts)
	m := NewLoaderModel(orch, NewStyles(DarkTheme()))

	orch.Close()

	pump := m.waitForSnapshot()
	// Drain whatever was buffered before the channel closed.
	for {
		msg := pump()
		if _, ok := msg.(subClosedMsg); ok {
			break
		}
		if _, ok := msg.(SnapshotMsg); !ok {
			t.Fatalf("Unexpected pump message %T", msg)
		}
	}
}

func TestResolveTheme(t *testing.T) {
	if got := ResolveTheme("dark"); !got.IsDark {
		t.Error("Expected dark theme")
	}
	if got := ResolveTheme("light"); got.IsDark {
		t.Error("Expected light theme")
	}
}

func TestDetectTheme_ColorFgBg(t *testing.T) {
	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Error("Expected dark theme for black background")
	}

	t.Setenv("COLORFGBG", "0;15")
	t.Setenv("FUMO_DARK_MODE", "")
	if DetectTheme().IsDark {
		t.Error("Expected light theme for white background")
	}
}
