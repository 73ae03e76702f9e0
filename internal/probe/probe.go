// Package probe supplies the host-side readiness checks the loading
// orchestrator sequences at startup: terminal readiness, configuration,
// theme resolution, and runtime warm-up. Each probe is a plain
// loading.CheckFunc; the orchestrator neither knows nor cares how a probe
// decides, it only requires a bounded boolean answer.
package probe

import (
	"context"
	"os"
	"path/filepath"

	"fumo/internal/config"
	"fumo/internal/loading"
	"fumo/internal/logging"

	"github.com/mattn/go-isatty"
)

// Canonical condition IDs, in execution order.
const (
	IDTerminal = "terminal"
	IDConfig   = "config"
	IDTheme    = "theme"
	IDRuntime  = "runtime"
)

// Pinger is the slice of the run-history store the runtime probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TerminalReady reports whether stdout is attached to a terminal. Probes
// are read-only; this one never blocks.
func TerminalReady() loading.CheckFunc {
	return func(ctx context.Context) (bool, error) {
		fd := os.Stdout.Fd()
		ok := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		logging.ProbeDebug("terminal probe: tty=%v", ok)
		return ok, nil
	}
}

// ConfigLoaded re-reads the workspace config and reports whether it parses.
// A missing file counts as ready (defaults apply); a malformed one does not.
func ConfigLoaded(workspace string) loading.CheckFunc {
	return func(ctx context.Context) (bool, error) {
		_, err := config.Load(config.Path(workspace))
		if err != nil {
			logging.Probe("config probe: %v", err)
			return false, err
		}
		return true, nil
	}
}

// ThemeApplied reports whether the configured theme can be resolved: the
// name must be known and, when a theme file is configured, present on disk.
func ThemeApplied(cfg *config.Config, workspace string) loading.CheckFunc {
	return func(ctx context.Context) (bool, error) {
		if !cfg.UI.KnownTheme() {
			logging.Probe("theme probe: unknown theme %q", cfg.UI.Theme)
			return false, nil
		}
		if cfg.UI.ThemeFile != "" {
			if _, err := os.Stat(filepath.Join(workspace, cfg.UI.ThemeFile)); err != nil {
				logging.ProbeDebug("theme probe: theme file not present: %v", err)
				return false, nil
			}
		}
		return true, nil
	}
}

// RuntimeReady reports whether the run-history store answers a ping.
func RuntimeReady(rt Pinger) loading.CheckFunc {
	return func(ctx context.Context) (bool, error) {
		if rt == nil {
			return false, nil
		}
		if err := rt.Ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
}

// DefaultConditions assembles the canonical loading sequence - terminal,
// config, theme, runtime, in that order - applying per-condition timeout
// overrides and the disabled list from config. Priority reflects severity
// only; execution order is always list order.
func DefaultConditions(workspace string, cfg *config.Config, rt Pinger) []loading.Condition {
	all := []loading.Condition{
		{
			ID:          IDTerminal,
			DisplayName: "Preparing terminal",
			Priority:    1,
			Check:       TerminalReady(),
		},
		{
			ID:          IDConfig,
			DisplayName: "Loading configuration",
			Priority:    1,
			Check:       ConfigLoaded(workspace),
		},
		{
			ID:          IDTheme,
			DisplayName: "Applying theme",
			Priority:    2,
			Check:       ThemeApplied(cfg, workspace),
		},
		{
			ID:          IDRuntime,
			DisplayName: "Warming runtime",
			Priority:    1,
			Check:       RuntimeReady(rt),
		},
	}

	conditions := make([]loading.Condition, 0, len(all))
	for _, c := range all {
		if cfg.Loading.IsDisabled(c.ID) {
			logging.Probe("condition %s disabled by config", c.ID)
			continue
		}
		c.Timeout = cfg.Loading.GetTimeout(c.ID)
		conditions = append(conditions, c)
	}
	return conditions
}
