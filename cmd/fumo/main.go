package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"fumo/internal/config"
	"fumo/internal/loading"
	"fumo/internal/logging"
	"fumo/internal/probe"
	"fumo/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const version = "0.3.0"

var (
	// Global flags
	verbose   bool
	workspace string
	themeFlag string

	// Logger for non-interactive subcommands
	logger *zap.Logger
)

// rootCmd launches the interactive loader when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "fumo",
	Short: "Fumo - terminal app with an orchestrated loading sequence",
	Long: `Fumo boots through an ordered list of readiness conditions (terminal,
configuration, theme, runtime), each bounded by a timeout and displayed
for a minimum duration, before handing over to the main screen.

Run without arguments to start the interactive interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip logger init for interactive mode (it has its own UI)
		if cmd.Use == "fumo" && cmd.CalledAs() == "fumo" {
			return nil
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive()
	},
}

// probeCmd runs every readiness condition once, in parallel, and prints a
// table. Unlike the interactive sequence this is a one-shot diagnostic.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run all readiness conditions once and report the results",
	RunE:  runProbe,
}

// historyCmd lists recently recorded loading runs.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently recorded loading runs",
	RunE:  runHistory,
}

var historyLimit int

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fumo %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&themeFlag, "theme", "", "Theme override: light, dark or auto")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")

	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveWorkspace falls back to the current directory.
func resolveWorkspace() string {
	if workspace != "" {
		return workspace
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// loadConfig applies the --theme and --verbose flag overrides on top of the
// file and environment layers.
func loadConfig(ws string) (*config.Config, error) {
	cfg, err := config.Load(config.Path(ws))
	if err != nil {
		return nil, err
	}
	if themeFlag != "" {
		cfg.UI.Theme = themeFlag
	}
	if verbose {
		cfg.Logging.DebugMode = true
	}
	return cfg, nil
}

// historyPath resolves the configured database path against the workspace.
func historyPath(ws string, cfg *config.Config) string {
	if filepath.IsAbs(cfg.History.DatabasePath) {
		return cfg.History.DatabasePath
	}
	return filepath.Join(ws, cfg.History.DatabasePath)
}

// runInteractive wires the orchestrator, history store and theme watcher
// together and hands the terminal to Bubble Tea.
func runInteractive() error {
	ws := resolveWorkspace()
	cfg, err := loadConfig(ws)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := logging.Initialize(ws); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logging.CloseAll()

	hist, err := store.OpenHistory(historyPath(ws, cfg), cfg.History.Keep)
	if err != nil {
		return fmt.Errorf("history store: %w", err)
	}
	defer hist.Close()

	opts := loading.DefaultOptions()
	opts.Conditions = probe.DefaultConditions(ws, cfg, hist)
	opts.DefaultTimeout = cfg.Loading.GetDefaultCheckTimeout()
	opts.MinStepDisplay = cfg.Loading.GetMinStepDisplay()
	opts.TickInterval = cfg.Loading.GetTickInterval()
	opts.OnRunComplete = func(res loading.Result) {
		if err := hist.Record(res); err != nil {
			logging.Store("failed to record run %s: %v", res.RunID, err)
		}
	}

	orch := loading.New(opts)
	defer orch.Close()

	ctx, cancel := context.WithCancel(loading.NewContext(context.Background(), orch))
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	var watcher *probe.ThemeWatcher
	if cfg.UI.ThemeFile != "" {
		watcher, err = probe.NewThemeWatcher(ws, cfg.UI.ThemeFile)
		if err != nil {
			logging.Boot("theme watcher unavailable: %v", err)
			watcher = nil
		} else {
			if err := watcher.Start(ctx); err != nil {
				logging.Boot("theme watcher failed to start: %v", err)
				watcher = nil
			} else {
				defer watcher.Stop()
			}
		}
	}

	logging.Boot("starting interactive session (workspace=%s theme=%s)", ws, cfg.UI.Theme)

	p := tea.NewProgram(
		newAppModel(ctx, orch, hist, watcher, cfg),
		tea.WithAltScreen(),
	)
	_, err = p.Run()
	return err
}

// runProbe executes every condition concurrently with its configured
// timeout and prints a pass/fail table.
func runProbe(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	cfg, err := loadConfig(ws)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	hist, err := store.OpenHistory(historyPath(ws, cfg), cfg.History.Keep)
	if err != nil {
		logger.Warn("history store unavailable, runtime probe will fail", zap.Error(err))
		hist = nil
	} else {
		defer hist.Close()
	}

	var rt probe.Pinger
	if hist != nil {
		rt = hist
	}
	conditions := probe.DefaultConditions(ws, cfg, rt)

	type outcome struct {
		id        string
		name      string
		satisfied bool
		err       error
		elapsed   time.Duration
	}
	results := make([]outcome, len(conditions))

	g, ctx := errgroup.WithContext(cmd.Context())
	for i, cond := range conditions {
		timeout := cond.Timeout
		if timeout <= 0 {
			timeout = cfg.Loading.GetDefaultCheckTimeout()
		}
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			ok, err := cond.Check(probeCtx)
			results[i] = outcome{
				id:        cond.ID,
				name:      cond.DisplayName,
				satisfied: ok,
				err:       err,
				elapsed:   time.Since(start),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONDITION\tSTATUS\tELAPSED\tDETAIL")
	failures := 0
	for _, r := range results {
		status := "ok"
		detail := r.name
		if !r.satisfied {
			status = "fail"
			failures++
		}
		if r.err != nil {
			detail = r.err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.id, status, r.elapsed.Round(time.Millisecond), detail)
	}
	w.Flush()

	if failures > 0 {
		return fmt.Errorf("%d of %d conditions not satisfied", failures, len(results))
	}
	return nil
}

// runHistory prints the most recent recorded runs.
func runHistory(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	cfg, err := loadConfig(ws)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	hist, err := store.OpenHistory(historyPath(ws, cfg), cfg.History.Keep)
	if err != nil {
		return fmt.Errorf("history store: %w", err)
	}
	defer hist.Close()

	runs, err := hist.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("history query: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tSTEPS\tSATISFIED\tFORCED")
	for _, run := range runs {
		satisfied := 0
		for _, s := range run.Steps {
			if s.Satisfied {
				satisfied++
			}
		}
		fmt.Fprintf(w, "%.8s\t%s\t%s\t%d\t%d\t%v\n",
			run.ID,
			run.StartedAt.Format(time.RFC3339),
			run.Duration.Round(time.Millisecond),
			len(run.Steps),
			satisfied,
			run.Forced,
		)
	}
	return w.Flush()
}
