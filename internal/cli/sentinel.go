package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dikeworks/floxrun/internal/batch"
	"github.com/dikeworks/floxrun/internal/config"
	"github.com/dikeworks/floxrun/internal/engine"
	"github.com/dikeworks/floxrun/internal/sentinel"
)

func newSentinelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Hot-folder daemon: auto-run dataset snapshots dropped into a directory",
		Long: `Sentinel watches a drop directory for dataset snapshots exported by the
data warehouse and automatically runs each one through the full batch.

Each snapshot moves through processing/ to done/ or failed/, with a
result file next to it, so no dataset is lost or executed twice. On
restart, orphaned snapshots in processing/ are recovered to failed/.`,
	}

	cmd.AddCommand(newSentinelStartCmd())
	cmd.AddCommand(newSentinelStopCmd())
	cmd.AddCommand(newSentinelStatusCmd())
	cmd.AddCommand(newSentinelRunOnceCmd())

	return cmd
}

// defaultSentinelStateDir is where the daemon keeps its working
// directories and PID lock.
func defaultSentinelStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".floxrun-sentinel"
	}
	return filepath.Join(home, ".floxrun", "sentinel")
}

func newSentinelStartCmd() *cobra.Command {
	var (
		dropDir      string
		stateDir     string
		pollMode     bool
		pollInterval time.Duration
		dashboard    bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the sentinel daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("drop") && cfg.Sentinel != nil && cfg.Sentinel.DropDir != "" {
				dropDir = cfg.Sentinel.DropDir
			}
			if !cmd.Flags().Changed("poll-interval") && cfg.Sentinel != nil && cfg.Sentinel.PollInterval > 0 {
				pollInterval = cfg.Sentinel.PollInterval
			}
			if dropDir == "" {
				return fmt.Errorf("no drop directory (set sentinel.drop_dir in %s or pass --drop)", config.DefaultFileName)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			st := sentinel.NewState()
			s, err := sentinel.New(sentinel.Config{
				DropDir:      dropDir,
				StateDir:     stateDir,
				PollMode:     pollMode,
				PollInterval: pollInterval,
				ExecFn:       buildSentinelExecFn(cfg, st),
				Tracker:      sentinel.NewCompletionTracker(sentinel.DefaultTrackerPath()),
				State:        st,
			})
			if err != nil {
				return fmt.Errorf("init sentinel: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if dashboard {
				go func() {
					_ = s.Run(ctx)
				}()
				model := sentinel.NewDashboardModel(st, cancel)
				p := tea.NewProgram(model, tea.WithAltScreen())
				_, err := p.Run()
				return err
			}

			return s.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&dropDir, "drop", "", "drop directory to watch for dataset snapshots")
	cmd.Flags().StringVar(&stateDir, "state", defaultSentinelStateDir(), "sentinel state directory")
	cmd.Flags().BoolVar(&pollMode, "poll", false, "use polling instead of fsnotify")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 5*time.Second, "directory poll interval in poll mode")
	cmd.Flags().BoolVar(&dashboard, "tui", false, "show the dashboard TUI")

	return cmd
}

func newSentinelStopCmd() *cobra.Command {
	var stateDir string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running sentinel daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid := sentinel.ReadPID(stateDir)
			if pid == 0 {
				fmt.Println("Sentinel is not running.")
				return nil
			}
			proc, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("find sentinel (pid %d): %w", pid, err)
			}
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("signal sentinel (pid %d): %w", pid, err)
			}
			fmt.Printf("Sent SIGTERM to sentinel (pid %d).\n", pid)
			return nil
		},
	}

	cmd.Flags().StringVar(&stateDir, "state", defaultSentinelStateDir(), "sentinel state directory")

	return cmd
}

func newSentinelStatusCmd() *cobra.Command {
	var stateDir string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon liveness and processed datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid := sentinel.ReadPID(stateDir)
			if pid > 0 {
				fmt.Printf("Sentinel running (pid %d).\n", pid)
			} else {
				fmt.Println("Sentinel is not running.")
			}

			tracker := sentinel.NewCompletionTracker(sentinel.DefaultTrackerPath())
			entries := tracker.Entries()
			fmt.Printf("Processed datasets: %d\n", len(entries))
			show := entries
			if len(show) > 10 {
				show = show[len(show)-10:]
			}
			for _, e := range show {
				fmt.Printf("  %s  run %s  %d scenarios  %s\n",
					e.Dataset, e.RunID, e.Scenarios, e.Timestamp.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stateDir, "state", defaultSentinelStateDir(), "sentinel state directory")

	return cmd
}

func newSentinelRunOnceCmd() *cobra.Command {
	var (
		dropDir  string
		stateDir string
	)

	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Process everything currently in the drop directory and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("drop") && cfg.Sentinel != nil && cfg.Sentinel.DropDir != "" {
				dropDir = cfg.Sentinel.DropDir
			}
			if dropDir == "" {
				return fmt.Errorf("no drop directory (set sentinel.drop_dir in %s or pass --drop)", config.DefaultFileName)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			s, err := sentinel.New(sentinel.Config{
				DropDir:  dropDir,
				StateDir: stateDir,
				ExecFn:   buildSentinelExecFn(cfg, nil),
				Tracker:  sentinel.NewCompletionTracker(sentinel.DefaultTrackerPath()),
			})
			if err != nil {
				return fmt.Errorf("init sentinel: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return s.RunOnce(ctx)
		},
	}

	cmd.Flags().StringVar(&dropDir, "drop", "", "drop directory to scan")
	cmd.Flags().StringVar(&stateDir, "state", defaultSentinelStateDir(), "sentinel state directory")

	return cmd
}

// buildSentinelExecFn wires a dropped dataset into the shared run core.
// The closure breaks the sentinel → cli import cycle.
func buildSentinelExecFn(cfg *config.Settings, st *sentinel.State) sentinel.ExecFunc {
	maxRuntime := cfg.MaxRuntime
	if maxRuntime <= 0 {
		maxRuntime = 30 * time.Minute
	}
	idleTimeout := cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 5 * time.Minute
	}

	return func(ctx context.Context, datasetPath string) (*batch.RunReport, error) {
		scenarios, issues, paths, err := loadScenarios([]string{datasetPath}, cfg, "", cfg.FromDijkpaal, cfg.ToDijkpaal)
		if err != nil {
			return nil, err
		}

		if st != nil {
			st.SetCurrentRun(&sentinel.CurrentRunState{
				Dataset:   filepath.Base(datasetPath),
				StartedAt: time.Now(),
				Total:     len(scenarios),
			})
		}

		ecfg := execRunConfig{
			datasets:    paths,
			scenarios:   scenarios,
			parseIssues: issues,
			settings:    cfg,
			outputDir:   cfg.OutputDir,
			fromDP:      cfg.FromDijkpaal,
			toDP:        cfg.ToDijkpaal,
			maxRuntime:  maxRuntime,
			idleTimeout: idleTimeout,
			failFast:    cfg.FailFast,
		}
		if st != nil {
			ecfg.onProgress = func(results map[string]*batch.Result) {
				st.UpdateRunResults(results)
			}
		}

		result, runErr := executeRun(ecfg)
		if runErr != nil {
			return nil, runErr
		}

		if st != nil {
			publishEngineHealth(cfg, st)
			if !result.report.RetryAt.IsZero() {
				st.SetRetryAt(result.report.RetryAt)
			}
		}
		return result.report, nil
	}
}

// publishEngineHealth copies the blacklist view into the dashboard
// state.
func publishEngineHealth(cfg *config.Settings, st *sentinel.State) {
	bl := engine.LoadBlacklist(engine.DefaultBlacklistPath())
	var health []sentinel.EngineHealth
	for _, name := range cfg.EngineOrder() {
		until := bl.BlockedUntil(name)
		health = append(health, sentinel.EngineHealth{
			Name:         name,
			Blacklisted:  !until.IsZero(),
			BlockedUntil: until,
		})
	}
	st.SetEngines(health)
}
