package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dikeworks/floxrun/internal/batch"
	"github.com/dikeworks/floxrun/internal/config"
	"github.com/dikeworks/floxrun/internal/dataset"
	"github.com/dikeworks/floxrun/internal/dike"
	"github.com/dikeworks/floxrun/internal/engine"
	"github.com/dikeworks/floxrun/internal/reporter"
	"github.com/dikeworks/floxrun/internal/state"
)

func newRunCmd() *cobra.Command {
	var (
		datasetGlob  string
		outputDir    string
		filter       string
		fromDP       int
		toDP         int
		dryRun       bool
		retry        bool
		engineName   string
		seaLevelRise float64
		maxRuntime   time.Duration
		idleTimeout  time.Duration
		failFast     bool
		tuiMode      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute piping calculations for all scenarios in a dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			patterns := []string{datasetGlob}
			if !cmd.Flags().Changed("dataset") && len(cfg.Datasets) > 0 {
				patterns = cfg.Datasets
			}
			if !cmd.Flags().Changed("output") && cfg.OutputDir != "" {
				outputDir = cfg.OutputDir
			}
			if !cmd.Flags().Changed("from") && cfg.FromDijkpaal > 0 {
				fromDP = cfg.FromDijkpaal
			}
			if !cmd.Flags().Changed("to") && cfg.ToDijkpaal > 0 {
				toDP = cfg.ToDijkpaal
			}
			if !cmd.Flags().Changed("max-runtime") && cfg.MaxRuntime > 0 {
				maxRuntime = cfg.MaxRuntime
			}
			if !cmd.Flags().Changed("idle-timeout") && cfg.IdleTimeout > 0 {
				idleTimeout = cfg.IdleTimeout
			}
			if !cmd.Flags().Changed("fail-fast") && cfg.FailFast {
				failFast = cfg.FailFast
			}
			if !cmd.Flags().Changed("tui") && cfg.TUI {
				tuiMode = cfg.TUI
			}
			if cmd.Flags().Changed("engine") {
				cfg.DefaultEngine = engineName
			}
			if cmd.Flags().Changed("sea-level-rise") {
				cfg.Model.SeaLevelRise = seaLevelRise
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			scenarios, issues, paths, err := loadScenarios(patterns, cfg, filter, fromDP, toDP)
			if err != nil {
				return err
			}

			result, err := executeRun(execRunConfig{
				datasets:    paths,
				scenarios:   scenarios,
				parseIssues: issues,
				settings:    cfg,
				outputDir:   outputDir,
				filter:      filter,
				fromDP:      fromDP,
				toDP:        toDP,
				dryRun:      dryRun,
				retry:       retry,
				maxRuntime:  maxRuntime,
				idleTimeout: idleTimeout,
				failFast:    failFast,
				tui:         tuiMode,
			})
			if err != nil {
				return err
			}
			return result.err()
		},
	}

	cmd.Flags().StringVar(&datasetGlob, "dataset", "dataset.json", "path to dataset snapshot (supports glob patterns)")
	cmd.Flags().StringVar(&outputDir, "output", "output", "base directory for run output")
	cmd.Flags().StringVar(&filter, "filter", "", "only run scenarios matching name glob pattern")
	cmd.Flags().IntVar(&fromDP, "from", 0, "first dijkpaal to include (0 = open)")
	cmd.Flags().IntVar(&toDP, "to", 0, "last dijkpaal to include (0 = open)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "build and serialize models without invoking the console")
	cmd.Flags().BoolVar(&retry, "retry", false, "re-execute scenarios that failed or were interrupted")
	cmd.Flags().StringVar(&engineName, "engine", "", "override the default engine profile")
	cmd.Flags().Float64Var(&seaLevelRise, "sea-level-rise", 0, "override sea level rise offset (m)")
	cmd.Flags().DurationVar(&maxRuntime, "max-runtime", 30*time.Minute, "per-scenario timeout duration")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 5*time.Minute, "kill console after no output for this duration")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop the batch on first failed scenario")
	cmd.Flags().BoolVar(&tuiMode, "tui", false, "show interactive TUI instead of the live ticker")

	return cmd
}

// loadScenarios resolves dataset patterns, loads and validates the
// snapshot and converts it to filtered scenarios.
func loadScenarios(patterns []string, cfg *config.Settings, filter string, fromDP, toDP int) ([]*dike.Scenario, []dataset.ParseIssue, []string, error) {
	var paths []string
	for _, pattern := range patterns {
		p, err := dataset.ResolveGlob(pattern)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("resolve dataset: %w", err)
		}
		paths = append(paths, p...)
	}

	snapshot, err := dataset.LoadMulti(paths)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load dataset: %w", err)
	}
	if err := dataset.Validate(snapshot); err != nil {
		return nil, nil, nil, fmt.Errorf("validate dataset: %w", err)
	}

	scenarios, issues := dataset.Convert(snapshot, cfg.Model.LimitLeft, cfg.Model.LimitRight, cfg.Model.BottomOffset)

	scenarios = dataset.FilterName(scenarios, filter)
	scenarios = dataset.FilterDijkpaal(scenarios, fromDP, toDP)
	if len(scenarios) == 0 {
		return nil, nil, nil, fmt.Errorf("no scenarios left after filtering (%d records skipped during load)", len(issues))
	}
	return scenarios, issues, paths, nil
}

// execRunConfig holds parameters for executeRun.
type execRunConfig struct {
	datasets    []string
	scenarios   []*dike.Scenario
	parseIssues []dataset.ParseIssue
	settings    *config.Settings
	outputDir   string
	filter      string
	fromDP      int
	toDP        int
	dryRun      bool
	retry       bool
	maxRuntime  time.Duration
	idleTimeout time.Duration
	failFast    bool
	tui         bool
	parentRunID string
	// onProgress publishes intermediate results to an external observer
	// (the sentinel dashboard). May be nil.
	onProgress func(map[string]*batch.Result)
}

// execRunResult wraps the report and run directory.
type execRunResult struct {
	report *batch.RunReport
	runDir string
}

func (r *execRunResult) err() error {
	if r.report.LicenseBlocked > 0 {
		return &engine.LicenseError{RetryAt: r.report.RetryAt}
	}
	if r.report.Failed > 0 {
		return fmt.Errorf("%d scenarios failed", r.report.Failed)
	}
	return nil
}

// executeRun is the shared execution core used by run, rerun and the
// sentinel daemon.
func executeRun(cfg execRunConfig) (*execRunResult, error) {
	isTTY := isTerminal()
	textRep := reporter.NewTextReporter(os.Stdout, isTTY)

	startedAt := time.Now()
	runDir := filepath.Join(cfg.outputDir, batch.RunDirName(startedAt))
	// output_dir is usually relative; resolve it once so every path
	// handed to the console, the lock and the tracker survives a cwd
	// change
	if abs, err := filepath.Abs(runDir); err == nil {
		runDir = abs
	}
	scenariosDir := filepath.Join(runDir, "scenarios")
	if err := os.MkdirAll(scenariosDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	runID := batch.NewRunID(startedAt, cfg.datasets)

	writeParseIssues(filepath.Join(runDir, "input_parsing.log"), cfg.parseIssues)
	if len(cfg.parseIssues) > 0 {
		lines := make([]string, len(cfg.parseIssues))
		for i, issue := range cfg.parseIssues {
			lines[i] = issue.String()
		}
		textRep.PrintParseIssues(lines)
	}

	// resume filter: completed scenarios never rerun, failed ones only
	// with --retry
	tracker := state.Load(state.DefaultPath(cfg.outputDir))
	if n := tracker.RecoverInterrupted(); n > 0 {
		slog.Warn("recovered interrupted scenarios from previous run", "count", n)
	}
	scenarios := cfg.scenarios
	if !cfg.dryRun {
		var skipped []state.SkippedScenario
		scenarios, skipped = state.FilterScenarios(scenarios, tracker, cfg.retry)
		if len(skipped) > 0 {
			infos := make([]reporter.SkippedInfo, len(skipped))
			for i, s := range skipped {
				infos[i] = reporter.SkippedInfo{Name: s.Name, Reason: s.Reason}
			}
			textRep.PrintSkippedByState(infos)
		}
		if len(scenarios) == 0 {
			return nil, fmt.Errorf("all scenarios already executed (use --retry or 'floxrun state clear')")
		}
	}

	engineLabel := cfg.settings.DefaultEngine
	if cfg.dryRun || engineLabel == "" {
		engineLabel = "none (dry-run)"
	}
	slog.Info("starting run", "scenarios", len(scenarios), "engine", engineLabel, "run_dir", runDir)
	textRep.PrintHeader(len(scenarios), engineLabel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\ninterrupted — letting the running scenario clean up...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// one console run per machine at a time; the license seat is shared
	if !cfg.dryRun {
		if err := engine.WaitAndAcquire(ctx, engine.DefaultLockPath, runDir, 5*time.Second); err != nil {
			return nil, err
		}
		defer engine.Release(engine.DefaultLockPath)
	}

	jobs := make([]*batch.Job, len(scenarios))
	for i, sc := range scenarios {
		jobs[i] = &batch.Job{Scenario: sc, Timeout: cfg.maxRuntime}
	}

	executor, err := buildExecutor(cfg, scenariosDir)
	if err != nil {
		return nil, err
	}

	if cfg.dryRun {
		textRep.PrintDryRun(jobs)
	}

	// opened for dry runs too: a record whose model cannot be built is
	// a data problem and gets its sentence regardless of the engine
	resultsWriter, err := reporter.NewResultsWriter(filepath.Join(runDir, reporter.ResultsFileName))
	if err != nil {
		return nil, err
	}
	defer resultsWriter.Close()

	var loop *batch.Loop
	loop = batch.NewLoop(jobs, executor.RunScenario)
	loop.FailFast = cfg.failFast
	loop.OnUpdate = func(name string, res *batch.Result) {
		slog.Debug("scenario update", "scenario", name, "state", res.State)
		writeStatusFile(len(jobs), loop.Results())
		if cfg.onProgress != nil {
			cfg.onProgress(loop.Results())
		}
		if cfg.dryRun {
			if res.State == batch.StateNoModel {
				if err := resultsWriter.Append(res); err != nil {
					slog.Warn("failed to append result line", "scenario", name, "error", err)
				}
			}
			return
		}
		switch res.State {
		case batch.StateBuilding:
			tracker.MarkStarted(name, runID, runDir)
		case batch.StateCompleted:
			tracker.MarkCompleted(name, res.EngineUsed, res.PipeLength)
		case batch.StateFailed, batch.StateNoModel:
			tracker.MarkFailed(name, res.Error)
		}
		if err := resultsWriter.Append(res); err != nil {
			slog.Warn("failed to append result line", "scenario", name, "error", err)
		}
	}

	var live *reporter.LiveReporter
	var tuiProgram *tea.Program
	switch {
	case cfg.tui && isTTY:
		tuiModel := reporter.NewTUIModel(jobs, loop.Results, cancel)
		tuiProgram = tea.NewProgram(tuiModel, tea.WithAltScreen())
		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				slog.Warn("TUI error", "error", err)
			}
		}()
	case isTTY && !cfg.dryRun:
		live = reporter.NewLiveReporter(os.Stdout, isTTY, loop.Results)
		live.Start()
	}

	results := loop.Execute(ctx)
	totalDuration := time.Since(startedAt)
	removeStatusFile()

	if tuiProgram != nil {
		tuiProgram.Quit()
		time.Sleep(100 * time.Millisecond)
	}
	if live != nil {
		live.Stop()
	}

	report := &batch.RunReport{
		RunID:        runID,
		ParentRunID:  cfg.parentRunID,
		Timestamp:    startedAt,
		Datasets:     cfg.datasets,
		Filter:       cfg.filter,
		FromDijkpaal: cfg.fromDP,
		ToDijkpaal:   cfg.toDP,
		OutputDir:    runDir,
		DryRun:       cfg.dryRun,
		Results:      results,
	}
	report.Summarize()
	report.TotalDuration = totalDuration

	textRep.PrintStatus(results)
	textRep.PrintSummary(report)

	reportPath := filepath.Join(runDir, reporter.ReportFileName)
	if err := reporter.WriteJSONReport(report, reportPath); err != nil {
		slog.Warn("failed to write report", "error", err)
	} else {
		fmt.Fprintf(os.Stdout, "\nReport: %s\n", reportPath)
	}

	if cfg.settings.PostRun != "" && !cfg.dryRun {
		hookCmd := exec.CommandContext(ctx, "sh", "-c", cfg.settings.PostRun)
		hookCmd.Env = append(os.Environ(), "FLOXRUN_RUN_DIR="+runDir)
		hookCmd.Stdout = os.Stdout
		hookCmd.Stderr = os.Stderr
		fmt.Fprintf(os.Stdout, "\npost_run: %s\n", cfg.settings.PostRun)
		if err := hookCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "post_run hook FAILED: %v\n", err)
		}
	}

	return &execRunResult{report: report, runDir: runDir}, nil
}

// buildExecutor assembles the engine cascade from the settings.
func buildExecutor(cfg execRunConfig, scenariosDir string) (*engine.Executor, error) {
	s := cfg.settings
	order := s.EngineOrder()
	if len(order) == 0 && !cfg.dryRun {
		return nil, fmt.Errorf("no engine configured (set default_engine in %s or pass --engine)", config.DefaultFileName)
	}

	cooldown := s.LicenseCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Minute
	}

	profiles := make(map[string]*engine.Profile, len(s.Engines))
	for name, ep := range s.Engines {
		profiles[name] = &engine.Profile{
			Name:            name,
			Type:            ep.Type,
			Path:            ep.Path,
			Command:         ep.Command,
			Args:            ep.Args,
			Env:             ep.Env,
			IdleTimeout:     cfg.idleTimeout,
			LicenseCooldown: cooldown,
		}
	}

	return &engine.Executor{
		Profiles:     profiles,
		Order:        order,
		Params:       s.Model,
		Blacklist:    engine.LoadBlacklist(engine.DefaultBlacklistPath()),
		Graylist:     engine.LoadGraylist(engine.DefaultGraylistPath()),
		ScenariosDir: scenariosDir,
		DryRun:       cfg.dryRun,
	}, nil
}

func writeParseIssues(path string, issues []dataset.ParseIssue) {
	if len(issues) == 0 {
		return
	}
	var b strings.Builder
	for _, issue := range issues {
		b.WriteString(issue.String())
		b.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		slog.Warn("failed to write input parsing log", "path", path, "error", err)
	}
}

// isTerminal checks if stdout is a terminal.
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

const statusDir = "/tmp/floxrun-status.d"

// statusFilePath returns the per-process status file path.
func statusFilePath() string {
	return filepath.Join(statusDir, fmt.Sprintf("%d", os.Getpid()))
}

// writeStatusFile writes a one-line status to a per-PID file for
// external consumers (e.g. statusline). Multiple floxrun processes
// write separate files; the statusline aggregates them.
func writeStatusFile(total int, results map[string]*batch.Result) {
	var calculating, completed, failed, blocked int
	for _, r := range results {
		switch r.State {
		case batch.StateBuilding, batch.StateCalculating:
			calculating++
		case batch.StateCompleted:
			completed++
		case batch.StateFailed, batch.StateNoModel:
			failed++
		case batch.StateLicenseBlocked:
			blocked++
		}
	}
	line := fmt.Sprintf("%d/%d done", completed, total)
	if calculating > 0 {
		line += fmt.Sprintf(", %d calc", calculating)
	}
	if failed > 0 {
		line += fmt.Sprintf(", %d fail", failed)
	}
	if blocked > 0 {
		line += fmt.Sprintf(", %d lic", blocked)
	}
	_ = os.MkdirAll(statusDir, 0o755)
	_ = os.WriteFile(statusFilePath(), []byte(line+"\n"), 0o644)
}

func removeStatusFile() {
	_ = os.Remove(statusFilePath())
	// clean up directory if empty
	entries, err := os.ReadDir(statusDir)
	if err == nil && len(entries) == 0 {
		_ = os.Remove(statusDir)
	}
}
