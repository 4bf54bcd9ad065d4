package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dikeworks/floxrun/internal/batch"
	"github.com/dikeworks/floxrun/internal/config"
	"github.com/dikeworks/floxrun/internal/dike"
	"github.com/dikeworks/floxrun/internal/reporter"
)

func newRerunCmd() *cobra.Command {
	var (
		runDir      string
		outputDir   string
		maxRuntime  time.Duration
		idleTimeout time.Duration
		failFast    bool
	)

	cmd := &cobra.Command{
		Use:   "rerun",
		Short: "Re-execute failed, skipped and license-blocked scenarios from a previous run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("output") && cfg.OutputDir != "" {
				outputDir = cfg.OutputDir
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
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return rerunScenarios(runDir, outputDir, maxRuntime, idleTimeout, failFast, cfg)
		},
	}

	cmd.Flags().StringVar(&runDir, "run-dir", "", "path to previous run directory (required)")
	cmd.Flags().StringVar(&outputDir, "output", "output", "base directory for the new run output")
	cmd.Flags().DurationVar(&maxRuntime, "max-runtime", 30*time.Minute, "per-scenario timeout duration")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 5*time.Minute, "kill console after no output for this duration")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop the batch on first failed scenario")
	_ = cmd.MarkFlagRequired("run-dir")

	return cmd
}

func rerunScenarios(runDir, outputDir string, maxRuntime, idleTimeout time.Duration, failFast bool, cfg *config.Settings) error {
	prevReport, err := reporter.ReadJSONReport(filepath.Join(runDir, reporter.ReportFileName))
	if err != nil {
		return fmt.Errorf("load previous report: %w", err)
	}
	if prevReport.DryRun {
		return fmt.Errorf("previous run was a dry run; use 'floxrun run' instead")
	}

	// NoModel failures are deterministic geometry problems; rerunning
	// them without a dataset fix reproduces the same outcome.
	rerunNames := make(map[string]bool)
	var failed, skipped, blocked int
	for name, result := range prevReport.Results {
		switch result.State {
		case batch.StateFailed:
			failed++
			rerunNames[name] = true
		case batch.StateSkipped:
			skipped++
			rerunNames[name] = true
		case batch.StateLicenseBlocked:
			blocked++
			rerunNames[name] = true
		}
	}
	if len(rerunNames) == 0 {
		fmt.Println("no scenarios to rerun — all scenarios completed")
		return nil
	}

	if !prevReport.RetryAt.IsZero() && time.Now().Before(prevReport.RetryAt) {
		remaining := time.Until(prevReport.RetryAt).Truncate(time.Minute)
		slog.Warn("license pool may still be exhausted", "frees_in", remaining)
	}

	scenarios, issues, paths, err := loadScenarios(prevReport.Datasets, cfg, "", 0, 0)
	if err != nil {
		return err
	}

	var selected []*dike.Scenario
	found := make(map[string]bool)
	for _, sc := range scenarios {
		if rerunNames[sc.Name] {
			selected = append(selected, sc)
			found[sc.Name] = true
		}
	}
	var missing []string
	for name := range rerunNames {
		if !found[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slog.Warn("some scenarios from the report are gone from the dataset", "missing", missing)
	}
	if len(selected) == 0 {
		return fmt.Errorf("none of the rerunnable scenarios exist in the current dataset")
	}

	fmt.Printf("rerunning %d scenarios (%d failed, %d skipped, %d license-blocked)\n",
		len(selected), failed, skipped, blocked)

	result, err := executeRun(execRunConfig{
		datasets:    paths,
		scenarios:   selected,
		parseIssues: issues,
		settings:    cfg,
		outputDir:   outputDir,
		retry:       true,
		maxRuntime:  maxRuntime,
		idleTimeout: idleTimeout,
		failFast:    failFast,
		parentRunID: prevReport.RunID,
	})
	if err != nil {
		return err
	}
	return result.err()
}
