package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dikeworks/floxrun/internal/config"
	"github.com/dikeworks/floxrun/internal/reporter"
)

func newStatusCmd() *cobra.Command {
	var runDir string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Inspect results of a completed run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if runDir == "" {
				latest, err := findLatestRunDir(cfg.OutputDir, true)
				if err != nil {
					return fmt.Errorf("no --run-dir specified and %w", err)
				}
				runDir = latest
			}
			return showStatus(runDir)
		},
	}

	cmd.Flags().StringVar(&runDir, "run-dir", "", "path to <output>/<timestamp> directory (auto-detects latest if omitted)")

	return cmd
}

// findLatestRunDir scans the output directory for the most recent run.
// With requireReport, only runs that already wrote a report.json count.
func findLatestRunDir(outputDir string, requireReport bool) (string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return "", fmt.Errorf("cannot read output directory %s: %w", outputDir, err)
	}

	// entries are sorted alphabetically; timestamps sort chronologically
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !e.IsDir() {
			continue
		}
		candidate := filepath.Join(outputDir, e.Name())
		if requireReport {
			if _, err := os.Stat(filepath.Join(candidate, reporter.ReportFileName)); err != nil {
				continue
			}
		} else if _, err := os.Stat(filepath.Join(candidate, "scenarios")); err != nil {
			continue
		}
		return candidate, nil
	}
	return "", fmt.Errorf("no runs found in %s", outputDir)
}

func showStatus(runDir string) error {
	report, err := reporter.ReadJSONReport(filepath.Join(runDir, reporter.ReportFileName))
	if err != nil {
		return err
	}

	fmt.Printf("Run: %s\n", report.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Printf("Run ID: %s\n", report.RunID)
	if report.ParentRunID != "" {
		fmt.Printf("Parent: %s\n", report.ParentRunID)
	}
	fmt.Printf("Datasets: %s\n", strings.Join(report.Datasets, ", "))
	if report.Filter != "" {
		fmt.Printf("Filter: %s\n", report.Filter)
	}
	if report.FromDijkpaal > 0 || report.ToDijkpaal > 0 {
		fmt.Printf("Dijkpaal range: %d-%d\n", report.FromDijkpaal, report.ToDijkpaal)
	}
	if report.DryRun {
		fmt.Println("Dry run: models built, engine skipped")
	}
	fmt.Printf("Duration: %s\n\n", report.TotalDuration)

	textRep := reporter.NewTextReporter(os.Stdout, isTerminal())
	textRep.PrintStatus(report.Results)
	textRep.PrintSummary(report)
	return nil
}
