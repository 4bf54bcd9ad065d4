package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dikeworks/floxrun/internal/config"
	"github.com/dikeworks/floxrun/internal/dataset"
)

func newValidateCmd() *cobra.Command {
	var (
		datasetGlob string
		fromDP      int
		toDP        int
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a dataset and report unconvertible records without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			patterns := []string{datasetGlob}
			if !cmd.Flags().Changed("dataset") && len(cfg.Datasets) > 0 {
				patterns = cfg.Datasets
			}
			return validateDataset(patterns, cfg, fromDP, toDP)
		},
	}

	cmd.Flags().StringVar(&datasetGlob, "dataset", "dataset.json", "path to dataset snapshot (supports glob patterns)")
	cmd.Flags().IntVar(&fromDP, "from", 0, "first dijkpaal to include (0 = open)")
	cmd.Flags().IntVar(&toDP, "to", 0, "last dijkpaal to include (0 = open)")

	return cmd
}

func validateDataset(patterns []string, cfg *config.Settings, fromDP, toDP int) error {
	var paths []string
	for _, pattern := range patterns {
		p, err := dataset.ResolveGlob(pattern)
		if err != nil {
			return fmt.Errorf("resolve dataset: %w", err)
		}
		paths = append(paths, p...)
	}

	snapshot, err := dataset.LoadMulti(paths)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if err := dataset.Validate(snapshot); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	scenarios, issues := dataset.Convert(snapshot, cfg.Model.LimitLeft, cfg.Model.LimitRight, cfg.Model.BottomOffset)
	scenarios = dataset.FilterDijkpaal(scenarios, fromDP, toDP)

	for _, issue := range issues {
		fmt.Println(issue.String())
	}
	fmt.Printf("valid: %d scenarios from %d files (%d records skipped)\n",
		len(scenarios), len(paths), len(issues))
	return nil
}
