package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dikeworks/floxrun/internal/config"
	"github.com/dikeworks/floxrun/internal/preflight"
)

func newPreflightCmd() *cobra.Command {
	var (
		datasets []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check the environment before a batch: engines, output dir, datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("dataset") && len(cfg.Datasets) > 0 {
				datasets = cfg.Datasets
			}

			report := preflight.Run(cfg, datasets)

			if asJSON {
				if err := preflight.NewJSONFormatter().Format(os.Stdout, report); err != nil {
					return err
				}
			} else {
				if err := preflight.NewTextFormatter(isTerminal()).Format(os.Stdout, report); err != nil {
					return err
				}
			}

			if report.HasCritical() {
				crit, _, _ := report.Counts()
				return fmt.Errorf("preflight found %d critical problems", crit)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&datasets, "dataset", nil, "dataset files or globs to check (defaults to config datasets)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit findings as JSON")

	return cmd
}
