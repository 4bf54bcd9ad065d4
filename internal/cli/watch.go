package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/dikeworks/floxrun/internal/config"
	"github.com/dikeworks/floxrun/internal/reporter"
)

func newWatchCmd() *cobra.Command {
	var runDir string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Monitor a running batch in real-time",
		Long:  "Watch provides a top-like monitor over a run directory, tailing the per-scenario calc logs of another floxrun process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if runDir == "" {
				detected, err := findLatestRunDir(cfg.OutputDir, false)
				if err != nil {
					return fmt.Errorf("no --run-dir specified and %w", err)
				}
				runDir = detected
			}
			return runWatch(runDir)
		},
	}

	cmd.Flags().StringVar(&runDir, "run-dir", "", "path to <output>/<timestamp> directory (auto-detects latest if omitted)")

	return cmd
}

func runWatch(runDir string) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	w := reporter.NewWatchReporter(os.Stdout, isTerminal(), runDir)

	stop := make(chan struct{})
	go func() {
		<-sigCh
		close(stop)
	}()

	return w.Run(stop)
}
