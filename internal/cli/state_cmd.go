package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dikeworks/floxrun/internal/config"
	"github.com/dikeworks/floxrun/internal/state"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Manage persistent scenario state",
		Long: `Manage the persistent scenario state that prevents duplicate runs.

Scenarios that completed successfully are automatically skipped on
subsequent runs. Use 'floxrun state list' to see tracked scenarios,
'floxrun state reset <name>' to allow one to re-execute, or
'floxrun state clear' to reset all state.`,
	}

	cmd.AddCommand(newStateListCmd())
	cmd.AddCommand(newStateResetCmd())
	cmd.AddCommand(newStateClearCmd())

	return cmd
}

func loadTracker() (*state.Tracker, error) {
	cfg, err := config.LoadSettings(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return state.Load(state.DefaultPath(cfg.OutputDir)), nil
}

func newStateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all tracked scenario states",
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, err := loadTracker()
			if err != nil {
				return err
			}
			entries := tracker.Entries()
			if len(entries) == 0 {
				fmt.Println("No tracked scenarios.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "SCENARIO\tSTATUS\tENGINE\tPIPE (m)\tFINISHED\n")
			for name, e := range entries {
				pipe := ""
				if e.Status == state.StatusCompleted {
					pipe = fmt.Sprintf("%.2f", e.PipeLength)
				}
				finished := ""
				if !e.FinishedAt.IsZero() {
					finished = e.FinishedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, e.Status, e.Engine, pipe, finished)
			}
			return w.Flush()
		},
	}
}

func newStateResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <scenario>",
		Short: "Reset a scenario to allow re-execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, err := loadTracker()
			if err != nil {
				return err
			}
			entry := tracker.Get(args[0])
			if entry == nil {
				return fmt.Errorf("scenario %q not found in state", args[0])
			}
			tracker.Reset(args[0])
			fmt.Printf("Reset %q (was %s)\n", args[0], entry.Status)
			return nil
		},
	}
}

func newStateClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all scenario state (allows full re-execution)",
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, err := loadTracker()
			if err != nil {
				return err
			}
			tracker.Clear()
			fmt.Println("State cleared.")
			return nil
		},
	}
}
