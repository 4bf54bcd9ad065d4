package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version, Commit and BuildDate are set via LDFLAGS at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	verbose    bool
	configFile string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "floxrun",
		Short: "Batch orchestrator for D-GeoFlow piping calculations",
		Long:  "floxrun converts warehouse dike data into D-GeoFlow models, runs them through the vendor console one scenario at a time and collects pipe lengths.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configFile, "config", "floxrun.yaml", "path to config file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newRerunCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newPreflightCmd())
	root.AddCommand(newIngestCmd())
	root.AddCommand(newStateCmd())
	root.AddCommand(newUnlockCmd())
	root.AddCommand(newGraylistCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newSentinelCmd())
	root.AddCommand(newVersionCmd())

	return root
}
