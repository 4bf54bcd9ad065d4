package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dikeworks/floxrun/internal/engine"
)

func newGraylistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graylist",
		Short: "Manage the flaky scenario graylist",
		Long: `Manage the graylist of scenarios whose geometry crashes the console.

Scenarios are auto-graylisted when a console run dies with a crash
signature. Graylisted scenarios still run; the record tells you which
geometries need manual cleanup before a retry is worth the license time.

Stored in: ~/.floxrun/graylist.json`,
	}

	cmd.AddCommand(newGraylistListCmd())
	cmd.AddCommand(newGraylistClearCmd())

	return cmd
}

func newGraylistListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all graylisted scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			gl := engine.LoadGraylist(engine.DefaultGraylistPath())
			entries := gl.Entries()

			if len(entries) == 0 {
				fmt.Println("No graylisted scenarios.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "SCENARIO\tENGINE\tCRASHES\tSIGNATURE\tADDED\n")
			for name, info := range entries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					name, info.Engine, info.Crashes, info.Signature,
					info.AddedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func newGraylistClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all scenarios from the graylist",
		RunE: func(cmd *cobra.Command, args []string) error {
			gl := engine.LoadGraylist(engine.DefaultGraylistPath())
			gl.Clear()
			fmt.Println("Graylist cleared.")
			return nil
		},
	}
}
