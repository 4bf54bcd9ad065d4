package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dikeworks/floxrun/internal/ingest"
)

func newIngestCmd() *cobra.Command {
	var (
		locationsCSV string
		soilsCSV     string
		outPath      string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Convert warehouse CSV exports into a dataset snapshot",
		Long: `Ingest reads the location and soil profile CSV exports from the data
warehouse and writes a dataset JSON snapshot that 'floxrun run' accepts.

Rows that cannot be converted are reported and skipped; one bad export
row never blocks the rest of the dataset.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, issues, err := ingest.Convert(locationsCSV, soilsCSV)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			for _, issue := range issues {
				fmt.Println(issue.String())
			}

			if err := ingest.WriteSnapshot(snapshot, outPath); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}

			fmt.Printf("wrote %s: %d locations, %d soil profiles (%d rows skipped)\n",
				outPath, len(snapshot.Locations), len(snapshot.SoilProfiles), len(issues))
			return nil
		},
	}

	cmd.Flags().StringVar(&locationsCSV, "locations", "locations.csv", "path to the locations CSV export")
	cmd.Flags().StringVar(&soilsCSV, "soils", "soils.csv", "path to the soil profiles CSV export")
	cmd.Flags().StringVar(&outPath, "out", "dataset.json", "output snapshot path")

	return cmd
}
