package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"nft-alerts/internal/app"
)

var (
	exportStream    string
	exportFrom      string
	exportTo        string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stream's alerted prices as CSV and/or PNG chart",
	Example: `  nftalerts export --stream floor --csv out/floor.csv --png out/floor.png
  nftalerts export --stream sales --from 2024-05-01T00:00:00Z --csv sales.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportStream == "" {
			return fmt.Errorf("--stream must be provided")
		}

		from, err := parseTimeFlag("from", exportFrom)
		if err != nil {
			return err
		}
		to, err := parseTimeFlag("to", exportTo)
		if err != nil {
			return err
		}

		return getApp().Export(cmd.Context(), app.ExportOptions{
			Stream:    exportStream,
			From:      from,
			To:        to,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportStream, "stream", "", "Stream to export (floor, bid, listings, sales)")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start timestamp (RFC3339, inclusive); defaults to 7 days before --to")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End timestamp (RFC3339, exclusive); defaults to now")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
