package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"nft-alerts/internal/app"
)

var (
	showLimit  int
	showStream string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recently sent alerts",
	Example: `  nftalerts show --limit 50
  nftalerts show --stream sales`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		return getApp().Show(cmd.Context(), app.ShowOptions{
			Stream: showStream,
			Limit:  showLimit,
		})
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of alerts to display")
	showCmd.Flags().StringVar(&showStream, "stream", "", "Only show alerts of one stream (floor, bid, listings, sales)")
}
