package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nft-alerts/internal/app"
)

var (
	pruneBefore    string
	pruneOlderThan time.Duration
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old alert history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (pruneBefore == "") == (pruneOlderThan <= 0) {
			return fmt.Errorf("exactly one of --before or --older-than must be provided")
		}

		opts := app.PruneOptions{Before: time.Now().Add(-pruneOlderThan)}
		before, err := parseTimeFlag("before", pruneBefore)
		if err != nil {
			return err
		}
		if before != nil {
			opts.Before = *before
		}

		return getApp().Prune(cmd.Context(), opts)
	},
}

func init() {
	pruneCmd.Flags().StringVar(&pruneBefore, "before", "", "Delete alerts created before this timestamp (RFC3339)")
	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 0, "Delete alerts older than this age, e.g. 720h")
}
